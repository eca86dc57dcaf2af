package domain

import (
	"io"
	"os"
	"time"

	xe "github.com/opst/netsec/pkg/errors"
	xio "github.com/opst/netsec/pkg/io"
	"gopkg.in/yaml.v3"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// StageRecord is the timing of a stage in a run.
type StageRecord struct {
	Stage      Stage     `yaml:"stage"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
	Error      string    `yaml:"error,omitempty"`
}

// Manifest describes a pipeline run. It is written as pipeline.yaml in the run directory.
type Manifest struct {
	RunDir     string    `yaml:"runDir"`
	Status     RunStatus `yaml:"status"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt,omitempty"`

	// FailedStage and Error are set when Status is failed.
	FailedStage Stage  `yaml:"failedStage,omitempty"`
	Error       string `yaml:"error,omitempty"`

	Stages []StageRecord `yaml:"stages"`

	Ingestion      *IngestionArtifact      `yaml:"ingestion,omitempty"`
	Validation     *ValidationArtifact     `yaml:"validation,omitempty"`
	Transformation *TransformationArtifact `yaml:"transformation,omitempty"`
	Trainer        *TrainerArtifact        `yaml:"trainer,omitempty"`
}

func (m *Manifest) Save(path string) error {
	return xio.WriteAll(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	})
}

func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(content, m); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindIO, path, err)
	}
	return m, nil
}
