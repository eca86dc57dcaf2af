package report_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	"github.com/opst/netsec/cmd/netsec/subcommands/internal/commandline"
	"github.com/opst/netsec/cmd/netsec/subcommands/report"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/logs"
	"github.com/opst/netsec/pkg/schema"
	"github.com/opst/netsec/pkg/utils/try"
)

func TestLatestRun(t *testing.T) {
	t.Run("it picks the run started last, not the last in name order", func(t *testing.T) {
		root := t.TempDir()
		for _, name := range []string{
			"12_31_2023_23_59_59",
			"01_02_2024_00_00_00",
			"not_a_run",
		} {
			if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.WriteFile(filepath.Join(root, "12_31_2024_00_00_00"), nil, 0644); err != nil {
			t.Fatal(err)
		}

		got := try.To(report.LatestRun(root)).OrFatal(t)
		if want := filepath.Join(root, "01_02_2024_00_00_00"); got != want {
			t.Errorf("latest = %s, want %s", got, want)
		}
	})

	t.Run("it fails when there are no runs", func(t *testing.T) {
		_, err := report.LatestRun(t.TempDir())
		if !errors.Is(err, os.ErrNotExist) || !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestReport(t *testing.T) {
	root := t.TempDir()
	started := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	layout := domain.LayoutAt(root, started)

	drift := &schema.DriftReport{Columns: []schema.ColumnDrift{
		{Column: "having_IP_Address", PValue: 0.8, DriftDetected: false},
		{Column: "URL_Length", PValue: 0.01, DriftDetected: true},
	}}
	if err := drift.Save(layout.DriftReport()); err != nil {
		t.Fatal(err)
	}
	manifest := &domain.Manifest{
		RunDir:     layout.Root(),
		Status:     domain.RunSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Stages: []domain.StageRecord{
			{Stage: domain.Ingest, StartedAt: started, FinishedAt: started.Add(time.Second)},
		},
		Validation: &domain.ValidationArtifact{
			ValidationStatus: false,
			DriftReportPath:  layout.DriftReport(),
		},
		Trainer: &domain.TrainerArtifact{
			BestModel: "Random Forest", BestScore: 0.75,
			TestMetric: domain.ClassificationMetric{F1: 0.9, Precision: 0.8, Recall: 1},
		},
	}
	if err := manifest.Save(layout.Manifest()); err != nil {
		t.Fatal(err)
	}

	conf := configs.TrySeal(&configs.PipelineConfigMarshall{
		ArtifactRoot: root,
		Store:        &configs.StoreConfigMarshall{URI: "sqlite://netsec.db", Database: "netsec", Collection: "NetworkData"},
		Validation:   &configs.ValidationConfigMarshall{Schema: "schema.yaml"},
	})

	for name, args := range map[string][]string{
		"it reports the latest run":    {},
		"it reports the run specified": {layout.Root()},
	} {
		t.Run(name, func(t *testing.T) {
			for _, markdown := range []bool{false, true} {
				stdout := new(strings.Builder)
				err := report.Task(
					context.Background(), logs.Discard(), common.Env{Config: conf},
					commandline.MockCommandline[report.Flags]{
						Fullname_: "netsec report",
						Stdout_:   stdout,
						Stderr_:   new(strings.Builder),
						Flags_:    report.Flags{Markdown: markdown},
						Args_:     map[string][]string{report.ARG_RUNDIR: args},
					},
					[]any{},
				)
				if err != nil {
					t.Fatal(err)
				}
				out := stdout.String()
				for _, want := range []string{
					layout.Root(), "succeeded", "Random Forest", "0.9000 / 0.8000 / 1.0000",
					"ingest", "having_IP_Address", "URL_Length",
				} {
					if !strings.Contains(out, want) {
						t.Errorf("markdown = %v: %q is not in output:\n%s", markdown, want, out)
					}
				}
			}
		})
	}

	t.Run("it fails for a directory without manifest", func(t *testing.T) {
		err := report.Task(
			context.Background(), logs.Discard(), common.Env{Config: conf},
			commandline.MockCommandline[report.Flags]{
				Fullname_: "netsec report",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Args_:     map[string][]string{report.ARG_RUNDIR: {t.TempDir()}},
			},
			[]any{},
		)
		if !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
