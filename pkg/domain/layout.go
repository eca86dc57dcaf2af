package domain

import (
	"path/filepath"
	"time"
)

// RunDirFormat is the time layout naming run directories.
const RunDirFormat = "01_02_2006_15_04_05"

// Layout tells where stages of a run write files.
type Layout struct {
	root string
}

// NewLayout returns the layout of a run directory.
func NewLayout(runDir string) Layout {
	return Layout{root: runDir}
}

// LayoutAt returns the layout of the run started at t, under artifactRoot.
func LayoutAt(artifactRoot string, t time.Time) Layout {
	return NewLayout(filepath.Join(artifactRoot, t.Format(RunDirFormat)))
}

func (l Layout) Root() string {
	return l.root
}

func (l Layout) Manifest() string {
	return filepath.Join(l.root, "pipeline.yaml")
}

func (l Layout) FeatureStore() string {
	return filepath.Join(l.root, "data_ingestion", "feature_store", "network_data.csv")
}

func (l Layout) IngestedTrain() string {
	return filepath.Join(l.root, "data_ingestion", "ingested", "train.csv")
}

func (l Layout) IngestedTest() string {
	return filepath.Join(l.root, "data_ingestion", "ingested", "test.csv")
}

func (l Layout) ValidTrain() string {
	return filepath.Join(l.root, "data_validation", "validated", "train.csv")
}

func (l Layout) ValidTest() string {
	return filepath.Join(l.root, "data_validation", "validated", "test.csv")
}

func (l Layout) InvalidTrain() string {
	return filepath.Join(l.root, "data_validation", "invalid", "train.csv")
}

func (l Layout) InvalidTest() string {
	return filepath.Join(l.root, "data_validation", "invalid", "test.csv")
}

func (l Layout) DriftReport() string {
	return filepath.Join(l.root, "data_validation", "drift_report", "report.yaml")
}

func (l Layout) TransformedTrain() string {
	return filepath.Join(l.root, "data_transformation", "transformed", "train.mat")
}

func (l Layout) TransformedTest() string {
	return filepath.Join(l.root, "data_transformation", "transformed", "test.mat")
}

func (l Layout) Preprocessor() string {
	return filepath.Join(l.root, "data_transformation", "transformed_object", "preprocessor.json")
}

func (l Layout) TrainedModel() string {
	return filepath.Join(l.root, "model_trainer", "trained_model", "model.json")
}
