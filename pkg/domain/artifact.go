package domain

import "github.com/opst/netsec/pkg/ml/metrics"

// IngestionArtifact locates the train/test split of a run.
type IngestionArtifact struct {
	FeatureStorePath string `json:"featureStorePath" yaml:"featureStorePath"`
	TrainFilePath    string `json:"trainFilePath" yaml:"trainFilePath"`
	TestFilePath     string `json:"testFilePath" yaml:"testFilePath"`
}

// ValidationArtifact is the outcome of validation.
type ValidationArtifact struct {
	// ValidationStatus is true when both splits conform to the schema and no column drifts.
	ValidationStatus bool `json:"validationStatus" yaml:"validationStatus"`

	ValidTrainPath string `json:"validTrainPath" yaml:"validTrainPath"`
	ValidTestPath  string `json:"validTestPath" yaml:"validTestPath"`

	// Invalid*Path are set when the split does not conform to the schema.
	InvalidTrainPath *string `json:"invalidTrainPath" yaml:"invalidTrainPath"`
	InvalidTestPath  *string `json:"invalidTestPath" yaml:"invalidTestPath"`

	DriftReportPath string `json:"driftReportPath" yaml:"driftReportPath"`
}

// TransformationArtifact locates transformed matrices and the fitted preprocessor.
type TransformationArtifact struct {
	TransformedObjectPath string `json:"transformedObjectPath" yaml:"transformedObjectPath"`
	TransformedTrainPath  string `json:"transformedTrainPath" yaml:"transformedTrainPath"`
	TransformedTestPath   string `json:"transformedTestPath" yaml:"transformedTestPath"`

	// Features are names of feature columns, in the order of matrix columns.
	// The target is the last column of matrices and is not listed.
	Features []string `json:"features" yaml:"features"`
}

type ClassificationMetric = metrics.Classification

// TrainerArtifact locates the trained bundle and carries its scores.
type TrainerArtifact struct {
	TrainedModelPath string               `json:"trainedModelPath" yaml:"trainedModelPath"`
	BestModel        string               `json:"bestModel" yaml:"bestModel"`
	BestScore        float64              `json:"bestScore" yaml:"bestScore"`
	TrainMetric      ClassificationMetric `json:"trainMetric" yaml:"trainMetric"`
	TestMetric       ClassificationMetric `json:"testMetric" yaml:"testMetric"`
}
