package pipeline

import (
	"fmt"
	"strings"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/pipeline.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of pipeline.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `PipelineConfig`.
type PipelineConfigMarshall struct {
	ArtifactRoot   string                        `yaml:"artifactRoot,omitempty"`
	FinalModelDir  string                        `yaml:"finalModelDir,omitempty"`
	LogLevel       string                        `yaml:"logLevel,omitempty"`
	Store          *StoreConfigMarshall          `yaml:"store"`
	Ingestion      *IngestionConfigMarshall      `yaml:"ingestion,omitempty"`
	Validation     *ValidationConfigMarshall     `yaml:"validation"`
	Transformation *TransformationConfigMarshall `yaml:"transformation,omitempty"`
	Trainer        *TrainerConfigMarshall        `yaml:"trainer,omitempty"`
	Tracking       *TrackingConfigMarshall       `yaml:"tracking,omitempty"`
	Serving        *ServingConfigMarshall        `yaml:"serving,omitempty"`
}

var _ Marshalled[*PipelineConfig] = &PipelineConfigMarshall{}

func (pm *PipelineConfigMarshall) trySeal(path string) *PipelineConfig {
	loglevel := strings.ToLower(orDefault(pm.LogLevel, "info"))
	oneOf(loglevel, path+".logLevel", "debug", "info", "warn", "error", "off")

	return &PipelineConfig{
		artifactRoot:   orDefault(pm.ArtifactRoot, "Artifacts"),
		finalModelDir:  orDefault(pm.FinalModelDir, "final_model"),
		logLevel:       loglevel,
		store:          nonnil(pm.Store, path+".store").trySeal(path + ".store"),
		ingestion:      orZero(pm.Ingestion).trySeal(path + ".ingestion"),
		validation:     nonnil(pm.Validation, path+".validation").trySeal(path + ".validation"),
		transformation: orZero(pm.Transformation).trySeal(path + ".transformation"),
		trainer:        orZero(pm.Trainer).trySeal(path + ".trainer"),
		tracking:       orZero(pm.Tracking).trySeal(path + ".tracking"),
		serving:        orZero(pm.Serving).trySeal(path + ".serving"),
	}
}

type StoreConfigMarshall struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

func (sm *StoreConfigMarshall) trySeal(path string) *StoreConfig {
	return &StoreConfig{
		uri:        required(sm.URI, path+".uri"),
		database:   required(sm.Database, path+".database"),
		collection: required(sm.Collection, path+".collection"),
	}
}

type IngestionConfigMarshall struct {
	SplitRatio float64 `yaml:"splitRatio,omitempty"`
	Seed       *uint64 `yaml:"seed,omitempty"`
}

func (im *IngestionConfigMarshall) trySeal(path string) *IngestionConfig {
	ratio := orDefault(im.SplitRatio, 0.2)
	openUnit(ratio, path+".splitRatio")
	seed := uint64(42)
	if im.Seed != nil {
		seed = *im.Seed
	}
	return &IngestionConfig{splitRatio: ratio, seed: seed}
}

type ValidationConfigMarshall struct {
	Schema         string  `yaml:"schema"`
	DriftThreshold float64 `yaml:"driftThreshold,omitempty"`
	SchemaPolicy   string  `yaml:"schemaPolicy,omitempty"`
}

func (vm *ValidationConfigMarshall) trySeal(path string) *ValidationConfig {
	threshold := orDefault(vm.DriftThreshold, 0.05)
	openUnit(threshold, path+".driftThreshold")
	policy := strings.ToLower(orDefault(vm.SchemaPolicy, string(SchemaFatal)))
	oneOf(policy, path+".schemaPolicy", string(SchemaFatal), string(SchemaAdvisory))

	return &ValidationConfig{
		schema:         required(vm.Schema, path+".schema"),
		driftThreshold: threshold,
		schemaPolicy:   SchemaPolicy(policy),
	}
}

type TransformationConfigMarshall struct {
	TargetColumn string                 `yaml:"targetColumn,omitempty"`
	Imputer      *ImputerConfigMarshall `yaml:"imputer,omitempty"`
}

func (tm *TransformationConfigMarshall) trySeal(path string) *TransformationConfig {
	return &TransformationConfig{
		targetColumn: orDefault(tm.TargetColumn, "Result"),
		imputer:      orZero(tm.Imputer).trySeal(path + ".imputer"),
	}
}

type ImputerConfigMarshall struct {
	Neighbors int    `yaml:"neighbors,omitempty"`
	Weights   string `yaml:"weights,omitempty"`
	Metric    string `yaml:"metric,omitempty"`
}

func (im *ImputerConfigMarshall) trySeal(path string) *ImputerConfig {
	neighbors := orDefault(im.Neighbors, 3)
	atLeast(neighbors, 1, path+".neighbors")
	weights := orDefault(im.Weights, "uniform")
	oneOf(weights, path+".weights", "uniform", "distance")
	metric := orDefault(im.Metric, "nan_euclidean")
	oneOf(metric, path+".metric", "nan_euclidean")

	return &ImputerConfig{neighbors: neighbors, weights: weights, metric: metric}
}

type TrainerConfigMarshall struct {
	Folds   int     `yaml:"folds,omitempty"`
	Workers int     `yaml:"workers,omitempty"`
	Seed    *uint64 `yaml:"seed,omitempty"`
}

func (tm *TrainerConfigMarshall) trySeal(path string) *TrainerConfig {
	folds := orDefault(tm.Folds, 3)
	atLeast(folds, 2, path+".folds")
	workers := orDefault(tm.Workers, 4)
	atLeast(workers, 1, path+".workers")
	seed := uint64(42)
	if tm.Seed != nil {
		seed = *tm.Seed
	}
	return &TrainerConfig{folds: folds, workers: workers, seed: seed}
}

type TrackingConfigMarshall struct {
	URI string `yaml:"uri,omitempty"`
}

func (tm *TrackingConfigMarshall) trySeal(string) *TrackingConfig {
	return &TrackingConfig{uri: tm.URI}
}

type ServingConfigMarshall struct {
	Port             int    `yaml:"port,omitempty"`
	PredictionOutput string `yaml:"predictionOutput,omitempty"`
	TokenKey         string `yaml:"tokenKey,omitempty"`
}

func (sm *ServingConfigMarshall) trySeal(path string) *ServingConfig {
	port := orDefault(sm.Port, 8080)
	atLeast(port, 1, path+".port")
	return &ServingConfig{
		port:             port,
		predictionOutput: orDefault(sm.PredictionOutput, "prediction_output/output.csv"),
		tokenKey:         sm.TokenKey,
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func orZero[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func orDefault[T comparable](v T, d T) T {
	if v == *new(T) {
		return d
	}
	return v
}

func oneOf(v string, path string, candidates ...string) {
	for _, c := range candidates {
		if v == c {
			return
		}
	}
	panic(fmt.Sprintf("%s should be one of %v, but %q", path, candidates, v))
}

func openUnit(v float64, path string) {
	if !(0 < v && v < 1) {
		panic(fmt.Sprintf("%s should be in (0, 1), but %v", path, v))
	}
}

func atLeast(v int, lower int, path string) {
	if v < lower {
		panic(fmt.Sprintf("%s should be >= %d, but %d", path, lower, v))
	}
}
