package pipeline

import "path/filepath"

// Configuration of the training pipeline and its serving endpoint.
//
// To get `PipelineConfig` instance, use `Unmarshal`, `LoadPipelineConfig`
// or `TrySeal(*PipelineConfigMarshall)`.
type PipelineConfig struct {
	artifactRoot   string
	finalModelDir  string
	logLevel       string
	store          *StoreConfig
	ingestion      *IngestionConfig
	validation     *ValidationConfig
	transformation *TransformationConfig
	trainer        *TrainerConfig
	tracking       *TrackingConfig
	serving        *ServingConfig
}

// Root directory of run directories. default = "Artifacts"
func (c *PipelineConfig) ArtifactRoot() string {
	return c.artifactRoot
}

// Directory where the serving bundle is placed. default = "final_model"
func (c *PipelineConfig) FinalModelDir() string {
	return c.finalModelDir
}

// Path of the preprocessor for serving.
func (c *PipelineConfig) FinalPreprocessorPath() string {
	return filepath.Join(c.finalModelDir, "preprocessor.json")
}

// Path of the predict-capable bundle for serving.
func (c *PipelineConfig) FinalModelPath() string {
	return filepath.Join(c.finalModelDir, "model.json")
}

// debug, info, warn, error or off. default = "info"
func (c *PipelineConfig) LogLevel() string {
	return c.logLevel
}

func (c *PipelineConfig) Store() *StoreConfig {
	return c.store
}

func (c *PipelineConfig) Ingestion() *IngestionConfig {
	return c.ingestion
}

func (c *PipelineConfig) Validation() *ValidationConfig {
	return c.validation
}

func (c *PipelineConfig) Transformation() *TransformationConfig {
	return c.transformation
}

func (c *PipelineConfig) Trainer() *TrainerConfig {
	return c.trainer
}

func (c *PipelineConfig) Tracking() *TrackingConfig {
	return c.tracking
}

func (c *PipelineConfig) Serving() *ServingConfig {
	return c.serving
}

// Where raw records are.
type StoreConfig struct {
	uri        string
	database   string
	collection string
}

// Connection URI. "postgres://..." or "sqlite://<path>"
func (c *StoreConfig) URI() string {
	return c.uri
}

func (c *StoreConfig) Database() string {
	return c.database
}

func (c *StoreConfig) Collection() string {
	return c.collection
}

type IngestionConfig struct {
	splitRatio float64
	seed       uint64
}

// Fraction of test rows. default = 0.2
func (c *IngestionConfig) SplitRatio() float64 {
	return c.splitRatio
}

// Seed for shuffling rows before split. default = 42
func (c *IngestionConfig) Seed() uint64 {
	return c.seed
}

// SchemaPolicy decides how schema mismatch is handled in validation.
type SchemaPolicy string

const (
	// schema mismatch aborts validation.
	SchemaFatal SchemaPolicy = "fatal"

	// schema mismatch is logged, the split is quarantined and validation goes on.
	SchemaAdvisory SchemaPolicy = "advisory"
)

type ValidationConfig struct {
	schema         string
	driftThreshold float64
	schemaPolicy   SchemaPolicy
}

// Path to the schema file.
func (c *ValidationConfig) Schema() string {
	return c.schema
}

// A column drifts when p-value <= this. default = 0.05
func (c *ValidationConfig) DriftThreshold() float64 {
	return c.driftThreshold
}

// default = fatal
func (c *ValidationConfig) SchemaPolicy() SchemaPolicy {
	return c.schemaPolicy
}

type TransformationConfig struct {
	targetColumn string
	imputer      *ImputerConfig
}

// Label column. default = "Result"
func (c *TransformationConfig) TargetColumn() string {
	return c.targetColumn
}

func (c *TransformationConfig) Imputer() *ImputerConfig {
	return c.imputer
}

type ImputerConfig struct {
	neighbors int
	weights   string
	metric    string
}

// default = 3
func (c *ImputerConfig) Neighbors() int {
	return c.neighbors
}

// "uniform" or "distance". default = "uniform"
func (c *ImputerConfig) Weights() string {
	return c.weights
}

// default = "nan_euclidean"
func (c *ImputerConfig) Metric() string {
	return c.metric
}

type TrainerConfig struct {
	folds   int
	workers int
	seed    uint64
}

// Folds of cross validation in grid search. default = 3
func (c *TrainerConfig) Folds() int {
	return c.folds
}

// Concurrency of grid search. default = 4
func (c *TrainerConfig) Workers() int {
	return c.workers
}

// default = 42
func (c *TrainerConfig) Seed() uint64 {
	return c.seed
}

type TrackingConfig struct {
	uri string
}

// Tracking store URI ("sqlite://<path>"). Empty means tracking is off.
func (c *TrackingConfig) URI() string {
	return c.uri
}

type ServingConfig struct {
	port             int
	predictionOutput string
	tokenKey         string
}

// default = 8080
func (c *ServingConfig) Port() int {
	return c.port
}

// default = "prediction_output/output.csv"
func (c *ServingConfig) PredictionOutput() string {
	return c.predictionOutput
}

// Path to HS256 key file to verify bearer tokens. Empty means no guard.
func (c *ServingConfig) TokenKey() string {
	return c.tokenKey
}
