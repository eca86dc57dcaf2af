// Package validation checks ingested splits against the schema and detects drift between them.
package validation

import (
	"fmt"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/schema"
	"github.com/opst/netsec/pkg/table"
)

// ErrSchemaMismatch is the cause of a validation failure under the fatal schema policy.
var ErrSchemaMismatch = fmt.Errorf("%w: table does not conform to the schema", xe.KindSchema)

type Validation struct {
	conf   *configs.ValidationConfig
	input  domain.IngestionArtifact
	layout domain.Layout
	logger *log.Logger
}

func New(
	conf *configs.ValidationConfig,
	input domain.IngestionArtifact,
	layout domain.Layout,
	logger *log.Logger,
) *Validation {
	return &Validation{conf: conf, input: input, layout: layout, logger: logger}
}

// Conforms tells t has as many columns as s, with the same names.
func Conforms(t *table.Table, s *schema.Schema) bool {
	return schema.ColumnCountMatches(t, s) && schema.ColumnNamesMatch(t, s)
}

// check validates a split against the schema.
//
// A non-conforming split is copied to invalidPath. Under the fatal policy, it is an error.
// Otherwise, it returns the path of the copy.
func (v *Validation) check(name string, t *table.Table, s *schema.Schema, invalidPath string) (*string, error) {
	if Conforms(t, s) {
		return nil, nil
	}
	if err := t.SaveCSV(invalidPath); err != nil {
		return nil, err
	}
	msg := fmt.Sprintf(
		"%s split does not conform to the schema: columns = %v, schema = %v",
		name, t.Columns(), s.Names(),
	)
	if v.conf.SchemaPolicy() == configs.SchemaFatal {
		return nil, xe.WrapWithNote(msg, ErrSchemaMismatch)
	}
	v.logger.Warnf("%s (quarantined to %s)", msg, invalidPath)
	return &invalidPath, nil
}

// Run loads train/test splits, validates them and detects drift from train to test.
//
// Both splits are written to valid paths as they are.
// ValidationStatus of the artifact is true only when both splits conform and no column drifts.
//
// # Returns
//
// - domain.ValidationArtifact
//
// - error: IOError when a split or the schema is missing.
// SchemaError when the schema is broken, a split does not conform (under fatal policy),
// or drift can not be computed (missing or non-numeric column).
func (v *Validation) Run() (domain.ValidationArtifact, error) {
	train, err := table.LoadCSV(v.input.TrainFilePath)
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	test, err := table.LoadCSV(v.input.TestFilePath)
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	s, err := schema.Load(v.conf.Schema())
	if err != nil {
		return domain.ValidationArtifact{}, err
	}

	invalidTrain, err := v.check("train", train, s, v.layout.InvalidTrain())
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	invalidTest, err := v.check("test", test, s, v.layout.InvalidTest())
	if err != nil {
		return domain.ValidationArtifact{}, err
	}

	noDrift, report, err := schema.DetectDrift(train, test, v.conf.DriftThreshold(), v.layout.DriftReport())
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	for _, c := range report.Columns {
		if c.DriftDetected {
			v.logger.Warnf("drift detected in column %s: p-value = %g", c.Column, c.PValue)
		}
	}

	if err := train.SaveCSV(v.layout.ValidTrain()); err != nil {
		return domain.ValidationArtifact{}, err
	}
	if err := test.SaveCSV(v.layout.ValidTest()); err != nil {
		return domain.ValidationArtifact{}, err
	}

	status := noDrift && invalidTrain == nil && invalidTest == nil
	v.logger.Infof("validation status = %v (drift report: %s)", status, v.layout.DriftReport())
	return domain.ValidationArtifact{
		ValidationStatus: status,
		ValidTrainPath:   v.layout.ValidTrain(),
		ValidTestPath:    v.layout.ValidTest(),
		InvalidTrainPath: invalidTrain,
		InvalidTestPath:  invalidTest,
		DriftReportPath:  v.layout.DriftReport(),
	}, nil
}
