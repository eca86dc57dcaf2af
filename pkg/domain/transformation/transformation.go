// Package transformation imputes missing feature values and turns validated splits into numeric matrices.
package transformation

import (
	"fmt"
	"io"
	"os"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	xio "github.com/opst/netsec/pkg/io"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/ml/impute"
	"github.com/opst/netsec/pkg/ml/pipeline"
	"github.com/opst/netsec/pkg/table"
	"gonum.org/v1/gonum/mat"
)

// StepImputer is the name of the imputer step in the built transformer.
const StepImputer = "imputer"

// NegativeLabel is recoded to 0 in the target column.
const NegativeLabel = -1

type Transformation struct {
	conf                  *configs.TransformationConfig
	input                 domain.ValidationArtifact
	layout                domain.Layout
	finalPreprocessorPath string
	logger                *log.Logger
}

// New creates the transformation stage.
//
// finalPreprocessorPath is where the fitted transformer is written for serving, in addition to the run directory.
func New(
	conf *configs.TransformationConfig,
	input domain.ValidationArtifact,
	layout domain.Layout,
	finalPreprocessorPath string,
	logger *log.Logger,
) *Transformation {
	return &Transformation{
		conf:                  conf,
		input:                 input,
		layout:                layout,
		finalPreprocessorPath: finalPreprocessorPath,
		logger:                logger,
	}
}

// BuildTransformer returns an unfitted pipeline with a single KNN imputer step.
func (tr *Transformation) BuildTransformer() (*pipeline.Pipeline, error) {
	c := tr.conf.Imputer()
	imp, err := impute.NewKNNImputer(c.Neighbors(), c.Weights(), c.Metric())
	if err != nil {
		return nil, xe.WrapAs(xe.KindSchema, err)
	}
	return pipeline.New(pipeline.Step{Name: StepImputer, Transformer: imp})
}

// Recode maps NegativeLabel to 0. Other labels pass through.
func Recode(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		if v == NegativeLabel {
			v = 0
		}
		out[i] = v
	}
	return out
}

// separate splits t into the feature matrix and the recoded target.
func separate(t *table.Table, target string) (*mat.Dense, []float64, []string, error) {
	y, err := t.Floats(target)
	if err != nil {
		return nil, nil, nil, err
	}
	features := t.Drop(target).Columns()
	x, err := t.Matrix(features...)
	if err != nil {
		return nil, nil, nil, err
	}
	return x, Recode(y), features, nil
}

// Run imputes validated splits and persists them as matrices.
//
// The transformer is fitted on train features only.
// Each matrix holds transformed features followed by the target as the last column.
func (tr *Transformation) Run() (domain.TransformationArtifact, error) {
	trainT, err := table.LoadCSV(tr.input.ValidTrainPath)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	testT, err := table.LoadCSV(tr.input.ValidTestPath)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}

	target := tr.conf.TargetColumn()
	xTrain, yTrain, features, err := separate(trainT, target)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	// test features are aligned to train by name.
	yTestRaw, err := testT.Floats(target)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	xTest, err := testT.Matrix(features...)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	yTest := Recode(yTestRaw)

	pre, err := tr.BuildTransformer()
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	if err := pre.Fit(xTrain); err != nil {
		return domain.TransformationArtifact{}, xe.WrapAs(xe.KindTraining, err)
	}
	xTrainT, err := pre.Transform(xTrain)
	if err != nil {
		return domain.TransformationArtifact{}, xe.WrapAs(xe.KindTraining, err)
	}
	xTestT, err := pre.Transform(xTest)
	if err != nil {
		return domain.TransformationArtifact{}, xe.WrapAs(xe.KindTraining, err)
	}

	if err := SaveMatrix(tr.layout.TransformedTrain(), Join(xTrainT, yTrain)); err != nil {
		return domain.TransformationArtifact{}, err
	}
	if err := SaveMatrix(tr.layout.TransformedTest(), Join(xTestT, yTest)); err != nil {
		return domain.TransformationArtifact{}, err
	}
	for _, p := range []string{tr.layout.Preprocessor(), tr.finalPreprocessorPath} {
		if err := bundle.SaveTransformer(p, pre); err != nil {
			return domain.TransformationArtifact{}, err
		}
	}

	tr.logger.Infof(
		"transformed train %d rows and test %d rows with %d features",
		trainT.Len(), testT.Len(), len(features),
	)
	return domain.TransformationArtifact{
		TransformedObjectPath: tr.layout.Preprocessor(),
		TransformedTrainPath:  tr.layout.TransformedTrain(),
		TransformedTestPath:   tr.layout.TransformedTest(),
		Features:              features,
	}, nil
}

// Join appends y to x as the last column.
func Join(x mat.Matrix, y []float64) *mat.Dense {
	r, c := x.Dims()
	if r == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(x)
	out.SetCol(c, y)
	return out
}

// Split is the inverse of Join: features and the last column.
func Split(m *mat.Dense) (*mat.Dense, []float64, error) {
	r, c := m.Dims()
	if c < 2 {
		return nil, nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("matrix has %d columns, no features", c))
	}
	x := mat.DenseCopyOf(m.Slice(0, r, 0, c-1))
	y := mat.Col(nil, c-1, m)
	return x, y, nil
}

// SaveMatrix writes m in gonum binary format.
func SaveMatrix(path string, m *mat.Dense) error {
	return xio.WriteAll(path, func(w io.Writer) error {
		_, err := m.MarshalBinaryTo(w)
		return err
	})
}

// LoadMatrix reads a matrix written by SaveMatrix.
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	defer f.Close()
	m := &mat.Dense{}
	if _, err := m.UnmarshalBinaryFrom(f); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindIO, path, err)
	}
	return m, nil
}
