package pipeline_test

import (
	"math"
	"testing"

	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/impute"
	"github.com/opst/netsec/pkg/ml/pipeline"
	"github.com/opst/netsec/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

// scale multiplies every value by factor. It records what it was fitted with.
type scale struct {
	factor float64
	fitted *mat.Dense
}

func (s *scale) Kind() string { return "scale" }

func (s *scale) Fit(x mat.Matrix) error {
	s.fitted = mat.DenseCopyOf(x)
	return nil
}

func (s *scale) Transform(x mat.Matrix) (*mat.Dense, error) {
	out := mat.DenseCopyOf(x)
	out.Scale(s.factor, out)
	return out, nil
}

var _ ml.Transformer = &scale{}

func TestPipeline(t *testing.T) {
	t.Run("it fits each step on the output of previous steps", func(t *testing.T) {
		first, second := &scale{factor: 2}, &scale{factor: 10}
		p := try.To(pipeline.New(
			pipeline.Step{Name: "double", Transformer: first},
			pipeline.Step{Name: "tenfold", Transformer: second},
		)).OrFatal(t)

		x := mat.NewDense(2, 1, []float64{1, 2})
		if err := p.Fit(x); err != nil {
			t.Fatal(err)
		}
		if !mat.Equal(first.fitted, x) {
			t.Errorf("first step is fitted with %v", mat.Formatted(first.fitted))
		}
		if !mat.Equal(second.fitted, mat.NewDense(2, 1, []float64{2, 4})) {
			t.Errorf("second step is fitted with %v", mat.Formatted(second.fitted))
		}

		got := try.To(p.Transform(x)).OrFatal(t)
		if !mat.Equal(got, mat.NewDense(2, 1, []float64{20, 40})) {
			t.Errorf("transformed: %v", mat.Formatted(got))
		}
	})

	t.Run("it finds steps by name", func(t *testing.T) {
		imp := try.To(impute.NewKNNImputer(3, impute.WeightsUniform, impute.MetricNaNEuclidean)).OrFatal(t)
		p := try.To(pipeline.New(pipeline.Step{Name: "imputer", Transformer: imp})).OrFatal(t)
		if got, ok := p.Step("imputer"); !ok || got != imp {
			t.Errorf("Step(imputer) = %v, %v", got, ok)
		}
		if _, ok := p.Step("scaler"); ok {
			t.Error("Step(scaler) is found")
		}

		x := mat.NewDense(3, 1, []float64{1, math.NaN(), 3})
		if err := p.Fit(x); err != nil {
			t.Fatal(err)
		}
		got := try.To(p.Transform(x)).OrFatal(t)
		if got.At(1, 0) != 2 {
			t.Errorf("imputed: %v", mat.Formatted(got))
		}
	})

	t.Run("it refuses duplicated or empty step names", func(t *testing.T) {
		if _, err := pipeline.New(
			pipeline.Step{Name: "a", Transformer: &scale{}},
			pipeline.Step{Name: "a", Transformer: &scale{}},
		); err == nil {
			t.Error("duplicated name: expected error, but got nil")
		}
		if _, err := pipeline.New(pipeline.Step{Transformer: &scale{}}); err == nil {
			t.Error("empty name: expected error, but got nil")
		}
	})
}
