package linear_test

import (
	"errors"
	"testing"

	"github.com/opst/netsec/internal/testutils/dataset"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/linear"
	"github.com/opst/netsec/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

func TestLogisticRegression(t *testing.T) {
	t.Run("it learns separable data", func(t *testing.T) {
		x, y := dataset.Separable(40)
		model := linear.NewLogisticRegression()
		if err := model.Fit(x, y); err != nil {
			t.Fatal(err)
		}
		pred := try.To(model.Predict(x)).OrFatal(t)
		if acc := dataset.Accuracy(y, pred); acc < 0.9 {
			t.Errorf("accuracy = %v, want >= 0.9", acc)
		}
		if !(model.Coef[0] > 0) {
			t.Errorf("coefficient of the separating feature should be positive: %v", model.Coef)
		}
	})

	t.Run("it keeps labels as given", func(t *testing.T) {
		x := mat.NewDense(6, 1, []float64{-3, -2, -1, 1, 2, 3})
		y := []float64{-1, -1, -1, 1, 1, 1}
		model := linear.NewLogisticRegression()
		if err := model.Fit(x, y); err != nil {
			t.Fatal(err)
		}
		pred := try.To(model.Predict(mat.NewDense(2, 1, []float64{-10, 10}))).OrFatal(t)
		if pred[0] != -1 || pred[1] != 1 {
			t.Errorf("prediction = %v, want [-1 1]", pred)
		}
	})

	t.Run("it predicts the only class of a constant target", func(t *testing.T) {
		x, _ := dataset.Separable(10)
		model := linear.NewLogisticRegression()
		if err := model.Fit(x, make([]float64, 10)); err != nil {
			t.Fatal(err)
		}
		pred := try.To(model.Predict(x)).OrFatal(t)
		for i, p := range pred {
			if p != 0 {
				t.Errorf("prediction[%d] = %v, want 0", i, p)
			}
		}
	})

	t.Run("it refuses multiclass targets", func(t *testing.T) {
		x := mat.NewDense(3, 1, []float64{0, 1, 2})
		if err := linear.NewLogisticRegression().Fit(x, []float64{0, 1, 2}); !errors.Is(err, xe.KindTraining) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it refuses non-positive C", func(t *testing.T) {
		if _, err := linear.NewLogisticRegression().WithParams(ml.Params{"C": 0.0}); err == nil {
			t.Error("expected error, but got nil")
		}
	})

	t.Run("it does not predict before fit", func(t *testing.T) {
		x, _ := dataset.Separable(4)
		if _, err := linear.NewLogisticRegression().Predict(x); !errors.Is(err, ml.ErrNotFitted) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
