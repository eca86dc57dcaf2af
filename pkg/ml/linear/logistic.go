// Package linear provides linear classifiers.
package linear

import (
	"fmt"
	"math"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const KindLogisticRegression = "logistic_regression"

// LogisticRegression is a binary L2-regularized logistic regression.
//
// It minimizes C * sum(log-loss) + |w|^2 / 2 with L-BFGS. The intercept is not penalized.
//
// Params: C (1.0), max_iter (100).
type LogisticRegression struct {
	C           float64   `json:"C"`
	MaxIter     int       `json:"max_iter"`
	ClassLabels []float64 `json:"classes,omitempty"`
	Coef        []float64 `json:"coef,omitempty"`
	Intercept   float64   `json:"intercept"`
}

var _ ml.Classifier = &LogisticRegression{}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 100}
}

func (l *LogisticRegression) Kind() string {
	return KindLogisticRegression
}

func (l *LogisticRegression) Params() ml.Params {
	return ml.Params{"C": l.C, "max_iter": l.MaxIter}
}

func (l *LogisticRegression) WithParams(p ml.Params) (ml.Classifier, error) {
	merged := l.Params().Merge(p)
	out := &LogisticRegression{}
	var err error
	if out.C, err = merged.Float("C", 1); err != nil {
		return nil, err
	}
	if out.MaxIter, err = merged.Int("max_iter", 100); err != nil {
		return nil, err
	}
	if !(out.C > 0) || out.MaxIter < 1 {
		return nil, fmt.Errorf("invalid params: %v", merged)
	}
	return out, nil
}

// log(1 + exp(v)) without overflow.
func softplus(v float64) float64 {
	if v > 0 {
		return v + math.Log1p(math.Exp(-v))
	}
	return math.Log1p(math.Exp(v))
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

func (l *LogisticRegression) Fit(x mat.Matrix, y []float64) error {
	if err := ml.CheckXY(x, y); err != nil {
		return err
	}
	classes := ml.Classes(y)
	if len(classes) > 2 {
		return xe.WrapAs(xe.KindTraining, fmt.Errorf("only binary classification is supported: %d classes", len(classes)))
	}
	encoded, err := ml.Encode(y, classes)
	if err != nil {
		return xe.WrapAs(xe.KindTraining, err)
	}
	rows := ml.Rows(x)
	d := len(rows[0])
	l.ClassLabels = classes
	if len(classes) == 1 {
		l.Coef = make([]float64, d)
		l.Intercept = 0
		return nil
	}

	// params = [w_0 ... w_{d-1}, b]
	margin := func(params []float64, row []float64) float64 {
		return floats.Dot(params[:d], row) + params[d]
	}
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			loss := 0.0
			for i, row := range rows {
				z := margin(params, row)
				if encoded[i] == 1 {
					loss += softplus(-z)
				} else {
					loss += softplus(z)
				}
			}
			w := params[:d]
			return l.C*loss + floats.Dot(w, w)/2
		},
		Grad: func(grad, params []float64) {
			clear(grad)
			for i, row := range rows {
				r := sigmoid(margin(params, row)) - float64(encoded[i])
				floats.AddScaled(grad[:d], l.C*r, row)
				grad[d] += l.C * r
			}
			floats.Add(grad[:d], params[:d])
		},
	}

	result, err := optimize.Minimize(
		problem,
		make([]float64, d+1),
		&optimize.Settings{MajorIterations: l.MaxIter, GradientThreshold: 1e-4},
		&optimize.LBFGS{},
	)
	if result == nil {
		return xe.WrapAs(xe.KindTraining, err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return xe.WrapAs(xe.KindTraining, fmt.Errorf("logistic regression diverged: %v", err))
		}
	}
	// not converged within max_iter is accepted, as it is a usable estimate.
	l.Coef = result.X[:d]
	l.Intercept = result.X[d]
	return nil
}

func (l *LogisticRegression) Predict(x mat.Matrix) ([]float64, error) {
	if l.ClassLabels == nil {
		return nil, ml.ErrNotFitted
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(l.Coef) {
			return nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("expected %d features, got %d", len(l.Coef), len(row)))
		}
		if len(l.ClassLabels) == 1 || floats.Dot(l.Coef, row)+l.Intercept <= 0 {
			out[i] = l.ClassLabels[0]
		} else {
			out[i] = l.ClassLabels[1]
		}
	}
	return out, nil
}
