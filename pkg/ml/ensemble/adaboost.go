package ensemble

import (
	"fmt"
	"math"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/tree"
	"gonum.org/v1/gonum/mat"
)

const KindAdaBoost = "adaboost"

// AdaBoost boosts decision stumps with the SAMME algorithm.
//
// Params: learning_rate (1.0), n_estimators (50).
type AdaBoost struct {
	LearningRate float64      `json:"learning_rate"`
	NEstimators  int          `json:"n_estimators"`
	ClassLabels  []float64    `json:"classes,omitempty"`
	Stumps       []*tree.Tree `json:"stumps,omitempty"`
	Weights      []float64    `json:"weights,omitempty"`
}

var _ ml.Classifier = &AdaBoost{}

func NewAdaBoost() *AdaBoost {
	return &AdaBoost{LearningRate: 1, NEstimators: 50}
}

func (a *AdaBoost) Kind() string {
	return KindAdaBoost
}

func (a *AdaBoost) Params() ml.Params {
	return ml.Params{"learning_rate": a.LearningRate, "n_estimators": a.NEstimators}
}

func (a *AdaBoost) WithParams(p ml.Params) (ml.Classifier, error) {
	merged := a.Params().Merge(p)
	out := &AdaBoost{}
	var err error
	if out.LearningRate, err = merged.Float("learning_rate", 1); err != nil {
		return nil, err
	}
	if out.NEstimators, err = merged.Int("n_estimators", 50); err != nil {
		return nil, err
	}
	if !(out.LearningRate > 0) || out.NEstimators < 1 {
		return nil, fmt.Errorf("invalid params: %v", merged)
	}
	return out, nil
}

func (a *AdaBoost) Fit(x mat.Matrix, y []float64) error {
	if err := ml.CheckXY(x, y); err != nil {
		return err
	}
	classes := ml.Classes(y)
	encoded, err := ml.Encode(y, classes)
	if err != nil {
		return xe.WrapAs(xe.KindTraining, err)
	}
	rows := ml.Rows(x)
	n, k := len(rows), float64(len(classes))

	idx := make([]int, n)
	w := make([]float64, n)
	for i := range w {
		idx[i] = i
		w[i] = 1 / float64(n)
	}

	a.ClassLabels = classes
	a.Stumps = []*tree.Tree{}
	a.Weights = []float64{}
	for m := 0; m < a.NEstimators; m++ {
		stump := tree.BuildClassifier(rows, encoded, len(classes), w, idx, tree.Config{
			Criterion: tree.Gini, MaxDepth: 1,
		})
		incorrect := make([]bool, n)
		errSum, wSum := 0.0, 0.0
		for i, row := range rows {
			incorrect[i] = tree.Argmax(stump.Value(row)) != encoded[i]
			if incorrect[i] {
				errSum += w[i]
			}
			wSum += w[i]
		}
		rate := errSum / wSum

		if rate <= 0 {
			// perfect fit. it decides alone.
			a.Stumps = append(a.Stumps, stump)
			a.Weights = append(a.Weights, 1)
			break
		}
		if rate >= 1-1/k {
			if len(a.Stumps) == 0 {
				return xe.WrapAs(xe.KindTraining, fmt.Errorf("base estimator is worse than random guess"))
			}
			break
		}

		alpha := a.LearningRate * (math.Log((1-rate)/rate) + math.Log(k-1))
		a.Stumps = append(a.Stumps, stump)
		a.Weights = append(a.Weights, alpha)

		total := 0.0
		for i := range w {
			if incorrect[i] {
				w[i] *= math.Exp(alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}
	return nil
}

func (a *AdaBoost) Predict(x mat.Matrix) ([]float64, error) {
	if len(a.Stumps) == 0 {
		return nil, ml.ErrNotFitted
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	votes := make([]float64, len(a.ClassLabels))
	for i, row := range rows {
		clear(votes)
		for m, s := range a.Stumps {
			votes[tree.Argmax(s.Value(row))] += a.Weights[m]
		}
		out[i] = a.ClassLabels[tree.Argmax(votes)]
	}
	return out, nil
}
