// Package metrics scores predictions.
//
// Classification scores treat label 1 as positive.
// When a score is undefined (division by zero), it is 0.
package metrics

import (
	"fmt"

	xe "github.com/opst/netsec/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Positive is the label regarded as positive.
const Positive = 1.0

// Classification holds scores of a binary classification.
type Classification struct {
	F1        float64 `json:"f1" yaml:"f1"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
}

type confusion struct {
	tp, fp, fn float64
}

func count(yTrue, yPred []float64) (confusion, error) {
	if len(yTrue) != len(yPred) {
		return confusion{}, xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("length mismatch: %d labels, %d predictions", len(yTrue), len(yPred)),
		)
	}
	c := confusion{}
	for i := range yTrue {
		t, p := yTrue[i] == Positive, yPred[i] == Positive
		switch {
		case t && p:
			c.tp++
		case p:
			c.fp++
		case t:
			c.fn++
		}
	}
	return c, nil
}

func div(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

func Precision(yTrue, yPred []float64) (float64, error) {
	c, err := count(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return div(c.tp, c.tp+c.fp), nil
}

func Recall(yTrue, yPred []float64) (float64, error) {
	c, err := count(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return div(c.tp, c.tp+c.fn), nil
}

func F1(yTrue, yPred []float64) (float64, error) {
	c, err := count(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return div(2*c.tp, 2*c.tp+c.fp+c.fn), nil
}

// Classify computes f1, precision and recall at once.
func Classify(yTrue, yPred []float64) (Classification, error) {
	c, err := count(yTrue, yPred)
	if err != nil {
		return Classification{}, err
	}
	return Classification{
		F1:        div(2*c.tp, 2*c.tp+c.fp+c.fn),
		Precision: div(c.tp, c.tp+c.fp),
		Recall:    div(c.tp, c.tp+c.fn),
	}, nil
}

// Accuracy is the fraction of exact matches.
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("length mismatch: %d labels, %d predictions", len(yTrue), len(yPred)),
		)
	}
	if len(yTrue) == 0 {
		return 0, nil
	}
	hit := 0.0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return hit / float64(len(yTrue)), nil
}

// R2 is the coefficient of determination of yPred against yTrue.
//
// When yTrue is constant, it is 1 for a perfect prediction and 0 otherwise.
func R2(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("length mismatch: %d labels, %d predictions", len(yTrue), len(yPred)),
		)
	}
	if len(yTrue) < 2 {
		return 0, xe.WrapAs(xe.KindTraining, fmt.Errorf("R2 needs at least 2 samples"))
	}
	mean := stat.Mean(yTrue, nil)
	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		ssRes += r * r
		d := yTrue[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if floats.Equal(yTrue, yPred) {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}
