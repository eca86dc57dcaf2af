package tree

import (
	"fmt"
	"math/rand/v2"
	"slices"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"gonum.org/v1/gonum/mat"
)

const KindDecisionTree = "decision_tree"

// DecisionTree is a CART classifier.
//
// Params:
//
//   - criterion: "gini" (default), "entropy" or "log_loss"
//   - max_depth: 0 (default) means unlimited
//   - min_samples_split: default 2
//   - min_samples_leaf: default 1
//   - random_state: seed, default 0
type DecisionTree struct {
	Criterion       string    `json:"criterion"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	RandomState     uint64    `json:"random_state"`
	ClassLabels     []float64 `json:"classes,omitempty"`
	Tree            *Tree     `json:"tree,omitempty"`
}

var _ ml.Classifier = &DecisionTree{}

func NewDecisionTree() *DecisionTree {
	return &DecisionTree{Criterion: Gini, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

func (d *DecisionTree) Kind() string {
	return KindDecisionTree
}

func (d *DecisionTree) Params() ml.Params {
	return ml.Params{
		"criterion":         d.Criterion,
		"max_depth":         d.MaxDepth,
		"min_samples_split": d.MinSamplesSplit,
		"min_samples_leaf":  d.MinSamplesLeaf,
		"random_state":      d.RandomState,
	}
}

func (d *DecisionTree) WithParams(p ml.Params) (ml.Classifier, error) {
	merged := d.Params().Merge(p)
	out := &DecisionTree{}
	var err error
	if out.Criterion, err = merged.Str("criterion", Gini); err != nil {
		return nil, err
	}
	if !slices.Contains([]string{Gini, Entropy, LogLoss}, out.Criterion) {
		return nil, fmt.Errorf("unknown criterion: %s", out.Criterion)
	}
	if out.MaxDepth, err = merged.Int("max_depth", 0); err != nil {
		return nil, err
	}
	if out.MinSamplesSplit, err = merged.Int("min_samples_split", 2); err != nil {
		return nil, err
	}
	if out.MinSamplesLeaf, err = merged.Int("min_samples_leaf", 1); err != nil {
		return nil, err
	}
	seed, err := merged.Int("random_state", 0)
	if err != nil {
		return nil, err
	}
	out.RandomState = uint64(seed)
	return out, nil
}

func (d *DecisionTree) Fit(x mat.Matrix, y []float64) error {
	if err := ml.CheckXY(x, y); err != nil {
		return err
	}
	classes := ml.Classes(y)
	encoded, err := ml.Encode(y, classes)
	if err != nil {
		return xe.WrapAs(xe.KindTraining, err)
	}
	rows := ml.Rows(x)
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	d.ClassLabels = classes
	d.Tree = BuildClassifier(rows, encoded, len(classes), nil, idx, Config{
		Criterion:       d.Criterion,
		MaxDepth:        d.MaxDepth,
		MinSamplesSplit: d.MinSamplesSplit,
		MinSamplesLeaf:  d.MinSamplesLeaf,
		Rand:            rand.New(rand.NewPCG(d.RandomState, 0)),
	})
	return nil
}

func (d *DecisionTree) Predict(x mat.Matrix) ([]float64, error) {
	if d.Tree == nil {
		return nil, ml.ErrNotFitted
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = d.ClassLabels[Argmax(d.Tree.Value(row))]
	}
	return out, nil
}

// Argmax returns the index of the first maximum.
func Argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
