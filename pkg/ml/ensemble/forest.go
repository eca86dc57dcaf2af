// Package ensemble provides tree ensembles: random forest, gradient boosting and AdaBoost.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/tree"
	"gonum.org/v1/gonum/mat"
)

const KindRandomForest = "random_forest"

// RandomForest averages class probabilities of bootstrapped trees.
//
// Params: n_estimators (100), criterion (gini), max_depth (0 = unlimited),
// max_features ("sqrt", "log2", "all" or an integer), random_state.
type RandomForest struct {
	NEstimators int          `json:"n_estimators"`
	Criterion   string       `json:"criterion"`
	MaxDepth    int          `json:"max_depth"`
	MaxFeatures any          `json:"max_features"`
	RandomState uint64       `json:"random_state"`
	ClassLabels []float64    `json:"classes,omitempty"`
	Trees       []*tree.Tree `json:"trees,omitempty"`
}

var _ ml.Classifier = &RandomForest{}

func NewRandomForest() *RandomForest {
	return &RandomForest{NEstimators: 100, Criterion: tree.Gini, MaxFeatures: "sqrt"}
}

func (f *RandomForest) Kind() string {
	return KindRandomForest
}

func (f *RandomForest) Params() ml.Params {
	return ml.Params{
		"n_estimators": f.NEstimators,
		"criterion":    f.Criterion,
		"max_depth":    f.MaxDepth,
		"max_features": f.MaxFeatures,
		"random_state": f.RandomState,
	}
}

func (f *RandomForest) WithParams(p ml.Params) (ml.Classifier, error) {
	merged := f.Params().Merge(p)
	out := &RandomForest{MaxFeatures: merged["max_features"]}
	var err error
	if out.NEstimators, err = merged.Int("n_estimators", 100); err != nil {
		return nil, err
	}
	if out.NEstimators < 1 {
		return nil, fmt.Errorf("n_estimators should be positive: %d", out.NEstimators)
	}
	if out.Criterion, err = merged.Str("criterion", tree.Gini); err != nil {
		return nil, err
	}
	if out.MaxDepth, err = merged.Int("max_depth", 0); err != nil {
		return nil, err
	}
	if _, err := maxFeatures(out.MaxFeatures, 1); err != nil {
		return nil, err
	}
	seed, err := merged.Int("random_state", 0)
	if err != nil {
		return nil, err
	}
	out.RandomState = uint64(seed)
	return out, nil
}

// maxFeatures resolves max_features for n features.
func maxFeatures(spec any, n int) (int, error) {
	switch s := spec.(type) {
	case nil:
		return n, nil
	case string:
		switch s {
		case "sqrt":
			return max(1, int(math.Sqrt(float64(n)))), nil
		case "log2":
			return max(1, int(math.Log2(float64(n)))), nil
		case "all", "":
			return n, nil
		}
		return 0, fmt.Errorf("unknown max_features: %s", s)
	}
	k, err := ml.Params{"max_features": spec}.Int("max_features", n)
	if err != nil {
		return 0, err
	}
	if k < 1 {
		return 0, fmt.Errorf("max_features should be positive: %d", k)
	}
	return min(k, n), nil
}

func (f *RandomForest) Fit(x mat.Matrix, y []float64) error {
	if err := ml.CheckXY(x, y); err != nil {
		return err
	}
	classes := ml.Classes(y)
	encoded, err := ml.Encode(y, classes)
	if err != nil {
		return xe.WrapAs(xe.KindTraining, err)
	}
	rows := ml.Rows(x)
	k, err := maxFeatures(f.MaxFeatures, len(rows[0]))
	if err != nil {
		return xe.WrapAs(xe.KindTraining, err)
	}

	rnd := rand.New(rand.NewPCG(f.RandomState, 1))
	trees := make([]*tree.Tree, f.NEstimators)
	for t := range trees {
		bootstrap := make([]int, len(rows))
		for i := range bootstrap {
			bootstrap[i] = rnd.IntN(len(rows))
		}
		trees[t] = tree.BuildClassifier(rows, encoded, len(classes), nil, bootstrap, tree.Config{
			Criterion:   f.Criterion,
			MaxDepth:    f.MaxDepth,
			MaxFeatures: k,
			Rand:        rand.New(rand.NewPCG(rnd.Uint64(), rnd.Uint64())),
		})
	}
	f.ClassLabels = classes
	f.Trees = trees
	return nil
}

func (f *RandomForest) Predict(x mat.Matrix) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ml.ErrNotFitted
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	proba := make([]float64, len(f.ClassLabels))
	for i, row := range rows {
		clear(proba)
		for _, t := range f.Trees {
			for k, p := range t.Value(row) {
				proba[k] += p
			}
		}
		out[i] = f.ClassLabels[tree.Argmax(proba)]
	}
	return out, nil
}
