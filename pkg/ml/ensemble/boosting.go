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

const KindGradientBoosting = "gradient_boosting"

// GradientBoosting is a binary classifier boosting regression trees on log-loss.
//
// Params: learning_rate (0.1), n_estimators (100), subsample (1.0),
// max_depth (3), random_state.
type GradientBoosting struct {
	LearningRate float64      `json:"learning_rate"`
	NEstimators  int          `json:"n_estimators"`
	Subsample    float64      `json:"subsample"`
	MaxDepth     int          `json:"max_depth"`
	RandomState  uint64       `json:"random_state"`
	ClassLabels  []float64    `json:"classes,omitempty"`
	Init         float64      `json:"init"`
	Trees        []*tree.Tree `json:"trees,omitempty"`
}

var _ ml.Classifier = &GradientBoosting{}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{LearningRate: 0.1, NEstimators: 100, Subsample: 1, MaxDepth: 3}
}

func (g *GradientBoosting) Kind() string {
	return KindGradientBoosting
}

func (g *GradientBoosting) Params() ml.Params {
	return ml.Params{
		"learning_rate": g.LearningRate,
		"n_estimators":  g.NEstimators,
		"subsample":     g.Subsample,
		"max_depth":     g.MaxDepth,
		"random_state":  g.RandomState,
	}
}

func (g *GradientBoosting) WithParams(p ml.Params) (ml.Classifier, error) {
	merged := g.Params().Merge(p)
	out := &GradientBoosting{}
	var err error
	if out.LearningRate, err = merged.Float("learning_rate", 0.1); err != nil {
		return nil, err
	}
	if out.NEstimators, err = merged.Int("n_estimators", 100); err != nil {
		return nil, err
	}
	if out.Subsample, err = merged.Float("subsample", 1); err != nil {
		return nil, err
	}
	if out.MaxDepth, err = merged.Int("max_depth", 3); err != nil {
		return nil, err
	}
	if !(out.LearningRate > 0) || out.NEstimators < 1 || !(0 < out.Subsample && out.Subsample <= 1) {
		return nil, fmt.Errorf("invalid params: %v", merged)
	}
	seed, err := merged.Int("random_state", 0)
	if err != nil {
		return nil, err
	}
	out.RandomState = uint64(seed)
	return out, nil
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func (g *GradientBoosting) Fit(x mat.Matrix, y []float64) error {
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
	g.ClassLabels = classes
	g.Trees = []*tree.Tree{}
	if len(classes) == 1 {
		g.Init = 0
		return nil
	}

	rows := ml.Rows(x)
	n := len(rows)
	target := make([]float64, n)
	pos := 0.0
	for i, e := range encoded {
		target[i] = float64(e)
		pos += target[i]
	}
	prior := pos / float64(n)
	g.Init = math.Log(prior / (1 - prior))

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.Init
	}
	residual := make([]float64, n)
	nSub := max(1, int(g.Subsample*float64(n)))
	rnd := rand.New(rand.NewPCG(g.RandomState, 2))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for m := 0; m < g.NEstimators; m++ {
		for i := range residual {
			residual[i] = target[i] - sigmoid(raw[i])
		}
		sample := all
		if nSub < n {
			sample = rnd.Perm(n)[:nSub]
		}
		t := tree.BuildRegressor(rows, residual, nil, sample, tree.Config{
			Criterion: tree.SquaredError, MaxDepth: g.MaxDepth,
		})

		// newton step for each leaf on in-bag samples.
		num := make([]float64, len(t.Nodes))
		den := make([]float64, len(t.Nodes))
		for _, i := range sample {
			leaf := t.Apply(rows[i])
			p := sigmoid(raw[i])
			num[leaf] += residual[i]
			den[leaf] += p * (1 - p)
		}
		for l := range t.Nodes {
			if !t.Nodes[l].IsLeaf() {
				continue
			}
			gamma := 0.0
			if den[l] > 1e-150 {
				gamma = num[l] / den[l]
			}
			t.Nodes[l].Value = []float64{gamma}
		}

		for i, row := range rows {
			raw[i] += g.LearningRate * t.Value(row)[0]
		}
		g.Trees = append(g.Trees, t)
	}
	return nil
}

// decision returns the raw score (log-odds of the second class).
func (g *GradientBoosting) decision(row []float64) float64 {
	v := g.Init
	for _, t := range g.Trees {
		v += g.LearningRate * t.Value(row)[0]
	}
	return v
}

func (g *GradientBoosting) Predict(x mat.Matrix) ([]float64, error) {
	if g.ClassLabels == nil {
		return nil, ml.ErrNotFitted
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(g.ClassLabels) == 1 || g.decision(row) <= 0 {
			out[i] = g.ClassLabels[0]
		} else {
			out[i] = g.ClassLabels[1]
		}
	}
	return out, nil
}
