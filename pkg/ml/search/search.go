// Package search tunes hyperparameters by cross-validated exhaustive grid search.
package search

import (
	"context"
	"fmt"
	"math"
	"slices"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/metrics"
	"github.com/opst/netsec/pkg/utils/combination"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Grid maps a hyperparameter name to its candidate values.
type Grid map[string][]any

// Expand returns every combination of the grid.
//
// Keys are taken in sorted order and the last key varies fastest.
// An empty grid expands to one empty Params.
func (g Grid) Expand() []ml.Params {
	product := combination.MapCartesian(map[string][]any(g))
	out := make([]ml.Params, len(product))
	for i, p := range product {
		out[i] = ml.Params(p)
	}
	return out
}

// Size is the number of combinations.
func (g Grid) Size() int {
	n := 1
	for _, v := range g {
		n *= len(v)
	}
	return n
}

// Fold is a pair of train and test sample indexes.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits samples into k folds keeping class ratios, without shuffling.
//
// Classes are ordered by first appearance in y. Samples of each class are
// dealt to folds in order, so that each fold gets its share of the class.
func StratifiedKFold(y []float64, k int) ([]Fold, error) {
	if k < 2 {
		return nil, xe.WrapAs(xe.KindTraining, fmt.Errorf("number of folds should be at least 2: %d", k))
	}
	if len(y) < k {
		return nil, xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("cannot have number of folds (%d) greater than number of samples (%d)", k, len(y)),
		)
	}

	order := map[float64]int{}
	encoded := make([]int, len(y))
	for i, v := range y {
		c, ok := order[v]
		if !ok {
			c = len(order)
			order[v] = c
		}
		encoded[i] = c
	}
	nClasses := len(order)
	counts := make([]int, nClasses)
	for _, c := range encoded {
		counts[c]++
	}
	if slices.Max(counts) < k {
		return nil, xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("number of folds (%d) exceeds the number of members in every class", k),
		)
	}

	// deal sorted labels round-robin: fold f receives sorted[f], sorted[f+k], ...
	sorted := slices.Clone(encoded)
	slices.Sort(sorted)
	allocation := make([][]int, k) // [fold][class]
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < len(sorted); i += k {
			allocation[f][sorted[i]]++
		}
	}

	testFold := make([]int, len(y))
	for c := range nClasses {
		assign := []int{}
		for f := range k {
			for range allocation[f][c] {
				assign = append(assign, f)
			}
		}
		n := 0
		for i, e := range encoded {
			if e == c {
				testFold[i] = assign[n]
				n++
			}
		}
	}

	folds := make([]Fold, k)
	for i, f := range testFold {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}

// Result of a grid search.
type Result struct {
	// Candidates are expanded params, in the order of Grid.Expand.
	Candidates []ml.Params

	// Scores are mean cross-validation accuracies of Candidates.
	// A candidate failing on any fold has NaN.
	Scores []float64

	// BestIndex points the first candidate with the highest score.
	BestIndex int

	// Best is the estimator with the best params, refitted on the whole data.
	Best ml.Classifier
}

func (r *Result) BestParams() ml.Params {
	return r.Candidates[r.BestIndex]
}

func (r *Result) BestScore() float64 {
	return r.Scores[r.BestIndex]
}

// Config of GridSearch.
type Config struct {
	// Folds is the number of cross-validation folds.
	Folds int

	// Workers bounds concurrent fits. 0 or less means unlimited.
	Workers int
}

// GridSearch evaluates every combination of grid on est by stratified k-fold
// cross validation scored with accuracy, then refits the best one on whole x, y.
//
// Fits of (candidate, fold) pairs run concurrently up to cfg.Workers.
// The result does not depend on the concurrency.
//
// # Returns
//
// - *Result
//
// - error: TrainingError when folds can not be made, or every candidate fails.
// When ctx is canceled, its error is returned.
func GridSearch(ctx context.Context, est ml.Classifier, grid Grid, x mat.Matrix, y []float64, cfg Config) (*Result, error) {
	if err := ml.CheckXY(x, y); err != nil {
		return nil, err
	}
	folds, err := StratifiedKFold(y, cfg.Folds)
	if err != nil {
		return nil, err
	}
	candidates := grid.Expand()
	if len(candidates) == 0 {
		return nil, xe.WrapAs(xe.KindTraining, fmt.Errorf("grid has no candidates"))
	}

	type split struct {
		xTrain, xTest *mat.Dense
		yTrain, yTest []float64
	}
	splits := make([]split, len(folds))
	for f, fold := range folds {
		splits[f] = split{
			xTrain: Subset(x, fold.Train), yTrain: pick(y, fold.Train),
			xTest: Subset(x, fold.Test), yTest: pick(y, fold.Test),
		}
	}

	scores := make([][]float64, len(candidates))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	eg, ectx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		eg.SetLimit(cfg.Workers)
	}
	for c, params := range candidates {
		for f, s := range splits {
			eg.Go(func() error {
				if err := ectx.Err(); err != nil {
					return err
				}
				scores[c][f] = score(est, params, s.xTrain, s.yTrain, s.xTest, s.yTest)
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Candidates: candidates, Scores: make([]float64, len(candidates)), BestIndex: -1}
	for c, fs := range scores {
		sum := 0.0
		for _, s := range fs {
			sum += s
		}
		result.Scores[c] = sum / float64(len(fs))
		if math.IsNaN(result.Scores[c]) {
			continue
		}
		if result.BestIndex < 0 || result.Scores[result.BestIndex] < result.Scores[c] {
			result.BestIndex = c
		}
	}
	if result.BestIndex < 0 {
		return nil, xe.WrapAs(xe.KindTraining, fmt.Errorf("all candidates of %s failed to fit", est.Kind()))
	}

	best, err := est.WithParams(result.BestParams())
	if err != nil {
		return nil, xe.WrapAs(xe.KindTraining, err)
	}
	if err := best.Fit(x, y); err != nil {
		return nil, xe.WrapAs(xe.KindTraining, err)
	}
	result.Best = best
	return result, nil
}

// score fits a fresh instance and returns its test accuracy, or NaN on failure.
func score(est ml.Classifier, params ml.Params, xTrain mat.Matrix, yTrain []float64, xTest mat.Matrix, yTest []float64) float64 {
	m, err := est.WithParams(params)
	if err != nil {
		return math.NaN()
	}
	if err := m.Fit(xTrain, yTrain); err != nil {
		return math.NaN()
	}
	pred, err := m.Predict(xTest)
	if err != nil {
		return math.NaN()
	}
	acc, err := metrics.Accuracy(yTest, pred)
	if err != nil {
		return math.NaN()
	}
	return acc
}

// Subset returns rows idx of x as a new matrix.
func Subset(x mat.Matrix, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for r, i := range idx {
		for j := range c {
			out.Set(r, j, x.At(i, j))
		}
	}
	return out
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for r, i := range idx {
		out[r] = y[i]
	}
	return out
}
