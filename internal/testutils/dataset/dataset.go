// Package dataset provides small deterministic datasets for tests.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Separable returns n samples of 2 features.
//
// Feature 0 is the sample index and feature 1 is its parity.
// Label is 0 for the first half and 1 for the rest,
// so that a threshold on feature 0 separates classes.
func Separable(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := range n {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, float64(i%2))
		if i >= n/2 {
			y[i] = 1
		}
	}
	return x, y
}

// NetworkLike returns n rows of a small network-traffic-like dataset as CSV cells.
//
// Columns are 4 feature columns with values in {-1, 0, 1} and the label column "Result"
// in {-1, 1}. The label follows the sum of features, so it is learnable.
// Cells in missingEvery-th row of column "f2" are "na" (when missingEvery > 0).
func NetworkLike(n int, seed uint64, missingEvery int) ([]string, [][]string) {
	columns := []string{"f0", "f1", "f2", "f3", "Result"}
	rnd := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(columns))
		sum := 0
		for j := range 4 {
			v := rnd.IntN(3) - 1
			sum += v
			row[j] = fmt.Sprint(v)
		}
		label := -1
		if sum > 0 || (sum == 0 && rnd.IntN(2) == 0) {
			label = 1
		}
		row[4] = fmt.Sprint(label)
		if missingEvery > 0 && i%missingEvery == 0 {
			row[2] = "na"
		}
		rows[i] = row
	}
	return columns, rows
}

// Accuracy of pred against y.
func Accuracy(y, pred []float64) float64 {
	if len(y) == 0 || len(y) != len(pred) {
		return math.NaN()
	}
	hit := 0
	for i := range y {
		if y[i] == pred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(y))
}
