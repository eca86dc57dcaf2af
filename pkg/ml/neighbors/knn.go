// Package neighbors provides the k-nearest-neighbors classifier.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"gonum.org/v1/gonum/mat"
)

const KindKNeighbors = "k_neighbors"

// KNeighbors votes among the k nearest training rows by euclidean distance.
//
// Each neighbor has one vote. Ties go to the smallest label.
//
// Params: n_neighbors (5).
type KNeighbors struct {
	NNeighbors int       `json:"n_neighbors"`
	X          ml.Dense  `json:"x"`
	Y          ml.Bits   `json:"y,omitempty"`
	Labels     []float64 `json:"classes,omitempty"`
}

var _ ml.Classifier = &KNeighbors{}

func NewKNeighbors() *KNeighbors {
	return &KNeighbors{NNeighbors: 5}
}

func (k *KNeighbors) Kind() string {
	return KindKNeighbors
}

func (k *KNeighbors) Params() ml.Params {
	return ml.Params{"n_neighbors": k.NNeighbors}
}

func (k *KNeighbors) WithParams(p ml.Params) (ml.Classifier, error) {
	n, err := k.Params().Merge(p).Int("n_neighbors", 5)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("n_neighbors should be positive: %d", n)
	}
	return &KNeighbors{NNeighbors: n}, nil
}

func (k *KNeighbors) Fit(x mat.Matrix, y []float64) error {
	if err := ml.CheckXY(x, y); err != nil {
		return err
	}
	if r, _ := x.Dims(); r < k.NNeighbors {
		return xe.WrapAs(
			xe.KindTraining,
			fmt.Errorf("n_neighbors (%d) exceeds number of samples (%d)", k.NNeighbors, r),
		)
	}
	k.X = ml.Dense{Dense: mat.DenseCopyOf(x)}
	k.Y = append(ml.Bits{}, y...)
	k.Labels = ml.Classes(y)
	return nil
}

func (k *KNeighbors) Predict(x mat.Matrix) ([]float64, error) {
	if k.X.Dense == nil {
		return nil, ml.ErrNotFitted
	}
	train := ml.Rows(k.X)
	if _, c := x.Dims(); c != len(train[0]) {
		return nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("expected %d features, got %d", len(train[0]), c))
	}
	encoded, err := ml.Encode(k.Y, k.Labels)
	if err != nil {
		return nil, err
	}

	type neighbor struct {
		index int
		dist  float64
	}
	rows := ml.Rows(x)
	out := make([]float64, len(rows))
	nbs := make([]neighbor, len(train))
	votes := make([]int, len(k.Labels))
	for i, row := range rows {
		for j, t := range train {
			nbs[j] = neighbor{index: j, dist: euclidean(row, t)}
		}
		sort.SliceStable(nbs, func(a, b int) bool { return nbs[a].dist < nbs[b].dist })

		clear(votes)
		for _, nb := range nbs[:k.NNeighbors] {
			votes[encoded[nb.index]]++
		}
		best := 0
		for c, v := range votes {
			if v > votes[best] {
				best = c
			}
		}
		out[i] = k.Labels[best]
	}
	return out, nil
}

func euclidean(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}
