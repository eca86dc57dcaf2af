// Package impute fills missing (NaN) feature values.
package impute

import (
	"fmt"
	"math"
	"sort"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"gonum.org/v1/gonum/mat"
)

const KindKNNImputer = "knn_imputer"

const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"

	MetricNaNEuclidean = "nan_euclidean"
)

// KNNImputer replaces each missing value with the (weighted) mean of
// the values of the nearest training rows which have that value.
//
// Distances are nan_euclidean: coordinates missing in either row are ignored
// and the rest are scaled up by (#features / #coordinates used).
//
// When no training row can donate, the training mean of the column is used.
// A column without any observed value in training is filled with 0.
type KNNImputer struct {
	Neighbors int    `json:"n_neighbors"`
	Weights   string `json:"weights"`
	Metric    string `json:"metric"`

	Fitted ml.Dense `json:"fitted"`
	Means  ml.Bits  `json:"means,omitempty"`
}

var _ ml.Transformer = &KNNImputer{}

// NewKNNImputer validates configuration and returns an unfitted imputer.
func NewKNNImputer(neighbors int, weights string, metric string) (*KNNImputer, error) {
	if neighbors < 1 {
		return nil, fmt.Errorf("n_neighbors should be positive: %d", neighbors)
	}
	switch weights {
	case WeightsUniform, WeightsDistance:
	default:
		return nil, fmt.Errorf("unknown weights: %s", weights)
	}
	if metric != MetricNaNEuclidean {
		return nil, fmt.Errorf("unknown metric: %s", metric)
	}
	return &KNNImputer{Neighbors: neighbors, Weights: weights, Metric: metric}, nil
}

func (k *KNNImputer) Kind() string {
	return KindKNNImputer
}

func (k *KNNImputer) Fit(x mat.Matrix) error {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return xe.WrapAs(xe.KindTraining, fmt.Errorf("empty training set"))
	}
	means := make(ml.Bits, c)
	for j := range c {
		sum, n := 0.0, 0
		for i := range r {
			if v := x.At(i, j); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			means[j] = 0
		} else {
			means[j] = sum / float64(n)
		}
	}
	k.Fitted = ml.Dense{Dense: mat.DenseCopyOf(x)}
	k.Means = means
	return nil
}

// NaNEuclidean is the distance between a and b ignoring coordinates missing in either.
//
// It is NaN when no coordinate is present in both.
func NaNEuclidean(a, b []float64) float64 {
	sum, present := 0.0, 0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		d := a[i] - b[i]
		sum += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum * float64(len(a)) / float64(present))
}

func (k *KNNImputer) Transform(x mat.Matrix) (*mat.Dense, error) {
	if k.Fitted.Dense == nil {
		return nil, ml.ErrNotFitted
	}
	train := ml.Rows(k.Fitted)
	rows := ml.Rows(x)
	if len(rows) > 0 && len(rows[0]) != len(k.Means) {
		return nil, xe.WrapAs(
			xe.KindSchema, fmt.Errorf("expected %d features, got %d", len(k.Means), len(rows[0])),
		)
	}

	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(len(rows), len(k.Means), nil)
	dists := make([]float64, len(train))
	for i, row := range rows {
		out.SetRow(i, row)

		computed := false
		for c, v := range row {
			if !math.IsNaN(v) {
				continue
			}
			if !computed {
				for j, t := range train {
					dists[j] = NaNEuclidean(row, t)
				}
				computed = true
			}

			donors := []donor{}
			for j, t := range train {
				if math.IsNaN(t[c]) || math.IsNaN(dists[j]) {
					continue
				}
				donors = append(donors, donor{value: t[c], dist: dists[j]})
			}
			if len(donors) == 0 {
				out.Set(i, c, k.Means[c])
				continue
			}
			sort.SliceStable(donors, func(a, b int) bool { return donors[a].dist < donors[b].dist })
			donors = donors[:min(k.Neighbors, len(donors))]
			out.Set(i, c, k.average(donors))
		}
	}
	return out, nil
}

type donor struct {
	value float64
	dist  float64
}

func (k *KNNImputer) average(donors []donor) float64 {
	weights := make([]float64, len(donors))
	switch k.Weights {
	case WeightsDistance:
		exact := false
		for _, d := range donors {
			if d.dist == 0 {
				exact = true
				break
			}
		}
		for n, d := range donors {
			switch {
			case exact && d.dist == 0:
				weights[n] = 1
			case exact:
				weights[n] = 0
			default:
				weights[n] = 1 / d.dist
			}
		}
	default:
		for n := range weights {
			weights[n] = 1
		}
	}

	sum, wsum := 0.0, 0.0
	for n, d := range donors {
		sum += weights[n] * d.value
		wsum += weights[n]
	}
	return sum / wsum
}
