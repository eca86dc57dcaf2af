// Package tree builds CART decision trees.
package tree

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Criteria of split quality.
const (
	Gini         = "gini"
	Entropy      = "entropy"
	LogLoss      = "log_loss"
	SquaredError = "squared_error"
)

// values closer than this are not separated by a split.
const featureThreshold = 1e-7

// Node of a tree. Leaves have Feature = -1.
//
// A sample goes Left when its feature value <= Threshold.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a binary tree laid out flat. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Apply returns the index of the leaf where row falls.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return i
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Value returns the value of the leaf where row falls.
//
// For classification trees it is class probabilities, for regression trees a single value.
func (t *Tree) Value(row []float64) []float64 {
	return t.Nodes[t.Apply(row)].Value
}

// Depth of the tree. A tree with only the root has depth 0.
func (t *Tree) Depth() int {
	var depth func(i int) int
	depth = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

// Config of tree construction.
type Config struct {
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features examined per split. 0 means all.

	// Rand picks features when MaxFeatures is less than the number of features.
	Rand *rand.Rand
}

func (c Config) normalized(nFeatures int) Config {
	c.MinSamplesSplit = max(c.MinSamplesSplit, 2)
	c.MinSamplesLeaf = max(c.MinSamplesLeaf, 1)
	if c.MaxFeatures <= 0 || c.MaxFeatures > nFeatures {
		c.MaxFeatures = nFeatures
	}
	return c
}

// stats accumulates weighted samples of a node side.
type stats interface {
	reset()
	add(i int, w float64)
	remove(i int, w float64)
	weight() float64
	impurity() float64
	value() []float64
	clone() stats
}

type classStats struct {
	y         []int
	counts    []float64
	total     float64
	criterion string
}

func (s *classStats) reset() {
	clear(s.counts)
	s.total = 0
}

func (s *classStats) add(i int, w float64) {
	s.counts[s.y[i]] += w
	s.total += w
}

func (s *classStats) remove(i int, w float64) {
	s.counts[s.y[i]] -= w
	s.total -= w
}

func (s *classStats) weight() float64 {
	return s.total
}

func (s *classStats) impurity() float64 {
	if s.total <= 0 {
		return 0
	}
	imp := 0.0
	switch s.criterion {
	case Entropy, LogLoss:
		for _, c := range s.counts {
			if c > 0 {
				p := c / s.total
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1
		for _, c := range s.counts {
			p := c / s.total
			imp -= p * p
		}
	}
	return imp
}

func (s *classStats) value() []float64 {
	out := make([]float64, len(s.counts))
	if s.total <= 0 {
		return out
	}
	for k, c := range s.counts {
		out[k] = c / s.total
	}
	return out
}

func (s *classStats) clone() stats {
	return &classStats{
		y: s.y, counts: make([]float64, len(s.counts)), criterion: s.criterion,
	}
}

type regStats struct {
	y                []float64
	sum, sumSq, wsum float64
}

func (s *regStats) reset() {
	s.sum, s.sumSq, s.wsum = 0, 0, 0
}

func (s *regStats) add(i int, w float64) {
	s.sum += w * s.y[i]
	s.sumSq += w * s.y[i] * s.y[i]
	s.wsum += w
}

func (s *regStats) remove(i int, w float64) {
	s.sum -= w * s.y[i]
	s.sumSq -= w * s.y[i] * s.y[i]
	s.wsum -= w
}

func (s *regStats) weight() float64 {
	return s.wsum
}

func (s *regStats) impurity() float64 {
	if s.wsum <= 0 {
		return 0
	}
	mean := s.sum / s.wsum
	return max(s.sumSq/s.wsum-mean*mean, 0)
}

func (s *regStats) value() []float64 {
	if s.wsum <= 0 {
		return []float64{0}
	}
	return []float64{s.sum / s.wsum}
}

func (s *regStats) clone() stats {
	return &regStats{y: s.y}
}

// BuildClassifier grows a classification tree on samples idx.
//
// y holds class indexes in [0, nClasses). w is sample weights (nil means all 1).
// Leaf values are class probabilities.
func BuildClassifier(rows [][]float64, y []int, nClasses int, w []float64, idx []int, cfg Config) *Tree {
	return build(rows, w, idx, cfg, &classStats{
		y: y, counts: make([]float64, nClasses), criterion: cfg.Criterion,
	})
}

// BuildRegressor grows a regression tree on samples idx with squared error.
//
// Leaf values are weighted means of y.
func BuildRegressor(rows [][]float64, y []float64, w []float64, idx []int, cfg Config) *Tree {
	return build(rows, w, idx, cfg, &regStats{y: y})
}

type builder struct {
	rows  [][]float64
	w     []float64
	cfg   Config
	proto stats
	nodes []Node
}

func build(rows [][]float64, w []float64, idx []int, cfg Config, proto stats) *Tree {
	nFeatures := 0
	if len(rows) > 0 {
		nFeatures = len(rows[0])
	}
	if w == nil {
		w = make([]float64, len(rows))
		for i := range w {
			w[i] = 1
		}
	}
	b := &builder{rows: rows, w: w, cfg: cfg.normalized(nFeatures), proto: proto}
	b.grow(slices.Clone(idx), 0)
	return &Tree{Nodes: b.nodes}
}

func (b *builder) grow(idx []int, depth int) int {
	node := b.proto.clone()
	for _, i := range idx {
		node.add(i, b.w[i])
	}
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1, Value: node.value()})

	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return self
	}
	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return self
	}
	if node.weight() <= 0 || node.impurity() <= 1e-12 {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, node)
	if !ok {
		return self
	}

	left, right := []int{}, []int{}
	for _, i := range idx {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// features returns candidate features in the order to be examined.
func (b *builder) features() []int {
	n := len(b.rows[0])
	if b.cfg.MaxFeatures >= n || b.cfg.Rand == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return b.cfg.Rand.Perm(n)
}

func (b *builder) bestSplit(idx []int, node stats) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)
	total := node.weight()

	sorted := slices.Clone(idx)
	left, right := b.proto.clone(), b.proto.clone()
	minLeaf := b.cfg.MinSamplesLeaf

	// constant features do not count toward MaxFeatures.
	examined := 0
	for _, f := range b.features() {
		if examined >= b.cfg.MaxFeatures {
			break
		}
		slices.SortStableFunc(sorted, func(i, j int) int {
			switch a, c := b.rows[i][f], b.rows[j][f]; {
			case a < c:
				return -1
			case a > c:
				return 1
			}
			return 0
		})
		if b.rows[sorted[len(sorted)-1]][f] <= b.rows[sorted[0]][f]+featureThreshold {
			continue // constant feature
		}
		examined++

		left.reset()
		right.reset()
		for _, i := range sorted {
			right.add(i, b.w[i])
		}
		for p := 1; p < len(sorted); p++ {
			prev := sorted[p-1]
			left.add(prev, b.w[prev])
			right.remove(prev, b.w[prev])

			if p < minLeaf || len(sorted)-p < minLeaf {
				continue
			}
			lo, hi := b.rows[prev][f], b.rows[sorted[p]][f]
			if hi <= lo+featureThreshold {
				continue
			}
			if left.weight() <= 0 || right.weight() <= 0 {
				continue
			}
			imp := (left.weight()*left.impurity() + right.weight()*right.impurity()) / total
			if imp < bestImpurity {
				bestImpurity = imp
				bestFeature = f
				bestThreshold = lo/2 + hi/2
				if bestThreshold >= hi || math.IsInf(bestThreshold, 0) {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
