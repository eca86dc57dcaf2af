// Package ml defines capabilities of estimators used by the pipeline.
//
// Concrete estimators live in subpackages:
// impute, tree, ensemble, linear, neighbors.
package ml

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	xe "github.com/opst/netsec/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Params are hyperparameters of an estimator, keyed by name.
type Params map[string]any

// Merge returns a copy of p overwritten by other.
func (p Params) Merge(other Params) Params {
	out := Params{}
	maps.Copy(out, p)
	maps.Copy(out, other)
	return out
}

func (p Params) String() string {
	keys := slices.Sorted(maps.Keys(p))
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, p[k])
	}
	return s + "}"
}

// Int reads an integer parameter. def is returned when key is absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch vv := v.(type) {
	case int:
		return vv, nil
	case int64:
		return int(vv), nil
	case uint64:
		return int(vv), nil
	case float64:
		if vv != math.Trunc(vv) {
			return 0, fmt.Errorf("param %s should be an integer: %v", key, vv)
		}
		return int(vv), nil
	case json.Number:
		i, err := strconv.Atoi(vv.String())
		if err != nil {
			return 0, fmt.Errorf("param %s should be an integer: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("param %s should be an integer: %v (%T)", key, v, v)
}

// Float reads a real parameter. def is returned when key is absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch vv := v.(type) {
	case float64:
		return vv, nil
	case int:
		return float64(vv), nil
	case int64:
		return float64(vv), nil
	case uint64:
		return float64(vv), nil
	case json.Number:
		return vv.Float64()
	}
	return 0, fmt.Errorf("param %s should be a number: %v (%T)", key, v, v)
}

// Str reads a string parameter. def is returned when key is absent.
func (p Params) Str(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s should be a string: %v (%T)", key, v, v)
	}
	return s, nil
}

// Classifier is a supervised estimator predicting class labels.
//
// A Classifier is not safe for concurrent Fit.
// Use WithParams to get an independent instance.
type Classifier interface {
	// Kind names the estimator family, like "random_forest".
	Kind() string

	// Params returns hyperparameters in effect.
	Params() Params

	// WithParams returns a new unfitted instance with params merged onto current ones.
	WithParams(Params) (Classifier, error)

	// Fit learns from features x (rows are samples) and labels y.
	Fit(x mat.Matrix, y []float64) error

	// Predict returns a label for each row of x.
	Predict(x mat.Matrix) ([]float64, error)
}

// Transformer maps feature matrices to feature matrices.
type Transformer interface {
	Kind() string

	// Fit learns from x.
	Fit(x mat.Matrix) error

	// Transform returns a new matrix. x is not modified.
	Transform(x mat.Matrix) (*mat.Dense, error)
}

// ErrNotFitted is returned by Predict or Transform before Fit.
var ErrNotFitted = fmt.Errorf("%w: estimator is not fitted", xe.KindTraining)

// Classes returns sorted distinct labels.
func Classes(y []float64) []float64 {
	seen := map[float64]struct{}{}
	out := []float64{}
	for _, v := range y {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Encode maps labels to indexes of classes.
func Encode(y []float64, classes []float64) ([]int, error) {
	out := make([]int, len(y))
	for i, v := range y {
		idx, ok := slices.BinarySearch(classes, v)
		if !ok {
			return nil, fmt.Errorf("unknown label: %v", v)
		}
		out[i] = idx
	}
	return out, nil
}

// CheckXY verifies shapes of a training set.
func CheckXY(x mat.Matrix, y []float64) error {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return xe.WrapAs(xe.KindTraining, fmt.Errorf("empty training set"))
	}
	if r != len(y) {
		return xe.WrapAs(xe.KindTraining, fmt.Errorf("x has %d rows, but y has %d labels", r, len(y)))
	}
	for i, v := range y {
		if math.IsNaN(v) {
			return xe.WrapAs(xe.KindTraining, fmt.Errorf("label %d is NaN", i))
		}
	}
	return nil
}

// Dense is a matrix which can be JSON encoded, keeping NaN and every bit of values.
type Dense struct {
	*mat.Dense
}

func (d Dense) MarshalJSON() ([]byte, error) {
	if d.Dense == nil || d.Dense.IsEmpty() {
		return []byte("null"), nil
	}
	b, err := d.Dense.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(b)
}

func (d *Dense) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Dense = nil
		return nil
	}
	var raw []byte
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m := &mat.Dense{}
	if err := m.UnmarshalBinary(raw); err != nil {
		return err
	}
	d.Dense = m
	return nil
}

// Bits is float64 slice which can be JSON encoded, keeping NaN and every bit of values.
type Bits []float64

func (b Bits) MarshalJSON() ([]byte, error) {
	u := make([]uint64, len(b))
	for i, v := range b {
		u[i] = math.Float64bits(v)
	}
	return json.Marshal(u)
}

func (b *Bits) UnmarshalJSON(data []byte) error {
	var u []uint64
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	out := make(Bits, len(u))
	for i, v := range u {
		out[i] = math.Float64frombits(v)
	}
	*b = out
	return nil
}

// Rows copies x into row slices.
func Rows(x mat.Matrix) [][]float64 {
	r, c := x.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = x.At(i, j)
		}
		out[i] = row
	}
	return out
}
