package bundle_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/netsec/internal/testutils/dataset"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/ml/ensemble"
	"github.com/opst/netsec/pkg/ml/impute"
	"github.com/opst/netsec/pkg/ml/linear"
	"github.com/opst/netsec/pkg/ml/neighbors"
	"github.com/opst/netsec/pkg/ml/pipeline"
	"github.com/opst/netsec/pkg/ml/tree"
	"github.com/opst/netsec/pkg/table"
	"github.com/opst/netsec/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

func preprocessor(t *testing.T, x mat.Matrix) *pipeline.Pipeline {
	t.Helper()
	imp := try.To(impute.NewKNNImputer(3, impute.WeightsDistance, impute.MetricNaNEuclidean)).OrFatal(t)
	p := try.To(pipeline.New(pipeline.Step{Name: "imputer", Transformer: imp})).OrFatal(t)
	if err := p.Fit(x); err != nil {
		t.Fatal(err)
	}
	return p
}

// bitsOf makes float64s comparable bit by bit, NaN included.
func bitsOf(v []float64) []uint64 {
	out := make([]uint64, len(v))
	for i := range v {
		out[i] = math.Float64bits(v[i])
	}
	return out
}

func TestBundle_RoundTrip(t *testing.T) {
	columns, rows := dataset.NetworkLike(60, 7, 5)
	tbl := try.To(table.New(columns, rows)).OrFatal(t).
		MapCells(func(c string) string {
			if c == "na" {
				return table.Missing
			}
			return c
		})
	features := []string{"f0", "f1", "f2", "f3"}
	x := try.To(tbl.Matrix(features...)).OrFatal(t)
	y := try.To(tbl.Floats("Result")).OrFatal(t)

	probe := mat.NewDense(4, 4, []float64{
		1, -1, math.NaN(), 0,
		0, 0, 0, 0,
		-1, math.NaN(), 1, 1,
		1, 1, 1, math.NaN(),
	})

	for _, model := range []ml.Classifier{
		try.To(ensemble.NewRandomForest().WithParams(ml.Params{"n_estimators": 8, "random_state": 1})).OrFatal(t),
		try.To(ensemble.NewGradientBoosting().WithParams(ml.Params{"n_estimators": 16})).OrFatal(t),
		try.To(ensemble.NewAdaBoost().WithParams(ml.Params{"n_estimators": 8})).OrFatal(t),
		tree.NewDecisionTree(),
		linear.NewLogisticRegression(),
		neighbors.NewKNeighbors(),
	} {
		t.Run("it predicts identically after save and load: "+model.Kind(), func(t *testing.T) {
			pre := preprocessor(t, x)
			transformed := try.To(pre.Transform(x)).OrFatal(t)
			if err := model.Fit(transformed, y); err != nil {
				t.Fatal(err)
			}
			before := bundle.New(features, pre, model)
			want := try.To(before.PredictMatrix(probe)).OrFatal(t)

			path := filepath.Join(t.TempDir(), "final_model", "model.json")
			if err := before.Save(path); err != nil {
				t.Fatal(err)
			}
			after := try.To(bundle.Load(path)).OrFatal(t)
			got := try.To(after.PredictMatrix(probe)).OrFatal(t)

			if diff := cmp.Diff(bitsOf(want), bitsOf(got)); diff != "" {
				t.Errorf("prediction changed (-before +after):\n%s", diff)
			}
			if diff := cmp.Diff(features, after.Features); diff != "" {
				t.Errorf("features (-want +got):\n%s", diff)
			}
			if after.Model.Kind() != model.Kind() {
				t.Errorf("model kind = %s, want %s", after.Model.Kind(), model.Kind())
			}
		})
	}
}

func TestBundle_Predict(t *testing.T) {
	x, y := dataset.Separable(20)
	pre := preprocessor(t, x)
	model := tree.NewDecisionTree()
	if err := model.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	b := bundle.New([]string{"index", "parity"}, pre, model)

	t.Run("it selects features by name, ignoring extra columns", func(t *testing.T) {
		tbl := try.To(table.New(
			[]string{"parity", "note", "index"},
			[][]string{{"0", "a", "2"}, {"1", "b", "17"}, {"", "c", "18"}},
		)).OrFatal(t)
		got := try.To(b.Predict(tbl)).OrFatal(t)
		if diff := cmp.Diff([]float64{0, 1, 1}, got); diff != "" {
			t.Errorf("prediction (-want +got):\n%s", diff)
		}
	})

	t.Run("it fails when a feature is missing", func(t *testing.T) {
		tbl := try.To(table.New([]string{"index"}, [][]string{{"1"}})).OrFatal(t)
		if _, err := b.Predict(tbl); !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestTransformer_SaveLoad(t *testing.T) {
	x, _ := dataset.Separable(10)
	x.Set(3, 1, math.NaN())
	pre := preprocessor(t, x)
	path := filepath.Join(t.TempDir(), "preprocessor.json")
	if err := bundle.SaveTransformer(path, pre); err != nil {
		t.Fatal(err)
	}
	loaded := try.To(bundle.LoadTransformer(path)).OrFatal(t)

	want := try.To(pre.Transform(x)).OrFatal(t)
	got := try.To(loaded.Transform(x)).OrFatal(t)
	if !mat.Equal(want, got) {
		t.Errorf("transform changed:\nbefore %v\nafter %v", mat.Formatted(want), mat.Formatted(got))
	}
}

func TestLoad_Broken(t *testing.T) {
	dir := t.TempDir()

	t.Run("it fails with IOError for a missing file", func(t *testing.T) {
		if _, err := bundle.Load(filepath.Join(dir, "nothing.json")); !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails with IOError for an unknown kind", func(t *testing.T) {
		path := filepath.Join(dir, "unknown.json")
		content := `{"features": ["a"], "preprocessor": {"kind": "knn_imputer", "state": {}}, "model": {"kind": "svm"}}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := bundle.Load(path); !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
