package transformation_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/netsec/internal/testutils/dataset"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/transformation"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/logs"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/ml/impute"
	"github.com/opst/netsec/pkg/ml/pipeline"
	"github.com/opst/netsec/pkg/table"
	"github.com/opst/netsec/pkg/utils/try"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func conf(neighbors int) *configs.TransformationConfig {
	return configs.TrySeal(&configs.TransformationConfigMarshall{
		Imputer: &configs.ImputerConfigMarshall{Neighbors: neighbors},
	})
}

// prepare writes validated splits made of a network-like dataset.
func prepare(t *testing.T, dir string, nTrain, nTest int) domain.ValidationArtifact {
	t.Helper()
	columns, rows := dataset.NetworkLike(nTrain+nTest, 3, 4)
	for _, r := range rows {
		if r[2] == "na" {
			r[2] = table.Missing
		}
	}
	artifact := domain.ValidationArtifact{
		ValidationStatus: true,
		ValidTrainPath:   filepath.Join(dir, "valid", "train.csv"),
		ValidTestPath:    filepath.Join(dir, "valid", "test.csv"),
	}
	train := try.To(table.New(columns, rows[:nTrain])).OrFatal(t)
	test := try.To(table.New(columns, rows[nTrain:])).OrFatal(t)
	if err := train.SaveCSV(artifact.ValidTrainPath); err != nil {
		t.Fatal(err)
	}
	if err := test.SaveCSV(artifact.ValidTestPath); err != nil {
		t.Fatal(err)
	}
	return artifact
}

func TestBuildTransformer(t *testing.T) {
	t.Run("it builds an imputer step with the configuration", func(t *testing.T) {
		c := configs.TrySeal(&configs.TransformationConfigMarshall{
			Imputer: &configs.ImputerConfigMarshall{Neighbors: 5, Weights: "distance"},
		})
		tr := transformation.New(c, domain.ValidationArtifact{}, domain.NewLayout(t.TempDir()), "", logs.Discard())
		p := try.To(tr.BuildTransformer()).OrFatal(t)

		step, ok := p.Step(transformation.StepImputer)
		if !ok {
			t.Fatalf("no imputer step: %+v", p.Steps)
		}
		imp, ok := step.(*impute.KNNImputer)
		if !ok {
			t.Fatalf("unexpected step type: %T", step)
		}
		if diff := cmp.Diff(
			[]any{5, impute.WeightsDistance, impute.MetricNaNEuclidean},
			[]any{imp.Neighbors, imp.Weights, imp.Metric},
		); diff != "" {
			t.Errorf("imputer (-want +got):\n%s", diff)
		}
		if len(p.Steps) != 1 {
			t.Errorf("steps: %+v", p.Steps)
		}
	})
}

func TestRecode(t *testing.T) {
	got := transformation.Recode([]float64{-1, 1, 0, -1, 2})
	if diff := cmp.Diff([]float64{0, 1, 0, 0, 2}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	t.Run("it persists imputed matrices with the recoded target", func(t *testing.T) {
		dir := t.TempDir()
		input := prepare(t, dir, 80, 20)
		layout := domain.NewLayout(filepath.Join(dir, "run"))
		final := filepath.Join(dir, "final_model", "preprocessor.json")
		tr := transformation.New(conf(3), input, layout, final, logs.Discard())

		got := try.To(tr.Run()).OrFatal(t)

		want := domain.TransformationArtifact{
			TransformedObjectPath: layout.Preprocessor(),
			TransformedTrainPath:  layout.TransformedTrain(),
			TransformedTestPath:   layout.TransformedTest(),
			Features:              []string{"f0", "f1", "f2", "f3"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("artifact (-want +got):\n%s", diff)
		}

		for _, c := range []struct {
			path string
			csv  string
			rows int
		}{
			{got.TransformedTrainPath, input.ValidTrainPath, 80},
			{got.TransformedTestPath, input.ValidTestPath, 20},
		} {
			m := try.To(transformation.LoadMatrix(c.path)).OrFatal(t)
			if r, cols := m.Dims(); r != c.rows || cols != 5 {
				t.Errorf("%s: shape = (%d, %d), want (%d, 5)", c.path, r, cols, c.rows)
			}
			x, y, err := transformation.Split(m)
			if err != nil {
				t.Fatal(err)
			}
			if floats.HasNaN(x.RawMatrix().Data) {
				t.Errorf("%s: features still have NaN", c.path)
			}

			raw := try.To(table.LoadCSV(c.csv)).OrFatal(t)
			labels := try.To(raw.Floats("Result")).OrFatal(t)
			for i := range labels {
				want := labels[i]
				if want == -1 {
					want = 0
				}
				if y[i] != want {
					t.Errorf("%s: row %d: label = %v, want %v", c.path, i, y[i], want)
				}
			}
		}
	})

	t.Run("it fits the transformer on train rows only", func(t *testing.T) {
		dir := t.TempDir()
		input := prepare(t, dir, 30, 10)
		layout := domain.NewLayout(filepath.Join(dir, "run"))
		final := filepath.Join(dir, "final_model", "preprocessor.json")
		got := try.To(transformation.New(conf(3), input, layout, final, logs.Discard()).Run()).OrFatal(t)

		pre := try.To(bundle.LoadTransformer(got.TransformedObjectPath)).OrFatal(t)
		p, ok := pre.(*pipeline.Pipeline)
		if !ok {
			t.Fatalf("unexpected transformer: %T", pre)
		}
		step, _ := p.Step(transformation.StepImputer)
		imp := step.(*impute.KNNImputer)
		if r, _ := imp.Fitted.Dims(); r != 30 {
			t.Errorf("imputer is fitted with %d rows, want 30", r)
		}

		onRun := try.To(os.ReadFile(got.TransformedObjectPath)).OrFatal(t)
		onFinal := try.To(os.ReadFile(final)).OrFatal(t)
		if string(onRun) != string(onFinal) {
			t.Error("transformer for serving differs from the one in the run")
		}
	})

	t.Run("it fails with SchemaError without the target column", func(t *testing.T) {
		dir := t.TempDir()
		input := domain.ValidationArtifact{
			ValidTrainPath: filepath.Join(dir, "train.csv"),
			ValidTestPath:  filepath.Join(dir, "test.csv"),
		}
		tbl := try.To(table.New([]string{"f0"}, [][]string{{"1"}, {"0"}})).OrFatal(t)
		for _, p := range []string{input.ValidTrainPath, input.ValidTestPath} {
			if err := tbl.SaveCSV(p); err != nil {
				t.Fatal(err)
			}
		}
		tr := transformation.New(conf(3), input, domain.NewLayout(dir), filepath.Join(dir, "p.json"), logs.Discard())
		if _, err := tr.Run(); !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestJoinSplit(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 2, 3, math.NaN()})
	joined := transformation.Join(x, []float64{0, 1})
	if r, c := joined.Dims(); r != 2 || c != 3 {
		t.Fatalf("shape = (%d, %d)", r, c)
	}
	gotX, gotY, err := transformation.Split(joined)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(x.Slice(0, 2, 0, 1), gotX.Slice(0, 2, 0, 1)) || !math.IsNaN(gotX.At(1, 1)) {
		t.Errorf("features: %v", mat.Formatted(gotX))
	}
	if diff := cmp.Diff([]float64{0, 1}, gotY); diff != "" {
		t.Errorf("target (-want +got):\n%s", diff)
	}
}
