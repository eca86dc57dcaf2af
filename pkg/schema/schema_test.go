package schema_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/schema"
	"github.com/opst/netsec/pkg/table"
	"github.com/opst/netsec/pkg/utils/try"
)

func frame(t *testing.T, columns []string, rows ...[]string) *table.Table {
	t.Helper()
	return try.To(table.New(columns, rows)).OrFatal(t)
}

func TestParse(t *testing.T) {
	t.Run("it keeps declared order", func(t *testing.T) {
		s := try.To(schema.Parse([]byte(`
columns:
  - having_IP_Address: int64
  - URL_Length: int64
  - Result: int64
numerical_columns:
  - having_IP_Address
`))).OrFatal(t)

		want := []schema.Column{
			{Name: "having_IP_Address", Type: "int64"},
			{Name: "URL_Length", Type: "int64"},
			{Name: "Result", Type: "int64"},
		}
		if diff := cmp.Diff(want, s.Columns()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("it rejects non-mapping column entries", func(t *testing.T) {
		_, err := schema.Parse([]byte("columns:\n  - just_a_name\n"))
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails as IOError when the file is missing", func(t *testing.T) {
		_, err := schema.Load(filepath.Join(t.TempDir(), "schema.yaml"))
		if !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestColumnChecks(t *testing.T) {
	type When struct {
		columns []string
		schema  []string
	}
	type Then struct {
		count bool
		names bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			cols := make([]schema.Column, len(when.schema))
			for i, n := range when.schema {
				cols[i] = schema.Column{Name: n, Type: "int64"}
			}
			s := schema.New(cols...)
			tbl := frame(t, when.columns)

			if got := schema.ColumnCountMatches(tbl, s); got != then.count {
				t.Errorf("ColumnCountMatches = %v, want %v", got, then.count)
			}
			if got := schema.ColumnNamesMatch(tbl, s); got != then.names {
				t.Errorf("ColumnNamesMatch = %v, want %v", got, then.names)
			}
		}
	}

	t.Run("it matches identical columns", theory(
		When{columns: []string{"a", "b"}, schema: []string{"a", "b"}},
		Then{count: true, names: true},
	))
	t.Run("it ignores order of columns", theory(
		When{columns: []string{"b", "a"}, schema: []string{"a", "b"}},
		Then{count: true, names: true},
	))
	t.Run("it detects a renamed column", theory(
		When{columns: []string{"a", "c"}, schema: []string{"a", "b"}},
		Then{count: true, names: false},
	))
	t.Run("it detects an extra column", theory(
		When{columns: []string{"a", "b", "c"}, schema: []string{"a", "b"}},
		Then{count: false, names: false},
	))
	t.Run("it collapses duplicated names for name check", theory(
		When{columns: []string{"a", "a", "b"}, schema: []string{"a", "b"}},
		Then{count: false, names: true},
	))
	t.Run("empty schema matches only empty frame", theory(
		When{columns: []string{}, schema: []string{}},
		Then{count: true, names: true},
	))
	t.Run("empty schema does not match non-empty frame", theory(
		When{columns: []string{"a"}, schema: []string{}},
		Then{count: false, names: false},
	))
}

func randomFrame(t *testing.T, seed uint64, n int, shift float64, columns ...string) *table.Table {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed))
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(columns))
		for j := range row {
			row[j] = fmt.Sprint(r.NormFloat64() + shift)
		}
		rows[i] = row
	}
	return frame(t, columns, rows...)
}

func TestDetectDrift(t *testing.T) {
	t.Run("a frame never drifts from itself", func(t *testing.T) {
		df := randomFrame(t, 1, 60, 0, "a", "b", "c")
		path := filepath.Join(t.TempDir(), "drift", "report.yaml")

		ok, report, err := schema.DetectDrift(df, df, schema.DefaultDriftThreshold, path)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("drift is detected")
		}
		if len(report.Columns) != 3 {
			t.Fatalf("report has %d columns", len(report.Columns))
		}
		for _, c := range report.Columns {
			if c.DriftDetected || math.Abs(c.PValue-1) > 1e-9 {
				t.Errorf("column %s: %+v", c.Column, c)
			}
		}

		loaded := try.To(schema.LoadDriftReport(path)).OrFatal(t)
		if diff := cmp.Diff(report, loaded); diff != "" {
			t.Errorf("persisted report (-want +got):\n%s", diff)
		}
	})

	t.Run("shifted distribution drifts", func(t *testing.T) {
		base := randomFrame(t, 1, 200, 0, "a")
		current := randomFrame(t, 2, 200, 3, "a")

		ok, report, err := schema.DetectDrift(base, current, 0.05, "")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("drift is not detected")
		}
		c, _ := report.Get("a")
		if !c.DriftDetected || c.PValue > 0.05 {
			t.Errorf("column a: %+v", c)
		}
	})

	t.Run("p-value equal to threshold counts as drift", func(t *testing.T) {
		df := randomFrame(t, 1, 10, 0, "a")
		ok, report, err := schema.DetectDrift(df, df, 1, "")
		if err != nil {
			t.Fatal(err)
		}
		if ok || !report.Columns[0].DriftDetected {
			t.Errorf("p = threshold is not drift: %+v", report.Columns[0])
		}
	})

	t.Run("it overwrites the previous report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.yaml")
		if err := os.WriteFile(path, []byte("stale: {p_value: 0.5, drift_status: false}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		df := randomFrame(t, 1, 10, 0, "a")
		if _, _, err := schema.DetectDrift(df, df, 0.05, path); err != nil {
			t.Fatal(err)
		}
		loaded := try.To(schema.LoadDriftReport(path)).OrFatal(t)
		if _, ok := loaded.Get("stale"); ok {
			t.Error("stale entry remains")
		}
	})

	t.Run("it fails as SchemaError when current lacks a column", func(t *testing.T) {
		base := randomFrame(t, 1, 10, 0, "a", "b")
		current := randomFrame(t, 1, 10, 0, "a")
		_, _, err := schema.DetectDrift(base, current, 0.05, "")
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails as SchemaError for non-numeric values", func(t *testing.T) {
		base := frame(t, []string{"a"}, []string{"x"})
		_, _, err := schema.DetectDrift(base, base, 0.05, "")
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestKSTest(t *testing.T) {
	t.Run("it ignores NaN", func(t *testing.T) {
		p, err := schema.KSTest([]float64{1, 2, math.NaN(), 3}, []float64{1, 2, 3})
		if err != nil {
			t.Fatal(err)
		}
		if p != 1 {
			t.Errorf("p = %v", p)
		}
	})

	t.Run("it rejects samples without values", func(t *testing.T) {
		_, err := schema.KSTest([]float64{math.NaN()}, []float64{1})
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it gives exact p-values for small samples", func(t *testing.T) {
		type When struct {
			x, y []float64
		}
		theory := func(when When, want float64) func(*testing.T) {
			return func(t *testing.T) {
				p, err := schema.KSTest(when.x, when.y)
				if err != nil {
					t.Fatal(err)
				}
				if math.Abs(p-want) > 1e-9 {
					t.Errorf("p = %v, want %v", p, want)
				}
			}
		}

		// 2 of C(6, 3) orderings are as extreme as disjoint samples.
		t.Run("disjoint 3 and 3", theory(When{x: []float64{1, 2, 3}, y: []float64{4, 5, 6}}, 0.1))
		t.Run("disjoint 2 and 2", theory(When{x: []float64{1, 2}, y: []float64{3, 4}}, 1.0/3))
		// D = 1/2; 14 of C(6, 2) orderings reach it.
		t.Run("interleaved 4 and 2", theory(When{x: []float64{1, 2, 3, 4}, y: []float64{2.5, 5}}, 14.0/15))
	})

	t.Run("disjoint samples give small p-value", func(t *testing.T) {
		x := make([]float64, 50)
		y := make([]float64, 50)
		for i := range x {
			x[i] = float64(i)
			y[i] = float64(i + 100)
		}
		p, err := schema.KSTest(x, y)
		if err != nil {
			t.Fatal(err)
		}
		if p > 1e-6 {
			t.Errorf("p = %v", p)
		}
	})
}
