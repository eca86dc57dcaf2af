package table_test

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/table"
	"github.com/opst/netsec/pkg/utils/try"
)

func numbered(t *testing.T, n int) *table.Table {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(i), fmt.Sprint(i * 2)}
	}
	return try.To(table.New([]string{"a", "b"}, rows)).OrFatal(t)
}

func TestNew(t *testing.T) {
	t.Run("it rejects ragged rows as SchemaError", func(t *testing.T) {
		_, err := table.New([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestSplit(t *testing.T) {
	type When struct {
		rows  int
		ratio float64
	}
	type Then struct {
		train int
		test  int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			tbl := numbered(t, when.rows)
			train, test, err := tbl.Split(when.ratio, 7)
			if err != nil {
				t.Fatal(err)
			}
			if train.Len() != then.train || test.Len() != then.test {
				t.Errorf(
					"(train, test) = (%d, %d), want (%d, %d)",
					train.Len(), test.Len(), then.train, then.test,
				)
			}
			if train.Len()+test.Len() != tbl.Len() {
				t.Errorf("rows are lost: %d + %d != %d", train.Len(), test.Len(), tbl.Len())
			}

			seen := map[string]int{}
			for _, part := range []*table.Table{train, test} {
				col := try.To(part.Column("a")).OrFatal(t)
				for _, c := range col {
					seen[c]++
				}
			}
			for i := 0; i < when.rows; i++ {
				if seen[fmt.Sprint(i)] != 1 {
					t.Errorf("row %d appears %d times", i, seen[fmt.Sprint(i)])
				}
			}
		}
	}

	t.Run("it splits 100 rows by 0.2", theory(When{rows: 100, ratio: 0.2}, Then{train: 80, test: 20}))
	t.Run("it rounds test size up", theory(When{rows: 10, ratio: 0.25}, Then{train: 7, test: 3}))
	t.Run("it leaves a train row at high ratio", theory(When{rows: 3, ratio: 0.99}, Then{train: 1, test: 2}))
	t.Run("it leaves a test row at low ratio", theory(When{rows: 3, ratio: 0.01}, Then{train: 2, test: 1}))

	t.Run("it is reproducible with the same seed", func(t *testing.T) {
		tbl := numbered(t, 50)
		_, a, _ := tbl.Split(0.3, 99)
		_, b, _ := tbl.Split(0.3, 99)
		if diff := cmp.Diff(
			try.To(a.Column("a")).OrFatal(t),
			try.To(b.Column("a")).OrFatal(t),
		); diff != "" {
			t.Errorf("splits differ (-a +b):\n%s", diff)
		}
	})

	t.Run("it rejects ratio out of range as SchemaError", func(t *testing.T) {
		for _, r := range []float64{0, 1, -0.5, 1.5} {
			if _, _, err := numbered(t, 10).Split(r, 1); !errors.Is(err, xe.KindSchema) {
				t.Errorf("ratio %v: unexpected error: %v", r, err)
			}
		}
	})
}

func TestFloats(t *testing.T) {
	tbl := try.To(table.New(
		[]string{"x", "y"},
		[][]string{{"1.5", ""}, {"-1", "abc"}},
	)).OrFatal(t)

	t.Run("it parses numbers and missing", func(t *testing.T) {
		got := try.To(tbl.Floats("x")).OrFatal(t)
		if diff := cmp.Diff([]float64{1.5, -1}, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("it rejects non-numeric cells as SchemaError", func(t *testing.T) {
		_, err := tbl.Floats("y")
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it rejects missing columns as SchemaError", func(t *testing.T) {
		_, err := tbl.Floats("z")
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it converts missing cells to NaN in a matrix", func(t *testing.T) {
		m, err := tbl.Select("x")
		if err != nil {
			t.Fatal(err)
		}
		withMissing := try.To(m.WithColumn("w", []string{"", "2"})).OrFatal(t)
		dense := try.To(withMissing.Matrix()).OrFatal(t)
		if r, c := dense.Dims(); r != 2 || c != 2 {
			t.Fatalf("dims = (%d, %d)", r, c)
		}
		if !math.IsNaN(dense.At(0, 1)) || dense.At(1, 1) != 2 {
			t.Errorf("unexpected matrix: %v", dense.RawMatrix().Data)
		}
	})
}

func TestDropSelect(t *testing.T) {
	tbl := try.To(table.New(
		[]string{"_id", "a", "b"},
		[][]string{{"x", "1", "2"}},
	)).OrFatal(t)

	t.Run("it drops columns, ignoring unknown names", func(t *testing.T) {
		got := tbl.Drop("_id", "nope")
		if diff := cmp.Diff([]string{"a", "b"}, got.Columns()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"1", "2"}, got.Row(0)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("it selects in given order", func(t *testing.T) {
		got := try.To(tbl.Select("b", "a")).OrFatal(t)
		if diff := cmp.Diff([]string{"2", "1"}, got.Row(0)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("it leaves the original untouched", func(t *testing.T) {
		_ = tbl.MapCells(strings.ToUpper)
		if diff := cmp.Diff([]string{"x", "1", "2"}, tbl.Row(0)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestCSV(t *testing.T) {
	t.Run("it writes and reads back through a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dir", "t.csv")
		tbl := try.To(table.New(
			[]string{"a", "b"},
			[][]string{{"1", ""}, {"x,y", "3"}},
		)).OrFatal(t)
		if err := tbl.SaveCSV(path); err != nil {
			t.Fatal(err)
		}
		got := try.To(table.LoadCSV(path)).OrFatal(t)
		if diff := cmp.Diff(tbl.Columns(), got.Columns()); diff != "" {
			t.Errorf("columns (-want +got):\n%s", diff)
		}
		for i := 0; i < tbl.Len(); i++ {
			if diff := cmp.Diff(tbl.Row(i), got.Row(i)); diff != "" {
				t.Errorf("row %d (-want +got):\n%s", i, diff)
			}
		}
	})

	t.Run("it fails as IOError for a missing file", func(t *testing.T) {
		_, err := table.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
		if !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails as SchemaError for an empty input", func(t *testing.T) {
		_, err := table.ReadCSV(bytes.NewReader(nil))
		if !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
