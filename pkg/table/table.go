// Package table provides the tabular frame passed between pipeline stages.
//
// A Table is a list of named columns with string cells.
// The empty string is the missing value marker.
// Tables are never modified in place: every operation returns a new Table.
package table

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	xe "github.com/opst/netsec/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Missing is the canonical missing value marker.
const Missing = ""

type Table struct {
	columns []string
	rows    [][]string
}

// New creates a table.
//
// Every row should have the same width as columns, otherwise SchemaError.
func New(columns []string, rows [][]string) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, xe.WrapAs(
				xe.KindSchema,
				fmt.Errorf("row %d has %d cells, but there are %d columns", i, len(r), len(columns)),
			)
		}
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, rows: rows}, nil
}

// Columns returns column names in order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns a copy of i-th row.
func (t *Table) Row(i int) []string {
	r := make([]string, len(t.rows[i]))
	copy(r, t.rows[i])
	return r
}

func (t *Table) Has(name string) bool {
	return t.index(name) >= 0
}

func (t *Table) index(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func errNoColumn(name string) error {
	return fmt.Errorf("%w: no such column: %s", xe.KindSchema, name)
}

// Column returns cells of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.index(name)
	if idx < 0 {
		return nil, xe.Wrap(errNoColumn(name))
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Floats returns the named column as numbers.
//
// Missing cells become NaN. A cell which is not a number is SchemaError.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := ParseCell(c)
		if err != nil {
			return nil, xe.WrapAsWithNote(
				xe.KindSchema, fmt.Sprintf("column %s, row %d", name, i), err,
			)
		}
		out[i] = v
	}
	return out, nil
}

// ParseCell converts a cell to number. Missing is NaN.
func ParseCell(c string) (float64, error) {
	if c == Missing {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(c, 64)
}

// FormatCell converts number to a cell. NaN is Missing.
func FormatCell(v float64) string {
	if math.IsNaN(v) {
		return Missing
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Drop returns a table without named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := map[string]struct{}{}
	for _, n := range names {
		drop[n] = struct{}{}
	}
	keep := []int{}
	for i, c := range t.columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, i)
		}
	}
	return t.pick(keep)
}

// Select returns a table with named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		j := t.index(n)
		if j < 0 {
			return nil, xe.Wrap(errNoColumn(n))
		}
		idx[i] = j
	}
	return t.pick(idx), nil
}

func (t *Table) pick(idx []int) *Table {
	cols := make([]string, len(idx))
	for i, j := range idx {
		cols[i] = t.columns[j]
	}
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		nr := make([]string, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		rows[r] = nr
	}
	return &Table{columns: cols, rows: rows}
}

// WithColumn returns a table with a column appended.
//
// If the column exists, it is replaced in place.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, xe.WrapAs(
			xe.KindSchema,
			fmt.Errorf("column %s has %d values, but table has %d rows", name, len(values), len(t.rows)),
		)
	}
	idx := t.index(name)
	cols := t.Columns()
	if idx < 0 {
		cols = append(cols, name)
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		nr := make([]string, len(row), len(cols))
		copy(nr, row)
		if idx < 0 {
			nr = append(nr, values[i])
		} else {
			nr[idx] = values[i]
		}
		rows[i] = nr
	}
	return &Table{columns: cols, rows: rows}, nil
}

// MapCells returns a table with each cell replaced by f(cell).
func (t *Table) MapCells(f func(string) string) *Table {
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		nr := make([]string, len(row))
		for j, c := range row {
			nr[j] = f(c)
		}
		rows[i] = nr
	}
	return &Table{columns: t.Columns(), rows: rows}
}

// Matrix converts named columns (all columns when no names given) to a matrix.
//
// Missing cells become NaN.
func (t *Table) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = t.columns
	}
	if len(t.rows) == 0 || len(names) == 0 {
		return nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("empty table cannot be a matrix"))
	}
	m := mat.NewDense(len(t.rows), len(names), nil)
	for j, n := range names {
		col, err := t.Floats(n)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, col)
	}
	return m, nil
}

// TestSize is the number of test rows for n rows and the test ratio.
//
// It rounds up, and leaves at least one row for each side when n >= 2.
func TestSize(n int, ratio float64) int {
	nTest := int(math.Ceil(ratio*float64(n) - 1e-9))
	if n >= 2 {
		nTest = max(1, min(nTest, n-1))
	}
	return nTest
}

// Split shuffles rows with seed and partitions them into (train, test).
//
// ratio is the fraction of test rows, and should be in (0, 1).
func (t *Table) Split(ratio float64, seed uint64) (*Table, *Table, error) {
	if !(0 < ratio && ratio < 1) {
		return nil, nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("split ratio should be in (0, 1): %v", ratio))
	}
	n := len(t.rows)
	if n < 2 {
		return nil, nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("too few rows to split: %d", n))
	}
	nTest := TestSize(n, ratio)

	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	test := make([][]string, 0, nTest)
	train := make([][]string, 0, n-nTest)
	for i, p := range perm {
		if i < nTest {
			test = append(test, t.rows[p])
		} else {
			train = append(train, t.rows[p])
		}
	}
	return &Table{columns: t.Columns(), rows: train}, &Table{columns: t.Columns(), rows: test}, nil
}
