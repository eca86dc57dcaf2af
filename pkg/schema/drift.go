package schema

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	xe "github.com/opst/netsec/pkg/errors"
	xio "github.com/opst/netsec/pkg/io"
	"github.com/opst/netsec/pkg/table"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

const DefaultDriftThreshold = 0.05

// ColumnDrift is the drift test result of a column.
type ColumnDrift struct {
	Column        string
	PValue        float64
	DriftDetected bool
}

// DriftReport has one entry per column of the base table, in column order.
type DriftReport struct {
	Columns []ColumnDrift
}

func (r *DriftReport) Get(column string) (ColumnDrift, bool) {
	for _, c := range r.Columns {
		if c.Column == column {
			return c, true
		}
	}
	return ColumnDrift{}, false
}

// Drifted tells any column drifts.
func (r *DriftReport) Drifted() bool {
	for _, c := range r.Columns {
		if c.DriftDetected {
			return true
		}
	}
	return false
}

type columnDriftMarshall struct {
	PValue      float64 `yaml:"p_value"`
	DriftStatus bool    `yaml:"drift_status"`
}

// report is a mapping keyed by column, keeping column order.
func (r *DriftReport) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range r.Columns {
		v := &yaml.Node{}
		if err := v.Encode(columnDriftMarshall{PValue: c.PValue, DriftStatus: c.DriftDetected}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.Column}, v)
	}
	return node, nil
}

func (r *DriftReport) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("drift report should be a mapping (line %d)", node.Line)
	}
	cols := make([]ColumnDrift, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var m columnDriftMarshall
		if err := node.Content[i+1].Decode(&m); err != nil {
			return err
		}
		cols = append(cols, ColumnDrift{
			Column: node.Content[i].Value, PValue: m.PValue, DriftDetected: m.DriftStatus,
		})
	}
	r.Columns = cols
	return nil
}

// Save writes the report as YAML, overwriting the file and creating parent directories.
func (r *DriftReport) Save(path string) error {
	return xio.WriteAll(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	})
}

func LoadDriftReport(path string) (*DriftReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	r := &DriftReport{}
	if err := yaml.Unmarshal(content, r); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindSchema, path, err)
	}
	return r, nil
}

// DetectDrift runs the two-sample Kolmogorov-Smirnov test
// between base and current for each column of base.
//
// A column drifts when its p-value is less than or equal to threshold.
// It returns true when no column drifts.
//
// The report is written to reportPath (overwritten) unless reportPath is empty.
//
// A column missing in current, a non-numeric cell, or a column without any
// value is SchemaError.
func DetectDrift(base, current *table.Table, threshold float64, reportPath string) (bool, *DriftReport, error) {
	report := &DriftReport{}
	for _, col := range base.Columns() {
		x, err := base.Floats(col)
		if err != nil {
			return false, nil, xe.WrapWithNote("base", err)
		}
		y, err := current.Floats(col)
		if err != nil {
			return false, nil, xe.WrapWithNote("current", err)
		}
		p, err := KSTest(x, y)
		if err != nil {
			return false, nil, xe.WrapWithNote(col, err)
		}
		report.Columns = append(report.Columns, ColumnDrift{
			Column: col, PValue: p, DriftDetected: p <= threshold,
		})
	}

	if reportPath != "" {
		if err := report.Save(reportPath); err != nil {
			return false, nil, err
		}
	}
	return !report.Drifted(), report, nil
}

// exactLimit bounds len(x)*len(y) for which KSTest counts lattice paths exactly.
const exactLimit = 10_000_000

// KSTest returns the p-value of the two-sided two-sample Kolmogorov-Smirnov test.
//
// NaNs are ignored. For samples up to exactLimit pairs, the p-value is exact.
// Larger samples use the asymptotic Kolmogorov distribution
// with the effective sample size correction by Stephens.
func KSTest(x, y []float64) (float64, error) {
	xs, ys := sortedFinite(x), sortedFinite(y)
	if len(xs) == 0 || len(ys) == 0 {
		return 0, xe.WrapAs(xe.KindSchema, fmt.Errorf("no values to compare"))
	}
	d := stat.KolmogorovSmirnov(xs, nil, ys, nil)
	if d <= 0 {
		return 1, nil
	}
	if len(xs)*len(ys) <= exactLimit {
		return exactKS(len(xs), len(ys), d), nil
	}
	n, m := float64(len(xs)), float64(len(ys))
	en := math.Sqrt(n * m / (n + m))
	return kolmogorovQ((en + 0.12 + 0.11/en) * d), nil
}

// exactKS returns P(D >= d) for samples of sizes n and m under the null hypothesis.
//
// Merging the samples in order is a monotone lattice path from (0, 0) to (n, m),
// each path being equally likely. D reaches d when the path touches |i/n - j/m| >= d.
// Probabilities of staying inside are propagated row by row.
func exactKS(n, m int, d float64) float64 {
	// d is k/(n*m) for an integer k.
	h := int(math.Round(d * float64(n) * float64(m)))
	outside := func(i, j int) bool {
		diff := i*m - j*n
		if diff < 0 {
			diff = -diff
		}
		return diff >= h
	}

	row := make([]float64, m+1)
	for i := 0; i <= n; i++ {
		for j := 0; j <= m; j++ {
			v := 0.0
			if i == 0 && j == 0 {
				v = 1
			}
			if i > 0 {
				v += row[j] * float64(n-i+1) / float64(n+m-i+1-j)
			}
			if j > 0 {
				v += row[j-1] * float64(m-j+1) / float64(n+m-i-j+1)
			}
			if outside(i, j) {
				v = 0
			}
			row[j] = v
		}
	}
	return min(max(1-row[m], 0), 1)
}

func sortedFinite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, f := range v {
		if !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	sort.Float64s(out)
	return out
}

// kolmogorovQ is the survival function of the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	const eps1, eps2 = 1e-6, 1e-16
	a2 := -2 * lambda * lambda
	fac, sum, termbf := 2.0, 0.0, 0.0
	for j := 1; j <= 100; j++ {
		term := fac * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*termbf || math.Abs(term) <= eps2*sum {
			return min(max(sum, 0), 1)
		}
		fac = -fac
		termbf = math.Abs(term)
	}
	// not converged: lambda is so small that the distributions are indistinguishable.
	return 1
}
