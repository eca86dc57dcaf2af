package validation_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/validation"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/logs"
	"github.com/opst/netsec/pkg/schema"
	"github.com/opst/netsec/pkg/table"
	"github.com/opst/netsec/pkg/utils/try"
)

const schemaYAML = `
columns:
  - a: int64
  - b: int64
  - Result: int64
numerical_columns:
  - a
  - b
`

// split writes a table of n rows to path. a = offset + step * i, b = i % 3.
func split(t *testing.T, path string, n int, offset int, step int, extra bool) {
	t.Helper()
	columns := []string{"a", "b", "Result"}
	if extra {
		columns = append(columns, "extra")
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(offset + step*i), fmt.Sprint(i % 3), fmt.Sprint(i%2*2 - 1)}
		if extra {
			rows[i] = append(rows[i], "0")
		}
	}
	tbl := try.To(table.New(columns, rows)).OrFatal(t)
	if err := tbl.SaveCSV(path); err != nil {
		t.Fatal(err)
	}
}

type When struct {
	testOffset int
	extra      bool
	policy     configs.SchemaPolicy
}

func setup(t *testing.T, when When) (*validation.Validation, domain.Layout, domain.IngestionArtifact) {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaPath, []byte(schemaYAML), 0644); err != nil {
		t.Fatal(err)
	}
	input := domain.IngestionArtifact{
		TrainFilePath: filepath.Join(dir, "ingested", "train.csv"),
		TestFilePath:  filepath.Join(dir, "ingested", "test.csv"),
	}
	split(t, input.TrainFilePath, 40, 0, 1, when.extra)
	split(t, input.TestFilePath, 10, when.testOffset, 4, when.extra)

	conf := configs.TrySeal(&configs.ValidationConfigMarshall{
		Schema: schemaPath, SchemaPolicy: string(when.policy),
	})
	layout := domain.NewLayout(filepath.Join(dir, "run"))
	return validation.New(conf, input, layout, logs.Discard()), layout, input
}

func TestRun(t *testing.T) {
	t.Run("it passes conforming splits without drift", func(t *testing.T) {
		v, layout, input := setup(t, When{policy: configs.SchemaFatal})
		got := try.To(v.Run()).OrFatal(t)

		want := domain.ValidationArtifact{
			ValidationStatus: true,
			ValidTrainPath:   layout.ValidTrain(),
			ValidTestPath:    layout.ValidTest(),
			DriftReportPath:  layout.DriftReport(),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("artifact (-want +got):\n%s", diff)
		}

		report := try.To(schema.LoadDriftReport(got.DriftReportPath)).OrFatal(t)
		if len(report.Columns) != 3 || report.Drifted() {
			t.Errorf("unexpected report: %+v", report)
		}

		for _, p := range [][2]string{
			{input.TrainFilePath, got.ValidTrainPath},
			{input.TestFilePath, got.ValidTestPath},
		} {
			before := try.To(os.ReadFile(p[0])).OrFatal(t)
			after := try.To(os.ReadFile(p[1])).OrFatal(t)
			if diff := cmp.Diff(string(before), string(after)); diff != "" {
				t.Errorf("valid copy of %s is modified:\n%s", p[0], diff)
			}
		}
	})

	t.Run("it reports drift in status", func(t *testing.T) {
		v, _, _ := setup(t, When{testOffset: 100, policy: configs.SchemaFatal})
		got := try.To(v.Run()).OrFatal(t)
		if got.ValidationStatus {
			t.Error("status is true for drifted splits")
		}
		report := try.To(schema.LoadDriftReport(got.DriftReportPath)).OrFatal(t)
		a, ok := report.Get("a")
		if !ok || !a.DriftDetected {
			t.Errorf("column a: %+v", a)
		}
		if b, _ := report.Get("b"); b.DriftDetected {
			t.Errorf("column b: %+v", b)
		}
	})

	t.Run("it aborts on schema mismatch under fatal policy", func(t *testing.T) {
		v, layout, _ := setup(t, When{extra: true, policy: configs.SchemaFatal})
		_, err := v.Run()
		if !errors.Is(err, validation.ErrSchemaMismatch) || !errors.Is(err, xe.KindSchema) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := os.Stat(layout.InvalidTrain()); err != nil {
			t.Errorf("invalid split is not quarantined: %v", err)
		}
		if _, err := os.Stat(layout.ValidTrain()); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("valid split should not be written: %v", err)
		}
	})

	t.Run("it quarantines mismatched splits and goes on under advisory policy", func(t *testing.T) {
		v, layout, _ := setup(t, When{extra: true, policy: configs.SchemaAdvisory})
		got := try.To(v.Run()).OrFatal(t)

		if got.ValidationStatus {
			t.Error("status is true for non-conforming splits")
		}
		if got.InvalidTrainPath == nil || *got.InvalidTrainPath != layout.InvalidTrain() {
			t.Errorf("invalid train path: %v", got.InvalidTrainPath)
		}
		if got.InvalidTestPath == nil || *got.InvalidTestPath != layout.InvalidTest() {
			t.Errorf("invalid test path: %v", got.InvalidTestPath)
		}
		report := try.To(schema.LoadDriftReport(got.DriftReportPath)).OrFatal(t)
		if len(report.Columns) != 4 {
			t.Errorf("report should cover every column of train: %+v", report)
		}
	})

	t.Run("it fails with IOError when a split is missing", func(t *testing.T) {
		v, _, input := setup(t, When{policy: configs.SchemaFatal})
		if err := os.Remove(input.TestFilePath); err != nil {
			t.Fatal(err)
		}
		if _, err := v.Run(); !errors.Is(err, xe.KindIO) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
