package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/schema"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Markdown bool `flag:"markdown" alias:"m" help:"print tables in markdown"`
}

const ARG_RUNDIR = "RUN_DIR"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the record of a pipeline run.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_RUNDIR, Required: false,
				Help: "run directory. the latest run under artifactRoot when omitted.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Show status, stage timings, the best model and the drift report of a run as tables.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	env common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	var runDir string
	if a := cl.Args()[ARG_RUNDIR]; len(a) != 0 {
		runDir = a[0]
	} else {
		latest, err := LatestRun(env.Config.ArtifactRoot())
		if err != nil {
			return err
		}
		runDir = latest
	}

	manifest, err := domain.LoadManifest(domain.NewLayout(runDir).Manifest())
	if err != nil {
		return err
	}

	var drift *schema.DriftReport
	if manifest.Validation != nil {
		d, err := schema.LoadDriftReport(manifest.Validation.DriftReportPath)
		if err != nil {
			logger.Warnf("drift report is not readable: %s", err)
		} else {
			drift = d
		}
	}

	return Render(cl.Stdout(), manifest, drift, cl.Flags().Markdown)
}

// LatestRun returns the run directory under root which started last.
//
// Entries not named in domain.RunDirFormat are ignored.
func LatestRun(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", xe.WrapAs(xe.KindIO, err)
	}
	latest := ""
	var latestAt time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		at, err := time.Parse(domain.RunDirFormat, e.Name())
		if err != nil {
			continue
		}
		if latest == "" || at.After(latestAt) {
			latest, latestAt = e.Name(), at
		}
	}
	if latest == "" {
		return "", xe.WrapAs(xe.KindIO, fmt.Errorf("%w: no run in %s", os.ErrNotExist, root))
	}
	return filepath.Join(root, latest), nil
}

// Render writes tables of the run.
//
// drift can be nil.
func Render(w io.Writer, m *domain.Manifest, drift *schema.DriftReport, markdown bool) error {
	tables := []prettytable.Writer{summary(m), stages(m)}
	if drift != nil {
		tables = append(tables, drifts(drift))
	}
	for _, t := range tables {
		var out string
		if markdown {
			out = t.RenderMarkdown()
		} else {
			t.SetStyle(prettytable.StyleLight)
			out = t.Render()
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", out); err != nil {
			return err
		}
	}
	return nil
}

func summary(m *domain.Manifest) prettytable.Writer {
	t := prettytable.NewWriter()
	t.SetTitle("run")
	t.AppendRow(prettytable.Row{"directory", m.RunDir})
	t.AppendRow(prettytable.Row{"status", m.Status})
	t.AppendRow(prettytable.Row{"started at", m.StartedAt.Format(time.RFC3339)})
	if !m.FinishedAt.IsZero() {
		t.AppendRow(prettytable.Row{"finished at", m.FinishedAt.Format(time.RFC3339)})
	}
	if m.FailedStage != "" {
		t.AppendRow(prettytable.Row{"failed stage", m.FailedStage})
		t.AppendRow(prettytable.Row{"error", m.Error})
	}
	if v := m.Validation; v != nil {
		t.AppendRow(prettytable.Row{"validation status", v.ValidationStatus})
	}
	if tr := m.Trainer; tr != nil {
		t.AppendSeparator()
		t.AppendRow(prettytable.Row{"best model", tr.BestModel})
		t.AppendRow(prettytable.Row{"best score", tr.BestScore})
		t.AppendRow(prettytable.Row{"model path", tr.TrainedModelPath})
		for _, r := range []struct {
			name   string
			metric domain.ClassificationMetric
		}{
			{"train", tr.TrainMetric}, {"test", tr.TestMetric},
		} {
			t.AppendRow(prettytable.Row{
				r.name + " f1 / precision / recall",
				fmt.Sprintf("%.4f / %.4f / %.4f", r.metric.F1, r.metric.Precision, r.metric.Recall),
			})
		}
	}
	return t
}

func stages(m *domain.Manifest) prettytable.Writer {
	t := prettytable.NewWriter()
	t.SetTitle("stages")
	t.AppendHeader(prettytable.Row{"stage", "started at", "duration", "error"})
	for _, s := range m.Stages {
		t.AppendRow(prettytable.Row{
			s.Stage, s.StartedAt.Format(time.RFC3339), s.FinishedAt.Sub(s.StartedAt), s.Error,
		})
	}
	return t
}

func drifts(r *schema.DriftReport) prettytable.Writer {
	t := prettytable.NewWriter()
	t.SetTitle("drift")
	t.AppendHeader(prettytable.Row{"column", "p-value", "drift"})
	for _, c := range r.Columns {
		t.AppendRow(prettytable.Row{c.Column, fmt.Sprintf("%.4g", c.PValue), c.DriftDetected})
	}
	return t
}
