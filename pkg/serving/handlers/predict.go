package handlers

import (
	"bytes"
	"net/http"
	"strings"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/labstack/echo/v4"
	"github.com/opst/netsec/pkg/domain/ingestion"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/serving/apierr"
	"github.com/opst/netsec/pkg/table"
)

// PredictedColumn is the column appended to uploaded records.
const PredictedColumn = "predicted_column"

// UploadField is the form field of the CSV file to be predicted.
const UploadField = "file"

// ModelSource gives the current bundle.
type ModelSource interface {
	Get() (*bundle.Bundle, error)
}

// PredictHandler predicts uploaded CSV records with the current bundle.
//
// The records with predictions are written to outputPath, and returned
// as an HTML table, or as CSV when the client accepts text/csv.
// outputPath is replaced as a whole, so it holds the output of one of concurrent requests.
func PredictHandler(models ModelSource, outputPath string) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile(UploadField)
		if err != nil {
			return apierr.BadRequest(`upload a CSV file as form field "`+UploadField+`".`, err)
		}
		f, err := fh.Open()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		defer f.Close()

		records, err := table.ReadCSV(f)
		if err != nil {
			return apierr.BadRequest("upload a valid CSV file with a header row.", err)
		}
		records = records.MapCells(func(cell string) string {
			if strings.TrimSpace(cell) == ingestion.NA {
				return table.Missing
			}
			return cell
		})

		b, err := models.Get()
		if err != nil {
			return apierr.ServiceUnavailable("train a model first.", err)
		}
		pred, err := b.Predict(records)
		if err != nil {
			return apierr.FromPipeline(err)
		}

		cells := make([]string, len(pred))
		for i, p := range pred {
			cells[i] = table.FormatCell(p)
		}
		out, err := records.WithColumn(PredictedColumn, cells)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		if err := out.SaveCSV(outputPath); err != nil {
			return apierr.InternalServerError(err)
		}

		if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/csv") {
			buf := new(bytes.Buffer)
			if err := out.WriteCSV(buf); err != nil {
				return apierr.InternalServerError(err)
			}
			return c.Blob(http.StatusOK, "text/csv; charset=UTF-8", buf.Bytes())
		}
		return c.HTML(http.StatusOK, RenderHTML(out))
	}
}

// RenderHTML renders t as an HTML table.
func RenderHTML(t *table.Table) string {
	w := prettytable.NewWriter()
	w.Style().Format.Header = text.FormatDefault
	header := prettytable.Row{}
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	w.AppendHeader(header)
	for i := range t.Len() {
		row := prettytable.Row{}
		for _, cell := range t.Row(i) {
			row = append(row, cell)
		}
		w.AppendRow(row)
	}
	return w.RenderHTML()
}
