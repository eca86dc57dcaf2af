package table

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	xe "github.com/opst/netsec/pkg/errors"
	xio "github.com/opst/netsec/pkg/io"
)

// ReadCSV reads a table with a header line.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, xe.WrapAs(xe.KindSchema, errors.New("csv has no header"))
	} else if err != nil {
		return nil, xe.WrapAs(xe.KindSchema, err)
	}
	rows := [][]string{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xe.WrapAs(xe.KindSchema, err)
		}
		rows = append(rows, rec)
	}
	return New(header, rows)
}

// LoadCSV reads a table from a file.
//
// A missing or unreadable file is IOError.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, xe.WrapWithNote(path, err)
	}
	return t, nil
}

// WriteCSV writes the table with a header line.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

// SaveCSV writes the table to path, creating parent directories.
func (t *Table) SaveCSV(path string) error {
	return xio.WriteAll(path, t.WriteCSV)
}
