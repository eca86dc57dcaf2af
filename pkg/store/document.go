// Package store is the document store that raw records are ingested from.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	xe "github.com/opst/netsec/pkg/errors"
)

// IDKey is the key of the internal identifier that Find adds to each document.
const IDKey = "_id"

type Field struct {
	Key   string
	Value any
}

// Document is a flat record. Field order is kept as stored.
//
// Values are one of nil, bool, string or json.Number.
type Document []Field

func (d Document) Get(key string) (any, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Cell renders a value as a table cell. nil becomes empty.
func Cell(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case json.Number:
		return vv.String()
	case bool:
		if vv {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(vv)
	}
}

// FromCells builds a document from a header and a row.
//
// Cells which look like a number are stored as numbers.
func FromCells(keys []string, cells []string) Document {
	d := make(Document, len(keys))
	for i, k := range keys {
		var v any = cells[i]
		if c := strings.TrimSpace(cells[i]); isNumber(c) {
			v = json.Number(c)
		}
		d[i] = Field{Key: k, Value: v}
	}
	return d
}

func isNumber(s string) bool {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	// "NaN", "Inf" or "+1" are floats, but not JSON numbers.
	return json.Valid([]byte(s))
}

func (d Document) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, keeping key order.
//
// Nested objects and arrays are rejected.
func (d *Document) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil {
		return err
	} else if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document should be an object")
	}

	doc := Document{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token: %v", tok)
		}
		val, err := dec.Token()
		if err != nil {
			return err
		}
		if _, ok := val.(json.Delim); ok {
			return fmt.Errorf("field %s: nested value is not supported", key)
		}
		doc = append(doc, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = doc
	return nil
}

// Store is a collection-of-documents database.
type Store interface {
	// Find returns all documents in the collection.
	//
	// Each document has IDKey as the first field.
	Find(ctx context.Context, database, collection string) ([]Document, error)

	// InsertMany stores documents, and returns how many documents are stored.
	InsertMany(ctx context.Context, database, collection string, docs []Document) (int, error)

	Close() error
}

// ErrNoDocuments is returned when a collection is empty or does not exist.
var ErrNoDocuments = fmt.Errorf("%w: no documents", xe.KindExternalService)
