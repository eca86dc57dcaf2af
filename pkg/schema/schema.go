// Package schema checks tables against the declared column schema.
package schema

import (
	"fmt"
	"os"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/table"
	"gopkg.in/yaml.v3"
)

// Column is a declared column and its type descriptor (for example "int64").
type Column struct {
	Name string
	Type string
}

// Schema is an ordered set of declared columns.
type Schema struct {
	columns []Column
}

func New(columns ...Column) *Schema {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols}
}

func (s *Schema) Columns() []Column {
	cols := make([]Column, len(s.columns))
	copy(cols, s.columns)
	return cols
}

func (s *Schema) Len() int {
	return len(s.columns)
}

func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// schema file looks like:
//
//	columns:
//	  - having_IP_Address: int64
//	  - URL_Length: int64
//	numerical_columns:
//	  - having_IP_Address
//
// numerical_columns is accepted and not used.
type schemaMarshall struct {
	Columns          []yaml.Node `yaml:"columns"`
	NumericalColumns []string    `yaml:"numerical_columns,omitempty"`
}

// Load reads a schema file.
func Load(path string) (*Schema, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	s, err := Parse(content)
	if err != nil {
		return nil, xe.WrapWithNote(path, err)
	}
	return s, nil
}

func Parse(content []byte) (*Schema, error) {
	var m schemaMarshall
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, xe.WrapAs(xe.KindSchema, err)
	}
	cols := make([]Column, 0, len(m.Columns))
	for i, n := range m.Columns {
		if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
			return nil, xe.WrapAs(
				xe.KindSchema,
				fmt.Errorf("columns[%d] should be a mapping like `- name: type` (line %d)", i, n.Line),
			)
		}
		cols = append(cols, Column{Name: n.Content[0].Value, Type: n.Content[1].Value})
	}
	return New(cols...), nil
}

// ColumnCountMatches tells the table has as many columns as the schema.
func ColumnCountMatches(t *table.Table, s *Schema) bool {
	return len(t.Columns()) == s.Len()
}

// ColumnNamesMatch tells the set of column names equals the set of schema names.
//
// Order and duplication are ignored.
func ColumnNamesMatch(t *table.Table, s *Schema) bool {
	got := map[string]struct{}{}
	for _, c := range t.Columns() {
		got[c] = struct{}{}
	}
	want := map[string]struct{}{}
	for _, c := range s.columns {
		want[c.Name] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}
	for n := range want {
		if _, ok := got[n]; !ok {
			return false
		}
	}
	return true
}
