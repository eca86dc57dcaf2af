// Package bundle pairs a fitted preprocessor with a fitted classifier,
// so that it can predict from raw features without anything else.
package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	xe "github.com/opst/netsec/pkg/errors"
	xio "github.com/opst/netsec/pkg/io"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/table"
	"gonum.org/v1/gonum/mat"
)

type Bundle struct {
	// Features are input column names, in the order the preprocessor expects.
	Features []string

	Preprocessor ml.Transformer
	Model        ml.Classifier
}

type bundleJSON struct {
	Features     []string `json:"features"`
	Preprocessor encoded  `json:"preprocessor"`
	Model        encoded  `json:"model"`
}

func New(features []string, preprocessor ml.Transformer, model ml.Classifier) *Bundle {
	return &Bundle{Features: features, Preprocessor: preprocessor, Model: model}
}

// PredictMatrix transforms raw features x with the preprocessor, then predicts.
func (b *Bundle) PredictMatrix(x mat.Matrix) ([]float64, error) {
	transformed, err := b.Preprocessor.Transform(x)
	if err != nil {
		return nil, xe.WrapWithNote("preprocess", err)
	}
	return b.Model.Predict(transformed)
}

// Predict predicts labels of each row of t.
//
// t should have all of Features. Other columns are ignored.
// Missing cells are imputed by the preprocessor.
func (b *Bundle) Predict(t *table.Table) ([]float64, error) {
	x, err := t.Matrix(b.Features...)
	if err != nil {
		return nil, err
	}
	return b.PredictMatrix(x)
}

func (b *Bundle) MarshalJSON() ([]byte, error) {
	pre, err := encodeTransformer(b.Preprocessor)
	if err != nil {
		return nil, err
	}
	model, err := encodeClassifier(b.Model)
	if err != nil {
		return nil, err
	}
	return json.Marshal(bundleJSON{Features: b.Features, Preprocessor: pre, Model: model})
}

func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw bundleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pre, err := decodeTransformer(raw.Preprocessor)
	if err != nil {
		return err
	}
	model, err := decodeClassifier(raw.Model)
	if err != nil {
		return err
	}
	*b = Bundle{Features: raw.Features, Preprocessor: pre, Model: model}
	return nil
}

// Save writes b as JSON to path, creating parent directories.
func (b *Bundle) Save(path string) error {
	return xio.WriteAll(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(b)
	})
}

// Load reads a Bundle saved by Save.
func Load(path string) (*Bundle, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	b := &Bundle{}
	if err := json.Unmarshal(content, b); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindIO, fmt.Sprintf("broken bundle: %s", path), err)
	}
	return b, nil
}

// SaveTransformer writes a fitted transformer alone.
func SaveTransformer(path string, t ml.Transformer) error {
	e, err := encodeTransformer(t)
	if err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	return xio.WriteAll(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(e)
	})
}

// LoadTransformer reads a transformer saved by SaveTransformer.
func LoadTransformer(path string) (ml.Transformer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	var e encoded
	if err := json.Unmarshal(content, &e); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindIO, fmt.Sprintf("broken transformer: %s", path), err)
	}
	t, err := decodeTransformer(e)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	return t, nil
}
