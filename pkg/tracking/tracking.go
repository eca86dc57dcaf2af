// Package tracking records trained models and their metrics to an experiment tracker.
//
// Recording is not a part of the pipeline result:
// callers log failures of a Sink and go on.
package tracking

import (
	"context"

	"github.com/opst/netsec/pkg/ml"
)

// Record is a trained model and its scores.
type Record struct {
	// Model is the name of the candidate, like "Random Forest".
	Model string

	// Params are hyperparameters of the model.
	Params ml.Params

	// Metrics are named scores, like "test_f1".
	Metrics map[string]float64

	// Blob is the serialized model.
	Blob []byte
}

type Sink interface {
	// Record stores r and returns the id of the recorded run.
	Record(ctx context.Context, r Record) (string, error)

	Close() error
}

type nullSink struct{}

// Null is a Sink which records nothing.
func Null() Sink {
	return nullSink{}
}

func (nullSink) Record(context.Context, Record) (string, error) {
	return "", nil
}

func (nullSink) Close() error {
	return nil
}
