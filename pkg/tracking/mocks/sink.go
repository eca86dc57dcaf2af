package mocks

import (
	"context"
	"errors"

	"github.com/opst/netsec/pkg/tracking"
)

type Sink struct {
	Impl struct {
		Record func(ctx context.Context, r tracking.Record) (string, error)
	}
	Calls struct {
		Record []tracking.Record
		Close  int
	}
}

func NewSink() *Sink {
	return &Sink{}
}

var _ tracking.Sink = &Sink{}

func (s *Sink) Record(ctx context.Context, r tracking.Record) (string, error) {
	s.Calls.Record = append(s.Calls.Record, r)
	if s.Impl.Record != nil {
		return s.Impl.Record(ctx, r)
	}
	panic(errors.New("it should no be called"))
}

func (s *Sink) Close() error {
	s.Calls.Close++
	return nil
}
