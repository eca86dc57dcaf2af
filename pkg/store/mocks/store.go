package mocks

import (
	"context"
	"errors"

	"github.com/opst/netsec/pkg/store"
)

type CallLog[T any] []T

func (cl CallLog[T]) Times() int {
	return len(cl)
}

type Store struct {
	Impl struct {
		Find       func(ctx context.Context, database, collection string) ([]store.Document, error)
		InsertMany func(ctx context.Context, database, collection string, docs []store.Document) (int, error)
	}
	Calls struct {
		Find       CallLog[struct{ Database, Collection string }]
		InsertMany CallLog[struct {
			Database, Collection string
			Docs                 []store.Document
		}]
		Close int
	}
}

func NewStore() *Store {
	return &Store{}
}

var _ store.Store = &Store{}

func (s *Store) Find(ctx context.Context, database, collection string) ([]store.Document, error) {
	s.Calls.Find = append(s.Calls.Find, struct{ Database, Collection string }{database, collection})
	if s.Impl.Find != nil {
		return s.Impl.Find(ctx, database, collection)
	}
	panic(errors.New("it should no be called"))
}

func (s *Store) InsertMany(ctx context.Context, database, collection string, docs []store.Document) (int, error) {
	s.Calls.InsertMany = append(s.Calls.InsertMany, struct {
		Database, Collection string
		Docs                 []store.Document
	}{database, collection, docs})
	if s.Impl.InsertMany != nil {
		return s.Impl.InsertMany(ctx, database, collection, docs)
	}
	panic(errors.New("it should no be called"))
}

func (s *Store) Close() error {
	s.Calls.Close++
	return nil
}
