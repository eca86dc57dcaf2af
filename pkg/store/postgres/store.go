// Package postgres is the document store backed by PostgreSQL.
//
// Documents are kept as `json` (not `jsonb`) to preserve field order.
package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/store"
)

type pgStore struct {
	pool Pool
}

var _ store.Store = &pgStore{}

// Open connects to the database and upgrades its schema.
func Open(ctx context.Context, uri string) (store.Store, error) {
	pool, err := pgxpool.Connect(ctx, uri)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps a pool as a store, upgrading schema.
func New(ctx context.Context, pool Pool) (store.Store, error) {
	if err := upgrade(ctx, pool); err != nil {
		return nil, xe.WrapAsWithNote(xe.KindExternalService, "schema upgrade", err)
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Find(ctx context.Context, database, collection string) ([]store.Document, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT "id", "body" FROM "document" WHERE "database" = $1 AND "collection" = $2 ORDER BY "id"`,
		database, collection,
	)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var id int64
		var body pgtype.JSON
		if err := rows.Scan(&id, &body); err != nil {
			return nil, xe.WrapAs(xe.KindExternalService, err)
		}
		var doc store.Document
		if err := json.Unmarshal(body.Bytes, &doc); err != nil {
			return nil, xe.WrapAsWithNote(xe.KindExternalService, "document "+strconv.FormatInt(id, 10), err)
		}
		docs = append(docs, append(store.Document{{Key: store.IDKey, Value: json.Number(strconv.FormatInt(id, 10))}}, doc...))
	}
	if err := rows.Err(); err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	return docs, nil
}

func (s *pgStore) InsertMany(ctx context.Context, database, collection string, docs []store.Document) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, xe.WrapAs(xe.KindExternalService, err)
	}
	defer tx.Rollback(ctx)

	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return 0, xe.Wrap(err)
		}
		body := pgtype.JSON{Bytes: b, Status: pgtype.Present}
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO "document" ("database", "collection", "body") VALUES ($1, $2, $3)`,
			database, collection, &body,
		); err != nil {
			return 0, xe.WrapAs(xe.KindExternalService, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, xe.WrapAs(xe.KindExternalService, err)
	}
	return len(docs), nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}
