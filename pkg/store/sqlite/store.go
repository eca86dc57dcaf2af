// Package sqlite is the document store in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS "document" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"database" TEXT NOT NULL,
	"collection" TEXT NOT NULL,
	"body" TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS "document_collection" ON "document" ("database", "collection", "id");
`

type sqliteStore struct {
	db *sql.DB
}

var _ store.Store = &sqliteStore{}

// Open opens or creates a SQLite file at path.
//
// Parent directories are created if missing.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, xe.WrapAsWithNote(xe.KindExternalService, "migrate", err)
	}
	return &sqliteStore{db: db}, nil
}

// OpenDB opens a SQLite database for a single writer.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, xe.WrapAs(xe.KindIO, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	return db, nil
}

func (s *sqliteStore) Find(ctx context.Context, database, collection string) ([]store.Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT "id", "body" FROM "document" WHERE "database" = ? AND "collection" = ? ORDER BY "id"`,
		database, collection,
	)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, xe.WrapAs(xe.KindExternalService, err)
		}
		var doc store.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, xe.WrapAsWithNote(xe.KindExternalService, "document "+strconv.FormatInt(id, 10), err)
		}
		docs = append(docs, append(store.Document{{Key: store.IDKey, Value: json.Number(strconv.FormatInt(id, 10))}}, doc...))
	}
	if err := rows.Err(); err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	return docs, nil
}

func (s *sqliteStore) InsertMany(ctx context.Context, database, collection string, docs []store.Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, xe.WrapAs(xe.KindExternalService, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO "document" ("database", "collection", "body") VALUES (?, ?, ?)`)
	if err != nil {
		return 0, xe.WrapAs(xe.KindExternalService, err)
	}
	defer stmt.Close()

	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return 0, xe.Wrap(err)
		}
		if _, err := stmt.ExecContext(ctx, database, collection, string(b)); err != nil {
			return 0, xe.WrapAs(xe.KindExternalService, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, xe.WrapAs(xe.KindExternalService, err)
	}
	return len(docs), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
