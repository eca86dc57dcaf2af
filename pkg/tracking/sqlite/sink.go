// Package sqlite is the tracking sink in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/store/sqlite"
	"github.com/opst/netsec/pkg/tracking"
)

const schema = `
CREATE TABLE IF NOT EXISTS "run" (
	"id" TEXT PRIMARY KEY,
	"model" TEXT NOT NULL,
	"params" TEXT NOT NULL,
	"created_at" TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS "metric" (
	"run_id" TEXT NOT NULL REFERENCES "run" ("id"),
	"key" TEXT NOT NULL,
	"value" REAL NOT NULL,
	PRIMARY KEY ("run_id", "key")
);
CREATE TABLE IF NOT EXISTS "artifact" (
	"run_id" TEXT NOT NULL REFERENCES "run" ("id"),
	"name" TEXT NOT NULL,
	"body" BLOB NOT NULL,
	PRIMARY KEY ("run_id", "name")
);
`

// ArtifactModel is the artifact name of Record.Blob.
const ArtifactModel = "model"

type sink struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens or creates a tracking database at path.
func Open(ctx context.Context, path string) (tracking.Sink, error) {
	db, err := sqlite.OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, xe.WrapAsWithNote(xe.KindExternalService, "migrate", err)
	}
	return &sink{db: db, clock: time.Now}, nil
}

func (s *sink) Record(ctx context.Context, r tracking.Record) (string, error) {
	params := r.Params
	if params == nil {
		params = map[string]any{}
	}
	p, err := json.Marshal(params)
	if err != nil {
		return "", xe.Wrap(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", xe.WrapAs(xe.KindExternalService, err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO "run" ("id", "model", "params", "created_at") VALUES (?, ?, ?, ?)`,
		id, r.Model, string(p), s.clock().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", xe.WrapAs(xe.KindExternalService, err)
	}
	for k, v := range r.Metrics {
		if _, err := tx.ExecContext(
			ctx, `INSERT INTO "metric" ("run_id", "key", "value") VALUES (?, ?, ?)`, id, k, v,
		); err != nil {
			return "", xe.WrapAsWithNote(xe.KindExternalService, "metric "+k, err)
		}
	}
	if r.Blob != nil {
		if _, err := tx.ExecContext(
			ctx, `INSERT INTO "artifact" ("run_id", "name", "body") VALUES (?, ?, ?)`, id, ArtifactModel, r.Blob,
		); err != nil {
			return "", xe.WrapAs(xe.KindExternalService, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", xe.WrapAs(xe.KindExternalService, err)
	}
	return id, nil
}

func (s *sink) Close() error {
	return s.db.Close()
}
