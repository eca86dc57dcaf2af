package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

type version struct {
	Version int
	Query   string
}

var versions = []version{
	{
		Version: 1,
		Query: `
CREATE TABLE IF NOT EXISTS "schema_version" ("version" int NOT NULL);
CREATE TABLE IF NOT EXISTS "document" (
	"id" bigserial PRIMARY KEY,
	"database" varchar NOT NULL,
	"collection" varchar NOT NULL,
	"body" json NOT NULL
);
CREATE INDEX IF NOT EXISTS "document_collection" ON "document" ("database", "collection", "id");
`,
	},
}

// currentVersion returns the applied schema version. 0 means nothing applied.
func currentVersion(ctx context.Context, conn Queryer) (int, error) {
	var v *int
	if err := conn.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UndefinedTable {
				return 0, nil
			}
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// upgrade applies schema versions newer than the current one.
func upgrade(ctx context.Context, pool Pool) error {
	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range versions {
		if v.Version <= current {
			continue
		}
		if _, err := tx.Exec(ctx, v.Query); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, v.Version,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
