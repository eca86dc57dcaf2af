// Package connect opens a document store by its URI.
package connect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/store"
	"github.com/opst/netsec/pkg/store/postgres"
	"github.com/opst/netsec/pkg/store/sqlite"
)

// Open a store.
//
// Supported URIs are
//
//   - postgres://... or postgresql://... : PostgreSQL connection string
//   - sqlite://<path> : SQLite file
func Open(ctx context.Context, uri string) (store.Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return postgres.Open(ctx, uri)
	case "sqlite":
		return sqlite.Open(ctx, SQLitePath(uri))
	default:
		return nil, xe.WrapAs(
			xe.KindExternalService, fmt.Errorf("unsupported store scheme: %q", u.Scheme),
		)
	}
}

// SQLitePath extracts the file path from "sqlite://<path>".
func SQLitePath(uri string) string {
	return strings.TrimPrefix(uri, "sqlite://")
}
