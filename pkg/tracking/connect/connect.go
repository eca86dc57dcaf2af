// Package connect opens a tracking sink by its URI.
package connect

import (
	"context"
	"fmt"
	"net/url"

	xe "github.com/opst/netsec/pkg/errors"
	storeconn "github.com/opst/netsec/pkg/store/connect"
	"github.com/opst/netsec/pkg/tracking"
	"github.com/opst/netsec/pkg/tracking/sqlite"
)

// Open a sink.
//
// An empty uri means no tracking, and a null sink is returned.
// Otherwise, uri should be "sqlite://<path>".
func Open(ctx context.Context, uri string) (tracking.Sink, error) {
	if uri == "" {
		return tracking.Null(), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	if u.Scheme != "sqlite" {
		return nil, xe.WrapAs(
			xe.KindExternalService, fmt.Errorf("unsupported tracking scheme: %q", u.Scheme),
		)
	}
	return sqlite.Open(ctx, storeconn.SQLitePath(uri))
}
