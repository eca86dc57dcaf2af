package connect_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/tracking"
	"github.com/opst/netsec/pkg/tracking/connect"
	"github.com/opst/netsec/pkg/utils/try"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("it opens a null sink for empty uri", func(t *testing.T) {
		s := try.To(connect.Open(ctx, "")).OrFatal(t)
		defer s.Close()
		if s != tracking.Null() {
			t.Errorf("unexpected sink: %T", s)
		}
		if id := try.To(s.Record(ctx, tracking.Record{Model: "x"})).OrFatal(t); id != "" {
			t.Errorf("null sink returns id: %s", id)
		}
	})

	t.Run("it opens a sqlite sink", func(t *testing.T) {
		s := try.To(connect.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "t.db"))).OrFatal(t)
		defer s.Close()
		if id := try.To(s.Record(ctx, tracking.Record{Model: "x"})).OrFatal(t); id == "" {
			t.Error("no run id")
		}
	})

	t.Run("it rejects unknown schemes", func(t *testing.T) {
		if _, err := connect.Open(ctx, "http://mlflow.invalid"); !errors.Is(err, xe.KindExternalService) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
