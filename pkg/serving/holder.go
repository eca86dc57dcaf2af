package serving

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/labstack/gommon/log"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/loop"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/utils/filewatch"
)

// ErrNoModel is returned by Holder.Get before any bundle is loaded.
var ErrNoModel = errors.New("no model is loaded")

// Holder keeps the bundle loaded from a path, for concurrent requests.
type Holder struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	current *bundle.Bundle
	err     error
}

func NewHolder(path string, logger *log.Logger) *Holder {
	return &Holder{path: path, logger: logger, err: ErrNoModel}
}

// Path of the bundle.
func (h *Holder) Path() string {
	return h.path
}

// Reload loads the bundle again.
//
// When it fails, the bundle loaded before is kept.
func (h *Holder) Reload() error {
	b, err := bundle.Load(h.path)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		if h.current == nil {
			h.err = err
		}
		return err
	}
	h.current = b
	h.err = nil
	return nil
}

// Get returns the current bundle.
//
// Before any bundle is loaded, it returns an error wrapping ErrNoModel or the last loading error.
func (h *Holder) Get() (*bundle.Bundle, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, h.err
	}
	return h.current, nil
}

// Watch reloads the bundle whenever the file is modified, until ctx is done.
//
// It loads the bundle at first, too.
//
// # Returns
//
// - error: error on watching. When ctx is done, it is nil.
func (h *Holder) Watch(ctx context.Context) error {
	dir, name := filepath.Split(h.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}

	_, err := loop.Start(ctx, 0, func(ctx context.Context, generation int) (int, loop.Next) {
		wctx, cancel, err := filewatch.UntilModified(ctx, dir, name)
		if err != nil {
			return generation, loop.Break(xe.WrapAs(xe.KindIO, err))
		}
		defer cancel()

		// load after watching starts, not to miss updates during loading.
		if err := h.Reload(); err != nil {
			h.logger.Warnf("model is not (re)loaded: %s", err)
		} else {
			h.logger.Infof("model is loaded from %s (generation %d)", h.path, generation)
		}

		<-wctx.Done()
		if ctx.Err() != nil {
			return generation, loop.Break(nil)
		}
		h.logger.Debugf("reload: %s", context.Cause(wctx))
		return generation + 1, loop.Continue(0)
	})
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
