package filewatch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// UntilModified returns a context that is canceled
// when a file in dir is modified (= written, created, removed, or renamed).
//
// # Args
//
// - ctx: context.Context
//
// - dir: directory to be watched. It should exist.
//
// - names ...string: base names of files to be watched in dir.
// When empty, any file in dir is watched.
//
// # Returns
//
// - context.Context: context that is canceled when one of watched files is modified.
// context.Cause tells which file is modified.
//
// - func(): cancel function.
//
// - error: error caused when it fails to start watching.
//
// If error is not nil, both of the the context and the cancel function are nil.
func UntilModified(ctx context.Context, dir string, names ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, nil, err
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if len(names) != 0 && !slices.Contains(names, filepath.Base(event.Name)) {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching %s: %w", dir, err))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
