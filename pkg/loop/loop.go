// Package loop repeats a task until it breaks or the context is done.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task.
type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. Pass nil to stop without error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task receives the value returned last time, and returns the next value.
//
// Zero Next equals Continue(0).
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task with init, and then with its last value, until it breaks.
//
// # Examples
//
// Reload a file whenever it is updated:
//
//	Start(ctx, 0, func(ctx context.Context, generation int) (int, Next) {
//		wctx, cancel, err := filewatch.UntilModified(ctx, dir, "model.json")
//		if err != nil {
//			return generation, Break(err)
//		}
//		defer cancel()
//		<-wctx.Done()
//		if ctx.Err() != nil {
//			return generation, Break(nil)
//		}
//		reload()
//		return generation + 1, Continue(time.Second)
//	})
//
// # Returns
//
// - T: the value the task returned last. It is returned together with an error, too.
//
// - error: error passed to Break, or ctx.Err() when ctx is done.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		v, n := task(ctx, value)
		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first. stop timer, and quit.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
