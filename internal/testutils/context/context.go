package context

import (
	"context"
	"testing"
	"time"
)

// wrap context with deadline for a test.
//
// the deadline is 1 second before test's deadline, to be able to clean-up resources.
// When the test has no deadline, it is a minute from now.
func WithTest(ctx context.Context, t *testing.T) (context.Context, context.CancelFunc) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return context.WithTimeout(ctx, time.Minute)
}
