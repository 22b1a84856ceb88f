package graceful

import (
	"context"
	"os/signal"
	"syscall"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
// Before submission a cancel abandons the attempt with no side effects
// beyond an already-sent approval, which a future attempt reuses.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
