package middleware

import (
	"context"
	"time"

	"github.com/enromatics/chatflow/inbound"
)

// Timeout returns middleware that enforces a per-message handling
// deadline. A non-positive duration makes it a pass-through. When the
// deadline is exceeded the context is cancelled and the handler should
// return context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *inbound.Message, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
