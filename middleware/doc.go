// Package middleware provides composable middleware for inbound message
// handling.
//
// A [Middleware] is a function that wraps a message handler. Middleware
// are composed into a chain using [Chain] and applied around each
// inbound message the engine processes. They are applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs channel, sender, duration, and outcome per message
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the handling context after a configured duration
//   - [Tracing] — wraps handling in an OpenTelemetry span
//   - [Metrics] — records per-message duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, msg *inbound.Message, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., rate limiting, spam filtering).
package middleware
