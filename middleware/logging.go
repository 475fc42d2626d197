package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/enromatics/chatflow/inbound"
)

// Logging returns middleware that logs message handling start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, msg *inbound.Message, next Handler) error {
		logger.Info("message received",
			slog.String("channel_identity", msg.ChannelIdentity),
			slog.String("sender", msg.SenderAddress),
			slog.String("type", string(msg.Type)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("message handling failed",
				slog.String("channel_identity", msg.ChannelIdentity),
				slog.String("sender", msg.SenderAddress),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("message handled",
				slog.String("channel_identity", msg.ChannelIdentity),
				slog.String("sender", msg.SenderAddress),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
