package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/enromatics/chatflow"
)

// sweepBatchSize bounds how many idle conversations one store query
// returns.
const sweepBatchSize = 100

// SweepIdle abandons open conversations that have gone without an
// inbound answer for longer than the configured idle threshold. It
// returns the number of conversations abandoned.
//
// Conversations do not expire on their own; callers run SweepIdle
// periodically (a ticker or external scheduler). A zero idle threshold
// disables sweeping and SweepIdle returns immediately.
func (eng *Engine) SweepIdle(ctx context.Context) (int, error) {
	threshold := eng.cfg.IdleThreshold
	if threshold <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-threshold)
	swept := 0

	for {
		idle, err := eng.conversations.ListIdleBefore(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return swept, err
		}
		if len(idle) == 0 {
			return swept, nil
		}

		for _, c := range idle {
			now := time.Now().UTC()
			c.Abandon(now)
			c.UpdatedAt = now
			if err := eng.conversations.UpdateConversation(ctx, c); err != nil {
				if errors.Is(err, chatflow.ErrVersionConflict) {
					// A live writer touched the thread after our read,
					// so it is no longer idle. Skip it.
					continue
				}
				return swept, err
			}
			eng.extensions.EmitConversationAbandoned(ctx, c)
			swept++
		}

		eng.logger.Debug("idle sweep batch",
			slog.Int("batch", len(idle)),
			slog.Int("swept", swept),
		)

		if len(idle) < sweepBatchSize {
			return swept, nil
		}
	}
}
