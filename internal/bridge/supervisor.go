package bridge

import (
	"context"
	"log/slog"
	"time"
)

// runSupervisor drives runSession in an infinite loop, sleeping per the
// backoff policy between failures, until ctx is cancelled. Every session
// exit — including a clean remote close — is treated as a failure
// warranting reconnection; this is intentional (spec.md §9 Open Question).
func runSupervisor(ctx context.Context, url string, cfg Config, buf *eventBuffer, slot *controlSlot, limiter *controlLimiter, platformTag string) {
	base := cfg.backoffInitial()
	max := cfg.backoffMax()

	for {
		if ctx.Err() != nil {
			return
		}

		err := runSession(ctx, url, cfg, buf, slot, limiter, platformTag)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("bridge session ended, reconnecting", "error", err)

		sleep := nextSleep(base, max)
		base = nextBase(base, max)

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
