package sync

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/possync/possync/internal/syncerr"
)

// retry runs op with exponential backoff while its error is retryable and
// attempts remain
func retry[T any](ctx context.Context, settings Settings, name string, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if settings.InitialInterval > 0 {
		b.InitialInterval = settings.InitialInterval
	}
	if settings.MaxInterval > 0 {
		b.MaxInterval = settings.MaxInterval
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return v, backoff.Permanent(ctxErr)
		}
		if !syncerr.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		slog.Warn("Transport call failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", settings.MaxAttempts,
			"error", err)
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(settings.MaxAttempts)),
	)
}
