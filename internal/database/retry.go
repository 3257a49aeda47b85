package database

import (
	"context"
	"log/slog"
	"time"

	"threadline/internal/middleware"

	"github.com/cenkalti/backoff/v4"
)

// WithRetry runs connect with exponential backoff, giving up after retries
// additional attempts or when ctx is done.
func WithRetry(ctx context.Context, name string, retries int, connect func() error) error {
	if retries < 0 {
		retries = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	return backoff.RetryNotify(
		connect,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx),
		func(err error, d time.Duration) {
			middleware.Logger.WarnContext(ctx, "Store connection attempt failed",
				slog.String("store", name),
				slog.String("error", err.Error()),
				slog.Duration("backoff", d),
			)
		},
	)
}
