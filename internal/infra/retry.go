package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// ConnectWithRetry runs connect up to attempts times, waiting a fixed delay
// between failures. The last error is returned once attempts run out.
func ConnectWithRetry(ctx context.Context, logger *slog.Logger, name string, attempts int, delay time.Duration, connect func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := connect(ctx); err != nil {
			logger.WarnContext(ctx, "connection attempt failed",
				slog.String("target", name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		logger.InfoContext(ctx, "connected", slog.String("target", name), slog.Int("attempt", attempt))
		return nil
	})
}
