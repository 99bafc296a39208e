package streaming

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"chatwidget/internal/domain"
)

// RetryBaseDelay is the first backoff interval; attempt n waits RetryBaseDelay * 2^n.
const RetryBaseDelay = time.Second

// RetryWithBackoff runs fn until it succeeds, up to maxRetries extra attempts
// with exponential backoff. NotFound and validation errors are returned at once.
//
// The reveal loop never retries; callers wrap their own content fetches with
// this and re-invoke StartStreaming themselves.
func RetryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, logger *slog.Logger, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return retry.Do(
		fn,
		retry.RetryIf(isRetryable),
		retry.Attempts(uint(maxRetries)+1),
		retry.Delay(baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying after error",
				"attempt", n+1,
				"max_attempts", maxRetries+1,
				"error", err,
			)
		}),
	)
}

func isRetryable(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrValidation)
}
