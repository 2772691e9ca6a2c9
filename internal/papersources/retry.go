package papersources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// Default retry policy parameters.
const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultInitialDelay is the delay before the first retry. Subsequent
	// retries double it: 1s, 2s, 4s.
	DefaultInitialDelay = time.Second
)

// RetryPolicy retries an operation with exponential backoff. Transient
// failures (network errors, 429, 5xx) are retried; authentication and
// validation failures are returned immediately.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the backoff delay before the first retry; each
	// subsequent retry doubles it.
	InitialDelay time.Duration

	// IsRetryable overrides the default error classification when set.
	IsRetryable func(error) bool
}

// DefaultRetryPolicy returns the standard policy: 3 retries with delays
// of 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
	}
}

// Execute runs fn, retrying on retryable failures until the policy is
// exhausted. The last error is returned when all attempts fail. Context
// cancellation aborts both the operation and any backoff wait.
func (p RetryPolicy) Execute(ctx context.Context, op string, fn func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := delay * time.Duration(1<<(attempt-1))
			// Honor a server-provided Retry-After hint when it exceeds the
			// backoff schedule.
			var rateErr *domain.RateLimitError
			if errors.As(lastErr, &rateErr) && rateErr.RetryAfter > wait {
				wait = rateErr.RetryAfter
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, maxRetries+1, lastErr)
}

// IsRetryable classifies an error as transient. Context cancellation,
// authentication failures and invalid input never retry. External API
// errors retry only on 429 and 5xx status codes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
		return false
	}

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if apiErr.StatusCode >= 500 {
			return true
		}
		if apiErr.StatusCode >= 400 {
			return false
		}
	}

	// Rate limits and everything else (network failures, timeouts from
	// the transport) are worth another attempt.
	return true
}
