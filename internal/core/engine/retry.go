package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// ErrRetriesExhausted is surfaced once every permitted attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// UpstreamError describes a failed call to the upstream search API.
// RetryAfter carries the server's Retry-After hint when one was supplied.
type UpstreamError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	if e.Err != nil {
		if e.Status > 0 {
			return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
		}
		return e.Err.Error()
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RetryConfig bounds the retry loop. Immutable after construction.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxBackoff  time.Duration
}

// RetryStrategy decides whether a failed attempt should be retried and how
// long to wait first. It is pure policy: no internal state beyond config,
// so a single instance is safe to share.
type RetryStrategy struct {
	Config RetryConfig

	// Rand supplies jitter; nil uses the package-level source.
	Rand *rand.Rand
}

// ParseRetryAfter converts a Retry-After header into a wait duration. The
// header may be an integer count of seconds or an HTTP date. Absent or
// unparseable values fall back to the base delay; dates in the past clamp
// to zero to tolerate clock skew.
func (s *RetryStrategy) ParseRetryAfter(header string) time.Duration {
	if s == nil {
		return 0
	}
	if header == "" {
		return s.Config.BaseDelay
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if parsed, err := http.ParseTime(header); err == nil {
		wait := time.Until(parsed)
		if wait < 0 {
			return 0
		}
		return wait
	}

	return s.Config.BaseDelay
}

// ShouldNotRetry reports whether the error is terminal at the given attempt
// index. Cancellations are always terminal; client errors are terminal
// except 429, which is specifically retryable; everything else retries
// until attempts run out.
func (s *RetryStrategy) ShouldNotRetry(err error, attempt int) bool {
	if s == nil {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return true
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.Status
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return true
		}
	}

	return attempt >= s.Config.MaxAttempts-1
}

// Delay computes the wait before the next attempt: the server's Retry-After
// hint when present, otherwise exponential backoff from the base delay,
// clamped to the configured ceiling, with ±25% uniform jitter so callers
// that failed together do not retry together.
func (s *RetryStrategy) Delay(attempt int, err error) time.Duration {
	if s == nil {
		return 0
	}

	base := s.hintedDelay(err)
	if base <= 0 {
		base = time.Duration(float64(s.Config.BaseDelay) * math.Pow(2, float64(attempt)))
		if base <= 0 || base > s.Config.MaxBackoff {
			base = s.Config.MaxBackoff
		}
	}
	if base > s.Config.MaxBackoff {
		base = s.Config.MaxBackoff
	}

	jitter := (s.random()*0.5 - 0.25) * float64(base)
	delay := time.Duration(float64(base) + jitter)
	if delay < 0 {
		return 0
	}
	return delay
}

// DelayRetry suspends the caller for the computed delay, returning early
// with the context error when the wait is cancelled.
func (s *RetryStrategy) DelayRetry(ctx context.Context, attempt int, err error) error {
	delay := s.Delay(attempt, err)
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *RetryStrategy) hintedDelay(err error) time.Duration {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.RetryAfter > 0 {
		return upstream.RetryAfter
	}
	return 0
}

func (s *RetryStrategy) random() float64 {
	if s != nil && s.Rand != nil {
		return s.Rand.Float64()
	}
	return rand.Float64()
}
