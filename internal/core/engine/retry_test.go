package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStrategy() *RetryStrategy {
	return &RetryStrategy{
		Config: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxBackoff:  5 * time.Second,
		},
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	s := newStrategy()
	require.Equal(t, 30*time.Second, s.ParseRetryAfter("30"))
	require.Equal(t, time.Duration(0), s.ParseRetryAfter("0"))
}

func TestParseRetryAfterDate(t *testing.T) {
	s := newStrategy()

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	wait := s.ParseRetryAfter(future)
	require.Greater(t, wait, 50*time.Second)
	require.LessOrEqual(t, wait, time.Minute)

	// A date in the past clamps to zero instead of going negative.
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	require.Equal(t, time.Duration(0), s.ParseRetryAfter(past))
}

func TestParseRetryAfterFallback(t *testing.T) {
	s := newStrategy()
	require.Equal(t, s.Config.BaseDelay, s.ParseRetryAfter(""))
	require.Equal(t, s.Config.BaseDelay, s.ParseRetryAfter("not-a-date"))
}

func TestShouldNotRetry(t *testing.T) {
	s := newStrategy()

	require.True(t, s.ShouldNotRetry(context.Canceled, 0))

	rateLimited := &UpstreamError{Status: http.StatusTooManyRequests}
	require.False(t, s.ShouldNotRetry(rateLimited, 0))
	require.False(t, s.ShouldNotRetry(rateLimited, 1))
	require.True(t, s.ShouldNotRetry(rateLimited, 2))

	notFound := &UpstreamError{Status: http.StatusNotFound}
	require.True(t, s.ShouldNotRetry(notFound, 0))

	serverError := &UpstreamError{Status: http.StatusBadGateway}
	require.False(t, s.ShouldNotRetry(serverError, 0))
	require.True(t, s.ShouldNotRetry(serverError, 2))

	transport := errors.New("connection refused")
	require.False(t, s.ShouldNotRetry(transport, 0))
}

func TestDelayNeverExceedsCapWithJitter(t *testing.T) {
	s := newStrategy()
	ceiling := time.Duration(float64(s.Config.MaxBackoff) * 1.25)

	for i := 0; i < 200; i++ {
		delay := s.Delay(20, errors.New("boom"))
		require.GreaterOrEqual(t, delay, time.Duration(0))
		require.LessOrEqual(t, delay, ceiling)
	}
}

func TestDelayGrowsExponentially(t *testing.T) {
	s := newStrategy()

	// With jitter bounded at ±25%, attempt 0 stays within [75ms, 125ms]
	// and attempt 2 within [300ms, 500ms].
	for i := 0; i < 50; i++ {
		d0 := s.Delay(0, errors.New("boom"))
		require.GreaterOrEqual(t, d0, 75*time.Millisecond)
		require.LessOrEqual(t, d0, 125*time.Millisecond)

		d2 := s.Delay(2, errors.New("boom"))
		require.GreaterOrEqual(t, d2, 300*time.Millisecond)
		require.LessOrEqual(t, d2, 500*time.Millisecond)
	}
}

func TestDelayHonorsRetryAfterHint(t *testing.T) {
	s := newStrategy()
	hinted := &UpstreamError{Status: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}

	for i := 0; i < 50; i++ {
		delay := s.Delay(0, hinted)
		require.GreaterOrEqual(t, delay, 1500*time.Millisecond)
		require.LessOrEqual(t, delay, 2500*time.Millisecond)
	}
}

func TestDelayRetryHonorsCancellation(t *testing.T) {
	s := newStrategy()
	s.Config.BaseDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := s.DelayRetry(ctx, 0, errors.New("boom"))
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestUpstreamErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &UpstreamError{Status: 502, Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "502")
}
