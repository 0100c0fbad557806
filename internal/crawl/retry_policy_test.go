package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, DefaultMaxAttempts, p.MaxAttempts())
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, time.Second, time.Minute)
	day := NewDay(2021, time.January, 1)
	transient := Transient(day, errors.New("http 500"))

	t.Run("nil error", func(t *testing.T) {
		require.False(t, p.ShouldRetry(nil, 1))
	})

	t.Run("budget exhausted", func(t *testing.T) {
		require.True(t, p.ShouldRetry(transient, 4))
		require.False(t, p.ShouldRetry(transient, 5))
		require.False(t, p.ShouldRetry(transient, 6))
	})

	t.Run("context errors stop retries", func(t *testing.T) {
		require.False(t, p.ShouldRetry(context.Canceled, 1))
		require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	})

	t.Run("terminal fetch error stops retries", func(t *testing.T) {
		require.False(t, p.ShouldRetry(Terminal(day, errors.New("http 403")), 1))
	})

	t.Run("transient fetch error retries", func(t *testing.T) {
		require.True(t, p.ShouldRetry(transient, 1))
	})

	t.Run("transient attempt timeout retries", func(t *testing.T) {
		// The job wraps a per-attempt deadline expiry as transient; the
		// classification wins over the deadline error in the chain.
		require.True(t, p.ShouldRetry(Transient(day, context.DeadlineExceeded), 1))
	})

	t.Run("transient wrapping cancellation stops", func(t *testing.T) {
		require.False(t, p.ShouldRetry(Transient(day, context.Canceled), 1))
	})

	t.Run("wrapped fetch error is unwrapped", func(t *testing.T) {
		wrapped := errors.Join(errors.New("attempt failed"), Terminal(day, errors.New("bad creds")))
		require.False(t, p.ShouldRetry(wrapped, 1))
	})

	t.Run("plain error retries", func(t *testing.T) {
		require.True(t, p.ShouldRetry(errors.New("connection reset"), 1))
	})
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	maxDelay := time.Second
	p := NewExponentialRetryPolicy(10, base, maxDelay)

	// Full delay for attempt n is base*2^(n-1), capped at maxDelay; the
	// policy emits half of that plus jitter up to the other half.
	for attempt, full := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	} {
		got := p.Backoff(attempt)
		require.GreaterOrEqual(t, got, full/2, "attempt %d", attempt)
		require.Less(t, got, full+time.Millisecond, "attempt %d", attempt)
	}
}

func TestBackoffClampsLowAttempt(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, time.Second)
	got := p.Backoff(0)
	require.GreaterOrEqual(t, got, 50*time.Millisecond)
	require.Less(t, got, 101*time.Millisecond)
}
