package crawl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, time.January, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type funcFetcher func(ctx context.Context, day Day) (Result, error)

func (f funcFetcher) Fetch(ctx context.Context, day Day) (Result, error) { return f(ctx, day) }

type recordingSink struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (s *recordingSink) Save(_ context.Context, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingSink) saved() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

func TestJobRunSuccess(t *testing.T) {
	t.Parallel()

	day := NewDay(2021, time.March, 1)
	fetcher := funcFetcher(func(_ context.Context, d Day) (Result, error) {
		return Result{Day: d, Pages: []Page{{Number: 1, Body: []byte("{}")}}, Records: 42}, nil
	})
	sink := &recordingSink{}
	job := NewJob(fetcher, sink, newFakeClock(), 0)

	outcome, err := job.Run(context.Background(), day, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, outcome.Status)
	require.Equal(t, 1, outcome.Attempt)
	require.True(t, outcome.Day.Equal(day))
	require.Empty(t, outcome.ErrorText)
	require.Equal(t, time.Second, outcome.Duration())

	saved := sink.saved()
	require.Len(t, saved, 1)
	require.Equal(t, 42, saved[0].Records)
}

func TestJobRunFetchFailure(t *testing.T) {
	t.Parallel()

	day := NewDay(2021, time.March, 1)
	cause := errors.New("http 502")
	fetcher := funcFetcher(func(_ context.Context, d Day) (Result, error) {
		return Result{}, Transient(d, cause)
	})
	sink := &recordingSink{}
	job := NewJob(fetcher, sink, newFakeClock(), 0)

	outcome, err := job.Run(context.Background(), day, 2)
	require.Error(t, err)
	require.ErrorIs(t, err, cause)
	require.Equal(t, StatusFailed, outcome.Status)
	require.Equal(t, 2, outcome.Attempt)
	require.NotEmpty(t, outcome.ErrorText)
	require.Empty(t, sink.saved())
}

func TestJobRunSinkFailureFailsAttempt(t *testing.T) {
	t.Parallel()

	fetcher := funcFetcher(func(_ context.Context, d Day) (Result, error) {
		return Result{Day: d}, nil
	})
	sink := &recordingSink{err: errors.New("disk full")}
	job := NewJob(fetcher, sink, newFakeClock(), 0)

	outcome, err := job.Run(context.Background(), NewDay(2021, time.March, 1), 1)
	require.Error(t, err)
	require.Equal(t, StatusFailed, outcome.Status)
	require.Contains(t, outcome.ErrorText, "disk full")
}

func TestJobRunAttemptTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	fetcher := funcFetcher(func(ctx context.Context, _ Day) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	job := NewJob(fetcher, &recordingSink{}, newFakeClock(), 20*time.Millisecond)

	_, err := job.Run(context.Background(), NewDay(2021, time.March, 1), 1)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindTransient, fetchErr.Kind)
}

func TestJobRunParentCancellationStaysFatal(t *testing.T) {
	t.Parallel()

	fetcher := funcFetcher(func(ctx context.Context, _ Day) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	job := NewJob(fetcher, &recordingSink{}, newFakeClock(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.Run(ctx, NewDay(2021, time.March, 1), 1)
	require.ErrorIs(t, err, context.Canceled)

	var fetchErr *FetchError
	require.False(t, errors.As(err, &fetchErr))
}
