package crawl

import (
	"context"
	"errors"
	"time"
)

// Job executes single fetch attempts for a day. It invokes the injected
// fetcher, persists the result through the sink, times the attempt, and
// captures failures into the Outcome instead of propagating them; the
// scheduler decides disposition.
type Job struct {
	fetcher Fetcher
	sink    Sink
	clock   Clock
	timeout time.Duration
}

// NewJob constructs a Job. A non-positive timeout disables the per-attempt
// deadline.
func NewJob(fetcher Fetcher, sink Sink, clock Clock, timeout time.Duration) *Job {
	return &Job{
		fetcher: fetcher,
		sink:    sink,
		clock:   clock,
		timeout: timeout,
	}
}

// Run performs one attempt for day. The returned error is the cause handed
// to the retry policy; the Outcome carries the record destined for the run
// log. An attempt succeeds only once both fetch and persist are done.
func (j *Job) Run(ctx context.Context, day Day, attempt int) (Outcome, error) {
	outcome := Outcome{
		Day:       day,
		Attempt:   attempt,
		StartedAt: j.clock.Now(),
	}

	attemptCtx := ctx
	cancel := func() {}
	if j.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, j.timeout)
	}
	defer cancel()

	result, err := j.fetcher.Fetch(attemptCtx, day)
	if err == nil && j.sink != nil {
		err = j.sink.Save(attemptCtx, result)
	}
	outcome.EndedAt = j.clock.Now()

	if err != nil {
		err = j.classify(ctx, day, err)
		outcome.Status = StatusFailed
		outcome.ErrorText = err.Error()
		return outcome, err
	}

	outcome.Status = StatusSucceeded
	return outcome, nil
}

// classify maps an attempt-deadline expiry to a retryable fetch error. The
// parent context being done means a real shutdown, which stays as-is so the
// policy stops retrying.
func (j *Job) classify(ctx context.Context, day Day, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Transient(day, err)
	}
	return err
}
