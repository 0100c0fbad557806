package crawl

import (
	"context"
	"time"
)

// Fetcher retrieves the raw fund data for a single day. Implementations are
// the pluggable capability behind the pipeline: an HTTP client, a headless
// browser, or a fake in tests.
type Fetcher interface {
	Fetch(ctx context.Context, day Day) (Result, error)
}

// Sink persists a day's raw result.
type Sink interface {
	Save(ctx context.Context, result Result) error
}

// RunLog is the append-only record of attempt outcomes. Append must be
// durable before it returns. There is no mutation or deletion API.
type RunLog interface {
	Append(ctx context.Context, outcome Outcome) error
	Query(ctx context.Context, from, to Day) ([]Outcome, error)
}

// CheckpointStore persists crawl progress across process restarts. Load
// reports found=false when no checkpoint has been written yet.
type CheckpointStore interface {
	Load(ctx context.Context) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
}

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
