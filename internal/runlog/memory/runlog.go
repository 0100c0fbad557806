// Package memory provides an in-memory run log for development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// RunLog implements crawl.RunLog in process memory, preserving append order.
type RunLog struct {
	mu       sync.RWMutex
	outcomes []crawl.Outcome
}

// NewRunLog constructs an empty RunLog.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Append records an outcome.
func (l *RunLog) Append(_ context.Context, outcome crawl.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, outcome)
	return nil
}

// Query returns outcomes for days in [from, to], in append order.
func (l *RunLog) Query(_ context.Context, from, to crawl.Day) ([]crawl.Outcome, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []crawl.Outcome
	for _, o := range l.outcomes {
		if o.Day.Before(from) || o.Day.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// All returns every recorded outcome in append order.
func (l *RunLog) All() []crawl.Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]crawl.Outcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}
