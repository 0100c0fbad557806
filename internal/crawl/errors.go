package crawl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange matches any InvalidRangeError via errors.Is.
var ErrInvalidRange = errors.New("invalid date range")

// InvalidRangeError reports a window whose start is after its end. It is
// fatal: no crawling is attempted.
type InvalidRangeError struct {
	Start Day
	End   Day
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", e.Start, e.End)
}

// Is lets errors.Is(err, ErrInvalidRange) succeed.
func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// ErrorKind classifies a fetch failure for retry disposition.
type ErrorKind string

// Fetch error kinds. Transient failures (network, timeout, server errors)
// are retried; terminal failures (authentication, bad request) are not.
const (
	KindTransient ErrorKind = "transient"
	KindTerminal  ErrorKind = "terminal"
)

// FetchError wraps a failure from the fetcher capability. It is caught at
// the job boundary and never propagates to the scheduler's caller.
type FetchError struct {
	Day  Day
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Day, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Transient builds a retryable FetchError.
func Transient(day Day, err error) *FetchError {
	return &FetchError{Day: day, Kind: KindTransient, Err: err}
}

// Terminal builds a FetchError that skips remaining retries.
func Terminal(day Day, err error) *FetchError {
	return &FetchError{Day: day, Kind: KindTerminal, Err: err}
}

// PartialFailureError is returned at the end of a run when one or more days
// exhausted their retries. Completed days remain checkpointed.
type PartialFailureError struct {
	Days []Day
}

func (e *PartialFailureError) Error() string {
	labels := make([]string, len(e.Days))
	for i, d := range e.Days {
		labels[i] = d.String()
	}
	return fmt.Sprintf("crawl finished with %d exhausted day(s): %s",
		len(e.Days), strings.Join(labels, ", "))
}
