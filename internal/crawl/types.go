// Package crawl defines the core types and orchestration logic for the
// daily-windowed fund data pipeline.
package crawl

import (
	"fmt"
	"time"
)

// DayFormat is the wire format for calendar days (DD.MM.YYYY), matching the
// format TEFAS expects in its date fields.
const DayFormat = "02.01.2006"

// Day is a single calendar date, the unit of crawl granularity. Days are
// immutable and totally ordered; the zero value is not a valid day.
type Day struct {
	t time.Time
}

// NewDay builds a Day from its calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates a timestamp to its calendar day.
func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return NewDay(y, m, d)
}

// ParseDay parses a DD.MM.YYYY string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	return Day{t: d.t.AddDate(0, 0, 1)}
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is earlier than other.
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

// After reports whether d is later than other.
func (d Day) After(other Day) bool { return d.t.After(other.t) }

// Equal reports whether two days are the same calendar date.
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }

// IsZero reports whether the day is the zero value.
func (d Day) IsZero() bool { return d.t.IsZero() }

// DaysSince returns the number of whole days from other to d.
func (d Day) DaysSince(other Day) int {
	return int(d.t.Sub(other.t) / (24 * time.Hour))
}

// Time returns the day as midnight UTC.
func (d Day) Time() time.Time { return d.t }

// String renders the day in DD.MM.YYYY form.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DayFormat)
}

// MarshalText implements encoding.TextMarshaler using DayFormat.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Status represents the disposition of a single fetch attempt.
type Status string

// Attempt statuses recorded in the run log. Succeeded and Exhausted are
// terminal; Failed attempts are followed by a retry.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
)

// Terminal reports whether the status ends a day's processing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusExhausted
}

// Outcome records one fetch attempt for one day. Outcomes are append-only
// once written to the run log.
type Outcome struct {
	RunID     string    `json:"run_id"`
	Day       Day       `json:"day"`
	Attempt   int       `json:"attempt"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	ErrorText string    `json:"error_text,omitempty"`
}

// Duration returns the wall-clock time spent on the attempt.
func (o Outcome) Duration() time.Duration {
	return o.EndedAt.Sub(o.StartedAt)
}

// Checkpoint marks the last day whose whole contiguous prefix reached a
// terminal outcome. A restarted run resumes at LastCompletedDay.Next().
type Checkpoint struct {
	LastCompletedDay Day `json:"last_completed_day"`
}

// Page is one raw payload page captured for a day. TEFAS paginates both its
// history tables, so a day's result usually spans several pages.
type Page struct {
	Number int
	Body   []byte
}

// Result is the raw material produced by a Fetcher for one day.
type Result struct {
	Day     Day
	Pages   []Page
	Records int
}
