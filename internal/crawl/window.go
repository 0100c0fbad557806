package crawl

// Window is an inclusive range of calendar days. Both bounds are crawled;
// the original script treats --end-date the same way.
type Window struct {
	Start Day
	End   Day
}

// NewWindow validates the bounds and returns a Window. It fails with an
// InvalidRangeError when start is after end.
func NewWindow(start, end Day) (Window, error) {
	if start.After(end) {
		return Window{}, &InvalidRangeError{Start: start, End: end}
	}
	return Window{Start: start, End: end}, nil
}

// Len returns the number of days the window spans.
func (w Window) Len() int {
	return w.End.DaysSince(w.Start) + 1
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d Day) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days enumerates the window from its start.
func (w Window) Days() *DayIterator {
	return &DayIterator{next: w.Start, end: w.End}
}

// DaysFrom enumerates the window suffix starting at day. Days before the
// window start are skipped; a day past the end yields an empty sequence.
func (w Window) DaysFrom(day Day) *DayIterator {
	if day.Before(w.Start) {
		day = w.Start
	}
	return &DayIterator{next: day, end: w.End}
}

// DayIterator yields consecutive days lazily, in strictly increasing order.
type DayIterator struct {
	next Day
	end  Day
	done bool
}

// Next returns the next day in the sequence, or false when exhausted.
func (it *DayIterator) Next() (Day, bool) {
	if it.done || it.next.After(it.end) {
		it.done = true
		return Day{}, false
	}
	d := it.next
	it.next = it.next.Next()
	return d, true
}
