package domain

import "time"

// Window is a closed time interval [Start, End]. Bounds are compared as
// instants, so the zone each bound was expressed in does not matter.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and returns a window.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, NewValidationError("window", "bounds must be set")
	}
	if end.Before(start) {
		return Window{}, NewValidationError("window", "end precedes start")
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether start <= t <= end.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LastDays returns [now - days, now].
func LastDays(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// YearWindow returns [Jan 1 00:00:00, Dec 31 23:59:59] of year in UTC, with
// the end clipped to now when the year has not finished yet.
func YearWindow(year int, now time.Time) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	if end.After(now) {
		end = now
	}
	return Window{Start: start, End: end}
}
