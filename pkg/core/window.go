package core

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar-date layout used for every date column.
const DateLayout = "2006-01-02"

// Window is an inclusive calendar-date range. Start and End are civil dates
// (UTC midnight); any time-of-day component is truncated.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a Window from two civil dates.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: Day(start), End: Day(end)}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// ParseWindow builds a Window from two YYYY-MM-DD strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end %q: %w", end, err)
	}
	return NewWindow(s, e)
}

// MustWindow is like ParseWindow but panics on error. Intended for tests and
// package-level defaults.
func MustWindow(start, end string) Window {
	w, err := ParseWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Validate reports whether the window is non-empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window start and end are required")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s is before start %s", w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return nil
}

// Contains reports whether the civil date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Each calls fn for every day in the window in ascending order.
func (w Window) Each(fn func(day time.Time)) {
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// Day truncates t to its civil date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
