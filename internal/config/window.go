package config

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Window is the reconciliation window. It is constructed once per run and
// passed by value; there is no way to mutate it after construction.
type Window struct {
	start time.Time
	end   time.Time
}

// NewWindow builds a window, rejecting an end before the start
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, fmt.Errorf("window end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{start: start, end: end}, nil
}

// Start returns the inclusive lower bound
func (w Window) Start() time.Time { return w.start }

// End returns the inclusive upper bound
func (w Window) End() time.Time { return w.end }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.start.Format(time.RFC3339), w.end.Format(time.RFC3339))
}

// ParseDate parses a configured date. Date-only values used as an end bound
// are extended to the last millisecond of that day so the day is included.
func ParseDate(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" && endOfDay {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}
