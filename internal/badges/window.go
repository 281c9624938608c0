package badges

import (
	"fmt"
	"time"
)

// WindowPolicy selects the time window daily_5 counts spottings in.
type WindowPolicy string

const (
	// WindowLiteral counts from the start of the previous UTC day up to the end of the
	// spotting's UTC day, so it spans two calendar days.
	WindowLiteral WindowPolicy = "literal"
	// WindowSameDay counts only the spotting's own UTC day.
	WindowSameDay WindowPolicy = "same_day"
)

// ParseWindowPolicy maps a config value to a policy. Empty selects WindowLiteral.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch WindowPolicy(s) {
	case "", WindowLiteral:
		return WindowLiteral, nil
	case WindowSameDay:
		return WindowSameDay, nil
	}
	return "", fmt.Errorf("unknown daily window policy %q", s)
}

// DailyWindow returns the half-open interval [from, to) around t.
func (p WindowPolicy) DailyWindow(t time.Time) (from, to time.Time) {
	day := StartOfDay(t)
	to = day.AddDate(0, 0, 1)
	if p == WindowSameDay {
		return day, to
	}
	return day.AddDate(0, 0, -1), to
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
