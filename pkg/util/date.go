package util

import (
	"time"
)

// DateLayout is the canonical wire and storage format for trading dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOnly drops the clock, keeping the calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NowEastern returns the current wall-clock time in US market hours.
// Falls back to UTC when the tz database is unavailable.
func NowEastern() time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

// PreviousTradingDay walks back from d to the most recent weekday.
// Market holidays are not modeled; a holiday date simply yields an
// empty result set upstream and the run records nothing.
func PreviousTradingDay(d time.Time) time.Time {
	d = DateOnly(d)
	switch d.Weekday() {
	case time.Monday:
		return d.AddDate(0, 0, -3)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	default:
		return d.AddDate(0, 0, -1)
	}
}

// WeekdayIndex maps a date to 0=Monday .. 6=Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
