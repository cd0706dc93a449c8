// Package timeutil provides timezone helpers for the agency's local calendar.
// "Today" for task scheduling and reminders is always the agency's day,
// not the server's.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultZoneName is the default agency timezone.
const DefaultZoneName = "Asia/Kathmandu"

// KathmanduTZ is Nepal Time (UTC+5:45, no DST). Used when the tz database
// is not available in the container.
var KathmanduTZ = time.FixedZone("Asia/Kathmandu", 5*60*60+45*60)

// LoadZone loads a named location. For DefaultZoneName it falls back to
// KathmanduTZ when the tz database is missing.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == DefaultZoneName {
		return KathmanduTZ, nil
	}
	return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
}

// StartOfDay returns 00:00 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns Monday 00:00 of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7 // Monday = 0
	return StartOfDay(local.AddDate(0, 0, -offset), loc)
}

// IsSameDay reports whether a and b fall on the same calendar day in loc.
func IsSameDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Equal(StartOfDay(b, loc))
}

// DaysBetween returns the number of calendar days from a to b in loc.
// Negative when b is before a.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	from := StartOfDay(a, loc)
	to := StartOfDay(b, loc)
	return int(to.Sub(from).Round(time.Hour).Hours() / 24)
}

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, loc)
}

// FormatRelative renders t relative to now for activity feeds:
// "just now", "5 min ago", "3 h ago", "2 days ago", or the date.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0:
		return t.Format(time.DateOnly)
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format(time.DateOnly)
	}
}
