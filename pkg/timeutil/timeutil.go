// Package timeutil provides calendar utilities in the service reference timezone.
// "Today" for grading, resets and exercise provisioning is always computed here,
// never in UTC, so users near midnight see a consistent day.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultZoneName is the reference timezone used when none is configured.
const DefaultZoneName = "America/Mexico_City"

// mexicoCityFallback is used when the tz database is unavailable.
// Mexico abolished DST in 2022, so the offset is constant year-round.
var mexicoCityFallback = time.FixedZone(DefaultZoneName, -6*60*60)

var (
	mu       sync.RWMutex
	location = loadOrFallback(DefaultZoneName)
)

func loadOrFallback(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return mexicoCityFallback
	}
	return loc
}

// SetLocation changes the reference timezone by IANA name.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultZoneName {
			loc = mexicoCityFallback
		} else {
			return fmt.Errorf("timeutil: load location %q: %w", name, err)
		}
	}
	mu.Lock()
	location = loc
	mu.Unlock()
	return nil
}

// Location returns the reference timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Clock abstracts the current time so handlers and jobs can be tested.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock in the reference timezone.
func SystemClock() Clock {
	return ClockFunc(Now)
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Now returns the current time in the reference timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// ToLocal converts a time to the reference timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Location())
}

// Date creates a time in the reference timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, Location())
}

// DateTime creates a time in the reference timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, Location())
}

// StartOfDay returns the start of the day (00:00:00) in the reference timezone.
func StartOfDay(t time.Time) time.Time {
	l := ToLocal(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// StartOfNextHour returns the top of the hour following t.
func StartOfNextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the reference timezone.
func FormatDateStr(t time.Time) string {
	return ToLocal(t).Format(FormatDate)
}

// Today returns today's local calendar date as YYYY-MM-DD.
func Today(c Clock) string {
	return FormatDateStr(c.Now())
}

// ParseDate parses a date string (YYYY-MM-DD) in the reference timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, Location())
}

// IsSameDay checks if two times are on the same day in the reference timezone.
func IsSameDay(t1, t2 time.Time) bool {
	return FormatDateStr(t1) == FormatDateStr(t2)
}

// IsLastDayOfMonth reports whether tomorrow is the first day of a month.
func IsLastDayOfMonth(t time.Time) bool {
	return ToLocal(t).AddDate(0, 0, 1).Day() == 1
}

// DaysAgo returns the local calendar date n days before t.
func DaysAgo(t time.Time, n int) string {
	return FormatDateStr(ToLocal(t).AddDate(0, 0, -n))
}
