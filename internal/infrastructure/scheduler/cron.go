package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Common cron expressions used by the backend.
const (
	EveryDayMidnight       = "0 0 * * *"
	SundayBeforeMidnight   = "59 23 * * 0"
	MonthEndBeforeMidnight = "59 23 28-31 * *"
	EveryFifthDay          = "0 0 */5 * *"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Examples:
//   - "0 0 * * *"       - every day at midnight
//   - "59 23 * * 0"     - Sundays at 23:59
//   - "59 23 28-31 * *" - days 28..31 at 23:59
//   - "0 0 */5 * *"     - days 1, 6, 11, ... at midnight
//
// Matching happens in the expression's location, so "midnight" means
// the configured business-zone midnight regardless of the host clock.
type CronExpression struct {
	raw      string
	loc      *time.Location
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// ParseCronExpression parses a cron expression string evaluated in UTC.
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	return ParseCronExpressionIn(expr, time.UTC)
}

// ParseCronExpressionIn parses a cron expression evaluated in loc.
func ParseCronExpressionIn(expr string, loc *time.Location) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	ce := &CronExpression{raw: expr, loc: loc}
	var err error

	if ce.minutes, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	if ce.hours, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	if ce.days, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("invalid day field: %w", err)
	}
	if ce.months, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	if ce.weekdays, err = parseField(fields[4], 0, 6); err != nil {
		return nil, fmt.Errorf("invalid weekday field: %w", err)
	}
	if !ce.dayExists() {
		return nil, fmt.Errorf("invalid cron expression %q: no listed month has any of the listed days", expr)
	}

	return ce, nil
}

// daysIn is the longest each month gets, leap years included.
var daysIn = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// dayExists rejects day/month pairs that never occur, like "30 2".
func (ce *CronExpression) dayExists() bool {
	for _, m := range ce.months {
		if ce.days[0] <= daysIn[m] {
			return true
		}
	}
	return false
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string, loc *time.Location) *CronExpression {
	ce, err := ParseCronExpressionIn(expr, loc)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseField parses a single cron field.
func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return fullRange(min, max), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, p := range strings.Split(field, ",") {
			vals, err := parseField(strings.TrimSpace(p), min, max)
			if err != nil {
				return nil, fmt.Errorf("invalid list value: %s", p)
			}
			result = append(result, vals...)
		}
		return dedupSorted(result), nil
	}

	// Step values (*/n, n/s, n-m/s)
	if base, stepStr, ok := strings.Cut(field, "/"); ok {
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}

		start, end := min, max
		switch {
		case base == "*":
		case strings.Contains(base, "-"):
			if start, end, err = parseRange(base); err != nil {
				return nil, err
			}
		default:
			if start, err = strconv.Atoi(base); err != nil {
				return nil, fmt.Errorf("invalid step start: %s", base)
			}
		}

		var result []int
		for i := start; i <= end; i += step {
			if i >= min && i <= max {
				result = append(result, i)
			}
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("step %q selects nothing in [%d-%d]", field, min, max)
		}
		return result, nil
	}

	if strings.Contains(field, "-") {
		start, end, err := parseRange(field)
		if err != nil {
			return nil, err
		}
		if start < min || end > max || start > end {
			return nil, fmt.Errorf("range out of bounds [%d-%d]: %s", min, max, field)
		}
		return fullRange(start, end), nil
	}

	v, err := strconv.Atoi(field)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", field)
	}
	if v < min || v > max {
		return nil, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return []int{v}, nil
}

func parseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range format: %s", s)
	}
	start, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start: %s", lo)
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end: %s", hi)
	}
	return start, end, nil
}

func fullRange(min, max int) []int {
	result := make([]int, 0, max-min+1)
	for i := min; i <= max; i++ {
		result = append(result, i)
	}
	return result
}

func dedupSorted(vals []int) []int {
	sort.Ints(vals)
	out := vals[:0]
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Location returns the zone the expression is evaluated in.
func (ce *CronExpression) Location() *time.Location {
	return ce.loc
}

// Next returns the first matching minute strictly after the given time,
// in the expression's location. It returns the zero time when nothing
// matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.In(ce.loc).Truncate(time.Minute).Add(time.Minute)

	// One leap year in minutes.
	const maxIterations = 366 * 24 * 60

	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

// matches uses AND semantics for day-of-month and day-of-week.
func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
