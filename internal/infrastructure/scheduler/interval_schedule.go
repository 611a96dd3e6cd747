package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// AlignedSchedule fires on wall-clock boundaries of Interval,
// e.g. every hour on the hour for Interval = time.Hour.
type AlignedSchedule struct {
	Interval time.Duration
	Location *time.Location
}

// NewAlignedSchedule creates a schedule aligned to interval boundaries in loc.
func NewAlignedSchedule(interval time.Duration, loc *time.Location) *AlignedSchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &AlignedSchedule{Interval: interval, Location: loc}
}

// Next returns the first boundary strictly after t.
func (s *AlignedSchedule) Next(t time.Time) time.Time {
	local := t.In(s.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	elapsed := local.Sub(midnight)
	next := midnight.Add((elapsed/s.Interval + 1) * s.Interval)
	return next
}

// String returns the string representation of the schedule.
func (s *AlignedSchedule) String() string {
	return fmt.Sprintf("@aligned %s", s.Interval.String())
}
