package scheduler

import "time"

// IntervalSchedule fires every Interval, measured from the previous fire.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule returns an interval schedule. A non-positive interval
// means one minute.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntervalSchedule{Interval: interval}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }

func (s *IntervalSchedule) String() string { return "@every " + s.Interval.String() }
