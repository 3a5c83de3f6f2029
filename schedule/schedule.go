// Package schedule holds the battery setpoint schedule produced by the
// external horizon optimizer and consumed by the power-flow model. The
// dependency runs one way: schedule imports flowmodel (and forecast) for
// the ReplanFunc signature, and flowmodel reads a schedule only through
// its own ScheduleSource interface.
package schedule

import "time"

// Interval is one entry of a Schedule: a half-open time range and the
// battery setpoint (kW, signed: +charge, -discharge) that applies to it.
type Interval struct {
	Start        time.Time
	End          time.Time
	SetpointKW   float64
}

// contains reports whether t falls within [Start, End).
func (iv Interval) contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Schedule is a finite, ordered list of non-overlapping intervals that
// collectively cover the optimizer's horizon. It is immutable once
// constructed; the controller replaces the whole schedule atomically via
// Cell rather than mutating one in place.
type Schedule struct {
	ID         string
	Intervals  []Interval
	ReceivedAt time.Time
}

// PowerAt returns the setpoint of the interval containing t, or
// (0, false) if t falls beyond the schedule's coverage. The caller treats
// a false result as "idle".
func (s *Schedule) PowerAt(t time.Time) (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, iv := range s.Intervals {
		if iv.contains(t) {
			return iv.SetpointKW, true
		}
	}
	return 0, false
}

// Idle returns an empty schedule, used as the controller's permanent
// default before any re-plan has ever succeeded.
func Idle() *Schedule {
	return &Schedule{ID: "idle"}
}

// ScheduleID returns the schedule's identifier, satisfying
// flowmodel.ScheduleSource without flowmodel needing to import this
// package. Named distinctly from the ID field since Go forbids a method
// and field sharing one name.
func (s *Schedule) ScheduleID() string {
	if s == nil {
		return ""
	}
	return s.ID
}
