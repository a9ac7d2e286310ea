// File: internal/suppression/evaluator.go
package suppression

import (
	"time"

	"github.com/auspex-monitoring/auspex/internal/models"
)

// Evaluator answers whether notifications for a target are suppressed at a
// point in time. It is a pure function of the suppression snapshot passed
// in; callers fetch the snapshot per evaluation so a window toggled
// mid-flight cannot race a decision already made.
type Evaluator struct{}

// NewEvaluator creates a suppression evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// IsSuppressed reports whether any window in the snapshot covers the given
// time. Windows are ORed: a single active window suppresses.
func (e *Evaluator) IsSuppressed(suppressions []*models.AlertSuppression, at time.Time) bool {
	for _, s := range suppressions {
		if !s.Enabled {
			continue
		}
		if e.windowActive(s, at) {
			return true
		}
	}
	return false
}

// windowActive evaluates one window. One-shot windows compare absolute
// times inclusively on both ends. Recurring windows use only the wall-clock
// time-of-day of start/end, half-open, with the date portion ignored so the
// window repeats indefinitely.
func (e *Evaluator) windowActive(s *models.AlertSuppression, at time.Time) bool {
	if s.Recurrence == nil || *s.Recurrence == "" {
		return !at.Before(s.StartTime) && !at.After(s.EndTime)
	}

	switch *s.Recurrence {
	case models.RecurrenceWeekly:
		if !containsDay(s.DaysOfWeek, int(at.Weekday())) {
			return false
		}
		return inTimeOfDayWindow(s.StartTime, s.EndTime, at)
	case models.RecurrenceDaily:
		return inTimeOfDayWindow(s.StartTime, s.EndTime, at)
	default:
		// Unknown recurrence values never suppress.
		return false
	}
}

// inTimeOfDayWindow compares only the wall-clock components: [start, end).
func inTimeOfDayWindow(start, end, at time.Time) bool {
	tod := secondsOfDay(at)
	return tod >= secondsOfDay(start) && tod < secondsOfDay(end)
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
