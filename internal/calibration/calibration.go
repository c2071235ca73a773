// Package calibration derives a scale's calibration standing from its next
// due date. Everything here is a pure function of its arguments.
package calibration

import (
	"math"
	"time"
)

type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusValid    Status = "valid"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
)

const (
	// WarningWindow is how far ahead of the due date a scale counts as expiring.
	WarningWindow = 30 * 24 * time.Hour

	// DefaultIntervalDays applies when a scale has no explicit interval.
	DefaultIntervalDays = 730

	day = 24 * time.Hour
)

type Result struct {
	Status        Status `json:"status"`
	DaysRemaining int    `json:"daysRemaining,omitempty"`
	DaysOverdue   int    `json:"daysOverdue,omitempty"`
}

// Evaluate classifies next against now. A due date at or before now is
// expired; within WarningWindow it is expiring.
func Evaluate(next *time.Time, now time.Time) Result {
	if next == nil {
		return Result{Status: StatusUnknown}
	}

	until := next.Sub(now)
	if until <= 0 {
		return Result{
			Status:      StatusExpired,
			DaysOverdue: int(math.Floor(float64(-until) / float64(day))),
		}
	}

	remaining := int(math.Ceil(float64(until) / float64(day)))
	if until <= WarningWindow {
		return Result{Status: StatusExpiring, DaysRemaining: remaining}
	}
	return Result{Status: StatusValid, DaysRemaining: remaining}
}

// Assignable reports whether a scale with this due date may join the
// assignable pool: no date, or valid for at least WarningWindow beyond now.
func Assignable(next *time.Time, now time.Time) bool {
	if next == nil {
		return true
	}
	return !next.Before(AssignableHorizon(now))
}

// AssignableHorizon is the earliest due date accepted by Assignable.
func AssignableHorizon(now time.Time) time.Time {
	return now.Add(WarningWindow)
}

// NextDue returns the due date following a calibration performed at calibratedAt.
func NextDue(calibratedAt time.Time, intervalDays int) time.Time {
	if intervalDays <= 0 {
		intervalDays = DefaultIntervalDays
	}
	return calibratedAt.AddDate(0, 0, intervalDays)
}
