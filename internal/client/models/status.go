package models

import "time"

// Status is the derived subscription lifecycle state. It is computed from
// dates and flags relative to "now" at read time; the persisted column is
// only a cache.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
	StatusPaused   Status = "paused"
)

// ExpiringWindowDays is the number of remaining calendar days at or below
// which a subscription counts as expiring.
const ExpiringWindowDays = 7

// StartOfDay truncates t to midnight UTC of its calendar date. All day
// arithmetic goes through this so wall-clock hours and zones never leak into
// date math.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b, negative when b
// precedes a.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// DeriveStatus computes the lifecycle status from the subscription end date
// and pause flag relative to now. A paused subscription is always paused,
// regardless of date math, because pausing already pushed the end date
// forward. The remaining amount is accepted for signature compatibility with
// the callers' row shape but never influences the result; money owed is the
// orthogonal HasPendingPayment flag.
func DeriveStatus(endDate time.Time, remainingAmount float64, isPaused bool, now time.Time) Status {
	_ = remainingAmount

	if isPaused {
		return StatusPaused
	}

	daysRemaining := DaysBetween(now, endDate)
	switch {
	case daysRemaining < 0:
		return StatusExpired
	case daysRemaining <= ExpiringWindowDays:
		return StatusExpiring
	default:
		return StatusActive
	}
}
