// Package models defines the subscriber entity, its derived lifecycle
// status, and the pending-change/audit records kept in the local store.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/common"
)

// SubscriptionType classifies the length of a membership plan.
type SubscriptionType string

const (
	SubscriptionMonthly    SubscriptionType = "monthly"
	SubscriptionQuarterly  SubscriptionType = "quarterly"
	SubscriptionSemiAnnual SubscriptionType = "semi-annual"
	SubscriptionAnnual     SubscriptionType = "annual"
)

// Subscriber is the core entity. The Status field is a cache of the derived
// lifecycle state; it is recomputed from dates on every read and must not be
// trusted when stale.
type Subscriber struct {
	ID               string           `json:"id"`
	Name             string           `json:"name" validate:"required"`
	Phone            string           `json:"phone" validate:"required,min=5"`
	SubscriptionType SubscriptionType `json:"subscriptionType" validate:"required,oneof=monthly quarterly semi-annual annual"`
	StartDate        time.Time        `json:"startDate" validate:"required"`
	EndDate          time.Time        `json:"endDate" validate:"required"`
	PaidAmount       float64          `json:"paidAmount" validate:"gte=0"`
	RemainingAmount  float64          `json:"remainingAmount" validate:"gte=0"`
	Captain          string           `json:"captain"`
	IsArchived       bool             `json:"isArchived"`
	IsPaused         bool             `json:"isPaused"`
	PausedUntil      *time.Time       `json:"pausedUntil,omitempty" validate:"required_if=IsPaused true"`
	Status           Status           `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// HasPendingPayment reports whether the subscriber still owes part of the
// subscription fee. This is deliberately not folded into Status.
func (s *Subscriber) HasPendingPayment() bool {
	return s.RemainingAmount > 0
}

// Refresh recomputes the cached Status from the date fields.
func (s *Subscriber) Refresh(now time.Time) {
	s.Status = DeriveStatus(s.EndDate, s.RemainingAmount, s.IsPaused, now)
}

// Pause freezes the subscription until the given date and shifts EndDate
// forward by the paused-day count, so the member keeps the time already paid
// for. Pausing an already paused subscription is an error.
func (s *Subscriber) Pause(until time.Time, now time.Time) error {
	if s.IsPaused {
		return common.ErrAlreadyPaused
	}
	days := DaysBetween(StartOfDay(now), StartOfDay(until))
	if days < 0 {
		return fmt.Errorf("%w: pause end %s is in the past", common.ErrValidation, until.Format(common.DateOnly))
	}
	u := StartOfDay(until)
	s.IsPaused = true
	s.PausedUntil = &u
	s.EndDate = s.EndDate.AddDate(0, 0, days)
	return nil
}

// Resume lifts a pause and shifts EndDate back by the days between now and
// the scheduled pause end. The shift is signed: resuming early gives days
// back, resuming late takes the overshoot away. Pause followed by an
// immediate Resume leaves EndDate unchanged.
func (s *Subscriber) Resume(now time.Time) error {
	if !s.IsPaused || s.PausedUntil == nil {
		return common.ErrNotPaused
	}
	days := DaysBetween(StartOfDay(now), StartOfDay(*s.PausedUntil))
	s.EndDate = s.EndDate.AddDate(0, 0, -days)
	s.IsPaused = false
	s.PausedUntil = nil
	return nil
}

// Renew extends the subscription by the original plan's day span, anchored
// the day after the old EndDate. A late renewal therefore never shrinks the
// member's paid duration. The payment reduces the remaining amount, floored
// at zero, and any pause is cleared.
func (s *Subscriber) Renew(paid float64) error {
	if paid < 0 {
		return fmt.Errorf("%w: negative renewal amount", common.ErrValidation)
	}
	span := DaysBetween(StartOfDay(s.StartDate), StartOfDay(s.EndDate))
	newStart := StartOfDay(s.EndDate).AddDate(0, 0, 1)
	s.StartDate = newStart
	s.EndDate = newStart.AddDate(0, 0, span)
	s.PaidAmount += paid
	s.RemainingAmount = max(0, s.RemainingAmount-paid)
	s.IsPaused = false
	s.PausedUntil = nil
	return nil
}

// patchKeys is the closed set of fields a partial update may touch. Keys are
// the entity's JSON names; anything else is rejected at the boundary instead
// of being silently coerced.
var patchKeys = map[string]struct{}{
	"name":             {},
	"phone":            {},
	"subscriptionType": {},
	"startDate":        {},
	"endDate":          {},
	"paidAmount":       {},
	"remainingAmount":  {},
	"captain":          {},
	"isArchived":       {},
	"isPaused":         {},
	"pausedUntil":      {},
	"status":           {},
	"updatedAt":        {},
}

// ValidatePatch rejects patches containing keys outside the entity's field
// set.
func ValidatePatch(patch map[string]any) error {
	for k := range patch {
		if _, ok := patchKeys[k]; !ok {
			return fmt.Errorf("%w: %q", common.ErrUnknownField, k)
		}
	}
	return nil
}

// ApplyPatch overlays a validated field patch onto the subscriber. Values
// round-trip through JSON so patches loaded back from the queue (where dates
// have become strings) behave identically to freshly built ones.
func (s *Subscriber) ApplyPatch(patch map[string]any) error {
	if err := ValidatePatch(patch); err != nil {
		return err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return fmt.Errorf("failed to apply patch: %w", err)
	}
	return nil
}
