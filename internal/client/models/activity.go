package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType names the mutation recorded by an activity log entry.
type ActionType string

const (
	ActionAdd     ActionType = "add"
	ActionUpdate  ActionType = "update"
	ActionRenew   ActionType = "renew"
	ActionPause   ActionType = "pause"
	ActionResume  ActionType = "resume"
	ActionArchive ActionType = "archive"
	ActionRestore ActionType = "restore"
	ActionDelete  ActionType = "delete"
	ActionRevert  ActionType = "revert"
)

// ActivityLogEntry is one append-only audit record. PreviousData snapshots
// the fields a mutation overwrote, which is what makes point-in-time revert
// possible. SubscriberID goes nil once the subscriber is hard-deleted; the
// denormalized name survives for display.
type ActivityLogEntry struct {
	ID             string            `json:"id"`
	SubscriberID   *string           `json:"subscriberId,omitempty"`
	SubscriberName string            `json:"subscriberName"`
	ActionType     ActionType        `json:"actionType"`
	ActionDetails  map[string]string `json:"actionDetails,omitempty"`
	PreviousData   map[string]any    `json:"previousData,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// NewActivityLogEntry builds an audit record for one mutation.
func NewActivityLogEntry(subscriberID, name string, action ActionType, details map[string]string, previous map[string]any, now time.Time) *ActivityLogEntry {
	var sid *string
	if subscriberID != "" {
		sid = &subscriberID
	}
	return &ActivityLogEntry{
		ID:             uuid.NewString(),
		SubscriberID:   sid,
		SubscriberName: name,
		ActionType:     action,
		ActionDetails:  details,
		PreviousData:   previous,
		CreatedAt:      now,
	}
}

// Snapshot extracts the patchable fields of a subscriber as a PreviousData
// map, i.e. the data needed to undo a later mutation.
func Snapshot(s *Subscriber) map[string]any {
	snap := map[string]any{
		"name":             s.Name,
		"phone":            s.Phone,
		"subscriptionType": s.SubscriptionType,
		"startDate":        s.StartDate,
		"endDate":          s.EndDate,
		"paidAmount":       s.PaidAmount,
		"remainingAmount":  s.RemainingAmount,
		"captain":          s.Captain,
		"isArchived":       s.IsArchived,
		"isPaused":         s.IsPaused,
	}
	if s.PausedUntil != nil {
		snap["pausedUntil"] = *s.PausedUntil
	}
	return snap
}
