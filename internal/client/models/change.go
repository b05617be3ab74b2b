package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeOp discriminates the kind of a pending change.
type ChangeOp string

const (
	// OpUpsert carries a full row: a subscriber created offline or fully
	// replaced.
	OpUpsert ChangeOp = "upsert"
	// OpUpdate carries a partial field patch keyed by subscriber id.
	OpUpdate ChangeOp = "update"
	// OpDelete removes the row with the given subscriber id.
	OpDelete ChangeOp = "delete"
)

// PendingChange is one queued, not-yet-confirmed mutation awaiting remote
// application. Entries are append-only: they are removed after confirmed
// remote success, or parked as dead after a permanent failure, never mutated
// in place.
//
// Replaying a change is safe: an upsert re-applies the same row, a patch
// re-applies the same fields, and re-deleting an absent row is a no-op. That
// idempotence is what makes at-least-once draining acceptable.
type PendingChange struct {
	ID           string      `json:"id"`
	Op           ChangeOp    `json:"op"`
	SubscriberID string      `json:"subscriberId"`
	// Payload is set for upserts only.
	Payload *Subscriber `json:"payload,omitempty"`
	// Patch is set for updates only. Keys are subscriber JSON field names.
	Patch map[string]any `json:"patch,omitempty"`
	// Timestamp orders changes across the whole queue at drain time.
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
	Dead      bool      `json:"dead"`
}

// NewUpsert records a full-row change for the given subscriber.
func NewUpsert(s *Subscriber, now time.Time) *PendingChange {
	cp := *s
	return &PendingChange{
		ID:           uuid.NewString(),
		Op:           OpUpsert,
		SubscriberID: s.ID,
		Payload:      &cp,
		Timestamp:    now,
	}
}

// NewUpdate records a partial field patch for the given subscriber id.
func NewUpdate(subscriberID string, patch map[string]any, now time.Time) *PendingChange {
	return &PendingChange{
		ID:           uuid.NewString(),
		Op:           OpUpdate,
		SubscriberID: subscriberID,
		Patch:        patch,
		Timestamp:    now,
	}
}

// NewDelete records a hard delete of the given subscriber id.
func NewDelete(subscriberID string, now time.Time) *PendingChange {
	return &PendingChange{
		ID:           uuid.NewString(),
		Op:           OpDelete,
		SubscriberID: subscriberID,
		Timestamp:    now,
	}
}
