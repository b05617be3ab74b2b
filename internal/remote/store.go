// Package remote defines the narrow contract the sync core consumes from the
// hosted subscriber store, and implements it over PostgreSQL. Rows are
// snake_case on the wire and mapped to the in-memory camelCase model at this
// boundary, nowhere else.
package remote

import (
	"context"

	"github.com/gymdesk/gymsync/internal/client/models"
)

// Store is the remote subscriber table plus its change-notification channel.
//
// Upsert must be idempotent (same id, same payload converges to the same
// row), Update and Delete must tolerate re-application; the sync engine's
// at-least-once drain depends on all three.
type Store interface {
	// Ping reports whether the store is reachable. Used by the
	// connectivity watcher.
	Ping(ctx context.Context) error

	// SelectAll returns every row owned by ownerID.
	SelectAll(ctx context.Context, ownerID string) ([]models.Subscriber, error)

	// Upsert inserts or fully replaces a row, scoped to ownerID. A row held
	// by a different owner is not touched and the call fails permanently.
	Upsert(ctx context.Context, ownerID string, s *models.Subscriber) error

	// Update applies a partial field patch keyed by subscriber id. Patch
	// keys are the entity's JSON field names; unknown keys are rejected.
	// Updating an absent row is a no-op.
	Update(ctx context.Context, id string, patch map[string]any) error

	// Delete removes the row with the given id. Deleting an absent row is a
	// no-op.
	Delete(ctx context.Context, id string) error

	// Subscribe registers onChange to run whenever a row owned by ownerID
	// changes remotely. The subscription lives until ctx is cancelled.
	Subscribe(ctx context.Context, ownerID string, onChange func()) error
}
