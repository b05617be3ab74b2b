package activity

import (
	"context"

	"github.com/gymdesk/gymsync/internal/client/models"
)

// Repository is the append-only audit trail. Entries are never edited; the
// only destructive operations are the bulk Clear and detaching entries from a
// hard-deleted subscriber.
type Repository interface {
	Append(ctx context.Context, e *models.ActivityLogEntry) error
	// List returns entries newest first, up to limit (0 = all).
	List(ctx context.Context, limit int) ([]models.ActivityLogEntry, error)
	GetByID(ctx context.Context, id string) (*models.ActivityLogEntry, error)
	// DetachSubscriber nulls the subscriber reference on all entries for a
	// hard-deleted subscriber, keeping the denormalized name.
	DetachSubscriber(ctx context.Context, subscriberID string) error
	Clear(ctx context.Context) error
}
