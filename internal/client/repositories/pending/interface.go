package pending

import (
	"context"

	"github.com/gymdesk/gymsync/internal/client/models"
)

// Repository is the durable queue of not-yet-confirmed mutations. Entries are
// appended on every local mutation and removed only after the remote store
// confirmed the change; a permanently failing entry is parked as dead instead
// of being retried forever.
type Repository interface {
	Append(ctx context.Context, c *models.PendingChange) error
	// List returns live (non-dead) changes ordered by timestamp. Storage
	// enumeration order is not trusted; the sort is explicit.
	List(ctx context.Context) ([]models.PendingChange, error)
	Remove(ctx context.Context, changeID string) error
	BumpAttempts(ctx context.Context, changeID string) error
	MarkDead(ctx context.Context, changeID string) error
	ListDead(ctx context.Context) ([]models.PendingChange, error)
	// Counts returns the number of live and dead entries.
	Counts(ctx context.Context) (live int, dead int, err error)
}
