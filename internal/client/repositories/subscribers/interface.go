package subscribers

import (
	"context"

	"github.com/gymdesk/gymsync/internal/client/models"
)

// Repository is the cached subscriber snapshot: the last known remote state
// plus any offline mutations, served when the remote store is unreachable.
type Repository interface {
	Upsert(ctx context.Context, s *models.Subscriber) error
	GetAll(ctx context.Context) ([]models.Subscriber, error)
	GetByID(ctx context.Context, id string) (*models.Subscriber, error)
	DeleteByID(ctx context.Context, id string) error
	// ReplaceAll swaps the whole snapshot for a fresh remote fetch. Callers
	// should run it inside a transaction (dbx.WithTx) so a failed refresh
	// never leaves a half-empty cache.
	ReplaceAll(ctx context.Context, subs []models.Subscriber) error
}
