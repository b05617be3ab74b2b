package metadata

import (
	"context"
	"time"
)

// Repository holds the sync metadata bucket of the local store. The syncing
// flag persisted here is advisory, read by UI badges; the authoritative
// single-drain guard lives in the sync engine itself.
type Repository interface {
	LastSyncAt(ctx context.Context) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error
	Syncing(ctx context.Context) (bool, error)
	SetSyncing(ctx context.Context, v bool) error
	Clear(ctx context.Context) error
}
