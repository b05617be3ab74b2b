package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/dbx"
)

const (
	keyLastSyncAt = "last_sync_at"
	keySyncing    = "syncing"
)

// SQLiteRepository stores sync metadata as key/value rows.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// LastSyncAt returns the time of the last completed drain, or nil if no drain
// has finished yet.
func (r *SQLiteRepository) LastSyncAt(ctx context.Context) (*time.Time, error) {
	raw, err := r.get(ctx, keyLastSyncAt)
	if err != nil || raw == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return nil, fmt.Errorf("bad last_sync_at %q: %w", raw, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return r.set(ctx, keyLastSyncAt, []byte(t.UTC().Format(time.RFC3339Nano)))
}

func (r *SQLiteRepository) Syncing(ctx context.Context) (bool, error) {
	raw, err := r.get(ctx, keySyncing)
	if err != nil {
		return false, err
	}
	return string(raw) == "1", nil
}

func (r *SQLiteRepository) SetSyncing(ctx context.Context, v bool) error {
	val := []byte("0")
	if v {
		val = []byte("1")
	}
	return r.set(ctx, keySyncing, val)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}
