package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX. The change payload
// (full row or patch) is stored as a JSON body; op, subscriber id and
// timestamp are lifted into columns so the drain can order and inspect
// entries without decoding bodies.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// body is the JSON-encoded part of a change that is not lifted into columns.
type body struct {
	Payload *models.Subscriber `json:"payload,omitempty"`
	Patch   map[string]any     `json:"patch,omitempty"`
}

func (r *SQLiteRepository) Append(ctx context.Context, c *models.PendingChange) error {
	raw, err := json.Marshal(body{Payload: c.Payload, Patch: c.Patch})
	if err != nil {
		return fmt.Errorf("failed to encode change body: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_changes (id, op, subscriber_id, body, ts, attempts, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, string(c.Op), c.SubscriberID, raw, c.Timestamp.UnixNano(), c.Attempts, c.Dead)
	if err != nil {
		return fmt.Errorf("failed to append pending change: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.PendingChange, error) {
	return r.list(ctx, false)
}

func (r *SQLiteRepository) ListDead(ctx context.Context) ([]models.PendingChange, error) {
	return r.list(ctx, true)
}

func (r *SQLiteRepository) list(ctx context.Context, dead bool) ([]models.PendingChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, op, subscriber_id, body, ts, attempts, dead
		FROM pending_changes WHERE dead = ? ORDER BY ts ASC
	`, dead)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending changes: %w", err)
	}
	defer rows.Close()

	var result []models.PendingChange
	for rows.Next() {
		var (
			item models.PendingChange
			op   string
			raw  []byte
			ts   int64
		)
		if err := rows.Scan(&item.ID, &op, &item.SubscriberID, &raw, &ts, &item.Attempts, &item.Dead); err != nil {
			return nil, err
		}
		item.Op = models.ChangeOp(op)
		item.Timestamp = time.Unix(0, ts).UTC()

		var b body
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("failed to decode change body %s: %w", item.ID, err)
			}
		}
		item.Payload = b.Payload
		item.Patch = b.Patch

		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, changeID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE id = ?`, changeID)
	if err != nil {
		return fmt.Errorf("failed to remove pending change %s: %w", changeID, err)
	}
	return nil
}

func (r *SQLiteRepository) BumpAttempts(ctx context.Context, changeID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE pending_changes SET attempts = attempts + 1 WHERE id = ?`, changeID)
	if err != nil {
		return fmt.Errorf("failed to bump attempts for %s: %w", changeID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, changeID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE pending_changes SET dead = 1 WHERE id = ?`, changeID)
	if err != nil {
		return fmt.Errorf("failed to mark change %s dead: %w", changeID, err)
	}
	return nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (int, int, error) {
	var live, dead int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE dead = 0),
			COUNT(*) FILTER (WHERE dead = 1)
		FROM pending_changes
	`).Scan(&live, &dead)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count pending changes: %w", err)
	}
	return live, dead, nil
}
