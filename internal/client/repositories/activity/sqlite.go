package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, e *models.ActivityLogEntry) error {
	details, err := marshalOrNil(e.ActionDetails)
	if err != nil {
		return fmt.Errorf("failed to encode action details: %w", err)
	}
	previous, err := marshalOrNil(e.PreviousData)
	if err != nil {
		return fmt.Errorf("failed to encode previous data: %w", err)
	}

	var sid any
	if e.SubscriberID != nil {
		sid = *e.SubscriberID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, subscriber_id, subscriber_name, action_type, action_details, previous_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, sid, e.SubscriberName, string(e.ActionType), details, previous, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	query := `SELECT id, subscriber_id, subscriber_name, action_type, action_details, previous_data, created_at
		FROM activity_log ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select activity log: %w", err)
	}
	defer rows.Close()

	var result []models.ActivityLogEntry
	for rows.Next() {
		item, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.ActivityLogEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, subscriber_name, action_type, action_details, previous_data, created_at
		FROM activity_log WHERE id = ?
	`, id)
	item, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select activity entry %s: %w", id, err)
	}
	return item, nil
}

func (r *SQLiteRepository) DetachSubscriber(ctx context.Context, subscriberID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE activity_log SET subscriber_id = NULL WHERE subscriber_id = ?`, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to detach activity entries for %s: %w", subscriberID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activity_log`)
	if err != nil {
		return fmt.Errorf("failed to clear activity log: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.ActivityLogEntry, error) {
	var (
		e          models.ActivityLogEntry
		sid        sql.NullString
		action     string
		details    []byte
		previous   []byte
		createdRaw string
	)
	if err := row.Scan(&e.ID, &sid, &e.SubscriberName, &action, &details, &previous, &createdRaw); err != nil {
		return nil, err
	}
	if sid.Valid {
		v := sid.String
		e.SubscriberID = &v
	}
	e.ActionType = models.ActionType(action)

	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.ActionDetails); err != nil {
			return nil, fmt.Errorf("bad action details on %s: %w", e.ID, err)
		}
	}
	if len(previous) > 0 {
		if err := json.Unmarshal(previous, &e.PreviousData); err != nil {
			return nil, fmt.Errorf("bad previous data on %s: %w", e.ID, err)
		}
	}

	t, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdRaw, err)
	}
	e.CreatedAt = t
	return &e, nil
}

func marshalOrNil(v any) ([]byte, error) {
	switch x := v.(type) {
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
