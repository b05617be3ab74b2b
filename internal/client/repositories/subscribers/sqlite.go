package subscribers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const subscriberColumns = `id, name, phone, subscription_type, start_date, end_date,
	paid_amount, remaining_amount, captain, is_archived, is_paused, paused_until,
	status, created_at, updated_at`

// Upsert inserts or fully replaces a cached subscriber row by id.
func (r *SQLiteRepository) Upsert(ctx context.Context, s *models.Subscriber) error {
	query := `INSERT INTO subscribers (` + subscriberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			subscription_type = excluded.subscription_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			paid_amount = excluded.paid_amount,
			remaining_amount = excluded.remaining_amount,
			captain = excluded.captain,
			is_archived = excluded.is_archived,
			is_paused = excluded.is_paused,
			paused_until = excluded.paused_until,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Phone, string(s.SubscriptionType),
		formatDate(s.StartDate), formatDate(s.EndDate),
		s.PaidAmount, s.RemainingAmount, s.Captain,
		s.IsArchived, s.IsPaused, formatDatePtr(s.PausedUntil),
		string(s.Status), s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert subscriber: %w", err)
	}
	return nil
}

// GetAll lists every cached subscriber, ordered by name.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscribers: %w", err)
	}
	defer rows.Close()

	var result []models.Subscriber
	for rows.Next() {
		item, err := scanSubscriber(rows)
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

// GetByID returns one cached subscriber or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = ?`
	item, err := scanSubscriber(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select subscriber %s: %w", id, err)
	}
	return item, nil
}

// DeleteByID removes a cached row. Deleting an absent row is not an error.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber %s: %w", id, err)
	}
	return nil
}

// ReplaceAll clears the snapshot and writes the given rows.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, subs []models.Subscriber) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subscribers`); err != nil {
		return fmt.Errorf("failed to clear subscriber cache: %w", err)
	}
	for i := range subs {
		if err := r.Upsert(ctx, &subs[i]); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (*models.Subscriber, error) {
	var (
		s                    models.Subscriber
		subType, status      string
		startRaw, endRaw     string
		pausedRaw            sql.NullString
		createdRaw, updTimed string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Phone, &subType, &startRaw, &endRaw,
		&s.PaidAmount, &s.RemainingAmount, &s.Captain, &s.IsArchived, &s.IsPaused,
		&pausedRaw, &status, &createdRaw, &updTimed); err != nil {
		return nil, err
	}

	s.SubscriptionType = models.SubscriptionType(subType)
	s.Status = models.Status(status)

	var err error
	if s.StartDate, err = parseDate(startRaw); err != nil {
		return nil, err
	}
	if s.EndDate, err = parseDate(endRaw); err != nil {
		return nil, err
	}
	if pausedRaw.Valid {
		d, err := parseDate(pausedRaw.String)
		if err != nil {
			return nil, err
		}
		s.PausedUntil = &d
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339, createdRaw); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdRaw, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339, updTimed); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", updTimed, err)
	}
	return &s, nil
}

func formatDate(t time.Time) string {
	return t.Format(common.DateOnly)
}

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(common.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(common.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return t, nil
}
