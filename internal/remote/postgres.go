package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/logging"
	"github.com/gymdesk/gymsync/internal/remote/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore implements Store over the hosted PostgreSQL database. CRUD
// goes through database/sql on the pgx driver; the notification listener
// holds its own native connection (see listener.go).
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger logging.Logger
}

// NewPostgresStore connects to the remote store at dsn.
func NewPostgresStore(dsn string, logger logging.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	return &PostgresStore{db: db, dsn: dsn, logger: logger.With("module", "remote")}, nil
}

// NewPostgresStoreFromDB wraps an existing handle. Used by tests.
func NewPostgresStoreFromDB(db *sql.DB, logger logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With("module", "remote")}
}

// RunMigrations applies the embedded schema migrations, including the
// change-notification trigger.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const subscriberColumns = `id, name, phone, subscription_type, start_date, end_date,
	paid_amount, remaining_amount, captain, is_archived, is_paused, paused_until,
	status, created_at, updated_at`

// SelectAll returns every subscriber row owned by ownerID.
func (s *PostgresStore) SelectAll(ctx context.Context, ownerID string) ([]models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE owner_id = $1 ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscribers: %w", err)
	}
	defer rows.Close()

	var result []models.Subscriber
	for rows.Next() {
		var (
			item            models.Subscriber
			subType, status string
			paused          sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Phone, &subType,
			&item.StartDate, &item.EndDate, &item.PaidAmount, &item.RemainingAmount,
			&item.Captain, &item.IsArchived, &item.IsPaused, &paused,
			&status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.SubscriptionType = models.SubscriptionType(subType)
		item.Status = models.Status(status)
		item.StartDate = models.StartOfDay(item.StartDate)
		item.EndDate = models.StartOfDay(item.EndDate)
		if paused.Valid {
			d := models.StartOfDay(paused.Time)
			item.PausedUntil = &d
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or fully replaces a row by id for a specific owner. If a
// conflicting row exists for another owner, no row is updated and
// ErrOwnerMismatch is returned.
func (s *PostgresStore) Upsert(ctx context.Context, ownerID string, sub *models.Subscriber) error {
	query := `
		INSERT INTO subscribers (owner_id, ` + subscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			subscription_type = EXCLUDED.subscription_type,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			paid_amount = EXCLUDED.paid_amount,
			remaining_amount = EXCLUDED.remaining_amount,
			captain = EXCLUDED.captain,
			is_archived = EXCLUDED.is_archived,
			is_paused = EXCLUDED.is_paused,
			paused_until = EXCLUDED.paused_until,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
			WHERE subscribers.owner_id = EXCLUDED.owner_id;
	`
	var paused any
	if sub.PausedUntil != nil {
		paused = *sub.PausedUntil
	}
	res, err := s.db.ExecContext(ctx, query,
		ownerID, sub.ID, sub.Name, sub.Phone, string(sub.SubscriptionType),
		sub.StartDate, sub.EndDate, sub.PaidAmount, sub.RemainingAmount,
		sub.Captain, sub.IsArchived, sub.IsPaused, paused,
		string(sub.Status), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return ErrOwnerMismatch
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Update applies a partial patch keyed by subscriber id. An absent row is a
// no-op, which keeps re-applied patches harmless.
func (s *PostgresStore) Update(ctx context.Context, id string, patch map[string]any) error {
	clause, args, err := buildSetClause(patch)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE subscribers SET %s WHERE id = $1`, clause)
	if _, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...); err != nil {
		return fmt.Errorf("failed to update subscriber %s: %w", id, err)
	}
	return nil
}

// Delete removes the row with the given id. Deleting an absent row is a
// no-op.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete subscriber %s: %w", id, err)
	}
	return nil
}
