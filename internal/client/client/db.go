// Package client opens the local durable store and bundles the repositories
// built on top of it.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gymdesk/gymsync/internal/client/migrations"
	"github.com/gymdesk/gymsync/internal/client/repositories/activity"
	"github.com/gymdesk/gymsync/internal/client/repositories/metadata"
	"github.com/gymdesk/gymsync/internal/client/repositories/pending"
	"github.com/gymdesk/gymsync/internal/client/repositories/subscribers"
	"github.com/pressly/goose/v3"
)

// Repositories bundles every local-store repository plus the underlying DB
// handle, which services use to run multi-repository transactions.
type Repositories struct {
	DB          *sql.DB
	Subscribers subscribers.Repository
	Pending     pending.Repository
	Metadata    metadata.Repository
	Activity    activity.Repository
}

// RunMigrations applies the embedded goose migrations to the local store.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if necessary) the local SQLite store at dsn,
// migrates it, and returns the repository bundle.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:          db,
		Subscribers: subscribers.NewSQLiteRepository(db),
		Pending:     pending.NewSQLiteRepository(db),
		Metadata:    metadata.NewSQLiteRepository(db),
		Activity:    activity.NewSQLiteRepository(db),
	}, nil
}

// Close releases the underlying database handle.
func (r *Repositories) Close() error {
	return r.DB.Close()
}
