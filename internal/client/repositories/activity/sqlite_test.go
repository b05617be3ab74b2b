package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE activity_log (
  id TEXT PRIMARY KEY,
  subscriber_id TEXT,
  subscriber_name TEXT NOT NULL,
  action_type TEXT NOT NULL,
  action_details BLOB,
  previous_data BLOB,
  created_at TEXT NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func TestAppendAndList(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := models.NewActivityLogEntry("s1", "Ahmed", models.ActionAdd,
		map[string]string{"plan": "monthly"}, nil, base)
	second := models.NewActivityLogEntry("s1", "Ahmed", models.ActionUpdate,
		nil, map[string]any{"name": "Ahmed"}, base.Add(time.Minute))

	require.NoError(t, r.Append(ctx, first))
	require.NoError(t, r.Append(ctx, second))

	got, err := r.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first
	assert.Equal(t, models.ActionUpdate, got[0].ActionType)
	assert.Equal(t, map[string]any{"name": "Ahmed"}, got[0].PreviousData)
	assert.Equal(t, models.ActionAdd, got[1].ActionType)
	assert.Equal(t, map[string]string{"plan": "monthly"}, got[1].ActionDetails)

	limited, err := r.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, models.ActionUpdate, limited[0].ActionType)
}

func TestGetByID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := models.NewActivityLogEntry("s1", "Ahmed", models.ActionRenew,
		map[string]string{"paid": "300"}, map[string]any{"endDate": "2025-07-01T00:00:00Z"}, time.Now())
	require.NoError(t, r.Append(ctx, e))

	got, err := r.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	require.NotNil(t, got.SubscriberID)
	assert.Equal(t, "s1", *got.SubscriberID)
	assert.Equal(t, map[string]any{"endDate": "2025-07-01T00:00:00Z"}, got.PreviousData)

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDetachSubscriber(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := models.NewActivityLogEntry("s1", "Ahmed", models.ActionDelete, nil,
		map[string]any{"name": "Ahmed"}, time.Now())
	require.NoError(t, r.Append(ctx, e))
	require.NoError(t, r.DetachSubscriber(ctx, "s1"))

	got, err := r.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SubscriberID)
	// name survives for display
	assert.Equal(t, "Ahmed", got.SubscriberName)
}

func TestClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, models.NewActivityLogEntry("s1", "a", models.ActionAdd, nil, nil, time.Now())))
	require.NoError(t, r.Clear(ctx))

	got, err := r.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
