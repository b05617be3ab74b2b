package pending

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/internal/client/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE pending_changes (
  id TEXT PRIMARY KEY,
  op TEXT NOT NULL,
  subscriber_id TEXT NOT NULL,
  body BLOB,
  ts INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  dead INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func TestAppendAndList_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sub := &models.Subscriber{ID: "s1", Name: "Ahmed", Phone: "01012345678",
		SubscriptionType: models.SubscriptionMonthly,
		StartDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:        now, UpdatedAt: now,
	}

	up := models.NewUpsert(sub, now)
	patch := models.NewUpdate("s1", map[string]any{"paidAmount": 100.0}, now.Add(time.Second))
	del := models.NewDelete("s2", now.Add(2*time.Second))

	require.NoError(t, r.Append(ctx, up))
	require.NoError(t, r.Append(ctx, patch))
	require.NoError(t, r.Append(ctx, del))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.OpUpsert, got[0].Op)
	require.NotNil(t, got[0].Payload)
	assert.Equal(t, "Ahmed", got[0].Payload.Name)

	assert.Equal(t, models.OpUpdate, got[1].Op)
	assert.Equal(t, map[string]any{"paidAmount": 100.0}, got[1].Patch)

	assert.Equal(t, models.OpDelete, got[2].Op)
	assert.Nil(t, got[2].Payload)
	assert.Nil(t, got[2].Patch)
}

func TestList_OrdersByTimestampNotInsertionOrder(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// appended out of order on purpose
	later := models.NewDelete("b", base.Add(10*time.Second))
	earlier := models.NewDelete("a", base)

	require.NoError(t, r.Append(ctx, later))
	require.NoError(t, r.Append(ctx, earlier))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SubscriberID)
	assert.Equal(t, "b", got[1].SubscriberID)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestRemove(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := models.NewDelete("s1", time.Now())
	require.NoError(t, r.Append(ctx, c))
	require.NoError(t, r.Remove(ctx, c.ID))

	got, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	// removing twice is harmless
	assert.NoError(t, r.Remove(ctx, c.ID))
}

func TestBumpAttemptsAndMarkDead(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := models.NewDelete("s1", time.Now())
	require.NoError(t, r.Append(ctx, c))

	require.NoError(t, r.BumpAttempts(ctx, c.ID))
	require.NoError(t, r.BumpAttempts(ctx, c.ID))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Attempts)

	require.NoError(t, r.MarkDead(ctx, c.ID))

	live, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)

	dead, err := r.ListDead(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.True(t, dead[0].Dead)

	nLive, nDead, err := r.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, nLive)
	assert.Equal(t, 1, nDead)
}
