package remote

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/logging"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return NewPostgresStoreFromDB(db, logger), mock, db
}

func sampleSubscriber() *models.Subscriber {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return &models.Subscriber{
		ID:               "s1",
		Name:             "Ahmed",
		Phone:            "01012345678",
		SubscriptionType: models.SubscriptionMonthly,
		StartDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		PaidAmount:       300,
		RemainingAmount:  0,
		Status:           models.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestUpsert_Success(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO subscribers .* ON CONFLICT \(id\).*DO UPDATE SET.*WHERE subscribers\.owner_id = EXCLUDED\.owner_id;`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), "o1", sampleSubscriber())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_OwnerMismatch(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Upsert(context.Background(), "o1", sampleSubscriber())
	assert.ErrorIs(t, err, ErrOwnerMismatch)
	assert.True(t, Permanent(err))
}

func TestUpsert_DBError(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	boom := errors.New("connection refused")
	mock.ExpectExec(`INSERT INTO subscribers`).WillReturnError(boom)

	err := store.Upsert(context.Background(), "o1", sampleSubscriber())
	assert.ErrorIs(t, err, boom)
	assert.False(t, Permanent(err))
}

func TestUpdate_BuildsWhitelistedSet(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE subscribers SET paid_amount = \$2, remaining_amount = \$3 WHERE id = \$1`).
		WithArgs("s1", 100.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), "s1", map[string]any{
		"paidAmount":      100.0,
		"remainingAmount": 0.0,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_RejectsUnknownField(t *testing.T) {
	store, _, db := newStoreWithMock(t)
	defer db.Close()

	err := store.Update(context.Background(), "s1", map[string]any{"ownerId": "o2"})
	assert.ErrorIs(t, err, common.ErrUnknownField)
}

func TestUpdate_RejectsEmptyPatch(t *testing.T) {
	store, _, db := newStoreWithMock(t)
	defer db.Close()

	err := store.Update(context.Background(), "s1", map[string]any{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDelete(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM subscribers WHERE id = \$1`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectAll_MapsRows(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	paused := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "name", "phone", "subscription_type", "start_date", "end_date",
		"paid_amount", "remaining_amount", "captain", "is_archived", "is_paused",
		"paused_until", "status", "created_at", "updated_at",
	}).
		AddRow("s1", "Ahmed", "01012345678", "monthly", start, end,
			300.0, 0.0, "Mona", false, false, nil, "active", created, created).
		AddRow("s2", "Omar", "01099999999", "annual", start, end,
			1000.0, 200.0, "", false, true, paused, "paused", created, created)

	mock.ExpectQuery(`SELECT .* FROM subscribers WHERE owner_id = \$1 ORDER BY name`).
		WithArgs("o1").
		WillReturnRows(rows)

	got, err := store.SelectAll(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, models.SubscriptionMonthly, got[0].SubscriptionType)
	assert.Nil(t, got[0].PausedUntil)

	assert.True(t, got[1].IsPaused)
	require.NotNil(t, got[1].PausedUntil)
	assert.Equal(t, paused, *got[1].PausedUntil)
	assert.Equal(t, models.StatusPaused, got[1].Status)
}

func TestSelectAll_QueryError(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM subscribers`).WillReturnError(errors.New("down"))

	_, err := store.SelectAll(context.Background(), "o1")
	assert.Error(t, err)
}
