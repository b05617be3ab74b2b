package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	now := date(2025, 6, 15)

	tests := []struct {
		name     string
		endDate  time.Time
		isPaused bool
		want     Status
	}{
		{"well in the future", now.AddDate(0, 0, 30), false, StatusActive},
		{"eight days left", now.AddDate(0, 0, 8), false, StatusActive},
		{"seven days left", now.AddDate(0, 0, 7), false, StatusExpiring},
		{"expires today", now, false, StatusExpiring},
		{"expired yesterday", now.AddDate(0, 0, -1), false, StatusExpired},
		{"long expired", now.AddDate(0, 0, -90), false, StatusExpired},
		{"paused wins over expired", now.AddDate(0, 0, -90), true, StatusPaused},
		{"paused wins over active", now.AddDate(0, 0, 90), true, StatusPaused},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.endDate, 0, tc.isPaused, now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeriveStatus_Deterministic(t *testing.T) {
	now := date(2025, 1, 1)
	end := date(2025, 1, 5)
	first := DeriveStatus(end, 100, false, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveStatus(end, 100, false, now))
	}
}

func TestDeriveStatus_IgnoresRemainingAmount(t *testing.T) {
	now := date(2025, 6, 15)
	end := now.AddDate(0, 0, 30)
	assert.Equal(t, DeriveStatus(end, 0, false, now), DeriveStatus(end, 500, false, now))
}

func TestDeriveStatus_IgnoresTimeOfDay(t *testing.T) {
	end := date(2025, 6, 22)
	morning := time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)
	night := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, StatusExpiring, DeriveStatus(end, 0, false, morning))
	assert.Equal(t, StatusExpiring, DeriveStatus(end, 0, false, night))
}

func TestDaysBetween(t *testing.T) {
	a := date(2025, 3, 1)
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, 5, DaysBetween(a, a.AddDate(0, 0, 5)))
	assert.Equal(t, -5, DaysBetween(a.AddDate(0, 0, 5), a))
	// hours never round into an extra day
	assert.Equal(t, 1, DaysBetween(
		time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC),
	))
}
