package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	r := testReservation(1, date, "13-15")
	require.NoError(t, db.CreateReservation(ctx, r))
	assert.NotZero(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	stored, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-07", stored.DateKey())
	assert.Equal(t, "13-15", stored.Slot)
	assert.Equal(t, "Anna", stored.GuestName)
}

func TestCreateReservationDuplicateTriple(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, date, "13-15")))

	// Та же тройка, другой гость
	dup := testReservation(1, date, "13-15")
	dup.GuestName = "Boris"
	err := db.CreateReservation(ctx, dup)
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Соседний слот того же стола свободен
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, date, "15-17")))
	// Тот же слот другого стола свободен
	require.NoError(t, db.CreateReservation(ctx, testReservation(2, date, "13-15")))
	// Тот же стол и слот на другую дату свободен
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, date.AddDate(0, 0, 1), "13-15")))
}

func TestHasReservation(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	date := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateReservation(ctx, testReservation(2, date, "15-17")))

	taken, err := db.HasReservation(ctx, 2, date, "15-17")
	require.NoError(t, err)
	assert.True(t, taken)

	free, err := db.HasReservation(ctx, 2, date, "13-15")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestReservedSlots(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	sat := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	sun := sat.AddDate(0, 0, 1)
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sat, "13-15")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sat, "15-17")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sun, "13-15")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(2, sat, "13-15")))

	reserved, err := db.ReservedSlots(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"13-15", "15-17"}, reserved["2026-03-07"])
	assert.Equal(t, []string{"13-15"}, reserved["2026-03-08"])
	// Бронь второго стола не попадает в карту первого
	assert.Len(t, reserved, 2)
}

func TestGetReservationsByDateRange(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	sat := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sat, "15-17")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sat, "13-15")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(2, sat.AddDate(0, 0, 14), "13-15")))

	inRange, err := db.GetReservationsByDateRange(ctx, sat, sat.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	// Сортировка по дате, затем по слоту
	assert.Equal(t, "13-15", inRange[0].Slot)
	assert.Equal(t, "15-17", inRange[1].Slot)

	all, err := db.GetReservationsByDateRange(ctx, sat, sat.AddDate(0, 0, 28))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetDailyReservations(t *testing.T) {
	db := newTestDB(t)
	seedTestTables(t, db)
	ctx := context.Background()

	sat := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	sun := sat.AddDate(0, 0, 1)
	require.NoError(t, db.CreateReservation(ctx, testReservation(1, sat, "13-15")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(2, sat, "13-15")))
	require.NoError(t, db.CreateReservation(ctx, testReservation(3, sun, "15-17")))

	daily, err := db.GetDailyReservations(ctx, sat, sun)
	require.NoError(t, err)
	assert.Len(t, daily["2026-03-07"], 2)
	assert.Len(t, daily["2026-03-08"], 1)
}
