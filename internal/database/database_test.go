package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTestTables(t *testing.T, db *DB) []models.Table {
	t.Helper()
	tables := []models.Table{
		{ID: 1, Name: "Window", Capacity: 4, Room: "Main hall"},
		{ID: 2, Name: "Corner", Capacity: 2, Room: "Main hall"},
		{ID: 3, Name: "Banquet", Capacity: 8, Room: "Terrace"},
	}
	require.NoError(t, db.SeedTables(context.Background(), tables))
	return tables
}

func testReservation(tableID int64, date time.Time, slot string) *models.Reservation {
	return &models.Reservation{
		TableID:      tableID,
		TableName:    "Window",
		Date:         date,
		Slot:         slot,
		PartySize:    2,
		GuestName:    "Anna",
		GuestContact: "anna@example.com",
	}
}
