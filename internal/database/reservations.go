package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"

	"github.com/mattn/go-sqlite3"
)

// CreateReservation inserts the reservation in a single statement. The
// UNIQUE(table_id, date, slot) index is the arbiter for concurrent commits:
// no advisory check beforehand can replace it, so a constraint violation
// here maps to ErrSlotTaken.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
				table_id, table_name, date, slot, party_size,
				guest_name, guest_contact, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		r.TableID,
		r.TableName,
		r.DateKey(),
		r.Slot,
		r.PartySize,
		r.GuestName,
		r.GuestContact,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now

	return nil
}

// HasReservation reports whether the (table, date, slot) triple is taken.
func (db *DB) HasReservation(ctx context.Context, tableID int64, date time.Time, slot string) (bool, error) {
	query := `SELECT COUNT(*) FROM reservations WHERE table_id = ? AND date = ? AND slot = ?`
	var count int
	err := db.QueryRowContext(ctx, query, tableID, date.Format("2006-01-02"), slot).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return count > 0, nil
}

// ReservedSlots returns, per date key, the slots already taken for a table.
// One query serves a whole availability resolution.
func (db *DB) ReservedSlots(ctx context.Context, tableID int64) (map[string][]string, error) {
	query := `SELECT date, slot FROM reservations WHERE table_id = ? ORDER BY date, slot`
	rows, err := db.QueryContext(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reserved slots: %w", err)
	}
	defer rows.Close()

	reserved := make(map[string][]string)
	for rows.Next() {
		var dateKey, slot string
		if err := rows.Scan(&dateKey, &slot); err != nil {
			return nil, fmt.Errorf("failed to scan reserved slot: %w", err)
		}
		reserved[dateKey] = append(reserved[dateKey], slot)
	}
	return reserved, rows.Err()
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT id, table_id, table_name, date, slot, party_size, guest_name, guest_contact, created_at
              FROM reservations WHERE id = ?`

	var r models.Reservation
	var dateStr string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.TableID, &r.TableName, &dateStr, &r.Slot,
		&r.PartySize, &r.GuestName, &r.GuestContact, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	r.Date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation date %s: %w", dateStr, err)
	}
	return &r, nil
}

func (db *DB) GetReservationsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Reservation, error) {
	query := `SELECT id, table_id, table_name, date, slot, party_size, guest_name, guest_contact, created_at
              FROM reservations
              WHERE date >= ? AND date <= ?
              ORDER BY date ASC, slot ASC, table_id ASC`
	rows, err := db.QueryContext(ctx, query, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by date range: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r := &models.Reservation{}
		var dateStr string
		err := rows.Scan(
			&r.ID, &r.TableID, &r.TableName, &dateStr, &r.Slot,
			&r.PartySize, &r.GuestName, &r.GuestContact, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		r.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reservation date %s: %w", dateStr, err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// GetDailyReservations группирует бронирования по дням для выгрузок
func (db *DB) GetDailyReservations(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Reservation, error) {
	reservations, err := db.GetReservationsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Reservation)
	for _, r := range reservations {
		daily[r.DateKey()] = append(daily[r.DateKey()], r)
	}
	return daily, nil
}
