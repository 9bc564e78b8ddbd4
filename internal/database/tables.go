package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"
)

// SeedTables переносит реестр столов из конфигурации в БД
func (db *DB) SeedTables(ctx context.Context, tables []models.Table) error {
	query := `INSERT INTO tables (id, name, capacity, room, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  capacity = excluded.capacity,
                  room = excluded.room,
                  updated_at = excluded.updated_at`

	now := time.Now()
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, query, table.ID, table.Name, table.Capacity, table.Room, now, now); err != nil {
			return fmt.Errorf("failed to seed table %d: %w", table.ID, err)
		}
	}

	db.SetTables(tables)
	return nil
}

func (db *DB) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	db.mu.RLock()
	cached, ok := db.tablesCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	query := `SELECT id, name, capacity, room, created_at, updated_at FROM tables WHERE id = ?`

	var table models.Table
	err := db.QueryRowContext(ctx, query, id).Scan(
		&table.ID, &table.Name, &table.Capacity, &table.Room, &table.CreatedAt, &table.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return &table, nil
}

func (db *DB) ListTables(ctx context.Context) ([]models.Table, error) {
	db.mu.RLock()
	if len(db.sortedTables) > 0 {
		tables := append([]models.Table(nil), db.sortedTables...)
		db.mu.RUnlock()
		return tables, nil
	}
	db.mu.RUnlock()

	query := `SELECT id, name, capacity, room, created_at, updated_at FROM tables ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var t models.Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, &t.Room, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
