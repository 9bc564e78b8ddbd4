package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tablebook/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu           sync.RWMutex
	tablesCache  map[int64]models.Table
	sortedTables []models.Table
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("База данных инициализирована")
	return &DB{
		DB:          sqlDB,
		logger:      logger,
		tablesCache: make(map[int64]models.Table),
	}, nil
}

func createSchema(db *sql.DB) error {
	queries := []string{
		// Реестр столов
		`CREATE TABLE IF NOT EXISTS tables (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            capacity INTEGER NOT NULL,
            room TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Журнал бронирований. Уникальность тройки закрывает гонку
		// check-then-write: параллельные вставки разрешает сама БД.
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            table_id INTEGER NOT NULL,
            table_name TEXT NOT NULL,
            date TEXT NOT NULL,
            slot TEXT NOT NULL,
            party_size INTEGER NOT NULL,
            guest_name TEXT NOT NULL,
            guest_contact TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(table_id, date, slot)
        )`,
		// Очередь синхронизации с Google Sheets
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_table_id ON reservations(table_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetTables кэширует реестр столов для быстрых проверок. Список держим
// отсортированным по id: порядок в конфиге значения не имеет.
func (db *DB) SetTables(tables []models.Table) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tablesCache = make(map[int64]models.Table, len(tables))
	for _, table := range tables {
		db.tablesCache[table.ID] = table
	}
	db.sortedTables = append([]models.Table(nil), tables...)
	sort.Slice(db.sortedTables, func(i, j int) bool {
		return db.sortedTables[i].ID < db.sortedTables[j].ID
	})
}
