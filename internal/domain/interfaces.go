package domain

import (
	"context"
	"time"

	"tablebook/internal/models"
)

// Ledger is the authoritative record of reservations. Uniqueness of the
// (table, date, slot) triple is enforced by the implementation, not by
// callers.
type Ledger interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	HasReservation(ctx context.Context, tableID int64, date time.Time, slot string) (bool, error)
	ReservedSlots(ctx context.Context, tableID int64) (map[string][]string, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	GetDailyReservations(ctx context.Context, start, end time.Time) (map[string][]*models.Reservation, error)
}

// Registry exposes the fixed table inventory.
type Registry interface {
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
}

// StateRepository stores wizard session state keyed by an opaque token.
type StateRepository interface {
	GetState(ctx context.Context, token string) (*models.GuestState, error)
	SetState(ctx context.Context, state *models.GuestState) error
	ClearState(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, token string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservationID int64, r *models.Reservation) error
	EnqueueSyncSchedule(ctx context.Context, startDate, endDate time.Time) error
}
