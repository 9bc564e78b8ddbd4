package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/calendar"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// ReservationRequest carries everything the committer needs for one
// booking attempt.
type ReservationRequest struct {
	TableID      int64
	Date         time.Time
	Slot         string
	PartySize    int64
	GuestName    string
	GuestContact string
}

type BookingService struct {
	ledger       domain.Ledger
	registry     domain.Registry
	cal          *calendar.Calendar
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(
	ledger domain.Ledger,
	registry domain.Registry,
	cal *calendar.Calendar,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		ledger:       ledger,
		registry:     registry,
		cal:          cal,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		now:          time.Now,
		logger:       logger,
	}
}

// SetClock overrides the time source.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *BookingService) ListTables(ctx context.Context) ([]models.Table, error) {
	tables, err := s.registry.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
	}
	return tables, nil
}

func (s *BookingService) GetTable(ctx context.Context, tableID int64) (*models.Table, error) {
	table, err := s.registry.GetTable(ctx, tableID)
	if errors.Is(err, database.ErrTableNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
	}
	return table, nil
}

// ResolveAvailability returns, for each offerable date of the horizon, the
// slots of the table still free. Fully booked dates are dropped; ResolveSlots
// is the per-date detail view that distinguishes "all taken" from "not
// offered". Чтение ничего не резервирует, картина может устареть сразу после
// ответа.
func (s *BookingService) ResolveAvailability(ctx context.Context, tableID int64) ([]models.DayAvailability, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	reserved, err := s.ledger.ReservedSlots(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
	}

	// Один момент времени на всю выборку, чтобы горизонт не поплыл
	now := s.now()
	dates := s.cal.Dates(now)

	days := make([]models.DayAvailability, 0, len(dates))
	for _, date := range dates {
		taken := make(map[string]bool)
		for _, slot := range reserved[date.Format("2006-01-02")] {
			taken[slot] = true
		}

		free := make([]string, 0, len(s.cal.Slots()))
		for _, slot := range s.cal.Slots() {
			if !taken[slot] {
				free = append(free, slot)
			}
		}
		if len(free) == 0 {
			continue
		}

		days = append(days, models.DayAvailability{
			Date:      date,
			TableID:   tableID,
			FreeSlots: free,
		})
	}

	return days, nil
}

// ResolveSlots returns the free slots of one table on one date.
func (s *BookingService) ResolveSlots(ctx context.Context, tableID int64, date time.Time) ([]string, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	if !s.cal.DateOffered(s.now(), date) {
		return nil, database.ErrInvalidSelection
	}

	free := make([]string, 0, len(s.cal.Slots()))
	for _, slot := range s.cal.Slots() {
		taken, err := s.ledger.HasReservation(ctx, tableID, date, slot)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
		}
		if !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

// SubmitReservation validates the request and commits it. The advisory
// availability check only improves the error message; занятость тройки
// окончательно решает уникальный индекс при вставке.
func (s *BookingService) SubmitReservation(ctx context.Context, req ReservationRequest) (*models.Reservation, error) {
	// 1. Стол существует
	table, err := s.GetTable(ctx, req.TableID)
	if err != nil {
		return nil, err
	}

	// 2. Дата и слот входят в текущее предложение
	if !s.cal.DateOffered(s.now(), req.Date) || !s.cal.HasSlot(req.Slot) {
		return nil, database.ErrInvalidSelection
	}

	// 3. Компания помещается за стол: 1 <= partySize <= capacity
	if req.PartySize < 1 || req.PartySize > table.Capacity {
		metrics.IncCapacityRejection()
		return nil, &database.CapacityError{TableID: table.ID, Capacity: table.Capacity}
	}

	// 4. Предварительная проверка занятости
	taken, err := s.ledger.HasReservation(ctx, req.TableID, req.Date, req.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
	}
	if taken {
		metrics.IncReservationConflict()
		return nil, database.ErrSlotTaken
	}

	// 5. Коммит
	reservation := &models.Reservation{
		TableID:      table.ID,
		TableName:    table.Name,
		Date:         calendar.Midnight(req.Date),
		Slot:         req.Slot,
		PartySize:    req.PartySize,
		GuestName:    req.GuestName,
		GuestContact: req.GuestContact,
	}

	err = s.ledger.CreateReservation(ctx, reservation)
	if errors.Is(err, database.ErrSlotTaken) {
		metrics.IncReservationConflict()
		return nil, database.ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrStorageUnavailable, err)
	}

	metrics.IncReservationCreated()
	s.logger.Info().
		Int64("reservation_id", reservation.ID).
		Int64("table_id", reservation.TableID).
		Str("date", reservation.DateKey()).
		Str("slot", reservation.Slot).
		Msg("reservation committed")

	s.publishConfirmed(reservation)
	s.enqueueSync(ctx, reservation)

	return reservation, nil
}

func (s *BookingService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.ledger.GetReservation(ctx, id)
}

func (s *BookingService) GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	return s.ledger.GetReservationsByDateRange(ctx, start, end)
}

func (s *BookingService) GetDailyReservations(ctx context.Context, start, end time.Time) (map[string][]*models.Reservation, error) {
	return s.ledger.GetDailyReservations(ctx, start, end)
}

func (s *BookingService) publishConfirmed(r *models.Reservation) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		TableID:       r.TableID,
		TableName:     r.TableName,
		Date:          r.DateKey(),
		Slot:          r.Slot,
		PartySize:     r.PartySize,
		GuestName:     r.GuestName,
		CreatedAt:     r.CreatedAt,
	}

	if err := s.eventBus.PublishJSON(events.EventReservationConfirmed, payload); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, r *models.Reservation) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, "reservation_upsert", r.ID, r); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("sheets enqueue error")
	}
	if err := s.sheetsWorker.EnqueueSyncSchedule(ctx, time.Time{}, time.Time{}); err != nil {
		s.logger.Error().Err(err).Msg("schedule sync enqueue error")
	}
}
