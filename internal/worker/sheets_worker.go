package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskReservationUpsert = "reservation_upsert"
	TaskScheduleSync      = "schedule_sync"
)

// sheetTaskPayload is persisted in SyncTask.Payload as JSON.
type sheetTaskPayload struct {
	ReservationID int64               `json:"reservation_id,omitempty"`
	Reservation   *models.Reservation `json:"reservation,omitempty"`
	StartDate     string              `json:"start_date,omitempty"`
	EndDate       string              `json:"end_date,omitempty"`
}

// SheetsClient is the slice of the Sheets API the worker needs.
type SheetsClient interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateScheduleSheet(ctx context.Context, startDate, endDate time.Time, daily map[string][]*models.Reservation, tables []models.Table) error
}

// SheetsWorker consumes sync_queue tasks and applies them to Google Sheets.
// Tasks land in the DB first; Redis and the in-memory channel only wake the
// worker faster, polling picks up whatever both missed.
type SheetsWorker struct {
	db            *database.DB
	sheets        SheetsClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(db *database.DB, sheets SheetsClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SheetsWorker{
		db:            db,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists a reservation task and schedules it via redis or the
// in-memory queue.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, reservationID int64, r *models.Reservation) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if reservationID == 0 && (r == nil || r.ID == 0) {
		return errors.New("reservation id is required")
	}

	payload := sheetTaskPayload{
		ReservationID: reservationID,
		Reservation:   r,
	}
	if payload.ReservationID == 0 && r != nil {
		payload.ReservationID = r.ID
	}

	return w.enqueue(ctx, taskType, payload)
}

// EnqueueSyncSchedule schedules a rebuild of the staff schedule sheet.
// Zero dates mean the default range.
func (w *SheetsWorker) EnqueueSyncSchedule(ctx context.Context, startDate, endDate time.Time) error {
	payload := sheetTaskPayload{}
	if !startDate.IsZero() {
		payload.StartDate = startDate.Format("2006-01-02")
	}
	if !endDate.IsZero() {
		payload.EndDate = endDate.Format("2006-01-02")
	}
	return w.enqueue(ctx, TaskScheduleSync, payload)
}

func (w *SheetsWorker) enqueue(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	syncTask := models.SyncTask{
		TaskType:      taskType,
		ReservationID: payload.ReservationID,
		Payload:       string(payloadBytes),
		Status:        "pending",
		CreatedAt:     time.Now(),
	}

	if err := w.db.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, syncTask); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("in-memory queue full, task dropped to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleSheetTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
	metrics.IncSyncTask("completed")
}

func (w *SheetsWorker) handleSheetTask(ctx context.Context, taskType string, payload sheetTaskPayload) error {
	switch taskType {
	case TaskReservationUpsert:
		r := payload.Reservation
		if r == nil {
			stored, err := w.db.GetReservation(ctx, payload.ReservationID)
			if err != nil {
				return fmt.Errorf("load reservation %d: %w", payload.ReservationID, err)
			}
			r = stored
		}
		return w.sheets.UpsertReservation(ctx, r)
	case TaskScheduleSync:
		return w.syncSchedule(ctx, payload)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SheetsWorker) syncSchedule(ctx context.Context, payload sheetTaskPayload) error {
	start, end := w.scheduleRange(payload)

	daily, err := w.db.GetDailyReservations(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load daily reservations: %w", err)
	}

	tables, err := w.db.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	return w.sheets.UpdateScheduleSheet(ctx, start, end, daily, tables)
}

func (w *SheetsWorker) scheduleRange(payload sheetTaskPayload) (time.Time, time.Time) {
	now := time.Now()
	start := now.AddDate(0, -models.DefaultExportRangeMonthsBefore, 0)
	end := now.AddDate(0, models.DefaultExportRangeMonthsAfter, 0)

	if payload.StartDate != "" {
		if parsed, err := time.Parse("2006-01-02", payload.StartDate); err == nil {
			start = parsed
		}
	}
	if payload.EndDate != "" {
		if parsed, err := time.Parse("2006-01-02", payload.EndDate); err == nil {
			end = parsed
		}
	}
	return start, end
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
		}
		w.pushDeadLetter(ctx, task)
		metrics.IncSyncTask("failed")
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
	metrics.IncSyncTask("retry")
}

func (w *SheetsWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
	metrics.IncSyncTask("failed")
}

func (w *SheetsWorker) decodePayload(raw string) (sheetTaskPayload, error) {
	var payload sheetTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *SheetsWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
