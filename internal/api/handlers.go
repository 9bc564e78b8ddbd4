package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/models"
	"tablebook/internal/service"
)

// BookingService is the booking surface the HTTP layer depends on.
type BookingService interface {
	ListTables(ctx context.Context) ([]models.Table, error)
	ResolveAvailability(ctx context.Context, tableID int64) ([]models.DayAvailability, error)
	ResolveSlots(ctx context.Context, tableID int64, date time.Time) ([]string, error)
	SubmitReservation(ctx context.Context, req service.ReservationRequest) (*models.Reservation, error)
}

// StateService drives wizard sessions for the HTTP layer.
type StateService interface {
	StartSession(ctx context.Context) (*models.GuestState, error)
	GetSession(ctx context.Context, token string) (*models.GuestState, error)
	AdvanceSession(ctx context.Context, token, step string, data map[string]interface{}) (*models.GuestState, error)
	ClearSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, token string) (bool, error)
}

// Exporter renders the schedule workbook for download.
type Exporter interface {
	BuildSchedule(ctx context.Context, startDate, endDate time.Time) (*bytes.Buffer, string, error)
}

func (s *HTTPServer) handleTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tables, err := s.booking.ListTables(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *HTTPServer) handleTableSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tables/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	tableID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || tableID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid table id")
		return
	}

	switch parts[1] {
	case "availability":
		s.handleAvailability(w, r, tableID)
	case "slots":
		s.handleSlots(w, r, tableID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, tableID int64) {
	days, err := s.booking.ResolveAvailability(r.Context(), tableID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	results := make([]map[string]any, 0, len(days))
	for _, day := range days {
		results = append(results, map[string]any{
			"date":       day.Date.Format("2006-01-02"),
			"free_slots": day.FreeSlots,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table_id": tableID,
		"days":     results,
	})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request, tableID int64) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	free, err := s.booking.ResolveSlots(r.Context(), tableID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table_id":   tableID,
		"date":       dateStr,
		"free_slots": free,
	})
}

type reservationRequestBody struct {
	TableID      int64  `json:"table_id"`
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	PartySize    int64  `json:"party_size"`
	GuestName    string `json:"guest_name"`
	GuestContact string `json:"guest_contact"`
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body reservationRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(body.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	reservation, err := s.booking.SubmitReservation(r.Context(), service.ReservationRequest{
		TableID:      body.TableID,
		Date:         date,
		Slot:         body.Slot,
		PartySize:    body.PartySize,
		GuestName:    strings.TrimSpace(body.GuestName),
		GuestContact: strings.TrimSpace(body.GuestContact),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservationResponse(reservation))
}

func (s *HTTPServer) handleStartWizard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	state, err := s.states.StartSession(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": state.Token,
		"step":  state.CurrentStep,
	})
}

func (s *HTTPServer) handleWizardSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/wizard/")
	parts := strings.Split(rest, "/")

	token := strings.TrimSpace(parts[0])
	if token == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	allowed, err := s.states.CheckRateLimit(r.Context(), token)
	if err == nil && !allowed {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	switch {
	case len(parts) == 1 && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		s.handleAdvanceWizard(w, r, token)
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetWizard(w, r, token)
	case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
		s.handleConfirmWizard(w, r, token)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

var wizardSteps = map[string]bool{
	models.StepSelectTable: true,
	models.StepSelectDate:  true,
	models.StepSelectSlot:  true,
	models.StepGuestData:   true,
	models.StepReady:       true,
}

func (s *HTTPServer) handleAdvanceWizard(w http.ResponseWriter, r *http.Request, token string) {
	type request struct {
		Step string                 `json:"step"`
		Data map[string]interface{} `json:"data"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !wizardSteps[body.Step] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown step: %s", body.Step))
		return
	}

	state, err := s.states.AdvanceSession(r.Context(), token, body.Step, body.Data)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to advance session")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": state.Token,
		"step":  state.CurrentStep,
		"data":  state.TempData,
	})
}

func (s *HTTPServer) handleGetWizard(w http.ResponseWriter, r *http.Request, token string) {
	state, err := s.states.GetSession(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to get session")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": state.Token,
		"step":  state.CurrentStep,
		"data":  state.TempData,
	})
}

func (s *HTTPServer) handleConfirmWizard(w http.ResponseWriter, r *http.Request, token string) {
	state, err := s.states.GetSession(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to get session")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	req := service.ReservationRequest{
		TableID:      state.GetInt64("table_id"),
		Date:         state.GetDate("date"),
		Slot:         state.GetString("slot"),
		PartySize:    state.GetInt64("party_size"),
		GuestName:    state.GetString("guest_name"),
		GuestContact: state.GetString("guest_contact"),
	}

	reservation, err := s.booking.SubmitReservation(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Сессия одноразовая: после коммита чистим
	if err := s.states.ClearSession(r.Context(), token); err != nil {
		s.logger.Warn().Err(err).Str("token", token).Msg("clear session after confirm")
	}

	writeJSON(w, http.StatusCreated, reservationResponse(reservation))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	now := time.Now()
	start := now.AddDate(0, -models.DefaultExportRangeMonthsBefore, 0)
	end := now.AddDate(0, models.DefaultExportRangeMonthsAfter, 0)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date before start date")
		return
	}

	buf, fileName, err := s.exporter.BuildSchedule(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func reservationResponse(r *models.Reservation) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"table_id":   r.TableID,
		"table_name": r.TableName,
		"date":       r.DateKey(),
		"slot":       r.Slot,
		"party_size": r.PartySize,
		"guest_name": r.GuestName,
	}
}

// writeServiceError maps booking errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var capErr *database.CapacityError
	switch {
	case errors.Is(err, database.ErrTableNotFound):
		writeError(w, http.StatusNotFound, "table not found")
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "party size exceeds table capacity",
			"capacity": capErr.Capacity,
		})
	case errors.Is(err, database.ErrInvalidSelection):
		writeError(w, http.StatusUnprocessableEntity, "date or slot is not offered")
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot already taken")
	case errors.Is(err, database.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
