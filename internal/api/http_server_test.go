package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tablebook/internal/calendar"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/export"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// Среда 2026-03-04; первые выходные горизонта 07.03 и 08.03.
var (
	fixedNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = db.SeedTables(context.Background(), []models.Table{
		{ID: 1, Name: "Window", Capacity: 4},
		{ID: 2, Name: "Corner", Capacity: 2},
	})
	if err != nil {
		t.Fatalf("seed tables: %v", err)
	}
	return db
}

func newTestHTTPServer(t *testing.T, db *database.DB, cfg config.APIConfig) *HTTPServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cal := calendar.New(28, nil, nil)

	booking := service.NewBookingService(db, db, cal, nil, nil, &logger)
	booking.SetClock(func() time.Time { return fixedNow })

	stateRepo := repository.NewMemoryStateRepository(time.Minute)
	states := service.NewStateService(stateRepo, 100, time.Minute, &logger)

	exporter := export.NewExporter(db, cal, &logger)

	serverCfg := config.ServerConfig{Port: 0, ReadTimeoutSec: 5, WriteTimeoutSec: 15}
	return NewHTTPServer(cfg, serverCfg, booking, states, exporter, &logger)
}

func startTestServer(t *testing.T, db *database.DB) *httptest.Server {
	t.Helper()
	server := newTestHTTPServer(t, db, config.APIConfig{})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestListTables(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/tables")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Tables []models.Table `json:"tables"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(body.Tables))
	}
	if body.Tables[0].Name != "Window" {
		t.Fatalf("expected Window first, got %s", body.Tables[0].Name)
	}
}

func TestAvailability(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateReservation(context.Background(), &models.Reservation{
		TableID: 1, Date: saturday, Slot: "13-15", PartySize: 2, GuestName: "Anna",
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/tables/1/availability")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		TableID int64 `json:"table_id"`
		Days    []struct {
			Date      string   `json:"date"`
			FreeSlots []string `json:"free_slots"`
		} `json:"days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	// 28 дней от среды 04.03 дают ровно 8 выходных дат
	if len(body.Days) != 8 {
		t.Fatalf("expected 8 days, got %d", len(body.Days))
	}
	if body.Days[0].Date != "2026-03-07" {
		t.Fatalf("expected first date 2026-03-07, got %s", body.Days[0].Date)
	}
	if len(body.Days[0].FreeSlots) != 1 || body.Days[0].FreeSlots[0] != "15-17" {
		t.Fatalf("expected [15-17] on 2026-03-07, got %v", body.Days[0].FreeSlots)
	}
	if len(body.Days[1].FreeSlots) != 2 {
		t.Fatalf("expected both slots free on 2026-03-08, got %v", body.Days[1].FreeSlots)
	}
}

func TestAvailabilityUnknownTable(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/tables/99/availability")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSlots(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/tables/1/slots?date=2026-03-07")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		FreeSlots []string `json:"free_slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.FreeSlots) != 2 {
		t.Fatalf("expected 2 free slots, got %v", body.FreeSlots)
	}
}

func TestSlotsOutsideHorizon(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	// Четверг внутри горизонта не предлагается
	resp, err := http.Get(ts.URL + "/api/v1/tables/1/slots?date=2026-03-05")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateReservation(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	reqBody := `{"table_id":1,"date":"2026-03-07","slot":"13-15","party_size":2,"guest_name":"Anna","guest_contact":"+7 900 000-00-00"}`
	resp, err := http.Post(ts.URL+"/api/v1/reservations", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var body struct {
		ID        int64  `json:"id"`
		TableName string `json:"table_name"`
		Date      string `json:"date"`
		Slot      string `json:"slot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ID == 0 {
		t.Fatalf("expected assigned reservation id")
	}
	if body.TableName != "Window" || body.Date != "2026-03-07" || body.Slot != "13-15" {
		t.Fatalf("unexpected reservation body: %+v", body)
	}
}

func TestCreateReservationErrors(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateReservation(context.Background(), &models.Reservation{
		TableID: 1, Date: saturday, Slot: "13-15", PartySize: 2, GuestName: "First",
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	ts := startTestServer(t, db)

	post := func(t *testing.T, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+"/api/v1/reservations", "application/json", strings.NewReader(body))
		assert.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("SlotTaken", func(t *testing.T) {
		resp := post(t, `{"table_id":1,"date":"2026-03-07","slot":"13-15","party_size":2,"guest_name":"Second"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("UnknownTable", func(t *testing.T) {
		resp := post(t, `{"table_id":99,"date":"2026-03-07","slot":"13-15","party_size":2,"guest_name":"Anna"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("WeekdayDate", func(t *testing.T) {
		resp := post(t, `{"table_id":1,"date":"2026-03-05","slot":"13-15","party_size":2,"guest_name":"Anna"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		resp := post(t, `{"table_id":1,"date":"2026-03-07","slot":"17-19","party_size":2,"guest_name":"Anna"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		resp := post(t, `{"table_id":2,"date":"2026-03-07","slot":"13-15","party_size":5,"guest_name":"Anna"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body struct {
			Capacity int64 `json:"capacity"`
		}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, int64(2), body.Capacity)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		resp := post(t, `not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InvalidDate", func(t *testing.T) {
		resp := post(t, `{"table_id":1,"date":"07.03.2026","slot":"13-15","party_size":2,"guest_name":"Anna"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestWizardFlow(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	// Начало сессии
	resp, err := http.Post(ts.URL+"/api/v1/wizard", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("start wizard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var session struct {
		Token string `json:"token"`
		Step  string `json:"step"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" || session.Step != models.StepSelectTable {
		t.Fatalf("unexpected session: %+v", session)
	}

	advance := func(t *testing.T, step, data string) {
		t.Helper()
		body := fmt.Sprintf(`{"step":%q,"data":%s}`, step, data)
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/wizard/"+session.Token, strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("advance to %s: expected 200, got %d", step, resp.StatusCode)
		}
	}

	advance(t, models.StepSelectDate, `{"table_id":1}`)
	advance(t, models.StepSelectSlot, `{"date":"2026-03-07"}`)
	advance(t, models.StepGuestData, `{"slot":"13-15"}`)
	advance(t, models.StepReady, `{"party_size":2,"guest_name":"Anna","guest_contact":"+7 900 000-00-00"}`)

	// Подтверждение
	resp2, err := http.Post(ts.URL+"/api/v1/wizard/"+session.Token+"/confirm", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp2.StatusCode)
	}

	var reservation struct {
		ID   int64  `json:"id"`
		Date string `json:"date"`
		Slot string `json:"slot"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&reservation); err != nil {
		t.Fatalf("decode reservation: %v", err)
	}
	if reservation.ID == 0 || reservation.Date != "2026-03-07" || reservation.Slot != "13-15" {
		t.Fatalf("unexpected reservation: %+v", reservation)
	}

	// Сессия после подтверждения очищена
	resp3, err := http.Get(ts.URL + "/api/v1/wizard/" + session.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after confirm, got %d", resp3.StatusCode)
	}
}

func TestWizardUnknownSession(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/wizard/no-such-token",
		strings.NewReader(`{"step":"select_date","data":{}}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWizardUnknownStep(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Post(ts.URL+"/api/v1/wizard", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("start wizard: %v", err)
	}
	defer resp.Body.Close()
	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/wizard/"+session.Token,
		strings.NewReader(`{"step":"teleport","data":{}}`))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp2.StatusCode)
	}
}

func TestExport(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/export?start=2026-03-07&end=2026-03-15")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "schedule_2026-03-07_to_2026-03-15.xlsx") {
		t.Fatalf("unexpected content disposition: %s", cd)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestExportInvalidRange(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/api/v1/export?start=2026-03-15&end=2026-03-07")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	db := newTestDB(t)
	ts := startTestServer(t, db)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/tables", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
