package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the availability and booking API.
type HTTPServer struct {
	cfg      config.APIConfig
	booking  BookingService
	states   StateService
	exporter Exporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	serverCfg config.ServerConfig,
	booking BookingService,
	states StateService,
	exporter Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		booking:  booking,
		states:   states,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/tables", srv.handleTables)
	mux.HandleFunc("/api/v1/tables/", srv.handleTableSubresource)
	mux.HandleFunc("/api/v1/reservations", srv.handleCreateReservation)
	mux.HandleFunc("/api/v1/wizard", srv.handleStartWizard)
	mux.HandleFunc("/api/v1/wizard/", srv.handleWizardSession)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", serverCfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(serverCfg.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(serverCfg.WriteTimeoutSec) * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the composed handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

const requestIDHeader = "x-request-id"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	base := zerolog.Nop()
	if s.logger != nil {
		base = s.logger.With().Str("component", "http").Logger()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := normalizeEndpoint(r.URL.Path)
		metrics.IncHTTP(endpoint)

		base.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("endpoint", endpoint).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// normalizeEndpoint maps paths to stable metric labels; raw paths carry
// tokens and ids.
func normalizeEndpoint(path string) string {
	switch {
	case path == "/api/v1/tables":
		return "tables"
	case strings.HasPrefix(path, "/api/v1/tables/"):
		if strings.HasSuffix(path, "/availability") {
			return "availability"
		}
		return "slots"
	case path == "/api/v1/reservations":
		return "reservations"
	case strings.HasPrefix(path, "/api/v1/wizard"):
		return "wizard"
	case path == "/api/v1/export":
		return "export"
	case path == "/healthz":
		return "health"
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
