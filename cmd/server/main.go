package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tablebook/internal/api"
	"tablebook/internal/calendar"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/export"
	"tablebook/internal/google"
	"tablebook/internal/logging"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/repository"
	"tablebook/internal/service"
	"tablebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	tables, err := loadTables(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, tables, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	weekdays, err := cfg.Booking.Weekdays()
	if err != nil {
		return err
	}
	cal := calendar.New(cfg.Booking.HorizonDays, weekdays, cfg.Booking.Slots)

	sheetsService := initGoogleSheets(ctx, cfg, cal, &logger)
	redisClient, stateService := initStateService(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var syncWorker domain.SyncWorker
	if sheetsService != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, retryPolicy, &logger)
		go sheetsWorker.Start(ctx)

		// Полная пересборка листа расписания при старте
		if err := sheetsWorker.EnqueueSyncSchedule(ctx, time.Time{}, time.Time{}); err != nil {
			logger.Warn().Err(err).Msg("initial schedule sync enqueue failed")
		}
		syncWorker = sheetsWorker
	}

	eventBus := events.NewEventBus()
	subscribeReservationEvents(eventBus, &logger)

	bookingService := service.NewBookingService(db, db, cal, eventBus, syncWorker, &logger)
	exporter := export.NewExporter(db, cal, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Server, bookingService, stateService, exporter, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// loadTables reads the table registry. TABLES_PATH overrides the inline
// config list, so the registry can live in its own file.
func loadTables(cfg *config.Config, logger *zerolog.Logger) ([]models.Table, error) {
	tablesPath := os.Getenv("TABLES_PATH")
	if tablesPath == "" {
		return cfg.Tables, nil
	}

	tablesData, err := os.ReadFile(tablesPath)
	if err != nil {
		logger.Error().Err(err).Str("tables_path", tablesPath).Msg("read tables")
		return nil, err
	}

	var tablesConfig struct {
		Tables []models.Table `yaml:"tables"`
	}
	if err := yaml.Unmarshal(tablesData, &tablesConfig); err != nil {
		logger.Error().Err(err).Str("tables_path", tablesPath).Msg("parse tables")
		return nil, err
	}

	if err := config.ValidateTables(tablesConfig.Tables); err != nil {
		logger.Error().Err(err).Msg("tables validation failed")
		return nil, err
	}
	return tablesConfig.Tables, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("create exports directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, tables []models.Table, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SeedTables(context.Background(), tables); err != nil {
		logger.Error().Err(err).Msg("seed tables")
		db.Close()
		return nil, err
	}
	return db, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, cal *calendar.Calendar, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.LedgerSpreadsheetID == "" {
		logger.Info().Msg("google sheets is not configured, sync disabled")
		return nil
	}

	sheetsService, err := google.NewSimpleSheetsService(
		cfg.Google.CredentialsFile,
		cfg.Google.LedgerSpreadsheetID,
		cfg.Google.ScheduleSpreadsheetID,
		cal.Slots(),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("redis unavailable, sessions fall back to memory")
		}
	}

	ttl := time.Duration(cfg.Booking.SessionTTL) * time.Second
	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)

	window := time.Duration(cfg.Booking.RateLimitWindow) * time.Second
	return redisClient, service.NewStateService(stateRepo, cfg.Booking.RateLimitRequests, window, logger)
}

func subscribeReservationEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventReservationConfirmed, func(ev *events.Event) error {
		var payload events.ReservationEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		logger.Info().
			Int64("reservation_id", payload.ReservationID).
			Int64("table_id", payload.TableID).
			Str("date", payload.Date).
			Str("slot", payload.Slot).
			Int64("party_size", payload.PartySize).
			Msg("reservation confirmed")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}
