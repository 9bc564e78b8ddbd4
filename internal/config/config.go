package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tablebook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	API        APIConfig        `yaml:"api"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Tables     []models.Table   `yaml:"tables"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout"`
	WriteTimeoutSec int `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BookingConfig drives the offer calendar and the wizard sessions.
type BookingConfig struct {
	HorizonDays       int      `yaml:"horizon_days"`
	AllowedWeekdays   []string `yaml:"allowed_weekdays"`
	Slots             []string `yaml:"slots"`
	SessionTTL        int      `yaml:"session_ttl"`
	RateLimitRequests int      `yaml:"rate_limit_requests"`
	RateLimitWindow   int      `yaml:"rate_limit_window"`
}

type APIConfig struct {
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	LedgerSpreadsheetID  string `yaml:"ledger_spreadsheet_id"`
	ScheduleSpreadsheetID string `yaml:"schedule_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env наполняет окружение до подстановки переменных в YAML
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := c.Booking.Weekdays(); err != nil {
		return err
	}

	return ValidateTables(c.Tables)
}

// ValidateTables checks the provisioned table list for usable identities
// and capacities.
func ValidateTables(tables []models.Table) error {
	ids := make(map[int64]bool)
	for _, table := range tables {
		if table.ID == 0 {
			return fmt.Errorf("table '%s' has invalid ID 0", table.Name)
		}
		if ids[table.ID] {
			return fmt.Errorf("duplicate table ID found: %d", table.ID)
		}
		if table.Capacity <= 0 {
			return fmt.Errorf("table %d has non-positive capacity %d", table.ID, table.Capacity)
		}
		ids[table.ID] = true
	}
	return nil
}

// Weekdays parses allowed_weekdays names into time.Weekday values.
func (b BookingConfig) Weekdays() ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}

	weekdays := make([]time.Weekday, 0, len(b.AllowedWeekdays))
	for _, raw := range b.AllowedWeekdays {
		wd, ok := names[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday in allowed_weekdays: %q", raw)
		}
		weekdays = append(weekdays, wd)
	}
	return weekdays, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 5
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.HorizonDays == 0 {
		c.Booking.HorizonDays = models.DefaultHorizonDays
	}
	if len(c.Booking.AllowedWeekdays) == 0 {
		c.Booking.AllowedWeekdays = []string{"saturday", "sunday"}
	}
	if c.Booking.SessionTTL == 0 {
		c.Booking.SessionTTL = models.DefaultSessionTTL
	}
	if c.Booking.RateLimitRequests == 0 {
		c.Booking.RateLimitRequests = models.RateLimitRequests
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = models.RateLimitWindow
	}
}
