package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds recognised by SOURCE_KIND.
const (
	SourceSheets    = "sheets"
	SourceWorkbook  = "workbook"
	SourceSimulated = "simulated"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Thresholds  ThresholdConfig
	Source      SourceConfig
	Limits      LimitConfig
	Validation  ValidationConfig
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL               string
	EventsExchange    string
	ReadingRoutingKey string
	SyncRoutingKey    string
	IngestExchange    string
	IngestQueue       string
	IngestRoutingKey  string
	DLQQueue          string
	PrefetchCount     int
}

// Enabled reports whether a broker is configured.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// ThresholdConfig holds the alert thresholds, in centimetres of distance
// between the sensor and the water surface.
type ThresholdConfig struct {
	WarningCM  float64 `yaml:"warning_cm"`
	CriticalCM float64 `yaml:"critical_cm"`
}

// SourceConfig holds external reading source settings
type SourceConfig struct {
	Kind            string        `yaml:"kind"`
	CredentialsFile string        `yaml:"credentials_file"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	SheetName       string        `yaml:"sheet_name"`
	WorkbookPath    string        `yaml:"workbook_path"`
	AllowedDevice   string        `yaml:"allowed_device"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	SimulatedRows   int           `yaml:"simulated_rows"`
	SimulatedSeed   int64         `yaml:"simulated_seed"`
}

// LimitConfig holds default and maximum row counts for queries
type LimitConfig struct {
	SyncDefault  int `yaml:"sync_default"`
	ListDefault  int `yaml:"list_default"`
	StatsDefault int `yaml:"stats_default"`
	ListMax      int `yaml:"list_max"`
}

// ValidationConfig holds ingest validation settings
type ValidationConfig struct {
	MaxFutureSkew time.Duration
}

// Load loads configuration from environment variables and the optional
// CONFIG_FILE overlay.
func Load() (*Config, error) {
	warning, err := getEnvAsFloat("WARNING_THRESHOLD_CM", 50)
	if err != nil {
		return nil, err
	}
	critical, err := getEnvAsFloat("CRITICAL_THRESHOLD_CM", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "waterlevel-monitor"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:         getEnv("HTTP_ADDR", ":8000"),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			AutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "waterlevel.events.exchange"),
			ReadingRoutingKey: getEnv("RABBITMQ_READING_ROUTING_KEY", "reading.ingested"),
			SyncRoutingKey:    getEnv("RABBITMQ_SYNC_ROUTING_KEY", "readings.synced"),
			IngestExchange:    getEnv("RABBITMQ_INGEST_EXCHANGE", "waterlevel.ingest.exchange"),
			IngestQueue:       getEnv("RABBITMQ_INGEST_QUEUE", "waterlevel.ingest.queue"),
			IngestRoutingKey:  getEnv("RABBITMQ_INGEST_ROUTING_KEY", "sensor.reading.raw"),
			DLQQueue:          getEnv("RABBITMQ_DLQ_QUEUE", "waterlevel.ingest.dlq"),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Thresholds: ThresholdConfig{
			WarningCM:  warning,
			CriticalCM: critical,
		},
		Source: SourceConfig{
			Kind:            getEnv("SOURCE_KIND", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS", "config/credentials.json"),
			SpreadsheetID:   getEnv("SPREADSHEET_ID", ""),
			SheetName:       getEnv("SHEET_NAME", "Sheet1"),
			WorkbookPath:    getEnv("WORKBOOK_PATH", ""),
			AllowedDevice:   getEnvAllowEmpty("ALLOWED_DEVICE", "waterlevel"),
			FetchTimeout:    getEnvAsDuration("SOURCE_FETCH_TIMEOUT", 15*time.Second),
			SimulatedRows:   getEnvAsInt("SIMULATED_ROWS", 20),
			SimulatedSeed:   int64(getEnvAsInt("SIMULATED_SEED", 1)),
		},
		Limits: LimitConfig{
			SyncDefault:  getEnvAsInt("SYNC_DEFAULT_LIMIT", 500),
			ListDefault:  getEnvAsInt("LIST_DEFAULT_LIMIT", 100),
			StatsDefault: getEnvAsInt("STATS_DEFAULT_LIMIT", 1000),
			ListMax:      getEnvAsInt("LIST_MAX_LIMIT", 5000),
		},
		Validation: ValidationConfig{
			MaxFutureSkew: getEnvAsDuration("VALIDATION_MAX_FUTURE_SKEW", 24*time.Hour),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = detectSourceKind(cfg.Source)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values that would make the
// service misbehave rather than fail.
func (c *Config) Validate() error {
	if c.Thresholds.WarningCM < 0 || c.Thresholds.CriticalCM < 0 {
		return fmt.Errorf("WARNING_THRESHOLD_CM and CRITICAL_THRESHOLD_CM must not be negative")
	}
	if c.Thresholds.CriticalCM >= c.Thresholds.WarningCM {
		return fmt.Errorf("CRITICAL_THRESHOLD_CM (%.2f) must be below WARNING_THRESHOLD_CM (%.2f)",
			c.Thresholds.CriticalCM, c.Thresholds.WarningCM)
	}

	switch c.Source.Kind {
	case SourceSheets:
		if c.Source.SpreadsheetID == "" {
			return fmt.Errorf("SPREADSHEET_ID is required when SOURCE_KIND=%s", SourceSheets)
		}
	case SourceWorkbook:
		if c.Source.WorkbookPath == "" {
			return fmt.Errorf("WORKBOOK_PATH is required when SOURCE_KIND=%s", SourceWorkbook)
		}
	case SourceSimulated:
	default:
		return fmt.Errorf("unknown SOURCE_KIND %q", c.Source.Kind)
	}

	if c.Source.FetchTimeout <= 0 {
		return fmt.Errorf("SOURCE_FETCH_TIMEOUT must be positive")
	}
	if c.Limits.SyncDefault <= 0 || c.Limits.ListDefault <= 0 || c.Limits.StatsDefault <= 0 {
		return fmt.Errorf("default limits must be positive")
	}
	if c.Limits.ListMax < c.Limits.ListDefault || c.Limits.ListMax < c.Limits.StatsDefault {
		return fmt.Errorf("LIST_MAX_LIMIT must not be below the default limits")
	}

	return nil
}

// fileOverlay mirrors the sections of Config that may be set from YAML.
type fileOverlay struct {
	Thresholds *ThresholdConfig `yaml:"thresholds"`
	Source     *SourceConfig    `yaml:"source"`
	Limits     *LimitConfig     `yaml:"limits"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read CONFIG_FILE %s: %w", path, err)
	}

	// Sections decode in place so keys missing from the file keep their env values.
	overlay := fileOverlay{
		Thresholds: &cfg.Thresholds,
		Source:     &cfg.Source,
		Limits:     &cfg.Limits,
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to decode CONFIG_FILE %s: %w", path, err)
	}
	return nil
}

func detectSourceKind(src SourceConfig) string {
	if src.WorkbookPath != "" {
		return SourceWorkbook
	}
	if info, err := os.Stat(src.CredentialsFile); err == nil && info.Size() > 0 && src.SpreadsheetID != "" {
		return SourceSheets
	}
	return SourceSimulated
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat fails on a malformed value instead of falling back, since
// the float settings are alert thresholds.
func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
