package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendPostgres = "postgres"
	// StoreBackendMemory keeps everything in process; for local runs only
	StoreBackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	SkillName        string
	SenderEmail      string
	OperatorEmail    string
	FeedbackURL      string
	ReportTimezone   string
	StoreBackend     string
	LogsTable        string
	PreferencesTable string
	LogsDateIndex    string
	DatabaseURL      string
	AWSRegion        string
	// MaintenanceTables and MaintenanceFunctions are used when a maintenance event names none
	MaintenanceTables    []string
	MaintenanceFunctions []string
	ServerPort           string
	RedisURL             string
	RateLimit            string
	EnableHSTS           bool
	RabbitMQURL          string
	RabbitMQPrefetch     int
	DebugMode            bool
	LogLevel             string
	OTELEnabled          bool
	OTELEndpoint         string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SkillName:            getEnv("SKILL_NAME", "Daily Log"),
		SenderEmail:          getEnv("SENDER_EMAIL", ""),
		OperatorEmail:        getEnv("OPERATOR_EMAIL", ""),
		FeedbackURL:          getEnv("FEEDBACK_URL", ""),
		ReportTimezone:       getEnv("REPORT_TIMEZONE", ""),
		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", StoreBackendDynamoDB)),
		LogsTable:            getEnv("LOGS_TABLE", "JotJotLogs"),
		PreferencesTable:     getEnv("PREFERENCES_TABLE", "jotjot_UserEmailPreferences"),
		LogsDateIndex:        getEnv("LOGS_DATE_INDEX", "date-index"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		AWSRegion:            getEnv("AWS_REGION", ""),
		MaintenanceTables:    getEnvList("MAINTENANCE_TABLES", nil),
		MaintenanceFunctions: getEnvList("MAINTENANCE_FUNCTIONS", nil),
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		RedisURL:             getEnv("REDIS_URL", ""),
		RateLimit:            getEnv("RATE_LIMIT", "20-S"),
		EnableHSTS:           getEnvBool("ENABLE_HSTS", false),
		RabbitMQURL:          getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:     getEnvInt("RABBITMQ_PREFETCH", 1),
		DebugMode:            getEnvBool("DEBUG_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		OTELEnabled:          getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	switch cfg.StoreBackend {
	case StoreBackendDynamoDB, StoreBackendMemory:
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q (must be %q, %q or %q)", cfg.StoreBackend, StoreBackendDynamoDB, StoreBackendPostgres, StoreBackendMemory)
	}

	if cfg.ReportTimezone != "" {
		if _, err := time.LoadLocation(cfg.ReportTimezone); err != nil {
			return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", cfg.ReportTimezone, err)
		}
	}

	if len(cfg.MaintenanceTables) == 0 {
		cfg.MaintenanceTables = []string{cfg.PreferencesTable, cfg.LogsTable}
	}
	// Lambda sets AWS_LAMBDA_FUNCTION_NAME for the running function
	if len(cfg.MaintenanceFunctions) == 0 {
		if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
			cfg.MaintenanceFunctions = []string{fn}
		}
	}

	if cfg.FeedbackURL == "" && cfg.SenderEmail != "" {
		cfg.FeedbackURL = "mailto:" + cfg.SenderEmail + "?subject=" + url.QueryEscape(cfg.SkillName+" feedback")
	}

	return cfg, nil
}

// Location returns the configured report timezone, or nil to keep timestamps as stored
func (c *Config) Location() *time.Location {
	if c.ReportTimezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return nil
	}
	return loc
}

// EmailEnabled reports whether outbound email can be sent at all
func (c *Config) EmailEnabled() bool {
	return c.SenderEmail != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
