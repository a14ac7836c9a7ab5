package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Paperless PaperlessConfig
	LLM       LLMConfig
	Queue     QueueConfig
	Runs      RunsConfig
	Log       LogConfig
	Settings  SettingsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string
	GRPCAddr     string // empty disables the gRPC health endpoint
	MaxBodyBytes int64
}

// PaperlessConfig holds document service configuration
type PaperlessConfig struct {
	BaseURL        string
	APIKey         string
	ProcessedTagID string
	Timeout        time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type QueueConfig struct {
	JobTimeout time.Duration
}

// RunsConfig holds run ledger configuration; an empty DSN disables the ledger.
type RunsConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type SettingsConfig struct {
	Path  string
	Watch bool
}

// LoadDotEnv loads .env files into the process environment when present.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("config.dotenv.load_error", "file", f, "error", err)
		}
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:     normalizeAddr(getEnv("HTTP_ADDR", ":5000")),
			GRPCAddr:     normalizeAddr(getEnv("GRPC_ADDR", "")),
			MaxBodyBytes: getEnvAsInt64("MAX_BODY_BYTES", 1<<20),
		},
		Paperless: PaperlessConfig{
			BaseURL:        strings.TrimRight(getEnv("PAPERLESS_NGX_URL", ""), "/"),
			APIKey:         getEnv("PAPERLESS_NGX_API_KEY", ""),
			ProcessedTagID: strings.TrimSpace(getEnv("PAPERLESS_PROCESSED_TAG_ID", "")),
			Timeout:        getEnvAsDuration("PAPERLESS_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Queue: QueueConfig{
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 3*time.Minute),
		},
		Runs: RunsConfig{
			DSN:             getEnvOrEmpty("RUNS_DB_URL", "runs.db"),
			MaxConns:        getEnvAsInt32("RUNS_DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt32("RUNS_DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("RUNS_DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("RUNS_DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("RUNS_DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		Settings: SettingsConfig{
			Path:  getEnv("SETTINGS_FILE", "settings.yaml"),
			Watch: getEnvAsBool("SETTINGS_WATCH", true),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrEmpty returns defaultValue only when key is unset; an explicit empty
// value is returned as is.
func getEnvOrEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Paperless.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "PAPERLESS_NGX_URL is required", ErrConfig)
	}
	if c.Paperless.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "PAPERLESS_NGX_API_KEY is required", ErrConfig)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrConfig)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrConfig)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
