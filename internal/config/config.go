package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Snapshot source modes.
const (
	SourceFile   = "file"
	SourceRemote = "remote"
)

type Config struct {
	// HTTP server
	Port      string
	LogLevel  string
	LogFormat string

	// BlockSuspicious answers requests flagged by the detector with 404
	// instead of only logging them.
	BlockSuspicious bool

	// Local snapshot files. When DataFile is set the remote bucket is not used.
	DataFile string
	DataJSON string

	// Remote snapshot in an S3-compatible bucket (Cloudflare R2)
	R2URL       string
	R2AccountID string
	R2AccessKey string
	R2Bucket    string
	R2DBObject  string
	R2KVObject  string
	DataKey     string
	CacheDir    string

	// AMQP refresh notifications. Disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker and cache lifetimes
	RefreshInterval time.Duration
	FileSourceTTL   time.Duration
	RemoteSourceTTL time.Duration

	// Warehouse read by the snapshot ingest tool
	WarehouseURL string

	// StatementDefinition is an optional JSON income statement layout
	// replacing the built-in one.
	StatementDefinition string

	// AdminToken guards POST /admin/refresh. Refresh is disabled when empty.
	AdminToken string
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		BlockSuspicious: getEnvBool("BLOCK_SUSPICIOUS", false),

		DataFile: getEnv("DATA_FILE", ""),
		DataJSON: getEnv("DATA_JSON", ""),

		R2URL:       getEnv("PRH_FINANCE_R2_URL", ""),
		R2AccountID: getEnv("PRH_FINANCE_R2_ACCT_ID", ""),
		R2AccessKey: getEnv("PRH_FINANCE_R2_ACCT_KEY", ""),
		R2Bucket:    getEnv("PRH_FINANCE_R2_BUCKET", ""),
		R2DBObject:  getEnv("PRH_FINANCE_R2_DB_OBJECT", "prh-finance.sqlite3.enc"),
		R2KVObject:  getEnv("PRH_FINANCE_R2_KV_OBJECT", "prh-finance.json.enc"),
		DataKey:     getEnv("DATA_KEY", ""),
		CacheDir:    getEnv("CACHE_DIR", "./data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "findash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_updated"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 6*time.Hour),
		FileSourceTTL:   getEnvDuration("FILE_SOURCE_TTL", 2*time.Minute),
		RemoteSourceTTL: getEnvDuration("REMOTE_SOURCE_TTL", 6*time.Hour),

		WarehouseURL: getEnv("PRW_CONN", "prw.sqlite3"),

		StatementDefinition: getEnv("STATEMENT_DEFINITION", ""),

		AdminToken: getEnv("ADMIN_TOKEN", ""),
	}
}

// SourceMode reports whether the snapshot is read from disk or the bucket.
func (c *Config) SourceMode() string {
	if c.DataFile != "" {
		return SourceFile
	}
	return SourceRemote
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// Validate checks the settings needed by the server and worker.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.SourceMode() == SourceFile {
		if _, err := os.Stat(c.DataFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("data file does not exist: %s", c.DataFile))
		}
	} else {
		if c.R2URL == "" {
			errors = append(errors, "PRH_FINANCE_R2_URL is required when DATA_FILE is not set")
		} else if u, err := url.Parse(c.R2URL); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			errors = append(errors, fmt.Sprintf("invalid R2 URL '%s': must be http or https", c.R2URL))
		}
		if c.R2Bucket == "" {
			errors = append(errors, "PRH_FINANCE_R2_BUCKET is required when DATA_FILE is not set")
		}
		if c.R2AccountID == "" || c.R2AccessKey == "" {
			errors = append(errors, "PRH_FINANCE_R2_ACCT_ID and PRH_FINANCE_R2_ACCT_KEY are required when DATA_FILE is not set")
		}
		if c.R2DBObject == "" {
			errors = append(errors, "R2 database object name cannot be empty")
		}
		if c.CacheDir == "" {
			errors = append(errors, "CACHE_DIR cannot be empty when DATA_FILE is not set")
		}
	}

	if c.StatementDefinition != "" {
		if _, err := os.Stat(c.StatementDefinition); err != nil {
			errors = append(errors, fmt.Sprintf("statement definition not readable: %s", c.StatementDefinition))
		}
	}

	if c.DataKey != "" {
		if key, err := base64.URLEncoding.DecodeString(c.DataKey); err != nil || len(key) != 32 {
			errors = append(errors, "invalid DATA_KEY: must be a url-safe base64 encoded 32 byte key")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.FileSourceTTL <= 0 || c.RemoteSourceTTL <= 0 {
		errors = append(errors, "source TTLs must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SourceTTL is the cache lifetime for the configured source mode.
func (c *Config) SourceTTL() time.Duration {
	if c.SourceMode() == SourceFile {
		return c.FileSourceTTL
	}
	return c.RemoteSourceTTL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
