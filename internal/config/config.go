package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"feedesk/internal/log"
)

type Config struct {
	// HTTP Server
	Port       string
	SchoolName string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleLedgerSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Session
	SessionSecret string
	SessionCookie string
	SessionTTL    time.Duration

	// Ledger worker
	LedgerBatchSize    int
	LedgerSyncInterval time.Duration
	LedgerMaxAttempts  int

	// Requests per minute per cashier on POST /payments
	PaymentRateLimit int

	LogLevel string
	// IANA zone used to decide what "today" is.
	Timezone string
}

func Load() *Config {
	cfg := &Config{
		Port:       getEnv("PORT", "8081"),
		SchoolName: getEnv("SCHOOL_NAME", "School Fee Desk"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/feedesk.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "feedesk"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_payments"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerSheet:        getEnv("GOOGLE_LEDGER_SHEET", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionCookie: getEnv("SESSION_COOKIE", "feedesk_session"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),

		LedgerBatchSize:    getEnvInt("LEDGER_BATCH_SIZE", 50),
		LedgerSyncInterval: getEnvDuration("LEDGER_SYNC_INTERVAL", time.Minute),
		LedgerMaxAttempts:  getEnvInt("LEDGER_MAX_ATTEMPTS", 5),

		PaymentRateLimit: getEnvInt("PAYMENT_RATE_LIMIT", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "Asia/Kolkata"),
	}

	return cfg
}

// Location resolves Timezone. Validate has already rejected unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether the ledger worker should write to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// AMQP is optional; without it the worker relies on the periodic sweep.
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

	if c.SheetsEnabled() {
		if c.GoogleLedgerSheet == "" {
			errors = append(errors, "Google ledger sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets ledger")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionCookie == "" {
		errors = append(errors, "session cookie name cannot be empty")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.LedgerBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid ledger batch size %d: must be at least 1", c.LedgerBatchSize))
	} else if c.LedgerBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid ledger batch size %d: must be at most 1000", c.LedgerBatchSize))
	}

	if c.LedgerSyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid ledger sync interval %v: must be at least 1 second", c.LedgerSyncInterval))
	} else if c.LedgerSyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ledger sync interval %v: must be at most 24 hours", c.LedgerSyncInterval))
	}

	if c.LedgerMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid ledger max attempts %d: must be at least 1", c.LedgerMaxAttempts))
	}

	if c.PaymentRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid payment rate limit %d: must be at least 1", c.PaymentRateLimit))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "" {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s'", c.Timezone))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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
