package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/billbatista/acasinha-ledger/database"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port            string        `env:"PORT" envDefault:"5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Database
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/ledger.db"`

	// Sessions
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// Ledger
	AmountScale int32 `env:"AMOUNT_SCALE" envDefault:"2"`

	// Events
	EventBufferSize int    `env:"EVENT_BUFFER_SIZE" envDefault:"100"`
	AMQPURL         string `env:"AMQP_URL"`
	AMQPExchange    string `env:"AMQP_EXCHANGE" envDefault:"ledger.events"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch database.Backend(c.DataBackend) {
	case database.Postgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	case database.SQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [postgres sqlite]", c.DataBackend))
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
	}

	if c.AmountScale < 0 || c.AmountScale > 6 {
		errors = append(errors, fmt.Sprintf("invalid amount scale %d: must be between 0 and 6", c.AmountScale))
	}

	if c.EventBufferSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid event buffer size %d: must be at least 1", c.EventBufferSize))
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
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

// DSN is what database.Open expects for the configured backend.
func (c *Config) DSN() string {
	if database.Backend(c.DataBackend) == database.Postgres {
		return c.DatabaseURL
	}
	return c.SQLiteDBPath
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}
