package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted in DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver   string
	DatabaseURL      string
	HTTPAddr         string
	LogLevel         string
	Environment      string
	DeliveryLocation *time.Location

	Engine EngineConfig

	RenewalEnabled  bool
	CronSpecRenewal string // sweep that re-arms subscribers whose occurrence already fired

	TelegramToken   string // optional; enables the ops bot
	AdminTelegramID int64
}

// EngineConfig describes how to reach the execution engine.
type EngineConfig struct {
	EventURL   string
	APIURL     string
	EventKey   string
	SigningKey string
	EventName  string
	Timeout    time.Duration
	RatePerSec int
}

// Configured reports whether credentials are present. Without them delivery
// scheduling is skipped rather than failed.
func (e EngineConfig) Configured() bool {
	return e.EventKey != "" && e.SigningKey != ""
}

// IsProduction reports whether the app runs in production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DatabaseDriver = strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverPostgres
	}
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: must be %s or %s", cfg.DatabaseDriver, DriverPostgres, DriverSQLite)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	tz := os.Getenv("DELIVERY_TIMEZONE")
	if tz == "" {
		tz = "UTC"
	}
	cfg.DeliveryLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_TIMEZONE: %w", err)
	}

	if cfg.Engine, err = loadEngineConfig(cfg.IsProduction()); err != nil {
		return nil, err
	}

	cfg.RenewalEnabled = true
	if v := os.Getenv("RENEWAL_ENABLED"); v != "" {
		cfg.RenewalEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RENEWAL_ENABLED: %w", err)
		}
	}
	cfg.CronSpecRenewal = os.Getenv("CRON_SPEC_RENEWAL")
	if cfg.CronSpecRenewal == "" {
		cfg.CronSpecRenewal = "*/15 * * * *" // Default: every 15 minutes
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set (required with TELEGRAM_TOKEN)")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}

// LoadEngine reads only the execution engine settings. Used by commands
// that talk to the engine without touching the database.
func LoadEngine() (EngineConfig, error) {
	_ = godotenv.Load()
	return loadEngineConfig(strings.ToLower(os.Getenv("ENVIRONMENT")) == "production")
}

func loadEngineConfig(production bool) (EngineConfig, error) {
	ec := EngineConfig{
		EventURL:   os.Getenv("ENGINE_EVENT_URL"),
		APIURL:     os.Getenv("ENGINE_API_URL"),
		EventKey:   os.Getenv("ENGINE_EVENT_KEY"),
		SigningKey: os.Getenv("ENGINE_SIGNING_KEY"),
		EventName:  os.Getenv("ENGINE_EVENT_NAME"),
		Timeout:    10 * time.Second,
		RatePerSec: 10,
	}

	if production {
		if ec.EventURL == "" {
			ec.EventURL = "https://inn.gs"
		}
		if ec.APIURL == "" {
			ec.APIURL = "https://api.inngest.com/v1"
		}
	} else {
		// Local dev server accepts any event key.
		if ec.EventURL == "" {
			ec.EventURL = "http://localhost:8288"
		}
		if ec.APIURL == "" {
			ec.APIURL = "http://localhost:8288/v1"
		}
		if ec.EventKey == "" {
			ec.EventKey = "dev"
		}
	}
	if ec.EventName == "" {
		ec.EventName = "digest.schedule"
	}

	if v := os.Getenv("ENGINE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return ec, fmt.Errorf("invalid ENGINE_TIMEOUT %q", v)
		}
		ec.Timeout = d
	}
	if v := os.Getenv("ENGINE_RATE_PER_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ec, fmt.Errorf("invalid ENGINE_RATE_PER_SEC %q", v)
		}
		ec.RatePerSec = n
	}
	return ec, nil
}
