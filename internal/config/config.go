// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingCredentials is returned when a configured cabinet has no API token.
var ErrMissingCredentials = errors.New("missing billing credentials")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Billing  BillingConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds the store connection settings.
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
}

// BillingConfig holds the billing platform settings. Each cabinet has its own
// bearer token.
type BillingConfig struct {
	BaseURL       string
	Cabinets      []string
	Tokens        map[string]string
	PageSize      int
	LinePause     time.Duration
	Timeout       time.Duration
	UpdateCabinet bool
}

// EngineConfig holds the classification and import settings.
type EngineConfig struct {
	BulletinThreshold   decimal.Decimal
	ProductionHeaderRow int
	// RunStaleAfter is how long a run may stay running before the next
	// start of its kind takes it for abandoned.
	RunStaleAfter time.Duration
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Token returns the API token of a cabinet.
func (b BillingConfig) Token(cabinet string) (string, error) {
	tok := b.Tokens[strings.ToLower(cabinet)]
	if tok == "" {
		return "", fmt.Errorf("cabinet %q: %w", cabinet, ErrMissingCredentials)
	}
	return tok, nil
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	cabinets := getEnvList("BILLING_CABINETS")
	tokens := make(map[string]string, len(cabinets))
	for _, c := range cabinets {
		tokens[c] = os.Getenv("BILLING_TOKEN_" + strings.ToUpper(c))
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "honoraires"),
			Password: getEnv("DB_PASSWORD", "honoraires"),
			DBName:   getEnv("DB_NAME", "honoraires"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "honoraires.db"),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
		},
		Billing: BillingConfig{
			BaseURL:       getEnv("BILLING_API_URL", "https://api.pennylane.com/api/external/v2"),
			Cabinets:      cabinets,
			Tokens:        tokens,
			PageSize:      getEnvInt("BILLING_PAGE_SIZE", 100),
			LinePause:     time.Duration(getEnvInt("BILLING_LINE_PAUSE_MS", 200)) * time.Millisecond,
			Timeout:       time.Duration(getEnvInt("BILLING_TIMEOUT_SECONDS", 30)) * time.Second,
			UpdateCabinet: getEnvBool("BILLING_UPDATE_CABINET", true),
		},
		Engine: EngineConfig{
			BulletinThreshold:   getEnvDecimal("BULLETIN_THRESHOLD", decimal.NewFromInt(30)),
			ProductionHeaderRow: getEnvInt("PRODUCTION_HEADER_ROW", 1),
			RunStaleAfter:       time.Duration(getEnvInt("RUN_STALE_AFTER_MINUTES", 360)) * time.Minute,
		},
	}
}

// Validate checks the settings a sync run cannot do without.
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Billing.BaseURL == "" {
		return fmt.Errorf("BILLING_API_URL: %w", ErrMissingCredentials)
	}
	for _, cab := range c.Billing.Cabinets {
		if _, err := c.Billing.Token(cab); err != nil {
			return err
		}
	}
	if !c.Engine.BulletinThreshold.IsPositive() {
		return fmt.Errorf("BULLETIN_THRESHOLD must be positive, got %s", c.Engine.BulletinThreshold)
	}
	if c.Engine.ProductionHeaderRow < 1 {
		return fmt.Errorf("PRODUCTION_HEADER_ROW must be >= 1, got %d", c.Engine.ProductionHeaderRow)
	}
	if c.Engine.RunStaleAfter <= 0 {
		return fmt.Errorf("RUN_STALE_AFTER_MINUTES must be positive, got %s", c.Engine.RunStaleAfter)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable into lower-cased, trimmed items.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
