package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Registration server configuration
	Host string
	Port int

	// Row store configuration
	StoreBackend string
	SheetID      string
	DatabasePath string

	// Google service account
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
	GoogleCredentialsFile     string

	// Strava API configuration (per-athlete app)
	StravaClientID     string
	StravaClientSecret string

	// Strava club configuration (club admin app)
	StravaClubID           string
	StravaClubClientID     string
	StravaClubClientSecret string
	StravaClubRefreshToken string

	// Sync configuration
	ScoreboardPath  string
	DefaultWindow   Window
	Location        *time.Location
	ScoringWeights  map[string]float64
	ScoringDefault  float64
	SyncInterval    time.Duration
	SyncSchedule    string
	RegistrationURL string

	// Metrics configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int
	PushgatewayURL string

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first; variables already
// present in the environment take precedence over it.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStore reads the configuration but only validates the row store
// settings, for tools that never talk to Strava
func LoadStore() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Host:                      getEnv("HOST", "localhost"),
		Port:                      getEnvInt("PORT", 4101),
		StoreBackend:              strings.ToLower(getEnv("STORE_BACKEND", BackendSheets)),
		SheetID:                   os.Getenv("SHEET_ID"),
		DatabasePath:              getEnv("DATABASE_PATH", "./data.db"),
		GoogleServiceAccountEmail: os.Getenv("GOOGLE_SERVICE_ACCOUNT_EMAIL"),
		GooglePrivateKey:          os.Getenv("GOOGLE_PRIVATE_KEY"),
		GoogleCredentialsFile:     os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		StravaClientID:            os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret:        os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaClubID:              os.Getenv("STRAVA_CLUB_ID"),
		StravaClubClientID:        os.Getenv("STRAVA_CLUB_CLIENT_ID"),
		StravaClubClientSecret:    os.Getenv("STRAVA_CLUB_CLIENT_SECRET"),
		StravaClubRefreshToken:    os.Getenv("STRAVA_CLUB_REFRESH_TOKEN"),
		ScoreboardPath:            getEnv("SCOREBOARD_PATH", "./scoreboard.json"),
		SyncSchedule:              getEnv("SYNC_SCHEDULE", "0 */2 * * *"),
		RegistrationURL:           os.Getenv("REGISTRATION_REDIRECT_URL"),
		MetricsEnabled:            getEnvBool("METRICS_ENABLED", false),
		MetricsHost:               getEnv("METRICS_HOST", "localhost"),
		MetricsPort:               getEnvInt("METRICS_PORT", 9090),
		PushgatewayURL:            os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
	}

	// The club app defaults to the athlete app
	if cfg.StravaClubClientID == "" {
		cfg.StravaClubClientID = cfg.StravaClientID
	}
	if cfg.StravaClubClientSecret == "" {
		cfg.StravaClubClientSecret = cfg.StravaClientSecret
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	cfg.Location = loc

	window, err := parseDefaultWindow(getEnv("DEFAULT_START_DATE", "2026-02-01"), getEnv("DEFAULT_END_DATE", "2026-12-31"), loc)
	if err != nil {
		return nil, err
	}
	cfg.DefaultWindow = window

	weights, err := ParseWeights(getEnv("SCORING_WEIGHTS", "Run=1.0,Ride=0.3"))
	if err != nil {
		return nil, fmt.Errorf("SCORING_WEIGHTS is invalid: %w", err)
	}
	cfg.ScoringWeights = weights

	cfg.ScoringDefault, err = strconv.ParseFloat(getEnv("SCORING_DEFAULT_WEIGHT", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("SCORING_DEFAULT_WEIGHT is invalid: %w", err)
	}

	cfg.SyncInterval, err = time.ParseDuration(getEnv("SYNC_INTERVAL", "2h"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_INTERVAL is invalid: %w", err)
	}

	return cfg, nil
}

// Validate checks required values and ranges
func (c *Config) Validate() error {
	switch {
	case c.StravaClientID == "":
		return fmt.Errorf("STRAVA_CLIENT_ID is required")
	case c.StravaClientSecret == "":
		return fmt.Errorf("STRAVA_CLIENT_SECRET is required")
	case c.StravaClubID == "":
		return fmt.Errorf("STRAVA_CLUB_ID is required")
	case c.StravaClubRefreshToken == "":
		return fmt.Errorf("STRAVA_CLUB_REFRESH_TOKEN is required")
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}

	return nil
}

// ValidateStore checks the row store settings
func (c *Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendSheets:
		if c.SheetID == "" {
			return fmt.Errorf("SHEET_ID is required")
		}
		hasKey := c.GoogleServiceAccountEmail != "" && c.GooglePrivateKey != ""
		if !hasKey && c.GoogleCredentialsFile == "" {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY, or GOOGLE_CREDENTIALS_FILE, are required")
		}
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: sheets, sqlite")
	}
	return nil
}

// ParseWeights parses a "Type=weight,Type=weight" list
func ParseWeights(s string) (map[string]float64, error) {
	weights := map[string]float64{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected Type=weight, got %q", pair)
		}

		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", name, err)
		}
		if weight < 0 {
			return nil, fmt.Errorf("negative weight for %s", name)
		}

		weights[strings.TrimSpace(name)] = weight
	}

	return weights, nil
}

func parseDefaultWindow(start, end string, loc *time.Location) (Window, error) {
	s, err := ParseDate(start, loc, false)
	if err != nil {
		return Window{}, fmt.Errorf("DEFAULT_START_DATE is invalid: %w", err)
	}

	e, err := ParseDate(end, loc, true)
	if err != nil {
		return Window{}, fmt.Errorf("DEFAULT_END_DATE is invalid: %w", err)
	}

	return NewWindow(s, e)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value.
// Unparseable values map to 0 so that range validation rejects them.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0
	}

	return value
}

func getEnvBool(key string, defaultValue bool) bool {
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
