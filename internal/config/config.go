package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         int
	DevMode      bool
	LogLevel     string
	DatabasePath string

	// Raw exchange-rate input file (semicolon-delimited, columns: dates;iata)
	RawDataPath string

	// Market calendar
	Market        string
	CalendarStart string
	CalendarEnd   string

	// Exogenous series (copper futures by default)
	ExogTicker   string
	ExogName     string
	ExogStart    string
	ExogEnd      string
	ExogInterval string

	// DateShiftDays is applied by both the calendar provider and the
	// market-data client. Both must use the same value or merged
	// series silently misalign.
	DateShiftDays int

	// Forecast defaults
	ConfidenceLevel  float64
	ForecastSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8003),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/forecasts.db"),

		RawDataPath: getEnv("RAW_DATA_PATH", "./data/raw/exchangeRateIATA.csv"),

		Market:        getEnv("MARKET", "CME_Currency"),
		CalendarStart: getEnv("CALENDAR_START", "2016-12-28"),
		CalendarEnd:   getEnv("CALENDAR_END", "2024-11-01"),

		ExogTicker:   getEnv("EXOG_TICKER", "HG=F"),
		ExogName:     getEnv("EXOG_NAME", "copper"),
		ExogStart:    getEnv("EXOG_START", "2016-12-30"),
		ExogEnd:      getEnv("EXOG_END", "2024-11-01"),
		ExogInterval: getEnv("EXOG_INTERVAL", "1d"),

		DateShiftDays: getEnvAsInt("DATE_SHIFT_DAYS", 1),

		ConfidenceLevel:  getEnvAsFloat("CONFIDENCE_LEVEL", 0.95),
		ForecastSchedule: getEnv("FORECAST_SCHEDULE", "0 0 18 * * MON-FRI"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RawDataPath == "" {
		return fmt.Errorf("RAW_DATA_PATH is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("CONFIDENCE_LEVEL must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
