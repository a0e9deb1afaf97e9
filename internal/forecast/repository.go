package forecast

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StoredForecast is one persisted horizon forecast row
type StoredForecast struct {
	ID              int64     `json:"id"`
	RunAt           time.Time `json:"run_at"`
	BaseDate        string    `json:"base_date"`
	Horizon         int       `json:"horizon"`
	TargetDate      string    `json:"target_date"`
	BaseValue       float64   `json:"base_value"`
	ForecastValue   float64   `json:"forecast_value"`
	ConfidenceLevel float64   `json:"confidence_level"`
	LowerBound      *float64  `json:"lower_bound"`
	UpperBound      *float64  `json:"upper_bound"`
	ObservedValue   *float64  `json:"observed_value"`
	ForecastReturn  float64   `json:"forecast_return"`
	ObservedReturn  *float64  `json:"observed_return"`
}

// Repository persists forecast reports
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a forecast repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "forecast").Logger(),
	}
}

// Migrate creates the forecasts table if it does not exist
func (r *Repository) Migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS forecasts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_at TEXT NOT NULL,
			base_date TEXT NOT NULL,
			horizon INTEGER NOT NULL,
			target_date TEXT NOT NULL,
			base_value REAL NOT NULL,
			forecast_value REAL NOT NULL,
			confidence_level REAL NOT NULL,
			lower_bound REAL,
			upper_bound REAL,
			observed_value REAL,
			forecast_return REAL NOT NULL,
			observed_return REAL
		);
		CREATE INDEX IF NOT EXISTS idx_forecasts_run_at ON forecasts(run_at);
		CREATE INDEX IF NOT EXISTS idx_forecasts_base_date ON forecasts(base_date);
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate forecasts table: %w", err)
	}
	return nil
}

// Save stores all horizon rows of a report in one transaction
func (r *Repository) Save(report *Report) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runAt := report.GeneratedAt.Format(time.RFC3339)

	query := `
		INSERT INTO forecasts
		(run_at, base_date, horizon, target_date, base_value, forecast_value,
		 confidence_level, lower_bound, upper_bound, observed_value,
		 forecast_return, observed_return)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, h := range report.Horizons {
		_, err := tx.Exec(query,
			runAt,
			report.CurrentDate,
			h.Horizon,
			h.TargetDate,
			h.BaseValue,
			h.ForecastValue,
			h.Confidence.ConfidenceLevel,
			nullFloat64Ptr(h.Confidence.Lower),
			nullFloat64Ptr(h.Confidence.Upper),
			nullFloat64Ptr(h.ObservedValue),
			h.ForecastReturn,
			nullFloat64Ptr(h.ObservedReturn),
		)
		if err != nil {
			return fmt.Errorf("failed to save forecast: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forecasts: %w", err)
	}

	r.log.Info().
		Str("base_date", report.CurrentDate).
		Int("horizons", len(report.Horizons)).
		Msg("Report saved")

	return nil
}

// Latest returns the horizon rows of the most recent run, or nil when
// nothing has been stored yet
func (r *Repository) Latest() ([]StoredForecast, error) {
	var runAt sql.NullString
	err := r.db.QueryRow("SELECT MAX(run_at) FROM forecasts").Scan(&runAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}
	if !runAt.Valid {
		return nil, nil
	}

	return r.queryForecasts(
		"SELECT * FROM forecasts WHERE run_at = ? ORDER BY horizon", runAt.String)
}

// History returns the most recent stored rows, newest first
func (r *Repository) History(limit int) ([]StoredForecast, error) {
	if limit <= 0 {
		limit = 30
	}
	return r.queryForecasts(
		"SELECT * FROM forecasts ORDER BY run_at DESC, horizon ASC LIMIT ?", limit)
}

func (r *Repository) queryForecasts(query string, args ...interface{}) ([]StoredForecast, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	defer rows.Close()

	var out []StoredForecast
	for rows.Next() {
		var f StoredForecast
		var runAt string
		var lower, upper, observed, observedRet sql.NullFloat64

		err := rows.Scan(
			&f.ID, &runAt, &f.BaseDate, &f.Horizon, &f.TargetDate,
			&f.BaseValue, &f.ForecastValue, &f.ConfidenceLevel,
			&lower, &upper, &observed, &f.ForecastReturn, &observedRet,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, runAt); err == nil {
			f.RunAt = t
		}
		f.LowerBound = floatPtr(lower)
		f.UpperBound = floatPtr(upper)
		f.ObservedValue = floatPtr(observed)
		f.ObservedReturn = floatPtr(observedRet)

		out = append(out, f)
	}

	return out, rows.Err()
}

func nullFloat64Ptr(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
