package forecast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fxforecast/internal/timeseries"
)

// DailyJob runs a forecast for the current date and stores the report.
// Registered with the scheduler to run after market close.
type DailyJob struct {
	svc        *Service
	repo       *Repository
	confidence float64
	log        zerolog.Logger
}

// NewDailyJob creates the scheduled forecast job
func NewDailyJob(svc *Service, repo *Repository, confidence float64, log zerolog.Logger) *DailyJob {
	return &DailyJob{
		svc:        svc,
		repo:       repo,
		confidence: confidence,
		log:        log.With().Str("job", "forecast_daily").Logger(),
	}
}

// Name returns the job name
func (j *DailyJob) Name() string {
	return "forecast_daily"
}

// Run executes a forecast with today as the cutoff. The splitter falls
// back to the closest earlier date with data, so running on a holiday
// forecasts from the last trading day.
func (j *DailyJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Format(timeseries.DateLayout)

	report, err := j.svc.Run(ctx, cutoff, j.confidence)
	if err != nil {
		return err
	}

	if err := j.repo.Save(report); err != nil {
		return err
	}

	j.log.Info().
		Str("base_date", report.CurrentDate).
		Msg("Daily forecast stored")

	return nil
}
