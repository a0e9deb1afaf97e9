package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"fxforecast/internal/calendar"
	"fxforecast/internal/config"
	"fxforecast/internal/model"
	"fxforecast/internal/pipeline"
	"fxforecast/internal/timeseries"
	"fxforecast/pkg/formulas"
)

// ErrNoInferenceRow indicates the split produced no forecast base row
var ErrNoInferenceRow = errors.New("forecast: no forecast base row at cutoff")

// CalendarProvider produces the trading calendar for a market
type CalendarProvider interface {
	Range(market, start, end string) (calendar.Calendar, error)
}

// Service runs the full forecast flow: calendar, preprocessing,
// train/inference split and one regression per horizon.
type Service struct {
	cfg       *config.Config
	calendars CalendarProvider
	pre       *pipeline.Preprocessor
	log       zerolog.Logger
}

// NewService creates a forecast service
func NewService(cfg *config.Config, calendars CalendarProvider, pre *pipeline.Preprocessor, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		calendars: calendars,
		pre:       pre,
		log:       log.With().Str("component", "forecast").Logger(),
	}
}

// Run produces a report for the given cutoff date and confidence
// level. The three horizon models are fitted independently; each owns
// its state, nothing is shared between them.
func (s *Service) Run(ctx context.Context, cutoff string, confidenceLevel float64) (*Report, error) {
	raw, err := timeseries.LoadCSV(s.cfg.RawDataPath, ';')
	if err != nil {
		return nil, err
	}

	cal, err := s.calendars.Range(s.cfg.Market, s.cfg.CalendarStart, s.cfg.CalendarEnd)
	if err != nil {
		return nil, err
	}

	frame, err := s.pre.Run(ctx, raw, cal)
	if err != nil {
		return nil, err
	}

	train, inference, nextDates, err := pipeline.TrainInferenceSplit(frame, cutoff, cal)
	if err != nil {
		return nil, err
	}
	if inference.Len() == 0 {
		return nil, ErrNoInferenceRow
	}

	features := pipeline.FeatureColumns(s.cfg.ExogName)
	x, err := featureVector(inference, features, 0)
	if err != nil {
		return nil, err
	}

	baseValue := inference.Value(pipeline.PriceColumn, 0)

	report := &Report{
		CurrentDate:     inference.Date(0).Format(timeseries.DateLayout),
		ConfidenceLevel: confidenceLevel,
		GeneratedAt:     time.Now().UTC(),
	}

	for h := 1; h <= pipeline.Horizons; h++ {
		target := pipeline.TargetColumn(h)
		fitSet := train.DropNaNRows(append(append([]string{}, features...), target)...)

		X, y, err := designMatrix(fitSet, features, target)
		if err != nil {
			return nil, err
		}

		reg, err := model.New(confidenceLevel)
		if err != nil {
			return nil, err
		}
		if err := reg.Fit(X, y); err != nil {
			return nil, fmt.Errorf("horizon %d fit: %w", h, err)
		}

		pred, err := reg.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("horizon %d predict: %w", h, err)
		}

		report.Horizons = append(report.Horizons, buildHorizon(h, nextDates[h-1], baseValue, confidenceLevel, pred, inference))

		s.log.Info().
			Int("horizon", h).
			Int("train_rows", fitSet.Len()).
			Float64("forecast_return", pred.Point).
			Msg("Horizon fitted")
	}

	report.Diagnostics = diagnostics(train)

	return report, nil
}

// buildHorizon converts a log-return prediction into price space and
// pairs it with the observed ground truth when it exists
func buildHorizon(h int, targetDate string, baseValue, confidenceLevel float64, pred model.Prediction, inference *timeseries.Frame) HorizonForecast {
	out := HorizonForecast{
		Horizon:        h,
		TargetDate:     targetDate,
		BaseValue:      baseValue,
		ForecastValue:  baseValue * (1 + pred.Point),
		ForecastReturn: pred.Point,
		Confidence:     Interval{ConfidenceLevel: confidenceLevel},
	}

	if pred.Lower != nil && pred.Upper != nil {
		lower := baseValue * (1 + *pred.Lower)
		upper := baseValue * (1 + *pred.Upper)
		out.Confidence.Lower = &lower
		out.Confidence.Upper = &upper
	}

	// The inference row's lead columns are observed ground truth only;
	// they never participate in fitting.
	if v := inference.Value(pipeline.LeadColumn(h), 0); !math.IsNaN(v) {
		out.ObservedValue = &v
	}
	if v := inference.Value(pipeline.TargetColumn(h), 0); !math.IsNaN(v) {
		out.ObservedReturn = &v
	}

	return out
}

// diagnostics computes trailing indicators over the training series
func diagnostics(train *timeseries.Frame) Diagnostics {
	prices, err := train.Column(pipeline.PriceColumn)
	if err != nil {
		return Diagnostics{}
	}
	prices = formulas.DropNaN(prices)
	return Diagnostics{
		RSI14: formulas.CalculateRSI(prices, 14),
		SMA20: formulas.CalculateSMA(prices, 20),
	}
}

// featureVector extracts one row's feature values in column order
func featureVector(frame *timeseries.Frame, cols []string, row int) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, name := range cols {
		v := frame.Value(name, row)
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: feature %q missing on inference row", timeseries.ErrInvalidInput, name)
		}
		out[i] = v
	}
	return out, nil
}

// designMatrix extracts the feature matrix and target vector from a
// frame already cleared of missing values
func designMatrix(frame *timeseries.Frame, features []string, target string) ([][]float64, []float64, error) {
	X := make([][]float64, frame.Len())
	for i := range X {
		row := make([]float64, len(features))
		for j, name := range features {
			row[j] = frame.Value(name, i)
		}
		X[i] = row
	}

	y, err := frame.Column(target)
	if err != nil {
		return nil, nil, err
	}

	return X, y, nil
}
