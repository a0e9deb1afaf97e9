package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"fxforecast/internal/calendar"
	"fxforecast/internal/timeseries"
	"fxforecast/pkg/formulas"
)

// Canonical column names produced by the preprocessor
const (
	SourceColumn = "iata"
	PriceColumn  = "usd_clp"
)

// ExogenousProvider fetches a single price series for a ticker over a
// date range
type ExogenousProvider interface {
	DailyCloses(ctx context.Context, ticker, start, end, name, interval string) (*timeseries.Frame, error)
}

// ExogenousSpec pins down which exogenous series the preprocessor
// merges in
type ExogenousSpec struct {
	Ticker   string
	Name     string
	Start    string
	End      string
	Interval string
}

// FeatureColumns returns the independent-variable column names for a
// given exogenous series name, in model order
func FeatureColumns(exogName string) []string {
	return []string{
		"y_t+0",
		"y_t-1",
		exogName + "_t+0",
		exogName + "_t-1",
		exogName + "_t-2",
		exogName + "_t-3",
	}
}

// TargetColumn returns the regression target column for a horizon
func TargetColumn(horizon int) string {
	return fmt.Sprintf("y_t+%d", horizon)
}

// LeadColumn returns the h-step-ahead price column name
func LeadColumn(horizon int) string {
	return fmt.Sprintf("%s_t+%d", PriceColumn, horizon)
}

// Preprocessor turns a raw exchange-rate table into a model-ready
// frame: business-day filtering, lag/lead construction, log-return
// transforms and the exogenous merge.
type Preprocessor struct {
	exog ExogenousProvider
	spec ExogenousSpec
	log  zerolog.Logger
}

// NewPreprocessor creates a preprocessor
func NewPreprocessor(exog ExogenousProvider, spec ExogenousSpec, log zerolog.Logger) *Preprocessor {
	if spec.Interval == "" {
		spec.Interval = "1d"
	}
	return &Preprocessor{
		exog: exog,
		spec: spec,
		log:  log.With().Str("component", "preprocessor").Logger(),
	}
}

// Run executes the preprocessing pipeline. The input frame must carry
// the raw `iata` price column (or an already canonical `usd_clp` one).
// Every step takes the previous frame and returns a new one; the input
// is never mutated.
func (p *Preprocessor) Run(ctx context.Context, raw *timeseries.Frame, cal calendar.Calendar) (*timeseries.Frame, error) {
	frame, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}

	frame = frame.SortByDate()

	// Keeping non-trading days and forward-filling their prices would
	// inject spurious zero-return observations, so those rows are
	// dropped outright.
	frame = frame.FilterRows(func(i int) bool {
		return cal.Contains(frame.Date(i))
	})

	if frame, err = addPriceShifts(frame); err != nil {
		return nil, err
	}
	if frame, err = addPriceReturns(frame); err != nil {
		return nil, err
	}
	if frame, err = addTargets(frame); err != nil {
		return nil, err
	}

	exog, err := p.exog.DailyCloses(ctx, p.spec.Ticker, p.spec.Start, p.spec.End, p.spec.Name, p.spec.Interval)
	if err != nil {
		return nil, fmt.Errorf("exogenous fetch failed: %w", err)
	}
	frame = frame.LeftJoin(exog)

	if frame, err = imputeExogenous(frame, p.spec.Name); err != nil {
		return nil, err
	}
	if frame, err = addExogenousReturns(frame, p.spec.Name); err != nil {
		return nil, err
	}

	before := frame.Len()
	frame = frame.DropNaNRows(PriceColumn, p.spec.Name+"_t-3")

	p.log.Debug().
		Int("rows", frame.Len()).
		Int("dropped", before-frame.Len()).
		Msg("Preprocessing complete")

	return frame, nil
}

// canonicalize renames the raw price column to its canonical name
func canonicalize(raw *timeseries.Frame) (*timeseries.Frame, error) {
	if raw.HasColumn(PriceColumn) {
		return raw, nil
	}
	if raw.HasColumn(SourceColumn) {
		return raw.Rename(SourceColumn, PriceColumn)
	}
	return nil, fmt.Errorf("%w: input is missing price column %q",
		timeseries.ErrInvalidInput, SourceColumn)
}

// addPriceShifts adds the lagged (t-1) and leading (t+1..t+3) copies of
// the price. Shifts operate on the filtered row order: gaps left by
// dropped non-trading days are not re-filled.
func addPriceShifts(frame *timeseries.Frame) (*timeseries.Frame, error) {
	price, err := frame.Column(PriceColumn)
	if err != nil {
		return nil, err
	}

	var out = frame
	for _, s := range []struct {
		name  string
		steps int
	}{
		{PriceColumn + "_t-1", 1},
		{PriceColumn + "_t+1", -1},
		{PriceColumn + "_t+2", -2},
		{PriceColumn + "_t+3", -3},
	} {
		if out, err = out.WithColumn(s.name, timeseries.Shift(price, s.steps)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// addPriceReturns computes the one-step log-return of the price and two
// backward lags of it. The return looks backward: on row t it compares
// yesterday's price against today's, y_t+0 = log(p[t-1]) - log(p[t]).
func addPriceReturns(frame *timeseries.Frame) (*timeseries.Frame, error) {
	price, err := frame.Column(PriceColumn)
	if err != nil {
		return nil, err
	}
	lagged, err := frame.Column(PriceColumn + "_t-1")
	if err != nil {
		return nil, err
	}

	ret := make([]float64, len(price))
	for i := range ret {
		ret[i] = formulas.LogReturn(lagged[i], price[i])
	}

	out, err := frame.WithColumn("y_t+0", ret)
	if err != nil {
		return nil, err
	}
	if out, err = out.WithColumn("y_t-1", timeseries.Shift(ret, 1)); err != nil {
		return nil, err
	}
	return out.WithColumn("y_t-2", timeseries.Shift(ret, 2))
}

// addTargets computes the 1/2/3-step-ahead log-returns used as
// regression targets, y_t+k = log(p[t+k]) - log(p[t])
func addTargets(frame *timeseries.Frame) (*timeseries.Frame, error) {
	price, err := frame.Column(PriceColumn)
	if err != nil {
		return nil, err
	}

	out := frame
	for h := 1; h <= 3; h++ {
		lead, err := out.Column(LeadColumn(h))
		if err != nil {
			return nil, err
		}
		target := make([]float64, len(price))
		for i := range target {
			target[i] = formulas.LogReturn(lead[i], price[i])
		}
		if out, err = out.WithColumn(TargetColumn(h), target); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// imputeExogenous bridges single missing exogenous observations with
// the average of the immediately preceding and following values.
// Runs of two or more consecutive missing values stay missing: the
// neighbors used for the average are themselves missing. Known
// limitation, resolved by the final NaN drop.
func imputeExogenous(frame *timeseries.Frame, name string) (*timeseries.Frame, error) {
	closeCol := name + "_close"
	orig, err := frame.Column(closeCol)
	if err != nil {
		return nil, err
	}

	imputed := make([]float64, len(orig))
	copy(imputed, orig)
	for i := range orig {
		if !math.IsNaN(orig[i]) {
			continue
		}
		if i > 0 && i < len(orig)-1 {
			imputed[i] = (orig[i-1] + orig[i+1]) / 2
		}
	}

	return frame.WithColumn(closeCol, imputed)
}

// addExogenousReturns computes the exogenous one-step log-return and
// three backward lags, {name}_t+0 = log(c[t]) - log(c[t-1])
func addExogenousReturns(frame *timeseries.Frame, name string) (*timeseries.Frame, error) {
	closes, err := frame.Column(name + "_close")
	if err != nil {
		return nil, err
	}

	lagged := timeseries.Shift(closes, 1)
	ret := make([]float64, len(closes))
	for i := range ret {
		ret[i] = formulas.LogReturn(closes[i], lagged[i])
	}

	out, err := frame.WithColumn(name+"_t+0", ret)
	if err != nil {
		return nil, err
	}
	for lag := 1; lag <= 3; lag++ {
		col := fmt.Sprintf("%s_t-%d", name, lag)
		if out, err = out.WithColumn(col, timeseries.Shift(ret, lag)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
