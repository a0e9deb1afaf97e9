package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxforecast/internal/calendar"
	"fxforecast/internal/timeseries"
)

func date(s string) time.Time {
	t, err := time.Parse(timeseries.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// weekdays returns consecutive weekday dates starting at the given day
func weekdays(start string, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := date(start)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// stubExog serves a fixed frame as the exogenous series
type stubExog struct {
	frame *timeseries.Frame
	err   error
}

func (s *stubExog) DailyCloses(ctx context.Context, ticker, start, end, name, interval string) (*timeseries.Frame, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

// buildRaw creates a raw frame with a pseudo-random walk price over
// the given dates
func buildRaw(t *testing.T, dates []time.Time, seed int64) *timeseries.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	prices := make([]float64, len(dates))
	p := 900.0
	for i := range prices {
		p *= 1 + 0.01*rng.NormFloat64()
		prices[i] = p
	}

	raw, err := timeseries.New(dates).WithColumn("iata", prices)
	require.NoError(t, err)
	return raw
}

// buildExog creates an exogenous frame over the given dates
func buildExog(t *testing.T, dates []time.Time, seed int64) *timeseries.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	closes := make([]float64, len(dates))
	c := 4.0
	for i := range closes {
		c *= 1 + 0.01*rng.NormFloat64()
		closes[i] = c
	}

	exog, err := timeseries.New(dates).WithColumn("copper_close", closes)
	require.NoError(t, err)
	return exog
}

func newPreprocessor(exog ExogenousProvider) *Preprocessor {
	return NewPreprocessor(exog, ExogenousSpec{
		Ticker: "HG=F",
		Name:   "copper",
		Start:  "2024-01-01",
		End:    "2024-03-31",
	}, zerolog.Nop())
}

func TestRunProducesModelColumns(t *testing.T) {
	days := weekdays("2024-01-08", 30)
	raw := buildRaw(t, days, 1)
	exog := &stubExog{frame: buildExog(t, days, 2)}
	cal := calendar.FromDates(days)

	out, err := newPreprocessor(exog).Run(context.Background(), raw, cal)
	require.NoError(t, err)
	require.Greater(t, out.Len(), 0)

	for _, col := range []string{
		"usd_clp", "usd_clp_t-1", "usd_clp_t+1", "usd_clp_t+2", "usd_clp_t+3",
		"y_t+0", "y_t-1", "y_t-2", "y_t+1", "y_t+2", "y_t+3",
		"copper_close", "copper_t+0", "copper_t-1", "copper_t-2", "copper_t-3",
	} {
		assert.True(t, out.HasColumn(col), "missing column %s", col)
	}

	// The final drop leaves no NaN in the required columns
	for i := 0; i < out.Len(); i++ {
		assert.False(t, math.IsNaN(out.Value("usd_clp", i)))
		assert.False(t, math.IsNaN(out.Value("copper_t-3", i)))
	}
}

func TestRunLogReturnRoundTrip(t *testing.T) {
	days := weekdays("2024-01-08", 30)
	raw := buildRaw(t, days, 3)
	exog := &stubExog{frame: buildExog(t, days, 4)}
	cal := calendar.FromDates(days)

	out, err := newPreprocessor(exog).Run(context.Background(), raw, cal)
	require.NoError(t, err)
	require.Greater(t, out.Len(), 2)

	// y_t+0 on each row equals log(p0) - log(p1) of adjacent business
	// days, with p0 the earlier price
	for i := 1; i < out.Len(); i++ {
		p0 := out.Value("usd_clp", i-1)
		p1 := out.Value("usd_clp", i)
		assert.InDelta(t, math.Log(p0)-math.Log(p1), out.Value("y_t+0", i), 1e-12)
	}

	// y_t+k mirrors the same construction looking forward
	for i := 0; i < out.Len()-3; i++ {
		p := out.Value("usd_clp", i)
		for h := 1; h <= 3; h++ {
			lead := out.Value("usd_clp", i+h)
			assert.InDelta(t, math.Log(lead)-math.Log(p), out.Value(TargetColumn(h), i), 1e-12)
		}
	}
}

func TestRunDropsNonTradingDays(t *testing.T) {
	days := weekdays("2024-01-08", 20)

	// The raw table carries weekend rows too
	all := []time.Time{}
	d := days[0]
	for !d.After(days[len(days)-1]) {
		all = append(all, d)
		d = d.AddDate(0, 0, 1)
	}
	raw := buildRaw(t, all, 5)
	exog := &stubExog{frame: buildExog(t, days, 6)}
	cal := calendar.FromDates(days)

	out, err := newPreprocessor(exog).Run(context.Background(), raw, cal)
	require.NoError(t, err)

	for i := 0; i < out.Len(); i++ {
		wd := out.Date(i).Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestRunSortsUnorderedInput(t *testing.T) {
	days := weekdays("2024-01-08", 25)
	raw := buildRaw(t, days, 7)
	exog := &stubExog{frame: buildExog(t, days, 8)}
	cal := calendar.FromDates(days)

	// Reverse the raw row order
	idx := make([]time.Time, 0, raw.Len())
	vals := make([]float64, 0, raw.Len())
	for i := raw.Len() - 1; i >= 0; i-- {
		idx = append(idx, raw.Date(i))
		vals = append(vals, raw.Value("iata", i))
	}
	reversed, err := timeseries.New(idx).WithColumn("iata", vals)
	require.NoError(t, err)

	p := newPreprocessor(exog)
	fromSorted, err := p.Run(context.Background(), raw, cal)
	require.NoError(t, err)
	fromReversed, err := p.Run(context.Background(), reversed, cal)
	require.NoError(t, err)

	require.Equal(t, fromSorted.Len(), fromReversed.Len())
	for i := 0; i < fromSorted.Len(); i++ {
		assert.Equal(t, fromSorted.Date(i), fromReversed.Date(i))
		assert.Equal(t, fromSorted.Value("y_t+0", i), fromReversed.Value("y_t+0", i))
	}
}

func TestRunDeterministic(t *testing.T) {
	days := weekdays("2024-01-08", 25)
	raw := buildRaw(t, days, 9)
	exog := &stubExog{frame: buildExog(t, days, 10)}
	cal := calendar.FromDates(days)

	p := newPreprocessor(exog)
	first, err := p.Run(context.Background(), raw, cal)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), raw, cal)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	require.Equal(t, first.Columns(), second.Columns())
	for _, col := range first.Columns() {
		a, err := first.Column(col)
		require.NoError(t, err)
		b, err := second.Column(col)
		require.NoError(t, err)
		for i := range a {
			if math.IsNaN(a[i]) {
				assert.True(t, math.IsNaN(b[i]))
			} else {
				assert.Equal(t, a[i], b[i])
			}
		}
	}
}

func TestRunImputesSingleGap(t *testing.T) {
	days := weekdays("2024-01-08", 30)
	raw := buildRaw(t, days, 11)

	// Punch a single-day hole in the middle of the exogenous series
	exogFrame := buildExog(t, days, 12)
	closes, err := exogFrame.Column("copper_close")
	require.NoError(t, err)
	gap := 15
	before, after := closes[gap-1], closes[gap+1]
	closes[gap] = math.NaN()
	exogFrame, err = exogFrame.WithColumn("copper_close", closes)
	require.NoError(t, err)

	cal := calendar.FromDates(days)
	out, err := newPreprocessor(&stubExog{frame: exogFrame}).Run(context.Background(), raw, cal)
	require.NoError(t, err)

	// Find the gap date in the output and check the bridge fill
	found := false
	for i := 0; i < out.Len(); i++ {
		if out.Date(i).Equal(days[gap]) {
			assert.InDelta(t, (before+after)/2, out.Value("copper_close", i), 1e-12)
			found = true
		}
	}
	assert.True(t, found, "gap row should survive preprocessing")
}

func TestRunLeavesConsecutiveGapsMissing(t *testing.T) {
	days := weekdays("2024-01-08", 30)
	raw := buildRaw(t, days, 13)

	exogFrame := buildExog(t, days, 14)
	closes, err := exogFrame.Column("copper_close")
	require.NoError(t, err)
	closes[14] = math.NaN()
	closes[15] = math.NaN()
	exogFrame, err = exogFrame.WithColumn("copper_close", closes)
	require.NoError(t, err)

	cal := calendar.FromDates(days)
	out, err := newPreprocessor(&stubExog{frame: exogFrame}).Run(context.Background(), raw, cal)
	require.NoError(t, err)

	// Averaging neighbors that are themselves missing yields another
	// missing value, so both gap rows keep NaN features. They stay in
	// the frame and the per-horizon drop deals with them at fit time.
	checked := 0
	for i := 0; i < out.Len(); i++ {
		if out.Date(i).Equal(days[14]) || out.Date(i).Equal(days[15]) {
			assert.True(t, math.IsNaN(out.Value("copper_close", i)))
			assert.True(t, math.IsNaN(out.Value("copper_t+0", i)))
			checked++
		}
	}
	assert.Equal(t, 2, checked)
}

func TestRunMissingPriceColumn(t *testing.T) {
	days := weekdays("2024-01-08", 10)
	raw, err := timeseries.New(days).WithColumn("other", make([]float64, len(days)))
	require.NoError(t, err)

	exog := &stubExog{frame: buildExog(t, days, 15)}
	cal := calendar.FromDates(days)

	_, err = newPreprocessor(exog).Run(context.Background(), raw, cal)
	assert.ErrorIs(t, err, timeseries.ErrInvalidInput)
}

func TestRunPropagatesExogError(t *testing.T) {
	days := weekdays("2024-01-08", 10)
	raw := buildRaw(t, days, 16)
	cal := calendar.FromDates(days)

	fetchErr := errors.New("connection refused")
	_, err := newPreprocessor(&stubExog{err: fetchErr}).Run(context.Background(), raw, cal)
	assert.ErrorIs(t, err, fetchErr)
}
