package calendar

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRangeShiftsTradingDays(t *testing.T) {
	p := NewProvider(1, zerolog.Nop())

	// Native NYSE days in the first week of 2024: Jan 1 is New Year's
	// Day, Jan 6/7 are a weekend
	cal, err := p.Range("NYSE", "2024-01-01", "2024-01-10")
	require.NoError(t, err)

	want := []time.Time{
		date("2024-01-03"), // Jan 2 shifted
		date("2024-01-04"),
		date("2024-01-05"),
		date("2024-01-06"),
		date("2024-01-09"), // Jan 8 shifted
		date("2024-01-10"),
		date("2024-01-11"),
	}
	assert.Equal(t, want, cal.Dates())
}

func TestRangeExcludesHolidays(t *testing.T) {
	p := NewProvider(0, zerolog.Nop())

	tests := []struct {
		name    string
		holiday string
	}{
		{name: "New Year's Day", holiday: "2024-01-01"},
		{name: "MLK Day", holiday: "2024-01-15"},
		{name: "Washington's Birthday", holiday: "2024-02-19"},
		{name: "Good Friday", holiday: "2024-03-29"},
		{name: "Memorial Day", holiday: "2024-05-27"},
		{name: "Juneteenth", holiday: "2024-06-19"},
		{name: "Independence Day", holiday: "2024-07-04"},
		{name: "Labor Day", holiday: "2024-09-02"},
		{name: "Thanksgiving", holiday: "2024-11-28"},
		{name: "Christmas", holiday: "2024-12-25"},
	}

	cal, err := p.Range("CME_Currency", "2024-01-01", "2024-12-31")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, cal.Contains(date(tt.holiday)))
		})
	}
}

func TestRangeObservedHoliday(t *testing.T) {
	p := NewProvider(0, zerolog.Nop())

	// July 4 2026 is a Saturday, observed Friday July 3
	cal, err := p.Range("NYSE", "2026-06-29", "2026-07-10")
	require.NoError(t, err)

	assert.False(t, cal.Contains(date("2026-07-03")))
	assert.True(t, cal.Contains(date("2026-07-02")))
	assert.True(t, cal.Contains(date("2026-07-06")))
}

func TestRangeStrictlyIncreasing(t *testing.T) {
	p := NewProvider(1, zerolog.Nop())

	cal, err := p.Range("CME_Currency", "2024-01-01", "2024-06-30")
	require.NoError(t, err)
	require.Greater(t, cal.Len(), 0)

	dates := cal.Dates()
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]), "dates must be strictly increasing")
	}
}

func TestRangeErrors(t *testing.T) {
	p := NewProvider(1, zerolog.Nop())

	tests := []struct {
		name    string
		market  string
		start   string
		end     string
		wantErr error
	}{
		{name: "unknown market", market: "LSE", start: "2024-01-01", end: "2024-02-01", wantErr: ErrUnknownMarket},
		{name: "malformed start", market: "NYSE", start: "01-01-2024", end: "2024-02-01", wantErr: ErrInvalidInterval},
		{name: "malformed end", market: "NYSE", start: "2024-01-01", end: "not-a-date", wantErr: ErrInvalidInterval},
		{name: "inverted interval", market: "NYSE", start: "2024-02-01", end: "2024-01-01", wantErr: ErrInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Range(tt.market, tt.start, tt.end)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestContains(t *testing.T) {
	cal := FromDates([]time.Time{
		date("2024-01-02"),
		date("2024-01-03"),
		date("2024-01-04"),
	})

	assert.True(t, cal.Contains(date("2024-01-02")))
	assert.True(t, cal.Contains(date("2024-01-04")))

	// Not business days: inside and outside the generating range
	assert.False(t, cal.Contains(date("2024-01-01")))
	assert.False(t, cal.Contains(date("2024-01-05")))
	assert.False(t, cal.Contains(date("1999-12-31")))
	assert.False(t, cal.Contains(date("2030-06-15")))
}

func TestContainsNormalizesTimestamps(t *testing.T) {
	cal := FromDates([]time.Time{date("2024-01-02")})

	noon := time.Date(2024, time.January, 2, 12, 30, 0, 0, time.UTC)
	assert.True(t, cal.Contains(noon))
}

func TestFromDatesDeduplicatesAndSorts(t *testing.T) {
	cal := FromDates([]time.Time{
		date("2024-01-04"),
		date("2024-01-02"),
		date("2024-01-04"),
		date("2024-01-03"),
	})

	assert.Equal(t, 3, cal.Len())
	assert.Equal(t, []time.Time{
		date("2024-01-02"),
		date("2024-01-03"),
		date("2024-01-04"),
	}, cal.Dates())
}
