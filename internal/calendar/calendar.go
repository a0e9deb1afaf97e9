package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"fxforecast/internal/timeseries"
)

// ErrUnknownMarket indicates an unrecognized market identifier
var ErrUnknownMarket = errors.New("calendar: unknown market")

// ErrInvalidInterval indicates malformed or inverted interval dates
var ErrInvalidInterval = errors.New("calendar: invalid date interval")

// Calendar is an ordered set of valid trading dates for one market over
// one interval. Dates are strictly increasing with no duplicates, each
// already shifted forward from the exchange's native day.
type Calendar struct {
	dates []time.Time
	set   map[time.Time]struct{}
}

// FromDates builds a calendar from an arbitrary date list. Dates are
// normalized, de-duplicated and sorted.
func FromDates(dates []time.Time) Calendar {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[timeseries.Normalize(d)] = struct{}{}
	}

	ordered := make([]time.Time, 0, len(set))
	for d := range set {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	return Calendar{dates: ordered, set: set}
}

// Dates returns a copy of the ordered trading dates
func (c Calendar) Dates() []time.Time {
	out := make([]time.Time, len(c.dates))
	copy(out, c.dates)
	return out
}

// Len returns the number of trading dates
func (c Calendar) Len() int {
	return len(c.dates)
}

// Contains reports whether the given date is a trading day. This is the
// business-day predicate: any date outside the calendar, including
// dates outside its generating range, is not a business day.
func (c Calendar) Contains(t time.Time) bool {
	_, ok := c.set[timeseries.Normalize(t)]
	return ok
}

// Provider produces market calendars. The shift is applied to every
// trading date and must match the market-data client's shift so merged
// series align.
type Provider struct {
	shiftDays int
	log       zerolog.Logger
}

// NewProvider creates a calendar provider
func NewProvider(shiftDays int, log zerolog.Logger) *Provider {
	return &Provider{
		shiftDays: shiftDays,
		log:       log.With().Str("component", "calendar").Logger(),
	}
}

// Range returns the ordered trading dates of the given market inside
// [start, end] (inclusive, ISO dates), each shifted forward by the
// configured number of calendar days.
func (p *Provider) Range(market, start, end string) (Calendar, error) {
	schedule, ok := markets[market]
	if !ok {
		return Calendar{}, fmt.Errorf("%w: %q", ErrUnknownMarket, market)
	}

	from, err := time.Parse(timeseries.DateLayout, start)
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: malformed start date %q", ErrInvalidInterval, start)
	}
	to, err := time.Parse(timeseries.DateLayout, end)
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: malformed end date %q", ErrInvalidInterval, end)
	}
	if to.Before(from) {
		return Calendar{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidInterval, end, start)
	}

	var dates []time.Time
	for d := timeseries.Normalize(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if schedule.isTradingDay(d) {
			dates = append(dates, d.AddDate(0, 0, p.shiftDays))
		}
	}

	p.log.Debug().
		Str("market", market).
		Str("start", start).
		Str("end", end).
		Int("days", len(dates)).
		Msg("Built market calendar")

	return FromDates(dates), nil
}
