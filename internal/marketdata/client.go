package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"fxforecast/internal/timeseries"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches daily close prices from the Yahoo Finance chart API.
// Failures propagate unmodified to the caller: no retry, no fallback
// data, no local caching.
type Client struct {
	client    *http.Client
	baseURL   string
	shiftDays int
	log       zerolog.Logger
}

// NewClient creates a new market-data client. shiftDays must match the
// calendar provider's shift so merged series align on date.
func NewClient(shiftDays int, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   defaultBaseURL,
		shiftDays: shiftDays,
		log:       log.With().Str("client", "marketdata").Logger(),
	}
}

// chartResponse mirrors the relevant subset of the Yahoo chart API payload
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// DailyCloses fetches close prices for a ticker over [start, end] (ISO
// dates) at the given sampling interval ("1d" when empty). The result
// is a date-indexed frame with a single `{name}_close` column, one row
// per trading day, timestamps normalized to date-only granularity and
// shifted forward by the configured number of days.
func (c *Client) DailyCloses(ctx context.Context, ticker, start, end, name, interval string) (*timeseries.Frame, error) {
	if interval == "" {
		interval = "1d"
	}

	from, err := time.Parse(timeseries.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("malformed start date %q: %w", start, err)
	}
	to, err := time.Parse(timeseries.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("malformed end date %q: %w", end, err)
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker))

	params := url.Values{}
	params.Add("period1", fmt.Sprintf("%d", from.UTC().Unix()))
	params.Add("period2", fmt.Sprintf("%d", to.UTC().Unix()))
	params.Add("interval", interval)
	params.Add("events", "history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chart API returned status %d for %s: %s", resp.StatusCode, ticker, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %v", ticker, result.Chart.Error)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no data returned for %s", ticker)
	}

	chartData := result.Chart.Result[0]
	quote := chartData.Indicators.Quote[0]

	type obs struct {
		date  time.Time
		close float64
	}

	// One row per trading day: keep the last observation of each date
	byDate := make(map[time.Time]float64, len(chartData.Timestamp))
	for i, ts := range chartData.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		day := timeseries.Normalize(time.Unix(ts, 0).UTC()).AddDate(0, 0, c.shiftDays)
		byDate[day] = quote.Close[i]
	}

	ordered := make([]obs, 0, len(byDate))
	for d, v := range byDate {
		ordered = append(ordered, obs{date: d, close: v})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].date.Before(ordered[j].date) })

	dates := make([]time.Time, len(ordered))
	closes := make([]float64, len(ordered))
	for i, o := range ordered {
		dates[i] = o.date
		closes[i] = o.close
	}

	frame, err := timeseries.New(dates).WithColumn(name+"_close", closes)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("ticker", ticker).
		Str("interval", interval).
		Int("count", frame.Len()).
		Msg("Fetched daily closes")

	return frame, nil
}
