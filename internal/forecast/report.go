package forecast

import "time"

// Interval is a confidence interval in price space. Lower and Upper are
// nil when the model produced no residual statistics.
type Interval struct {
	ConfidenceLevel float64  `json:"confidence_level"`
	Lower           *float64 `json:"lower"`
	Upper           *float64 `json:"upper"`
}

// HorizonForecast is the forecast for one step ahead
type HorizonForecast struct {
	Horizon        int      `json:"horizon"`
	TargetDate     string   `json:"target_date"`
	BaseValue      float64  `json:"base_value"`
	ForecastValue  float64  `json:"forecast_value"`
	Confidence     Interval `json:"confidence"`
	ObservedValue  *float64 `json:"observed_value"`
	ForecastReturn float64  `json:"forecast_return"`
	ObservedReturn *float64 `json:"observed_return"`
}

// Diagnostics carries trailing indicators of the filtered
// exchange-rate series, attached to the report for context
type Diagnostics struct {
	RSI14 *float64 `json:"rsi_14"`
	SMA20 *float64 `json:"sma_20"`
}

// Report is the full output of one forecast run: the forecast base
// date and one entry per horizon
type Report struct {
	CurrentDate     string            `json:"current_date"`
	ConfidenceLevel float64           `json:"confidence_level"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Horizons        []HorizonForecast `json:"forecast"`
	Diagnostics     Diagnostics       `json:"diagnostics"`
}
