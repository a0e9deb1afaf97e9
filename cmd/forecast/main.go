package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fxforecast/internal/calendar"
	"fxforecast/internal/config"
	"fxforecast/internal/forecast"
	"fxforecast/internal/marketdata"
	"fxforecast/internal/pipeline"
	"fxforecast/internal/timeseries"
	"fxforecast/pkg/logger"
)

var (
	lastTrainDate   string
	confidenceLevel float64
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "One-shot exchange-rate forecast",
	Long: `Runs the full forecast flow once and prints the report as JSON:
calendar construction, preprocessing, train/inference split and one
regression per horizon (t+1, t+2, t+3).`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&lastTrainDate, "last-train-date", "",
		"cutoff date (YYYY-MM-DD), defaults to today")
	rootCmd.Flags().Float64Var(&confidenceLevel, "confidence-level", 0.95,
		"two-sided confidence level for forecast intervals")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn",
		"log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: logLevel, Pretty: true})

	cutoff := lastTrainDate
	if cutoff == "" {
		cutoff = time.Now().UTC().Format(timeseries.DateLayout)
	}

	calendars := calendar.NewProvider(cfg.DateShiftDays, log)
	exog := marketdata.NewClient(cfg.DateShiftDays, log)

	pre := pipeline.NewPreprocessor(exog, pipeline.ExogenousSpec{
		Ticker:   cfg.ExogTicker,
		Name:     cfg.ExogName,
		Start:    cfg.ExogStart,
		End:      cfg.ExogEnd,
		Interval: cfg.ExogInterval,
	}, log)

	svc := forecast.NewService(cfg, calendars, pre, log)

	report, err := svc.Run(cmd.Context(), cutoff, confidenceLevel)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
