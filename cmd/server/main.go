package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxforecast/internal/calendar"
	"fxforecast/internal/config"
	"fxforecast/internal/database"
	"fxforecast/internal/forecast"
	"fxforecast/internal/marketdata"
	"fxforecast/internal/pipeline"
	"fxforecast/internal/scheduler"
	"fxforecast/internal/server"
	"fxforecast/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting fxforecast")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	repo := forecast.NewRepository(db.Conn(), log)
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire the forecast flow. The calendar provider and market-data
	// client share the same date shift from config.
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

	// Initialize scheduler with the daily forecast job
	sched := scheduler.New(log)
	job := forecast.NewDailyJob(svc, repo, cfg.ConfidenceLevel, log)
	if err := sched.AddJob(cfg.ForecastSchedule, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to register forecast job")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Forecast: forecast.NewHandler(svc, repo, cfg.ConfidenceLevel, log),
		DevMode:  cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
