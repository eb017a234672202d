// Package main provides the entrypoint for the CheckTheBay API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/checkthebay/checkthebay/internal/api"
	"github.com/checkthebay/checkthebay/internal/api/middleware"
	"github.com/checkthebay/checkthebay/internal/app"
	"github.com/checkthebay/checkthebay/internal/config"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/scheduler"
	"github.com/checkthebay/checkthebay/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "checkthebay-api"

	log := app.NewLogger(os.Stdout, serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CheckTheBay API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble conditions pipeline")
	}
	defer pipeline.Close()

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(scheduler.Config{
			Name:     "conditions",
			Interval: cfg.PollInterval,
			Job:      pipeline.PollJob.Refresh,
			Logger:   log,
		})
		sched.Start(ctx)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		Logger:           log,
		ServiceName:      serviceName,
		Metrics:          metrics,
		Store:            pipeline.Store,
		Refresher:        pipeline.PollJob,
		Registry:         pipeline.Registry,
		Stations:         pipeline.Stations,
		PrimaryStationID: conditions.PrimaryStationID,
		TideSeries:       pipeline.Clients.WorldTides,
		TidePredictor:    pipeline.Clients.NOAA,
		ReefsPath:        cfg.ReefsPath,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // POST /v1/conditions/refresh polls every feed
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if sched != nil {
		sched.Stop()
		sched.Wait()
	}

	log.Info().Msg("server stopped")
}
