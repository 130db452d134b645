// Package main is the entry point for the irricast API server.
//
// It loads configuration, wires the weather client, model selector,
// decision engine, schedule builder, and advisor behind the core chassis,
// and serves HTTP until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"irricast/internal/advisor"
	"irricast/internal/api/handlers"
	"irricast/internal/config"
	"irricast/internal/core"
	"irricast/internal/engine"
	"irricast/internal/model"
	"irricast/internal/schedule"
	"irricast/internal/store"
	"irricast/internal/types"
	"irricast/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("irricast API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	clock := types.RealClock{}

	// Weather: resilient upstream behind the TTL + singleflight cache.
	upstream := weather.NewUpstream(cfg.Weather.BaseURL, &http.Client{Timeout: cfg.Weather.Timeout})
	weatherClient := weather.NewClient(upstream, cfg.Weather, clock, logger)

	// Decision pipeline.
	selector := model.NewSelector(cfg.Model, clock, logger)
	ruleEngine := engine.New(engine.ThresholdsFromConfig(cfg.Rules))
	builder := schedule.NewBuilder(weatherClient, ruleEngine, clock, logger)
	adv := advisor.New(selector, clock, logger)

	// Optional sensor store for store-backed reloads.
	var history types.HistorySource
	var probes []core.HealthProbe
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := store.NewPool(ctx, cfg.Database)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting sensor store: %w", err)
		}
		defer pool.Close()

		history = store.NewSensorHistoryRepo(pool)
		probes = append(probes, core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		})
	}

	service := advisor.NewService(adv, builder, history)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = probes

	scheduleHandler := handlers.NewScheduleHandler(service, srv.Validator, logger, cfg.Weather.MaxDays)
	datasetHandler := handlers.NewDatasetHandler(service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { scheduleHandler.RegisterRoutes(r) },
		func(r chi.Router) { datasetHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
