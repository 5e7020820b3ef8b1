package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/neexbeast/weather-report/internal/api"
	"github.com/neexbeast/weather-report/internal/cache"
	"github.com/neexbeast/weather-report/internal/config"
	"github.com/neexbeast/weather-report/internal/report"
	"github.com/neexbeast/weather-report/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Connect to Redis, or fall back to the in-process store.
	store, closeStore, err := cache.Open(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer func() { _ = closeStore() }()
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-memory cache")
	}

	// Wire dependencies.
	geocoder := weather.NewGeocodingClient(cfg.GeocodingClient(), store, log)
	forecaster := weather.NewForecastClient(cfg.ForecastClient(), store, log)
	service := report.NewService(geocoder, forecaster, log, report.Options{MaxResults: cfg.GeocodeMaxResults})

	gate := api.NewGate(cfg.Password, uuid.NewString(), log)
	if gate.Enabled() {
		log.Info("password gate enabled")
	}
	handlers := api.NewHandlers(service, gate, log)
	router := api.NewRouter(handlers, store, cfg.RateLimitPerMinute, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}
