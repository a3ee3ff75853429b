package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"utmtrack/internal/delivery"
	"utmtrack/internal/domain"
	"utmtrack/internal/infrastructure"
	"utmtrack/internal/usecase"
	"utmtrack/pkg/config"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting server")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, closeStore, err := newAttributionStore(ctx, cfg.Session, log, m)
	if err != nil {
		return err
	}
	defer closeStore()

	client := infrastructure.NewMeasurementClient(infrastructure.MeasurementConfig{
		Endpoint:           cfg.Analytics.Endpoint,
		MeasurementID:      cfg.Analytics.MeasurementID,
		APISecret:          cfg.Analytics.APISecret,
		Debug:              cfg.Analytics.Debug,
		Timeout:            cfg.Analytics.RequestTimeout,
		QueueSize:          cfg.Analytics.QueueSize,
		BatchSize:          cfg.Analytics.BatchSize,
		FlushInterval:      cfg.Analytics.FlushInterval,
		RateLimitPerSecond: cfg.Analytics.RateLimitPerSecond,
	}, log, m)

	if err := client.Start(ctx); err != nil {
		// the service still runs; every send is skipped until restarted with credentials
		log.WithError(err).Warn("Analytics disabled")
	}

	gate := usecase.NewGate(client, cfg.Analytics.ReadyPollInterval, cfg.Analytics.ReadyMaxAttempts, log, m)
	go func() {
		if ready := <-gate.WaitForReadyAsync(ctx); !ready {
			log.Warn("Analytics did not become ready; events will be skipped")
		}
	}()

	attribution := usecase.NewAttributionService(store, domain.DefaultCatalog, log, m)
	dispatcher := usecase.NewDispatcher(client, gate, attribution, log, m)
	handlers := delivery.NewHTTPHandlers(attribution, dispatcher, gate, log)
	router := delivery.NewHTTPRouter(handlers, cfg.Server, cfg.Session, log, m)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := client.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Analytics queue shutdown failed")
	}
	return nil
}

func newAttributionStore(ctx context.Context, cfg config.SessionConfig, log *logger.Logger, m *metrics.Metrics) (domain.AttributionStore, func(), error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		client, err := infrastructure.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect session store: %w", err)
		}
		log.WithField("backend", cfg.Backend).Info("Session store ready")
		return infrastructure.NewRedisSessionStore(client, cfg.TTL, m), func() { _ = client.Close() }, nil
	default:
		store := infrastructure.NewMemorySessionStore(cfg.TTL, log, m)
		go store.RunSweeper(ctx, cfg.TTL)
		log.WithField("backend", cfg.Backend).Info("Session store ready")
		return store, func() {}, nil
	}
}
