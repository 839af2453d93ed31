package farmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stakefarm/config"
	"stakefarm/observability/logging"
	telemetry "stakefarm/observability/otel"
	"stakefarm/storage"
)

// Main initialises and runs the farm daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "farmd.toml", "path to farmd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logger := logging.Setup("farmd", cfg.Environment, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "farmd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	app, err := Build(cfg, db, nil, logger)
	if err != nil {
		return fmt.Errorf("init farm: %w", err)
	}
	defer func() { _ = app.Close() }()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      telemetry.Handler("farmd", app.Server),
		ReadTimeout:  seconds(cfg.HTTP.ReadTimeoutSecs, 15),
		WriteTimeout: seconds(cfg.HTTP.WriteTimeoutSecs, 30),
		IdleTimeout:  seconds(cfg.HTTP.IdleTimeoutSecs, 60),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("farmd listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("pool", app.Engine.PoolID()),
			slog.String("storage", cfg.StorageBackend))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.HTTP.ShutdownTimeoutSecs, 10))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		logger.Info("farmd stopped")
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func seconds(value uint32, fallback uint32) time.Duration {
	if value == 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
