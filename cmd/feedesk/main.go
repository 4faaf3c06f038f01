package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"feedesk/internal/backend"
	"feedesk/internal/cli"
	apphttp "feedesk/internal/http"
	"feedesk/internal/log"
	"feedesk/internal/services"
	"feedesk/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	recorderOpts := []services.RecorderOption{
		services.WithLocation(loc),
		services.WithLogger(logger),
	}
	broker, err := backend.NewBroker(backendCfg, logger.Logger)
	if err != nil {
		// Payments are still recorded; the worker's sweep picks them up.
		logger.Warn("AMQP unavailable, continuing without publishing", "error", err)
	}
	if broker != nil {
		defer broker.Close()
		recorderOpts = append(recorderOpts, services.WithPublisher(broker))
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Recorder:         services.NewPaymentRecorder(repo, recorderOpts...),
		Dashboard:        services.NewDashboardService(repo, loc),
		Payments:         repo,
		Health:           repo,
		Sessions:         session.NewManager(cfg.SessionSecret, cfg.SessionCookie, cfg.SessionTTL),
		Logger:           logger,
		SchoolName:       cfg.SchoolName,
		Location:         loc,
		PaymentRateLimit: cfg.PaymentRateLimit,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting feedesk server",
		"port", cfg.Port,
		"timezone", loc.String(),
		"amqp", broker != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
