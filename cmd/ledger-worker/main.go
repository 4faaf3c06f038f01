package main

import (
	"context"
	"errors"
	"os"
	"time"

	"feedesk/internal/backend"
	"feedesk/internal/cli"
	"feedesk/internal/log"
	"feedesk/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ledger, kind, err := backend.NewLedger(context.Background(), backendCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	broker, err := backend.NewBroker(backendCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	if broker != nil {
		defer broker.Close()
	}

	ledgerWorker := worker.NewLedgerWorker(repo, ledger, cfg.LedgerBatchSize, cfg.LedgerMaxAttempts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check", "ledger", kind)
	if err := ledgerWorker.StartupSyncCheck(ctx); err != nil {
		// The sweep retries whatever is still pending.
		logger.Error("Startup sync check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewSweeper(ledgerWorker, cfg.LedgerSyncInterval).Run(gctx)
	})
	if broker != nil {
		g.Go(func() error {
			return broker.ConsumePaymentRecorded(gctx, ledgerWorker.HandlePaymentRecorded)
		})
	} else {
		logger.Info("AMQP disabled, relying on the periodic sweep", "interval", cfg.LedgerSyncInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger worker stopped")
}
