package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("")
	logger.Info("Starting sync-worker")

	conf := cli.LoadAndValidateConfig(logger)
	if conf.LogFile != "" {
		logger = cli.SetupLogger(conf.LogFile)
	}

	repo := cli.InitSQLite(logger, conf.SQLiteDBPath)
	defer repo.Close()

	// Mirror target: Google Sheets when configured, in-memory otherwise so
	// the sync pipeline can still be exercised locally.
	var syncWorker *worker.SyncWorker
	if conf.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", conf.GoogleSpreadsheetID)
		syncWorker = worker.NewSyncWorker(repo, sheetsClient, sheetsClient, conf.SyncBatchSize)
	} else {
		logger.Info("Google Sheets disabled - mirroring to in-memory store")
		mem := memory.New()
		syncWorker = worker.NewSyncWorker(repo, mem, mem, conf.SyncBatchSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// On startup, drain any entries missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	g, ctx := errgroup.WithContext(ctx)

	// Queue consumer with reconnect.
	g.Go(func() error {
		dial := func() (*amqp.Client, error) {
			return amqp.NewClient(conf.AMQPURL, conf.AMQPExchange, conf.AMQPSyncQueue, conf.AMQPReminderQueue)
		}
		handler := func(msg *amqp.EntrySyncMessage) error {
			return syncWorker.HandleSyncMessage(ctx, msg)
		}
		return amqp.ConsumeEntrySyncWithReconnect(ctx, dial, handler)
	})

	// Periodic safety net for lost queue messages.
	g.Go(func() error {
		ticker := time.NewTicker(conf.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic pending sync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Sync worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Sync worker shut down")
}
