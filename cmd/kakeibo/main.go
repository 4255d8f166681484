package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

// app bundles the pieces every subcommand needs. One-shot commands run
// without AMQP; only serve dials the broker.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *storage.SQLiteRepository
	ledger    *services.LedgerService
	export    *services.ExportService
	importer  *services.ImportService
	retention *services.RetentionService
}

func newApp(withAMQP bool) *app {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogFile)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	var amqpClient *amqp.Client
	if withAMQP && cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSyncQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, sync messages will not be published", "error", err)
		}
	}

	ledger := services.NewLedgerService(repo, amqpClient)
	export := services.NewExportService(repo)
	return &app{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		ledger:    ledger,
		export:    export,
		importer:  services.NewImportService(ledger),
		retention: services.NewRetentionService(repo, export, cfg.BackupDir),
	}
}

func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		a.logger.Error("Close failed", "error", err)
	}
}

func main() {
	root := &cobra.Command{
		Use:           "kakeibo",
		Short:         "Household ledger: record entries, monthly reports, backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newInitDBCmd(),
		newAddCmd(),
		newListCmd(),
		newSummaryCmd(),
		newStatsCmd(),
		newMonthsCmd(),
		newExportCmd(),
		newCompareCmd(),
		newImportCmd(),
		newBackupCmd(),
		newArchiveCmd(),
		newRestoreCmd(),
		newCleanupCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
