package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/scheduler"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("")
	logger.Info("Starting reminder-worker")

	conf := cli.LoadAndValidateConfig(logger)
	if conf.LogFile != "" {
		logger = cli.SetupLogger(conf.LogFile)
	}

	amqpClient, err := amqp.NewClient(conf.AMQPURL, conf.AMQPExchange, conf.AMQPSyncQueue, conf.AMQPReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	daily, err := scheduler.NewDaily(conf.ReminderTime, func(ctx context.Context) error {
		return amqpClient.PublishReminder(ctx, conf.ReminderMessage, conf.ReminderTime)
	})
	if err != nil {
		logger.Error("Invalid reminder time", "value", conf.ReminderTime, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Reminder schedule active",
		"fire_time", conf.ReminderTime,
		"queue", conf.AMQPReminderQueue)

	if err := daily.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Reminder worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Reminder worker shut down")
}
