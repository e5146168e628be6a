package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/notify-dispatch/internal/app"
	"github.com/ignite/notify-dispatch/internal/config"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file, empty for defaults")
	flag.Parse()

	if *configPath != "" {
		if _, err := os.Stat(*configPath); err != nil {
			logger.Warn("config file not found, using defaults", "path", *configPath)
			*configPath = ""
		}
	}
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Queue.Driver != "sqs" {
		logger.Error("the worker consumes SQS; set SQS_QUEUE_URL or queue.driver: sqs", "driver", cfg.Queue.Driver)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to assemble engine", "error", err)
		os.Exit(1)
	}
	if err := engine.Start(ctx, app.StartOptions{Consumer: true, Scheduler: cfg.Scheduler.Enabled}); err != nil {
		logger.Error("failed to start worker", "error", err)
		engine.Close()
		os.Exit(1)
	}

	// Heartbeat so an idle worker is still visible in the logs.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("worker heartbeat", "scheduler", cfg.Scheduler.Enabled)
			}
		}
	}()

	logger.Info("worker running", "queue", cfg.Queue.SQS.QueueURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	engine.Close()
	cancel()
	logger.Info("worker stopped")
}
