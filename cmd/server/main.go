package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/notify-dispatch/internal/api"
	"github.com/ignite/notify-dispatch/internal/app"
	"github.com/ignite/notify-dispatch/internal/config"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// checkPortAvailable fails fast when another process owns the port, before
// any background loop starts.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}

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

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		logger.Error("pre-flight check failed", "addr", addr, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to assemble engine", "error", err)
		os.Exit(1)
	}

	// The server always drains the in-process queue. With SQS, sends are
	// consumed by cmd/worker instead.
	if err := engine.Start(ctx, app.StartOptions{Queue: true, Scheduler: cfg.Scheduler.Enabled}); err != nil {
		logger.Error("failed to start background loops", "error", err)
		engine.Close()
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.SetupRoutes(engine.Handlers(), cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop accepting requests before draining the queue so no job is
	// published into a closed queue.
	engine.Close()
	cancel()
	logger.Info("server stopped")
}
