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

	"github.com/giygas/doselog/config"
	"github.com/giygas/doselog/data"
	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser"
	"github.com/giygas/doselog/handlers"
	"github.com/giygas/doselog/health"
	"github.com/giygas/doselog/logging"
	"github.com/giygas/doselog/scheduler"
	"github.com/giygas/doselog/server"
	"github.com/giygas/doselog/storage"
	"github.com/giygas/doselog/validation"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		LogDir:         cfg.LogDir,
		Env:            cfg.Env,
		LogLevel:       cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env,
		"storage_driver", cfg.StorageDriver,
		"storage_path", cfg.StoragePath,
		"snapshot_interval_minutes", cfg.SnapshotInterval,
		"volume_policy", cfg.VolumePolicy)

	if err := run(cfg); err != nil {
		logging.Error("Service stopped with error", "error", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := storage.Open(cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Failed to close history store", "error", err)
		}
	}()

	policy, err := doseparser.ParseVolumePolicy(cfg.VolumePolicy)
	if err != nil {
		return err
	}

	container := data.NewContainer(doselog.WithVolumePolicy(policy))

	sched := scheduler.NewScheduler(container, store, cfg.SnapshotInterval)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	interval := time.Duration(cfg.SnapshotInterval) * time.Minute
	handler := handlers.NewHTTPHandler(
		container,
		validation.NewDoseValidator(),
		health.NewHealthChecker(container, interval),
	)
	srv := server.NewServer(cfg, container, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
