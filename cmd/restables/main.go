package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"restables/internal/api"
	"restables/internal/config"
	"restables/internal/driver"
	"restables/internal/logger"
	"restables/internal/service"
	"restables/internal/storage"
	"restables/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	slog.Info("Starting restables", "env", cfg.AppEnv, "connections_file", cfg.ConnectionsFile)

	// 1. Export storage
	store, err := newStorage(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "type", cfg.StorageType, "error", err)
		os.Exit(1)
	}

	// 2. Core service; connections are re-read from the file on every request
	svc := service.New(config.FileSource{Path: cfg.ConnectionsFile}, driver.NewManager())
	defer svc.Close()

	// 3. Export workers
	pool := worker.NewPool(store, worker.Options{
		Workers:          cfg.WorkerCount,
		MaxDBConcurrency: cfg.MaxDBConcurrency,
		FlushEvery:       cfg.FlushEvery,
	})
	pool.Start()

	// 4. HTTP
	handler := api.NewHandler(svc, pool, api.Options{
		Env:                cfg.AppEnv,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		FlushEvery:         cfg.FlushEvery,
		Compress:           cfg.Compression,
		JobTimeout:         cfg.DefaultTimeout,
	})
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	pool.Stop()
}

func newStorage(cfg *config.Config) (storage.Provider, error) {
	if cfg.StorageType == "s3" {
		client := storage.NewS3Client(storage.S3Options{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		return storage.NewS3Provider(client, cfg.S3Bucket)
	}
	return storage.NewLocalProvider(cfg.LocalStoragePath)
}
