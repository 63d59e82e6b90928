package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vesselwatch/vesselwatch/app/api"
	"github.com/vesselwatch/vesselwatch/app/cfg"
	"github.com/vesselwatch/vesselwatch/app/database"
	"github.com/vesselwatch/vesselwatch/app/ingest"
	"github.com/vesselwatch/vesselwatch/app/metrics"
	"github.com/vesselwatch/vesselwatch/app/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting vesselwatch", "version", appCfg.Version, "environment", appCfg.Environment)

	// Database connection: a failed ping here means the process cannot
	// start, never a silently degraded run
	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName, appCfg.DBPoolMax)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	slog.Info("Database ready", "pool_max", appCfg.DBPoolMax)

	box, err := cfg.ParseBoundingBox(appCfg.BoundingBox)
	if err != nil {
		log.Fatalf("Invalid bounding box: %v", err)
	}

	// Pipeline assembly
	stats := ingest.NewStats()

	positionRepo := database.NewPositionRepository(db)
	positionRepo.OnTransient = func(error) { stats.TransientWriteFailures.Add(1) }

	subscriber := stream.NewSubscriber(stream.Options{
		Endpoint:    appCfg.AISEndpoint,
		APIKey:      appCfg.AISAPIKey,
		BoundingBox: box,
		FilterMMSI:  appCfg.FilterMMSI,
	})

	coordinator := ingest.NewCoordinator(subscriber, positionRepo, stats, ingest.Options{
		QueueCapacity: appCfg.QueueCapacity,
		WriterCount:   appCfg.WriterCount,
		DropOldest:    appCfg.DropOldest,
	})

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()

	pipelineDone := make(chan struct{})
	go func() {
		coordinator.Run(pipelineCtx)
		close(pipelineDone)
	}()
	slog.Info("Ingestion pipeline started",
		"endpoint", appCfg.AISEndpoint,
		"queue_capacity", appCfg.QueueCapacity,
		"writers", appCfg.WriterCount,
		"drop_oldest", appCfg.DropOldest)

	// HTTP surface
	registry := metrics.NewRegistry(stats, subscriber.State)
	apiHandler := api.NewHandler(positionRepo, coordinator, metrics.Handler(registry))
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	// Graceful shutdown: stop the subscriber, let the coordinator drain
	// its queue, then stop the HTTP server; the pool closes via defer
	slog.Info("Shutting down")

	stopPipeline()
	select {
	case <-pipelineDone:
		slog.Info("Ingestion pipeline drained")
	case <-time.After(30 * time.Second):
		slog.Warn("Ingestion pipeline did not stop in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
