package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/api"
	"github.com/dvloznov/fraud-scoring/internal/app"
	"github.com/dvloznov/fraud-scoring/internal/config"
	"github.com/dvloznov/fraud-scoring/internal/jobs"
	"github.com/dvloznov/fraud-scoring/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-scoring/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("FRAUD_CONFIG"), "Path to a YAML config file (or set FRAUD_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port, overrides http.port")
		preload    = flag.Bool("preload-model", false, "Load the model at startup instead of on the first score")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.HTTP.Port = *port
	}

	// Initialize logger
	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("Failed to build scoring services")
	}
	defer services.Close()

	if *preload {
		if _, err := services.Model.Load(ctx); err != nil {
			log.Error().Err(err).Str("path", cfg.Model.Path).Msg("Model preload failed, scoring will fail open until it loads")
		}
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(app.QueueOptions(cfg.Jobs), jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobs.NewScoreHandler(services.Scorer, services.Ledger)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(api.Deps{
		Scorer:     services.Scorer,
		Publisher:  jobQueue,
		JobStore:   jobStore,
		History:    services.Ledger,
		Categories: services.Categories,
		Model:      services.Model,
		Ledger:     services.Ledger,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("ledger", cfg.Ledger.Backend).
			Str("model", cfg.Model.Path).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
