package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/app"
	"github.com/dvloznov/fraud-scoring/internal/config"
	"github.com/dvloznov/fraud-scoring/internal/jobs"
	"github.com/dvloznov/fraud-scoring/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-scoring/internal/logger"
	"github.com/dvloznov/fraud-scoring/internal/transport/natsrpc"
	"github.com/nats-io/nats.go"
)

func main() {
	configPath := flag.String("config", os.Getenv("FRAUD_CONFIG"), "Path to a YAML config file (or set FRAUD_CONFIG env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("Failed to build scoring services")
	}
	defer services.Close()

	// Load the model before taking traffic; scoring still fails open if it
	// cannot be loaded.
	if _, err := services.Model.Load(ctx); err != nil {
		log.Error().Err(err).Str("path", cfg.Model.Path).Msg("Model load failed")
	}

	// Background jobs write results back onto the ledger
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(app.QueueOptions(cfg.Jobs), jobStore)
	if err := jobQueue.Start(ctx, jobs.NewScoreHandler(services.Scorer, services.Ledger)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	url := cfg.NATS.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("fraud-scoring-worker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	server := natsrpc.NewServer(nc, cfg.NATS.Subject, cfg.NATS.QueueGroup, services.Scorer, jobQueue, log)
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start NATS scoring server")
	}

	log.Info().Str("url", url).Msg("Worker service started, waiting for requests...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	server.Drain()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}
