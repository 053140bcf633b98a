package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yagudaev/openfinance-sub000/internal/config"
	"github.com/yagudaev/openfinance-sub000/internal/docstore"
	"github.com/yagudaev/openfinance-sub000/internal/jobs/inmemory"
	"github.com/yagudaev/openfinance-sub000/internal/ledger"
	"github.com/yagudaev/openfinance-sub000/internal/logger"
	"github.com/yagudaev/openfinance-sub000/internal/pipeline"
	"github.com/yagudaev/openfinance-sub000/internal/store"
	"github.com/yagudaev/openfinance-sub000/internal/textextract"
	"github.com/yagudaev/openfinance-sub000/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := store.NewService(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer repo.Close()

	var docs docstore.DocumentStore
	if cfg.Storage.Bucket != "" {
		gcs, err := docstore.NewGCSStore(ctx, cfg.Storage.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS document store")
		}
		defer gcs.Close()
		docs = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - reading documents from local filesystem")
		local, err := docstore.NewLocalStore("documents")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local document store")
		}
		docs = local
	}

	extractionClient := pipeline.NewGeminiExtractionClient(cfg.Extract.Model)
	orchestrator := pipeline.NewOrchestrator(repo, extractionClient, nil, nil, cfg.Extract.MaxIterations, log)
	engine := ledger.NewEngine(repo, log)

	// In production the queue would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerSvc := worker.NewService(docs, textextract.New(), orchestrator, engine, jobQueue, log)

	log.Info().Msg("Starting worker service")

	if err := jobQueue.Start(ctx, workerSvc.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
