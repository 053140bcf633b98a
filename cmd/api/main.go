package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yagudaev/openfinance-sub000/internal/api/handlers"
	"github.com/yagudaev/openfinance-sub000/internal/api/middleware"
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

	var (
		port   = flag.String("port", cfg.Server.Port, "HTTP server port")
		bucket = flag.String("bucket", cfg.Storage.Bucket, "GCS bucket for statement documents (or set GCS_BUCKET env)")
	)
	flag.Parse()

	ctx := context.Background()

	repo, err := store.NewService(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer repo.Close()

	var docs docstore.DocumentStore
	if *bucket != "" {
		gcs, err := docstore.NewGCSStore(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS document store")
		}
		defer gcs.Close()
		docs = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - archiving documents to local filesystem")
		local, err := docstore.NewLocalStore("documents")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local document store")
		}
		docs = local
	}

	// Processing pipeline and net-worth engine
	extractionClient := pipeline.NewGeminiExtractionClient(cfg.Extract.Model)
	orchestrator := pipeline.NewOrchestrator(repo, extractionClient, nil, nil, cfg.Extract.MaxIterations, log)
	engine := ledger.NewEngine(repo, log)

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	workerSvc := worker.NewService(docs, textextract.New(), orchestrator, engine, jobQueue, log)

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, workerSvc.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Handlers
	statementsHandler := handlers.NewStatementsHandler(repo, docs, jobQueue, cfg.Extract.DefaultTimezone, log)
	accountsHandler := handlers.NewAccountsHandler(repo, jobQueue, log)
	netWorthHandler := handlers.NewNetWorthHandler(engine, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	// Statements endpoints
	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statementsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Process(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/statements/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Statement ID is required")
			return
		}

		if statementID, ok := strings.CutSuffix(rest, "/verify"); ok {
			if r.Method == http.MethodPost {
				statementsHandler.Verify(w, r, statementID)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		switch r.Method {
		case http.MethodGet:
			statementsHandler.Get(w, r, rest)
		case http.MethodDelete:
			statementsHandler.Delete(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Accounts endpoints
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.List(w, r)
		case http.MethodPost:
			accountsHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Account ID is required")
			return
		}

		if accountID, ok := strings.CutSuffix(rest, "/balance"); ok {
			if r.Method == http.MethodPut {
				accountsHandler.UpdateBalance(w, r, accountID)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		if accountID, ok := strings.CutSuffix(rest, "/unlink"); ok {
			if r.Method == http.MethodPost {
				accountsHandler.Unlink(w, r, accountID)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		if r.Method == http.MethodDelete {
			accountsHandler.Delete(w, r, rest)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Net worth endpoints
	mux.HandleFunc("/api/networth/daily", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			netWorthHandler.Daily(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/networth/day/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rawDate := strings.TrimPrefix(r.URL.Path, "/api/networth/day/")
		if rawDate == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Date is required")
			return
		}
		netWorthHandler.Day(w, r, rawDate)
	})

	mux.HandleFunc("/api/networth/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			netWorthHandler.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/networth/recalculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			netWorthHandler.Recalculate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.Get(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
