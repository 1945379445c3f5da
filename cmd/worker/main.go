package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/atlasclaim/service/claim"
	"github.com/brojonat/atlasclaim/service/config"
	"github.com/brojonat/atlasclaim/service/db"
	"github.com/brojonat/atlasclaim/service/fleet"
	"github.com/brojonat/atlasclaim/service/galaxy"
	"github.com/brojonat/atlasclaim/service/metrics"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/brojonat/atlasclaim/service/score"
	"github.com/brojonat/atlasclaim/service/solana"
	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/temporal"
	"github.com/brojonat/atlasclaim/service/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.KeypairPath == "" {
		logger.Error("KEYPAIR_PATH is required: the worker signs harvest transactions")
		os.Exit(1)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	logger.Info("Prometheus metrics collector initialized")

	// Start metrics HTTP server
	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	kp, err := wallet.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		logger.Error("failed to load keypair", "path", cfg.KeypairPath, "error", err)
		os.Exit(1)
	}
	owner := kp.PublicKey().String()
	logger.Info("loaded signer", "owner", owner)

	// Initialize Solana RPC client with multi-endpoint support
	solanaClient, err := solana.NewClientFromURLs(cfg.SolanaRPCURLs, cfg.SolanaRPCRateLimit, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create solana client", "error", err)
		os.Exit(1)
	}

	program, err := score.NewProgram(cfg.ScoreProgramID, cfg.AtlasMintAddress)
	if err != nil {
		logger.Error("invalid SCORE program configuration", "error", err)
		os.Exit(1)
	}
	scoreService := score.NewService(program, solanaClient, logger)

	// Optional claim history
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		store = db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
	}

	// Optional NATS publisher
	var publisher natspkg.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	fleetDeps := fleet.Deps{
		Chain:     scoreService,
		Catalog:   galaxy.NewClient(cfg.GalaxyURL, nil, logger),
		Statuses:  solanaClient,
		Fleets:    state.NewFleetStore(),
		App:       state.NewAppStore(),
		Publisher: publisher,
		Metrics:   metricsCollector,
	}
	var creator claim.ClaimCreator
	if store != nil {
		fleetDeps.Store = store
		creator = store
	}
	fleetService := fleet.NewService(fleetDeps, fleet.Config{
		PollInterval: cfg.SignaturePollInterval,
		PollTimeout:  cfg.SignaturePollTimeout,
	}, logger)

	// The TrackSignatures activity polls; the recorder only stores and announces.
	claimer := claim.NewClaimer(claim.Deps{
		Source:   scoreService,
		Chain:    solanaClient,
		Signer:   kp,
		App:      fleetDeps.App,
		Recorder: claim.NewTracker(creator, publisher, nil, logger),
		Metrics:  metricsCollector,
	}, logger)

	// Initialize Temporal client for schedule management
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	if err := ensureSchedule(ctx, temporalClient, owner, cfg.HarvestInterval, cfg.MinClaimAmount, logger); err != nil {
		logger.Error("failed to ensure harvest schedule", "error", err)
		os.Exit(1)
	}

	// Initialize Temporal worker
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Fleets:            fleetService,
		Claimer:           claimer,
		Tracker:           fleetService,
		Statuses:          solanaClient,
		Metrics:           metricsCollector,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"owner", owner,
		"solana_endpoints", len(cfg.SolanaRPCURLs),
		"harvest_interval", cfg.HarvestInterval,
		"min_claim_amount", cfg.MinClaimAmount,
		"database", store != nil,
		"nats", publisher != nil,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Stop worker gracefully
		worker.Stop()

		logger.Info("shutdown complete")
	}
}

// ensureSchedule creates or updates the harvest schedule for the worker's
// own wallet so a fresh deployment starts harvesting without a CLI step.
func ensureSchedule(ctx context.Context, scheduler temporal.Scheduler, owner string, interval time.Duration, minClaim uint64, logger *slog.Logger) error {
	if err := scheduler.UpsertHarvestSchedule(ctx, owner, interval, minClaim); err != nil {
		return err
	}
	logger.Info("harvest schedule ready",
		"owner", owner,
		"interval", interval,
		"min_claim_amount", minClaim,
	)
	return nil
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
