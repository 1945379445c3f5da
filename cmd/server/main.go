package main

import (
	"context"
	"log/slog"
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
	"github.com/brojonat/atlasclaim/service/price"
	"github.com/brojonat/atlasclaim/service/rewards"
	"github.com/brojonat/atlasclaim/service/score"
	"github.com/brojonat/atlasclaim/service/server"
	"github.com/brojonat/atlasclaim/service/solana"
	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector (default registry, served at /metrics)
	metricsCollector := metrics.NewMetrics(nil)

	// Initialize Solana RPC client
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
	catalog := galaxy.NewClient(cfg.GalaxyURL, nil, logger)

	// Signer is optional; without it the dashboard is read-only.
	var signer wallet.Signer
	if cfg.KeypairPath != "" {
		kp, err := wallet.LoadKeypair(cfg.KeypairPath)
		if err != nil {
			logger.Error("failed to load keypair", "path", cfg.KeypairPath, "error", err)
			os.Exit(1)
		}
		signer = kp
		logger.Info("loaded signer", "public_key", kp.PublicKey().String())
	}
	defaultOwner := cfg.OwnerAddress
	if defaultOwner == "" && signer != nil {
		defaultOwner = signer.PublicKey().String()
	}

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

	// Optional signature event fan-out
	var (
		publisher natspkg.Publisher
		stream    *server.SSEPublisher
	)
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher

		stream, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer stream.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// Stores and domain services
	fleets := state.NewFleetStore()
	app := state.NewAppStore()

	fleetDeps := fleet.Deps{
		Chain:     scoreService,
		Catalog:   catalog,
		Statuses:  solanaClient,
		Fleets:    fleets,
		App:       app,
		Publisher: publisher,
		Metrics:   metricsCollector,
	}
	if store != nil {
		fleetDeps.Store = store
	}
	fleetService := fleet.NewService(fleetDeps, fleet.Config{
		PollInterval: cfg.SignaturePollInterval,
		PollTimeout:  cfg.SignaturePollTimeout,
	}, logger)

	aggregator := rewards.NewAggregator(fleets, fleetService, logger)
	priceClient, err := price.NewClient(cfg.PriceURL, cfg.PriceQuery, nil, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create price client", "error", err)
		os.Exit(1)
	}
	go aggregator.LoadPrice(ctx, priceClient)
	go aggregator.Run(ctx)

	// Submitted batches are stored, announced and polled in the background.
	var creator claim.ClaimCreator
	if store != nil {
		creator = store
	}
	tracker := claim.NewTracker(creator, publisher, fleetService, logger)
	claimer := claim.NewClaimer(claim.Deps{
		Source:   scoreService,
		Chain:    solanaClient,
		Signer:   signer,
		App:      app,
		Recorder: tracker,
		Metrics:  metricsCollector,
	}, logger)

	// Initialize HTTP server
	deps := server.Deps{
		Fleets:       fleets,
		App:          app,
		Refresher:    fleetService,
		Claimer:      claimer,
		Totals:       aggregator,
		Stream:       stream,
		Metrics:      metricsCollector,
		DefaultOwner: defaultOwner,
	}
	if store != nil {
		deps.Claims = store
	}
	httpServer := server.New(cfg.ServerAddr, deps, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"solana_endpoints", len(cfg.SolanaRPCURLs),
		"signer", signer != nil,
		"default_owner", defaultOwner,
		"database", store != nil,
		"nats", publisher != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		// Let in-flight signature polling finish writing its results.
		cancel()
		tracker.Wait()

		logger.Info("server shutdown complete")
	}
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
