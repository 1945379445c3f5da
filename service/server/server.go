package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/atlasclaim/service/claim"
	"github.com/brojonat/atlasclaim/service/db"
	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/brojonat/atlasclaim/service/rewards"
	"github.com/brojonat/atlasclaim/service/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FleetRefresher reloads an owner's fleets from chain into the fleet store.
type FleetRefresher interface {
	Refresh(ctx context.Context, owner string) error
}

// ClaimRunner runs the claim flow for the configured signer wallet.
type ClaimRunner interface {
	Owner() string
	ClaimAll(ctx context.Context) (*claim.Batch, error)
	ClaimFleets(ctx context.Context, fleetIDs []string) (*claim.Batch, error)
}

// TotalsSource returns cached reward totals.
type TotalsSource interface {
	Totals(owner string) rewards.Totals
}

// ClaimLister reads persisted claim history.
type ClaimLister interface {
	ListClaims(ctx context.Context, params db.ListClaimsParams) ([]*db.Claim, error)
}

// Deps bundles the server's collaborators. Claims, Stream and Metrics are
// optional; their routes are disabled when nil.
type Deps struct {
	Fleets    *state.FleetStore
	App       *state.AppStore
	Refresher FleetRefresher
	Claimer   ClaimRunner
	Totals    TotalsSource
	Claims    ClaimLister
	Stream    *SSEPublisher
	Metrics   *metrics.Metrics
	// DefaultOwner is shown on the dashboard root. Falls back to the
	// claimer's wallet.
	DefaultOwner string
}

// Server represents the HTTP server for the claim dashboard.
type Server struct {
	addr     string
	deps     Deps
	renderer *TemplateRenderer
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		deps:   deps,
		logger: logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler. Start serves it; tests call it directly.
func (s *Server) Handler() http.Handler {
	d := s.deps
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(d.Metrics, name)(h))
	}

	// Fleet routes
	route("GET /api/v1/fleets/{owner}", "/api/v1/fleets", handleListFleets(d.Fleets, d.App, d.Refresher, s.logger))
	route("POST /api/v1/fleets/{owner}/refresh", "/api/v1/fleets/refresh", handleRefreshFleets(d.Fleets, d.App, d.Refresher, s.logger))
	route("POST /api/v1/fleets/{owner}/{fleet}/toggle", "/api/v1/fleets/toggle", handleToggleFleet(d.Fleets, d.App, s.logger))
	route("GET /api/v1/rewards/{owner}", "/api/v1/rewards", handleGetRewards(d.Totals, s.logger))

	// Claim routes
	route("POST /api/v1/claims", "/api/v1/claims", handleClaim(d.Claimer, d.App, s.logger))
	route("GET /api/v1/signatures", "/api/v1/signatures", handleGetSignatures(d.App))
	route("DELETE /api/v1/notice", "/api/v1/notice", handleDismissNotice(d.App))
	if d.Claims != nil {
		route("GET /api/v1/claims", "/api/v1/claims", handleListClaims(d.Claims, s.logger))
	} else {
		s.logger.Warn("claim store not configured, claim history disabled")
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if d.Stream != nil {
		route("GET /api/v1/stream/signatures/{owner}", "/api/v1/stream/signatures", handleStreamSignatures(d.Stream, d.Metrics, s.logger))
		route("GET /api/v1/stream/signatures", "/api/v1/stream/signatures", handleStreamSignatures(d.Stream, d.Metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		owner := d.DefaultOwner
		if owner == "" && d.Claimer != nil {
			owner = d.Claimer.Owner()
		}
		mux.Handle("GET /{$}", handleDashboard(s.renderer, d, owner))
		mux.Handle("GET /dashboard/{owner}", handleDashboard(s.renderer, d, ""))
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.Handle("GET /health", handleHealth(d))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE responses stay open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.deps.Stream != nil {
		s.deps.Stream.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
