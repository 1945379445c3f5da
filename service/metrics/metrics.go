package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Claim Metrics
	claimBatchesTotal         *prometheus.CounterVec
	claimBatchDuration        *prometheus.HistogramVec
	claimInstructionsPerBatch prometheus.Histogram
	transactionsSubmitted     *prometheus.CounterVec
	signatureOutcomesTotal    *prometheus.CounterVec

	// Fleet Metrics
	fleetRefreshesTotal *prometheus.CounterVec
	fleetsTracked       *prometheus.GaugeVec
	pendingRewards      *prometheus.GaugeVec

	// Price Feed Metrics
	priceFetchesTotal *prometheus.CounterVec
	priceUSD          prometheus.Gauge

	// Workflow Metrics
	harvestActivityDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		// Claim Metrics
		claimBatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claim_batches_total",
				Help: "Total number of claim-all batches by outcome",
			},
			[]string{"status"},
		),
		claimBatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "claim_batch_duration_seconds",
				Help:    "Duration of claim-all batches from instruction fetch to submission",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		claimInstructionsPerBatch: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "claim_instructions_per_batch",
				Help:    "Number of harvest instructions in a claim-all batch",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		transactionsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claim_transactions_submitted_total",
				Help: "Total number of claim transactions submitted by outcome",
			},
			[]string{"status"},
		),
		signatureOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claim_signature_outcomes_total",
				Help: "Terminal outcomes of tracked claim signatures",
			},
			[]string{"status"},
		),

		// Fleet Metrics
		fleetRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_refreshes_total",
				Help: "Total number of fleet refreshes by outcome",
			},
			[]string{"status"},
		),
		fleetsTracked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleets_tracked",
				Help: "Number of fleets found for an owner on the last refresh",
			},
			[]string{"owner"},
		),
		pendingRewards: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_pending_rewards_atlas",
				Help: "Pending ATLAS rewards across all fleets of an owner",
			},
			[]string{"owner"},
		),

		// Price Feed Metrics
		priceFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fetches_total",
				Help: "Total number of price feed fetches by outcome",
			},
			[]string{"status"},
		),
		priceUSD: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "atlas_price_usd",
				Help: "Last fetched ATLAS price in USD",
			},
		),

		// Workflow Metrics
		harvestActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_activity_duration_seconds",
				Help:    "Duration of harvest workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"activity", "owner"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"owner"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"owner", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Claim metric helpers

// RecordClaimBatch records the outcome of a claim-all batch.
func (m *Metrics) RecordClaimBatch(status string, instructions int, duration float64) {
	m.claimBatchesTotal.WithLabelValues(status).Inc()
	m.claimBatchDuration.WithLabelValues(status).Observe(duration)
	m.claimInstructionsPerBatch.Observe(float64(instructions))
}

// RecordTransactionSubmitted records a single transaction submission.
func (m *Metrics) RecordTransactionSubmitted(status string) {
	m.transactionsSubmitted.WithLabelValues(status).Inc()
}

// RecordSignatureOutcome records a tracked signature reaching a terminal state.
func (m *Metrics) RecordSignatureOutcome(status string) {
	m.signatureOutcomesTotal.WithLabelValues(status).Inc()
}

// Fleet metric helpers

// RecordFleetRefresh records a fleet refresh and its result size.
func (m *Metrics) RecordFleetRefresh(owner, status string, fleets int) {
	m.fleetRefreshesTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.fleetsTracked.WithLabelValues(owner).Set(float64(fleets))
	}
}

// RecordPendingRewards records the pending reward total for an owner.
func (m *Metrics) RecordPendingRewards(owner string, atlas float64) {
	m.pendingRewards.WithLabelValues(owner).Set(atlas)
}

// Price metric helpers

// RecordPriceFetch records a price feed fetch.
func (m *Metrics) RecordPriceFetch(status string, price float64) {
	m.priceFetchesTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.priceUSD.Set(price)
	}
}

// Workflow metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, owner string, duration float64) {
	m.harvestActivityDuration.WithLabelValues(activity, owner).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(owner string, delta float64) {
	m.sseActiveConnections.WithLabelValues(owner).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(owner, eventType string) {
	m.sseEventsSent.WithLabelValues(owner, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
