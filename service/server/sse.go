package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const sseKeepalive = 10 * time.Second

type subscribeFunc func(ctx context.Context, opts natspkg.SubscribeOptions, handle func(*natspkg.SignatureEvent) error) error

// SSEPublisher manages Server-Sent Events connections for signature streaming.
type SSEPublisher struct {
	nc        *nats.Conn
	subscribe subscribeFunc
	logger    *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "atlasclaim-sse-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc: nc,
		subscribe: func(ctx context.Context, opts natspkg.SubscribeOptions, handle func(*natspkg.SignatureEvent) error) error {
			return natspkg.Subscribe(ctx, js, opts, logger, handle)
		},
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamSignatures handles SSE streaming for claim signature events.
// Without an owner path parameter every owner's events are streamed.
// ?history=true replays retained events before live ones.
func handleStreamSignatures(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		ownerDesc := owner
		if owner == "" {
			ownerDesc = "all owners"
		} else if err := validateAddress(owner); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if m != nil {
			m.RecordSSEConnectionChange(ownerDesc, 1)
			defer m.RecordSSEConnectionChange(ownerDesc, -1)
		}
		logger.DebugContext(ctx, "SSE client connected",
			"owner", ownerDesc,
			"remote_addr", r.RemoteAddr,
		)

		events := make(chan *natspkg.SignatureEvent, 16)
		subErr := make(chan error, 1)
		opts := natspkg.SubscribeOptions{
			Owner:      owner,
			DeliverAll: r.URL.Query().Get("history") == "true",
		}
		go func() {
			subErr <- publisher.subscribe(ctx, opts, func(e *natspkg.SignatureEvent) error {
				select {
				case events <- e:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"owner\":%q}\n\n", ownerDesc)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case e := <-events:
				data, err := json.Marshal(e)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: signature\ndata: %s\n\n", data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(ownerDesc, "signature")
				}

			case err := <-subErr:
				if err != nil && ctx.Err() == nil {
					logger.ErrorContext(ctx, "signature subscription failed", "owner", ownerDesc, "error", err)
					fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
					flusher.Flush()
				}
				return

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"owner", ownerDesc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
