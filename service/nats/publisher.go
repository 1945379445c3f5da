package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing claim signature events to NATS.
type Publisher interface {
	// PublishSignatureEvent publishes a single event to "claims.{owner}".
	PublishSignatureEvent(ctx context.Context, event *SignatureEvent) error

	// PublishSignatureEvents publishes events one by one, logging and
	// skipping individual failures.
	PublishSignatureEvents(ctx context.Context, events []*SignatureEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes claim events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for claim events.
	StreamName = "CLAIMS"

	// SubjectPrefix precedes the owner address in every subject.
	SubjectPrefix = "claims."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "claims.*"

	// StreamRetention is how long messages are retained (7 days).
	StreamRetention = 7 * 24 * time.Hour
)

// Connect dials NATS with the reconnect policy shared by publishers and
// subscribers.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. m may be nil.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "atlasclaim-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := EnsureStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the CLAIMS stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Status changes of submitted reward claim transactions",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishSignatureEvent publishes a single event.
func (p *JetStreamPublisher) PublishSignatureEvent(ctx context.Context, event *SignatureEvent) error {
	subject := Subject(event.Owner)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal signature event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(StreamSubjects, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish signature event: %w", err)
	}

	p.logger.Debug("published signature event",
		"subject", subject,
		"signature", event.Signature,
		"status", event.Status,
	)

	return nil
}

// PublishSignatureEvents publishes multiple events.
func (p *JetStreamPublisher) PublishSignatureEvents(ctx context.Context, events []*SignatureEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := p.PublishSignatureEvent(ctx, event); err != nil {
			// Don't fail the entire batch on one error
			p.logger.Error("failed to publish signature event in batch",
				"signature", event.Signature,
				"owner", event.Owner,
				"error", err,
			)
			continue
		}
	}

	p.logger.Debug("published signature events", "count", len(events))
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
