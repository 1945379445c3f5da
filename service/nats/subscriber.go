package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// SubscribeOptions selects which events a subscription receives.
type SubscribeOptions struct {
	// Owner limits delivery to one owner's subject. Empty means all owners.
	Owner string
	// DeliverAll replays retained history before live events.
	DeliverAll bool
}

// FilterSubject is the subject a subscription with these options listens on.
func (o SubscribeOptions) FilterSubject() string {
	if o.Owner == "" {
		return StreamSubjects
	}
	return Subject(o.Owner)
}

// Subscribe creates an ordered ephemeral consumer on the CLAIMS stream and
// calls handle for each decoded event until ctx is done or handle fails.
// Messages that fail to decode are skipped.
func Subscribe(ctx context.Context, js jetstream.JetStream, opts SubscribeOptions, logger *slog.Logger, handle func(*SignatureEvent) error) error {
	deliver := jetstream.DeliverNewPolicy
	if opts.DeliverAll {
		deliver = jetstream.DeliverAllPolicy
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{opts.FilterSubject()},
		DeliverPolicy:  deliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	msgs, err := consumer.Messages()
	if err != nil {
		return fmt.Errorf("failed to start message iterator: %w", err)
	}
	defer msgs.Stop()

	go func() {
		<-ctx.Done()
		msgs.Stop()
	}()

	for {
		msg, err := msgs.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var event SignatureEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			logger.Warn("skipping malformed signature event", "subject", msg.Subject(), "error", err)
			continue
		}
		if err := handle(&event); err != nil {
			return err
		}
	}
}
