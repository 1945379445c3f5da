package nats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/brojonat/atlasclaim/service/db"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestSubjects(t *testing.T) {
	assert.Equal(t, "claims."+testOwner, Subject(testOwner))
	assert.Equal(t, "claims.*", SubscribeOptions{}.FilterSubject())
	assert.Equal(t, "claims."+testOwner, SubscribeOptions{Owner: testOwner}.FilterSubject())
}

func TestFromClaim(t *testing.T) {
	msg := "InstructionError"
	c := &db.Claim{
		Signature: "sig1",
		Owner:     testOwner,
		BatchID:   "claim-1",
		Status:    db.StatusFailed,
		Error:     &msg,
		Slot:      99,
	}

	before := time.Now().UTC()
	event := FromClaim(c)
	assert.Equal(t, "sig1", event.Signature)
	assert.Equal(t, testOwner, event.Owner)
	assert.Equal(t, "claim-1", event.BatchID)
	assert.Equal(t, db.StatusFailed, event.Status)
	assert.Equal(t, &msg, event.Error)
	assert.Equal(t, uint64(99), event.Slot)
	assert.False(t, event.PublishedAt.Before(before))
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishSignatureEvents(ctx, []*SignatureEvent{
		{Signature: "sig1", Owner: testOwner, Status: db.StatusProcessing},
		{Signature: "sig2", Owner: "other", Status: db.StatusProcessing},
	}))
	require.NoError(t, m.PublishSignatureEvent(ctx, &SignatureEvent{Signature: "sig1", Owner: testOwner, Status: db.StatusConfirmed}))

	assert.Equal(t, 3, m.GetPublishedEventCount())
	assert.Len(t, m.GetPublishedEventsForOwner(testOwner), 2)
	assert.Equal(t, []string{db.StatusProcessing, db.StatusConfirmed}, m.StatusHistory("sig1"))

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishSignatureEvent(ctx, &SignatureEvent{Signature: "sig3"}))
	assert.Equal(t, 3, m.GetPublishedEventCount())

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	m.Reset()
	assert.Equal(t, 0, m.GetPublishedEventCount())
	assert.False(t, m.IsClosed())
}

// TestPublishSubscribe needs a JetStream-enabled server at NATS_TEST_URL.
func TestPublishSubscribe(t *testing.T) {
	natsURL := os.Getenv("NATS_TEST_URL")
	if natsURL == "" {
		t.Skip("Skipping NATS integration test (set NATS_TEST_URL to enable)")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, err := NewPublisher(natsURL, nil, logger)
	require.NoError(t, err)
	defer publisher.Close()

	owner := fmt.Sprintf("Test%d", time.Now().UnixNano())
	require.NoError(t, publisher.PublishSignatureEvents(context.Background(), []*SignatureEvent{
		{Signature: "sig1", Owner: owner, Status: db.StatusProcessing},
		{Signature: "sig1", Owner: owner, Status: db.StatusConfirmed},
	}))

	nc, err := Connect(natsURL, "atlasclaim-test")
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got []string
	errDone := errors.New("done")
	err = Subscribe(ctx, js, SubscribeOptions{Owner: owner, DeliverAll: true}, logger, func(e *SignatureEvent) error {
		got = append(got, e.Status)
		if len(got) == 2 {
			return errDone
		}
		return nil
	})
	require.ErrorIs(t, err, errDone)
	assert.Equal(t, []string{db.StatusProcessing, db.StatusConfirmed}, got)
}
