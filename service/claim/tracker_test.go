package claim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/atlasclaim/service/db"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	params []db.CreateClaimParams
	err    error
}

func (f *fakeCreator) CreateClaims(ctx context.Context, params []db.CreateClaimParams) error {
	f.params = append(f.params, params...)
	return f.err
}

type fakeChecker struct {
	mu    sync.Mutex
	calls []Batch
}

func (f *fakeChecker) CheckSignatures(ctx context.Context, owner, batchID string, signatures []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Batch{ID: batchID, Owner: owner, Signatures: signatures})
	return nil
}

func TestTracker_BatchSubmitted(t *testing.T) {
	store := &fakeCreator{}
	publisher := natspkg.NewMockPublisher()
	checker := &fakeChecker{}
	tracker := NewTracker(store, publisher, checker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	batch := Batch{ID: "b1", Owner: "owner1", Signatures: []string{"s1", "s2"}}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tracker.BatchSubmitted(ctx, batch))
	cancel() // polling must survive the request ending
	tracker.Wait()

	require.Len(t, store.params, 2)
	assert.Equal(t, db.CreateClaimParams{Signature: "s1", Owner: "owner1", BatchID: "b1"}, store.params[0])

	assert.Equal(t, []string{"processing"}, publisher.StatusHistory("s1"))
	assert.Len(t, publisher.GetPublishedEventsForOwner("owner1"), 2)

	require.Len(t, checker.calls, 1)
	assert.Equal(t, batch, checker.calls[0])
}

func TestTracker_StoreFailureStillTracks(t *testing.T) {
	store := &fakeCreator{err: errors.New("db down")}
	checker := &fakeChecker{}
	tracker := NewTracker(store, nil, checker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := tracker.BatchSubmitted(context.Background(), Batch{ID: "b", Owner: "o", Signatures: []string{"s"}})
	assert.Error(t, err)
	tracker.Wait()
	assert.Len(t, checker.calls, 1)
}

func TestTracker_NoCollaborators(t *testing.T) {
	tracker := NewTracker(nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, tracker.BatchSubmitted(context.Background(), Batch{ID: "b", Signatures: []string{"s"}}))
	tracker.Wait()
}
