package claim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/atlasclaim/service/db"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
)

// ClaimCreator persists submitted claims.
type ClaimCreator interface {
	CreateClaims(ctx context.Context, params []db.CreateClaimParams) error
}

// SignatureChecker polls signatures until they are terminal.
type SignatureChecker interface {
	CheckSignatures(ctx context.Context, owner, batchID string, signatures []string) error
}

// Tracker records submitted batches and hands their signatures to a
// checker running in the background. Every collaborator is optional.
type Tracker struct {
	store     ClaimCreator
	publisher natspkg.Publisher
	checker   SignatureChecker
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewTracker(store ClaimCreator, publisher natspkg.Publisher, checker SignatureChecker, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		checker:   checker,
		logger:    logger,
	}
}

// BatchSubmitted stores the batch, announces each signature as processing
// and starts polling. Polling outlives ctx; use Wait to drain it.
func (t *Tracker) BatchSubmitted(ctx context.Context, batch Batch) error {
	var errs []error

	if t.store != nil {
		params := make([]db.CreateClaimParams, len(batch.Signatures))
		for i, sig := range batch.Signatures {
			params[i] = db.CreateClaimParams{Signature: sig, Owner: batch.Owner, BatchID: batch.ID}
		}
		if err := t.store.CreateClaims(ctx, params); err != nil {
			errs = append(errs, err)
		}
	}

	if t.publisher != nil {
		events := make([]*natspkg.SignatureEvent, len(batch.Signatures))
		now := time.Now().UTC()
		for i, sig := range batch.Signatures {
			events[i] = &natspkg.SignatureEvent{
				Signature:   sig,
				Owner:       batch.Owner,
				BatchID:     batch.ID,
				Status:      db.StatusProcessing,
				PublishedAt: now,
			}
		}
		if err := t.publisher.PublishSignatureEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}

	if t.checker != nil {
		bg := context.WithoutCancel(ctx)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.checker.CheckSignatures(bg, batch.Owner, batch.ID, batch.Signatures); err != nil {
				t.logger.WarnContext(bg, "signature tracking ended early",
					"batch_id", batch.ID,
					"error", err,
				)
			}
		}()
	}

	return errors.Join(errs...)
}

// Wait blocks until every background poll has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
