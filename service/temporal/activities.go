package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/atlasclaim/service/claim"
	"github.com/brojonat/atlasclaim/service/fleet"
	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/brojonat/atlasclaim/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// HarvestInput contains the input parameters for one scheduled harvest.
type HarvestInput struct {
	Owner string `json:"owner"`
	// MinClaimAmount skips the claim while total pending rewards, in raw
	// ATLAS units, are below it. Zero claims whenever anything is pending.
	MinClaimAmount uint64 `json:"min_claim_amount"`
}

// HarvestResult contains the result of a harvest.
type HarvestResult struct {
	Owner      string    `json:"owner"`
	Fleets     int       `json:"fleets"`
	Pending    uint64    `json:"pending"`
	Claimed    bool      `json:"claimed"`
	Skipped    string    `json:"skipped,omitempty"`
	BatchID    string    `json:"batch_id,omitempty"`
	Signatures []string  `json:"signatures,omitempty"`
	Confirmed  int       `json:"confirmed"`
	Failed     int       `json:"failed"`
	Processing int       `json:"processing"`
	RunTime    time.Time `json:"run_time"`
	Error      *string   `json:"error,omitempty"`
}

// RefreshFleetsInput contains parameters for the RefreshFleets activity.
type RefreshFleetsInput struct {
	Owner string `json:"owner"`
}

// RefreshFleetsResult contains the result of refreshing an owner's fleets.
type RefreshFleetsResult struct {
	Fleets  int    `json:"fleets"`
	Pending uint64 `json:"pending"`
}

// ClaimRewardsInput contains parameters for the ClaimRewards activity.
type ClaimRewardsInput struct {
	Owner string `json:"owner"`
}

// ClaimRewardsResult contains the submitted batch.
type ClaimRewardsResult struct {
	BatchID    string   `json:"batch_id"`
	Signatures []string `json:"signatures"`
}

// TrackSignaturesInput contains parameters for the TrackSignatures activity.
type TrackSignaturesInput struct {
	Owner      string   `json:"owner"`
	BatchID    string   `json:"batch_id"`
	Signatures []string `json:"signatures"`
}

// TrackSignaturesResult counts final signature outcomes.
type TrackSignaturesResult struct {
	Confirmed  int  `json:"confirmed"`
	Failed     int  `json:"failed"`
	Processing int  `json:"processing"`
	TimedOut   bool `json:"timed_out"`
}

// FleetRefresher loads an owner's fleets and sums their pending rewards.
// This allows for easy mocking in tests.
type FleetRefresher interface {
	Refresh(ctx context.Context, owner string) error
	PendingAtlas(owner string) uint64
	FleetCount(owner string) int
}

// ClaimRunner submits a claim-all batch for its wallet.
type ClaimRunner interface {
	Owner() string
	ClaimAll(ctx context.Context) (*claim.Batch, error)
}

// SignatureTracker polls signatures until they are terminal, recording
// each change.
type SignatureTracker interface {
	CheckSignatures(ctx context.Context, owner, batchID string, signatures []string) error
}

// StatusChecker looks up signature statuses once.
type StatusChecker interface {
	SignatureStatuses(ctx context.Context, signatures []solanago.Signature) ([]solana.SignatureStatus, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	fleets   FleetRefresher
	claimer  ClaimRunner
	tracker  SignatureTracker
	statuses StatusChecker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	fleets FleetRefresher,
	claimer ClaimRunner,
	tracker SignatureTracker,
	statuses StatusChecker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		fleets:   fleets,
		claimer:  claimer,
		tracker:  tracker,
		statuses: statuses,
		metrics:  m,
		logger:   logger,
	}
}

func (a *Activities) recordDuration(activity, owner string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, owner, time.Since(start).Seconds())
	}
}

// RefreshFleets reloads the owner's fleets from chain.
func (a *Activities) RefreshFleets(ctx context.Context, input RefreshFleetsInput) (*RefreshFleetsResult, error) {
	defer a.recordDuration("RefreshFleets", input.Owner, time.Now())

	if err := a.fleets.Refresh(ctx, input.Owner); err != nil {
		return nil, fmt.Errorf("failed to refresh fleets: %w", err)
	}

	result := &RefreshFleetsResult{
		Fleets:  a.fleets.FleetCount(input.Owner),
		Pending: a.fleets.PendingAtlas(input.Owner),
	}
	a.logger.InfoContext(ctx, "refreshed fleets",
		"owner", input.Owner,
		"fleets", result.Fleets,
		"pending", result.Pending,
	)
	return result, nil
}

// ClaimRewards submits a claim-all batch. Only the worker's own wallet can
// be claimed; any other owner fails without retry.
func (a *Activities) ClaimRewards(ctx context.Context, input ClaimRewardsInput) (*ClaimRewardsResult, error) {
	defer a.recordDuration("ClaimRewards", input.Owner, time.Now())

	if owner := a.claimer.Owner(); owner != input.Owner {
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("worker wallet %q cannot claim for %q", owner, input.Owner),
			"OwnerMismatch", nil)
	}

	batch, err := a.claimer.ClaimAll(ctx)
	switch {
	case errors.Is(err, claim.ErrNoWallet):
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), "NoWallet", err)
	case err != nil:
		return nil, fmt.Errorf("failed to claim rewards: %w", err)
	}

	a.logger.InfoContext(ctx, "claim submitted",
		"owner", input.Owner,
		"batch_id", batch.ID,
		"transactions", len(batch.Signatures),
	)
	return &ClaimRewardsResult{BatchID: batch.ID, Signatures: batch.Signatures}, nil
}

// TrackSignatures waits for the batch's signatures to become terminal,
// then counts the outcomes. Running out of poll time is not an error.
func (a *Activities) TrackSignatures(ctx context.Context, input TrackSignaturesInput) (*TrackSignaturesResult, error) {
	defer a.recordDuration("TrackSignatures", input.Owner, time.Now())

	result := &TrackSignaturesResult{}
	err := a.tracker.CheckSignatures(ctx, input.Owner, input.BatchID, input.Signatures)
	switch {
	case errors.Is(err, fleet.ErrTrackingTimeout):
		result.TimedOut = true
	case err != nil:
		return nil, fmt.Errorf("failed to track signatures: %w", err)
	}

	sigs := make([]solanago.Signature, 0, len(input.Signatures))
	for _, raw := range input.Signatures {
		sig, err := solanago.SignatureFromBase58(raw)
		if err != nil {
			return nil, temporalsdk.NewNonRetryableApplicationError(
				fmt.Sprintf("invalid signature %q", raw), "InvalidSignature", err)
		}
		sigs = append(sigs, sig)
	}

	statuses, err := a.statuses.SignatureStatuses(ctx, sigs)
	if err != nil {
		return nil, fmt.Errorf("failed to read final statuses: %w", err)
	}
	for _, st := range statuses {
		switch st.Status {
		case solana.TxStatusConfirmed:
			result.Confirmed++
		case solana.TxStatusFailed:
			result.Failed++
		default:
			result.Processing++
		}
	}

	a.logger.InfoContext(ctx, "claim signatures tracked",
		"owner", input.Owner,
		"batch_id", input.BatchID,
		"confirmed", result.Confirmed,
		"failed", result.Failed,
		"processing", result.Processing,
	)
	return result, nil
}
