package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// HarvestWorkflow claims an owner's pending SCORE rewards. It is triggered
// by a per-owner Temporal schedule.
//
// The workflow performs these steps:
// 1. Refresh the owner's fleets (RefreshFleets activity)
// 2. Skip when nothing, or less than MinClaimAmount, is pending
// 3. Submit the claim-all batch (ClaimRewards activity, never retried)
// 4. Wait for the signatures to settle (TrackSignatures activity)
func HarvestWorkflow(ctx workflow.Context, input HarvestInput) (*HarvestResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("HarvestWorkflow started", "owner", input.Owner)

	result := &HarvestResult{
		Owner:   input.Owner,
		RunTime: workflow.Now(ctx),
	}
	fail := func(step string, err error) (*HarvestResult, error) {
		msg := fmt.Sprintf("failed to %s: %v", step, err)
		result.Error = &msg
		return result, fmt.Errorf("failed to %s: %w", step, err)
	}

	readCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	// Step 1: load fleets
	var refreshed *RefreshFleetsResult
	if err := workflow.ExecuteActivity(readCtx, a.RefreshFleets, RefreshFleetsInput{Owner: input.Owner}).Get(ctx, &refreshed); err != nil {
		return fail("refresh fleets", err)
	}
	result.Fleets = refreshed.Fleets
	result.Pending = refreshed.Pending

	// Step 2: threshold
	if refreshed.Pending == 0 {
		result.Skipped = "nothing pending"
		logger.Info("nothing to harvest", "owner", input.Owner)
		return result, nil
	}
	if refreshed.Pending < input.MinClaimAmount {
		result.Skipped = "below minimum claim amount"
		logger.Info("pending below threshold",
			"owner", input.Owner,
			"pending", refreshed.Pending,
			"min_claim_amount", input.MinClaimAmount,
		)
		return result, nil
	}

	// Step 3: submit. A partially submitted batch is never resubmitted.
	claimCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporalsdk.RetryPolicy{MaximumAttempts: 1},
	})
	var claimed *ClaimRewardsResult
	if err := workflow.ExecuteActivity(claimCtx, a.ClaimRewards, ClaimRewardsInput{Owner: input.Owner}).Get(ctx, &claimed); err != nil {
		return fail("claim rewards", err)
	}
	result.BatchID = claimed.BatchID
	result.Signatures = claimed.Signatures
	result.Claimed = len(claimed.Signatures) > 0
	if !result.Claimed {
		result.Skipped = "no harvest instructions"
		return result, nil
	}

	// Step 4: track
	trackCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 2,
		},
	})
	var tracked *TrackSignaturesResult
	err := workflow.ExecuteActivity(trackCtx, a.TrackSignatures, TrackSignaturesInput{
		Owner:      input.Owner,
		BatchID:    claimed.BatchID,
		Signatures: claimed.Signatures,
	}).Get(ctx, &tracked)
	if err != nil {
		return fail("track signatures", err)
	}
	result.Confirmed = tracked.Confirmed
	result.Failed = tracked.Failed
	result.Processing = tracked.Processing

	logger.Info("HarvestWorkflow completed",
		"owner", input.Owner,
		"batch_id", result.BatchID,
		"confirmed", result.Confirmed,
		"failed", result.Failed,
		"processing", result.Processing,
	)
	return result, nil
}
