package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestHarvestWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          HarvestInput
		mockActivities func(refresh, claim, track *testsuite.MockCallWrapper)
		expectedError  bool
		claimCalls     int
		trackCalls     int
		validateResult func(*testing.T, *HarvestResult)
	}{
		{
			name:  "claims and tracks",
			input: HarvestInput{Owner: testOwner},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 5, Pending: 500000000}, nil)
				claim.Return(&ClaimRewardsResult{BatchID: "claim-1", Signatures: []string{"s1", "s2", "s3"}}, nil)
				track.Return(&TrackSignaturesResult{Confirmed: 2, Failed: 1}, nil)
			},
			claimCalls: 1,
			trackCalls: 1,
			validateResult: func(t *testing.T, r *HarvestResult) {
				assert.True(t, r.Claimed)
				assert.Equal(t, 5, r.Fleets)
				assert.Equal(t, "claim-1", r.BatchID)
				assert.Len(t, r.Signatures, 3)
				assert.Equal(t, 2, r.Confirmed)
				assert.Equal(t, 1, r.Failed)
				assert.Nil(t, r.Error)
			},
		},
		{
			name:  "nothing pending",
			input: HarvestInput{Owner: testOwner},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 2, Pending: 0}, nil)
			},
			validateResult: func(t *testing.T, r *HarvestResult) {
				assert.False(t, r.Claimed)
				assert.Equal(t, "nothing pending", r.Skipped)
			},
		},
		{
			name:  "below threshold",
			input: HarvestInput{Owner: testOwner, MinClaimAmount: 1000000000},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 2, Pending: 999999999}, nil)
			},
			validateResult: func(t *testing.T, r *HarvestResult) {
				assert.False(t, r.Claimed)
				assert.Equal(t, "below minimum claim amount", r.Skipped)
				assert.Equal(t, uint64(999999999), r.Pending)
			},
		},
		{
			name:  "threshold met exactly",
			input: HarvestInput{Owner: testOwner, MinClaimAmount: 1000000000},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 1, Pending: 1000000000}, nil)
				claim.Return(&ClaimRewardsResult{BatchID: "claim-2", Signatures: []string{"s1"}}, nil)
				track.Return(&TrackSignaturesResult{Confirmed: 1}, nil)
			},
			claimCalls: 1,
			trackCalls: 1,
			validateResult: func(t *testing.T, r *HarvestResult) {
				assert.True(t, r.Claimed)
			},
		},
		{
			name:  "claim produced no transactions",
			input: HarvestInput{Owner: testOwner},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 1, Pending: 10}, nil)
				claim.Return(&ClaimRewardsResult{BatchID: "claim-3"}, nil)
			},
			claimCalls: 1,
			validateResult: func(t *testing.T, r *HarvestResult) {
				assert.False(t, r.Claimed)
				assert.Equal(t, "no harvest instructions", r.Skipped)
			},
		},
		{
			name:  "claim failure is not retried",
			input: HarvestInput{Owner: testOwner},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(&RefreshFleetsResult{Fleets: 1, Pending: 10}, nil)
				claim.Return(nil, errors.New("transaction 2 of 3: node unhealthy"))
			},
			expectedError: true,
			claimCalls:    1,
		},
		{
			name:  "refresh failure",
			input: HarvestInput{Owner: testOwner},
			mockActivities: func(refresh, claim, track *testsuite.MockCallWrapper) {
				refresh.Return(nil, errors.New("rpc down"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			// Register activities first (before mocking)
			activities := &Activities{}
			env.RegisterActivity(activities.RefreshFleets)
			env.RegisterActivity(activities.ClaimRewards)
			env.RegisterActivity(activities.TrackSignatures)

			claimCalls, trackCalls := 0, 0
			refreshMock := env.OnActivity(activities.RefreshFleets, mock.Anything, mock.Anything)
			claimMock := env.OnActivity(activities.ClaimRewards, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { claimCalls++ })
			trackMock := env.OnActivity(activities.TrackSignatures, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { trackCalls++ })

			tt.mockActivities(refreshMock, claimMock, trackMock)

			env.ExecuteWorkflow(HarvestWorkflow, tt.input)
			require.True(t, env.IsWorkflowCompleted())

			assert.Equal(t, tt.claimCalls, claimCalls, "claim activity calls")
			assert.Equal(t, tt.trackCalls, trackCalls, "track activity calls")

			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result HarvestResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, testOwner, result.Owner)
			if tt.validateResult != nil {
				tt.validateResult(t, &result)
			}
		})
	}
}

func TestHarvestWorkflow_RefreshRetries(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.RefreshFleets)
	env.RegisterActivity(activities.ClaimRewards)
	env.RegisterActivity(activities.TrackSignatures)

	// Fail twice then succeed
	callCount := 0
	env.OnActivity(activities.RefreshFleets, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(&RefreshFleetsResult{Fleets: 1, Pending: 0}, nil)

	env.ExecuteWorkflow(HarvestWorkflow, HarvestInput{Owner: testOwner})

	assert.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, callCount)
}
