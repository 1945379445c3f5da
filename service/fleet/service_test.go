package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/atlasclaim/service/db"
	"github.com/brojonat/atlasclaim/service/galaxy"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/brojonat/atlasclaim/service/score"
	"github.com/brojonat/atlasclaim/service/solana"
	"github.com/brojonat/atlasclaim/service/state"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	fleets []score.StakedFleet
	err    error
	now    time.Time
}

func (f *fakeChain) Fleets(ctx context.Context, owner solanago.PublicKey) ([]score.StakedFleet, error) {
	return f.fleets, f.err
}

func (f *fakeChain) Now() time.Time { return f.now }

type fakeCatalog map[string]galaxy.Ship

func (c fakeCatalog) Ship(ctx context.Context, mint string) (galaxy.Ship, bool, error) {
	s, ok := c[mint]
	return s, ok, nil
}

// scriptedStatuses returns one status round per call, repeating the last.
type scriptedStatuses struct {
	mu     sync.Mutex
	rounds [][]solana.TxStatus
	calls  int
}

func (s *scriptedStatuses) SignatureStatuses(ctx context.Context, sigs []solanago.Signature) ([]solana.SignatureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round := s.rounds[min(s.calls, len(s.rounds)-1)]
	s.calls++
	out := make([]solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		out[i] = solana.SignatureStatus{Signature: sig.String(), Status: round[i]}
	}
	return out, nil
}

type fakeClaimStore struct {
	mu      sync.Mutex
	updates []db.UpdateClaimStatusParams
}

func (f *fakeClaimStore) UpdateClaimStatus(ctx context.Context, p db.UpdateClaimStatusParams) (*db.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, p)
	return &db.Claim{Signature: p.Signature, Status: p.Status}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stakedFleet(mint solanago.PublicKey, capacity uint64, at time.Time, rate uint64) score.StakedFleet {
	return score.StakedFleet{
		Address: solanago.NewWallet().PublicKey(),
		Info: score.ShipStakingInfo{
			ShipMint:                 mint,
			ShipQuantityInEscrow:     1,
			FuelCurrentCapacity:      capacity,
			FoodCurrentCapacity:      capacity,
			ArmsCurrentCapacity:      capacity,
			HealthCurrentCapacity:    capacity,
			CurrentCapacityTimestamp: at.Unix(),
			TotalRewardsPaid:         7,
		},
		RewardRatePerSecond: rate,
	}
}

func signatureStrings(n int) []string {
	out := make([]string, n)
	for i := range out {
		var sig solanago.Signature
		sig[0] = byte(i + 1)
		out[i] = sig.String()
	}
	return out
}

func TestRefresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey().String()

	chain := &fakeChain{
		now: now,
		fleets: []score.StakedFleet{
			stakedFleet(mint, 86400, now.Add(-100*time.Second), 10),
			stakedFleet(solanago.NewWallet().PublicKey(), 100, now.Add(-500*time.Second), 1),
		},
	}
	fleets := state.NewFleetStore()
	app := state.NewAppStore()
	svc := NewService(Deps{
		Chain:   chain,
		Catalog: fakeCatalog{mint.String(): {Mint: mint.String(), Name: "Pearce X4", Image: "x4.png"}},
		Fleets:  fleets,
		App:     app,
	}, Config{}, testLogger())

	ch, cancel := fleets.Subscribe()
	defer cancel()

	require.NoError(t, svc.Refresh(context.Background(), owner))
	<-ch
	assert.False(t, app.Refreshing())

	got := fleets.Fleets(owner)
	require.Len(t, got, 2)
	assert.Equal(t, "Pearce X4", got[0].Name)
	assert.Equal(t, "x4.png", got[0].ImageURL)
	assert.Equal(t, int64(86300), got[0].SecondsLeft)
	assert.Equal(t, uint64(1000), got[0].PendingRewards)
	assert.Equal(t, uint64(864000), got[0].RewardPerDay)

	assert.Equal(t, got[1].ShipMint, got[1].Name, "unknown ships fall back to the mint")
	assert.Equal(t, int64(0), got[1].SecondsLeft)
	assert.Equal(t, uint64(100), got[1].PendingRewards)

	assert.Equal(t, uint64(1100), svc.PendingAtlas(owner))
	assert.Equal(t, uint64(864000+86400), svc.RewardPerDay(owner))
}

func TestRefresh_FailureKeepsPreviousFleets(t *testing.T) {
	owner := solanago.NewWallet().PublicKey().String()
	fleets := state.NewFleetStore()
	fleets.Replace(owner, []state.Fleet{{ID: "old", PendingRewards: 5}})

	app := state.NewAppStore()
	svc := NewService(Deps{
		Chain:  &fakeChain{err: errors.New("rpc down")},
		Fleets: fleets,
		App:    app,
	}, Config{}, testLogger())

	err := svc.Refresh(context.Background(), owner)
	require.Error(t, err)
	assert.False(t, app.Refreshing(), "refreshing flag is cleared on failure")
	assert.Equal(t, uint64(5), svc.PendingAtlas(owner))
}

func TestRefresh_InvalidOwner(t *testing.T) {
	svc := NewService(Deps{Chain: &fakeChain{}, Fleets: state.NewFleetStore(), App: state.NewAppStore()}, Config{}, testLogger())
	assert.Error(t, svc.Refresh(context.Background(), "not-a-key"))
}

func TestTotals_NoFleets(t *testing.T) {
	svc := NewService(Deps{Fleets: state.NewFleetStore(), App: state.NewAppStore()}, Config{}, testLogger())
	assert.Equal(t, uint64(0), svc.PendingAtlas("nobody"))
	assert.Equal(t, uint64(0), svc.RewardPerDay("nobody"))
}

func TestCheckSignatures(t *testing.T) {
	owner := solanago.NewWallet().PublicKey().String()
	sigs := signatureStrings(3)

	statuses := &scriptedStatuses{rounds: [][]solana.TxStatus{
		{solana.TxStatusProcessing, solana.TxStatusProcessing, solana.TxStatusProcessing},
		{solana.TxStatusConfirmed, solana.TxStatusProcessing, solana.TxStatusFailed},
		{solana.TxStatusConfirmed, solana.TxStatusConfirmed, solana.TxStatusFailed},
	}}
	app := state.NewAppStore()
	app.SetWaitingSignatures(sigs)
	store := &fakeClaimStore{}
	publisher := natspkg.NewMockPublisher()

	svc := NewService(Deps{
		Chain:     &fakeChain{now: time.Now()},
		Statuses:  statuses,
		Fleets:    state.NewFleetStore(),
		App:       app,
		Store:     store,
		Publisher: publisher,
	}, Config{PollInterval: time.Millisecond, PollTimeout: 5 * time.Second}, testLogger())

	err := svc.CheckSignatures(context.Background(), owner, "batch-1", sigs)
	require.NoError(t, err)

	assert.Equal(t, 3, statuses.calls)
	assert.Empty(t, app.WaitingSignatures(), "terminal batch is discarded")
	assert.Len(t, store.updates, 3, "one update per status change")
	assert.Equal(t, []string{"confirmed"}, publisher.StatusHistory(sigs[0]))
	assert.Equal(t, []string{"confirmed"}, publisher.StatusHistory(sigs[1]))
	assert.Equal(t, []string{"failed"}, publisher.StatusHistory(sigs[2]))
	for _, e := range publisher.GetPublishedEvents() {
		assert.Equal(t, owner, e.Owner)
		assert.Equal(t, "batch-1", e.BatchID)
	}
}

func TestCheckSignatures_Timeout(t *testing.T) {
	sigs := signatureStrings(1)
	statuses := &scriptedStatuses{rounds: [][]solana.TxStatus{{solana.TxStatusProcessing}}}
	app := state.NewAppStore()
	app.SetWaitingSignatures(sigs)

	svc := NewService(Deps{
		Statuses: statuses,
		Fleets:   state.NewFleetStore(),
		App:      app,
	}, Config{PollInterval: time.Millisecond, PollTimeout: 20 * time.Millisecond}, testLogger())

	err := svc.CheckSignatures(context.Background(), "owner", "b", sigs)
	assert.ErrorIs(t, err, ErrTrackingTimeout)
	assert.Len(t, app.WaitingSignatures(), 1, "unfinished signatures stay tracked")
}

func TestCheckSignatures_Empty(t *testing.T) {
	svc := NewService(Deps{Fleets: state.NewFleetStore(), App: state.NewAppStore()}, Config{}, testLogger())
	assert.NoError(t, svc.CheckSignatures(context.Background(), "owner", "b", nil))
}

func TestCheckSignatures_InvalidSignature(t *testing.T) {
	svc := NewService(Deps{Fleets: state.NewFleetStore(), App: state.NewAppStore()}, Config{}, testLogger())
	assert.Error(t, svc.CheckSignatures(context.Background(), "owner", "b", []string{"nope"}))
}
