package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/atlasclaim/service/db"
	"github.com/brojonat/atlasclaim/service/galaxy"
	"github.com/brojonat/atlasclaim/service/metrics"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/brojonat/atlasclaim/service/score"
	"github.com/brojonat/atlasclaim/service/solana"
	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/units"
	solanago "github.com/gagliardetto/solana-go"
)

// ErrTrackingTimeout is returned when signatures are still processing at
// the end of the polling window.
var ErrTrackingTimeout = errors.New("signatures still processing after poll timeout")

// ChainReader reads staked fleets from the SCORE program.
type ChainReader interface {
	Fleets(ctx context.Context, owner solanago.PublicKey) ([]score.StakedFleet, error)
	Now() time.Time
}

// ShipCatalog resolves ship mints to display names and images.
type ShipCatalog interface {
	Ship(ctx context.Context, mint string) (galaxy.Ship, bool, error)
}

// StatusChecker looks up transaction signature statuses.
type StatusChecker interface {
	SignatureStatuses(ctx context.Context, signatures []solanago.Signature) ([]solana.SignatureStatus, error)
}

// ClaimStore persists claim status changes.
type ClaimStore interface {
	UpdateClaimStatus(ctx context.Context, params db.UpdateClaimStatusParams) (*db.Claim, error)
}

// Config controls signature polling.
type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Service refreshes fleets into the fleet store and tracks claim signatures.
// Store, publisher and metrics are optional.
type Service struct {
	chain     ChainReader
	catalog   ShipCatalog
	statuses  StatusChecker
	fleets    *state.FleetStore
	app       *state.AppStore
	store     ClaimStore
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Chain     ChainReader
	Catalog   ShipCatalog
	Statuses  StatusChecker
	Fleets    *state.FleetStore
	App       *state.AppStore
	Store     ClaimStore
	Publisher natspkg.Publisher
	Metrics   *metrics.Metrics
}

func NewService(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	return &Service{
		chain:     deps.Chain,
		catalog:   deps.Catalog,
		statuses:  deps.Statuses,
		fleets:    deps.Fleets,
		app:       deps.App,
		store:     deps.Store,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Refresh pulls owner's fleets from chain and replaces them in the fleet
// store. The app store's refreshing flag is set for the duration. On
// failure the previous fleet list is left in place.
func (s *Service) Refresh(ctx context.Context, owner string) error {
	s.app.SetRefreshing(true)
	defer s.app.SetRefreshing(false)

	fleets, err := s.load(ctx, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "fleet refresh failed", "owner", owner, "error", err)
		if s.metrics != nil {
			s.metrics.RecordFleetRefresh(owner, "error", 0)
		}
		return err
	}

	s.fleets.Replace(owner, fleets)

	pending := s.PendingAtlas(owner)
	if s.metrics != nil {
		s.metrics.RecordFleetRefresh(owner, "success", len(fleets))
		f, _ := units.Atlas(pending).Float64()
		s.metrics.RecordPendingRewards(owner, f)
	}
	s.logger.InfoContext(ctx, "refreshed fleets",
		"owner", owner,
		"fleets", len(fleets),
		"pending", units.FormatAtlas(pending),
	)
	return nil
}

func (s *Service) load(ctx context.Context, owner string) ([]state.Fleet, error) {
	ownerKey, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address %q: %w", owner, err)
	}

	staked, err := s.chain.Fleets(ctx, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load fleets: %w", err)
	}

	now := s.chain.Now()
	fleets := make([]state.Fleet, 0, len(staked))
	for _, sf := range staked {
		mint := sf.Info.ShipMint.String()
		f := state.Fleet{
			ID:             sf.Address.String(),
			Owner:          owner,
			ShipMint:       mint,
			Name:           mint,
			Size:           sf.Info.ShipQuantityInEscrow,
			SecondsLeft:    sf.SecondsLeft(now),
			TotalPaid:      sf.Info.TotalRewardsPaid,
			PendingRewards: sf.PendingRewards(now),
			RewardPerDay:   sf.RewardPerDay(),
		}
		if s.catalog != nil {
			ship, ok, err := s.catalog.Ship(ctx, mint)
			switch {
			case err != nil:
				s.logger.WarnContext(ctx, "ship catalog unavailable", "mint", mint, "error", err)
			case ok:
				f.Name = ship.Name
				f.ImageURL = ship.Image
			}
		}
		fleets = append(fleets, f)
	}
	return fleets, nil
}

// PendingAtlas sums pending rewards over owner's stored fleets.
func (s *Service) PendingAtlas(owner string) uint64 {
	var total uint64
	for _, f := range s.fleets.Fleets(owner) {
		total += f.PendingRewards
	}
	return total
}

// FleetCount is the number of owner's stored fleets.
func (s *Service) FleetCount(owner string) int {
	return len(s.fleets.Fleets(owner))
}

// RewardPerDay sums the 24 hour accrual over owner's stored fleets.
func (s *Service) RewardPerDay(owner string) uint64 {
	var total uint64
	for _, f := range s.fleets.Fleets(owner) {
		total += f.RewardPerDay
	}
	return total
}

// CheckSignatures polls the chain until every signature is terminal or the
// poll timeout passes. Each status change is written to the app store,
// the claim store and NATS. Once all are terminal the owner's fleets are
// refreshed so pending amounts drop to what is left.
func (s *Service) CheckSignatures(ctx context.Context, owner, batchID string, signatures []string) error {
	if len(signatures) == 0 {
		return nil
	}

	sigs := make([]solanago.Signature, len(signatures))
	for i, raw := range signatures {
		sig, err := solanago.SignatureFromBase58(raw)
		if err != nil {
			return fmt.Errorf("invalid signature %q: %w", raw, err)
		}
		sigs[i] = sig
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()

	last := make(map[string]solana.TxStatus, len(signatures))
	for _, sig := range signatures {
		last[sig] = solana.TxStatusProcessing
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		done, err := s.pollOnce(ctx, owner, batchID, sigs, last)
		if err != nil {
			s.logger.WarnContext(ctx, "signature poll failed", "owner", owner, "error", err)
		}
		if done {
			s.logger.InfoContext(ctx, "all claim signatures terminal", "owner", owner, "batch_id", batchID)
			if err := s.Refresh(context.WithoutCancel(ctx), owner); err != nil {
				s.logger.WarnContext(ctx, "post-claim refresh failed", "owner", owner, "error", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTrackingTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce fetches statuses once, records every change and reports whether
// all signatures are terminal.
func (s *Service) pollOnce(ctx context.Context, owner, batchID string, sigs []solanago.Signature, last map[string]solana.TxStatus) (bool, error) {
	statuses, err := s.statuses.SignatureStatuses(ctx, sigs)
	if err != nil {
		return false, err
	}

	changed := make(map[string]solana.TxStatus)
	for _, st := range statuses {
		if st.Status == last[st.Signature] {
			continue
		}
		last[st.Signature] = st.Status
		changed[st.Signature] = st.Status
		s.recordChange(ctx, owner, batchID, st)
	}
	if len(changed) > 0 {
		s.app.UpdateSignatures(changed)
	}

	for _, st := range last {
		if !st.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) recordChange(ctx context.Context, owner, batchID string, st solana.SignatureStatus) {
	s.logger.InfoContext(ctx, "claim signature status changed",
		"signature", st.Signature,
		"status", st.Status,
	)
	if s.metrics != nil && st.Status.Terminal() {
		s.metrics.RecordSignatureOutcome(string(st.Status))
	}

	if s.store != nil {
		_, err := s.store.UpdateClaimStatus(ctx, db.UpdateClaimStatusParams{
			Signature: st.Signature,
			Status:    string(st.Status),
			Error:     st.Err,
			Slot:      st.Slot,
		})
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to store claim status", "signature", st.Signature, "error", err)
		}
	}

	if s.publisher != nil {
		err := s.publisher.PublishSignatureEvent(ctx, &natspkg.SignatureEvent{
			Signature:   st.Signature,
			Owner:       owner,
			BatchID:     batchID,
			Status:      string(st.Status),
			Error:       st.Err,
			Slot:        st.Slot,
			PublishedAt: time.Now().UTC(),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to publish signature event", "signature", st.Signature, "error", err)
		}
	}
}
