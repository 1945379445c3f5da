package score

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const secondsPerDay = 86400

// AccountReader is the subset of the chain client the SCORE service reads with.
type AccountReader interface {
	ProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error)
	MultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error)
}

// StakedFleet is a decoded staking account joined with its ship's reward rate.
type StakedFleet struct {
	Address             solana.PublicKey
	Info                ShipStakingInfo
	RewardRatePerSecond uint64
}

// SecondsLeft is how long the fleet keeps earning before a resource runs out.
func (f StakedFleet) SecondsLeft(now time.Time) int64 {
	left := int64(f.minCapacity()) - f.elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

// PendingRewards is the amount a harvest would pay out at now: the settled
// pending balance plus accrual since the last capacity update, capped at
// the point where the fleet ran dry.
func (f StakedFleet) PendingRewards(now time.Time) uint64 {
	earning := uint64(f.elapsed(now))
	if c := f.minCapacity(); earning > c {
		earning = c
	}
	return f.Info.PendingRewards + f.RewardRatePerSecond*f.Info.ShipQuantityInEscrow*earning
}

// RewardPerDay is the fleet's 24 hour accrual while supplied.
func (f StakedFleet) RewardPerDay() uint64 {
	return f.RewardRatePerSecond * f.Info.ShipQuantityInEscrow * secondsPerDay
}

func (f StakedFleet) elapsed(now time.Time) int64 {
	e := now.Unix() - f.Info.CurrentCapacityTimestamp
	if e < 0 {
		return 0
	}
	return e
}

func (f StakedFleet) minCapacity() uint64 {
	return min(
		f.Info.FuelCurrentCapacity,
		f.Info.FoodCurrentCapacity,
		f.Info.ArmsCurrentCapacity,
		f.Info.HealthCurrentCapacity,
	)
}

// Service reads fleet state from the SCORE program and builds harvest
// instructions. It holds no state between calls.
type Service struct {
	program *Program
	reader  AccountReader
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(program *Program, reader AccountReader, logger *slog.Logger) *Service {
	return &Service{
		program: program,
		reader:  reader,
		logger:  logger,
		now:     time.Now,
	}
}

// Program returns the program the service is bound to.
func (s *Service) Program() *Program {
	return s.program
}

// Now is the clock used for accrual math.
func (s *Service) Now() time.Time {
	return s.now()
}

// Fleets returns every fleet owner has staked, with reward rates resolved.
// Accounts that fail to decode are skipped and logged.
func (s *Service) Fleets(ctx context.Context, owner solana.PublicKey) ([]StakedFleet, error) {
	accounts, err := s.reader.ProgramAccounts(ctx, s.program.ID, s.program.OwnerFilters(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list staking accounts: %w", err)
	}

	fleets := make([]StakedFleet, 0, len(accounts))
	for _, acct := range accounts {
		if acct == nil || acct.Account == nil || acct.Account.Data == nil {
			continue
		}
		info, err := DecodeShipStakingInfo(acct.Account.Data.GetBinary())
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable staking account",
				"account", acct.Pubkey.String(),
				"error", err,
			)
			continue
		}
		if !info.Owner.Equals(owner) {
			continue
		}
		fleets = append(fleets, StakedFleet{Address: acct.Pubkey, Info: *info})
	}

	if err := s.resolveRates(ctx, fleets); err != nil {
		return nil, err
	}
	return fleets, nil
}

// resolveRates fills in RewardRatePerSecond from each ship's SCORE vars,
// fetching each distinct ship type once.
func (s *Service) resolveRates(ctx context.Context, fleets []StakedFleet) error {
	if len(fleets) == 0 {
		return nil
	}

	var keys []solana.PublicKey
	index := make(map[solana.PublicKey]int)
	for _, f := range fleets {
		if _, ok := index[f.Info.ShipMint]; ok {
			continue
		}
		addr, err := s.program.ScoreVarsShipAddress(f.Info.ShipMint)
		if err != nil {
			return fmt.Errorf("failed to derive score vars for %s: %w", f.Info.ShipMint, err)
		}
		index[f.Info.ShipMint] = len(keys)
		keys = append(keys, addr)
	}

	accounts, err := s.reader.MultipleAccounts(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to fetch score vars: %w", err)
	}

	rates := make(map[solana.PublicKey]uint64, len(index))
	for mint, i := range index {
		if i >= len(accounts) || accounts[i] == nil || accounts[i].Data == nil {
			s.logger.WarnContext(ctx, "missing score vars account", "ship_mint", mint.String())
			continue
		}
		vars, err := DecodeScoreVarsShip(accounts[i].Data.GetBinary())
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable score vars", "ship_mint", mint.String(), "error", err)
			continue
		}
		rates[mint] = vars.RewardRatePerSecond
	}

	for i := range fleets {
		fleets[i].RewardRatePerSecond = rates[fleets[i].Info.ShipMint]
	}
	return nil
}

// HarvestAllInstructions returns one harvest instruction per fleet that
// has pending rewards, in the order the chain listed the fleets.
func (s *Service) HarvestAllInstructions(ctx context.Context, owner solana.PublicKey) ([]solana.Instruction, error) {
	return s.HarvestInstructions(ctx, owner, nil)
}

// HarvestInstructions is HarvestAllInstructions restricted to the given
// fleet addresses. A nil filter means every fleet.
func (s *Service) HarvestInstructions(ctx context.Context, owner solana.PublicKey, fleetIDs []string) ([]solana.Instruction, error) {
	fleets, err := s.Fleets(ctx, owner)
	if err != nil {
		return nil, err
	}

	var want map[string]bool
	if fleetIDs != nil {
		want = make(map[string]bool, len(fleetIDs))
		for _, id := range fleetIDs {
			want[id] = true
		}
	}

	now := s.now()
	var ixs []solana.Instruction
	for _, f := range fleets {
		if want != nil && !want[f.Address.String()] {
			continue
		}
		if f.PendingRewards(now) == 0 {
			continue
		}
		ix, err := s.program.HarvestInstruction(owner, f.Info.ShipMint)
		if err != nil {
			return nil, fmt.Errorf("failed to build harvest for fleet %s: %w", f.Address, err)
		}
		ixs = append(ixs, ix)
	}

	s.logger.DebugContext(ctx, "built harvest instructions",
		"owner", owner.String(),
		"fleets", len(fleets),
		"instructions", len(ixs),
	)
	return ixs, nil
}
