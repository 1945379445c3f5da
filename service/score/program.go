package score

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// PDA seeds used by the SCORE program.
var (
	seedScoreVars         = []byte("SCOREVARS")
	seedScoreVarsShip     = []byte("SCOREVARS_SHIP")
	seedShipStaking       = []byte("SCOREINFO")
	seedTreasuryAuthority = []byte("SCORE_TREASURY_AUTHORITY")
)

// Program derives SCORE addresses and builds its instructions.
type Program struct {
	ID        solana.PublicKey
	AtlasMint solana.PublicKey
}

// NewProgram parses the program and reward mint addresses.
func NewProgram(programID, atlasMint string) (*Program, error) {
	id, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid SCORE program id %q: %w", programID, err)
	}
	mint, err := solana.PublicKeyFromBase58(atlasMint)
	if err != nil {
		return nil, fmt.Errorf("invalid ATLAS mint %q: %w", atlasMint, err)
	}
	return &Program{ID: id, AtlasMint: mint}, nil
}

// OwnerFilters selects the fleet staking accounts belonging to owner.
func (p *Program) OwnerFilters(owner solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(shipStakingDiscriminator[:])}},
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: ownerOffset, Bytes: solana.Base58(owner.Bytes())}},
	}
}

func (p *Program) ScoreVarsAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedScoreVars}, p.ID)
	return addr, err
}

func (p *Program) ScoreVarsShipAddress(shipMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedScoreVarsShip, shipMint.Bytes()}, p.ID)
	return addr, err
}

func (p *Program) ShipStakingAddress(owner, shipMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedShipStaking, owner.Bytes(), shipMint.Bytes()}, p.ID)
	return addr, err
}

func (p *Program) TreasuryAuthorityAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{seedTreasuryAuthority}, p.ID)
	return addr, err
}

// HarvestInstruction builds the unsigned instruction that pays out one
// fleet's pending ATLAS to the owner's associated token account.
func (p *Program) HarvestInstruction(owner, shipMint solana.PublicKey) (solana.Instruction, error) {
	ownerATA, _, err := solana.FindAssociatedTokenAddress(owner, p.AtlasMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive owner token account: %w", err)
	}
	scoreVars, err := p.ScoreVarsAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive score vars: %w", err)
	}
	scoreVarsShip, err := p.ScoreVarsShipAddress(shipMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive score vars ship: %w", err)
	}
	staking, err := p.ShipStakingAddress(owner, shipMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive ship staking account: %w", err)
	}
	authority, err := p.TreasuryAuthorityAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive treasury authority: %w", err)
	}
	treasury, _, err := solana.FindAssociatedTokenAddress(authority, p.AtlasMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive treasury token account: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(ownerATA, true, false),
		solana.NewAccountMeta(staking, true, false),
		solana.NewAccountMeta(scoreVars, false, false),
		solana.NewAccountMeta(scoreVarsShip, false, false),
		solana.NewAccountMeta(treasury, true, false),
		solana.NewAccountMeta(authority, false, false),
		solana.NewAccountMeta(shipMint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	data := make([]byte, len(harvestDiscriminator))
	copy(data, harvestDiscriminator[:])
	return solana.NewInstruction(p.ID, accounts, data), nil
}
