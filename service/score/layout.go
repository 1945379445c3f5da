package score

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators are the first 8 bytes of sha256("account:<Name>").
var (
	shipStakingDiscriminator   = discriminator("account:ShipStakingInfo")
	scoreVarsShipDiscriminator = discriminator("account:ScoreVarsShip")
	harvestDiscriminator       = discriminator("global:process_harvest")
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte(name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// ownerOffset is where the owner key starts in a ShipStakingInfo account.
const ownerOffset = 8

// ShipStakingInfo is the on-chain record of one staked fleet: the ships
// held in escrow, the resources feeding them and the rewards accrued.
// Capacities are in seconds of runtime remaining at CurrentCapacityTimestamp.
type ShipStakingInfo struct {
	Discriminator            [8]byte
	Owner                    solana.PublicKey
	FactionID                uint8
	ShipMint                 solana.PublicKey
	ShipQuantityInEscrow     uint64
	FuelQuantityInEscrow     uint64
	FoodQuantityInEscrow     uint64
	ArmsQuantityInEscrow     uint64
	FuelCurrentCapacity      uint64
	FoodCurrentCapacity      uint64
	ArmsCurrentCapacity      uint64
	HealthCurrentCapacity    uint64
	StakedAtTimestamp        int64
	FueledAtTimestamp        int64
	FedAtTimestamp           int64
	ArmedAtTimestamp         int64
	RepairedAtTimestamp      int64
	CurrentCapacityTimestamp int64
	TotalTimePaid            uint64
	StakedTimePaid           uint64
	PendingRewards           uint64
	TotalRewardsPaid         uint64
}

// ScoreVarsShip holds per-ship-type SCORE parameters.
type ScoreVarsShip struct {
	Discriminator                [8]byte
	ShipMint                     solana.PublicKey
	RewardRatePerSecond          uint64
	FuelMaxReserve               uint32
	FoodMaxReserve               uint32
	ArmsMaxReserve               uint32
	ToolkitMaxReserve            uint32
	MillisecondsToBurnOneFuel    uint32
	MillisecondsToBurnOneFood    uint32
	MillisecondsToBurnOneArms    uint32
	MillisecondsToBurnOneToolkit uint32
}

// DecodeShipStakingInfo decodes a fleet staking account.
func DecodeShipStakingInfo(data []byte) (*ShipStakingInfo, error) {
	var info ShipStakingInfo
	if err := decodeAccount(data, shipStakingDiscriminator, &info); err != nil {
		return nil, fmt.Errorf("failed to decode ship staking info: %w", err)
	}
	return &info, nil
}

// DecodeScoreVarsShip decodes a per-ship SCORE vars account.
func DecodeScoreVarsShip(data []byte) (*ScoreVarsShip, error) {
	var vars ScoreVarsShip
	if err := decodeAccount(data, scoreVarsShipDiscriminator, &vars); err != nil {
		return nil, fmt.Errorf("failed to decode score vars ship: %w", err)
	}
	return &vars, nil
}

func decodeAccount(data []byte, want [8]byte, v interface{}) error {
	if len(data) < 8 {
		return fmt.Errorf("account data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], want[:]) {
		return fmt.Errorf("unexpected account discriminator %x", data[:8])
	}
	return bin.NewBorshDecoder(data).Decode(v)
}
