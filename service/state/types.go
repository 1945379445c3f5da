package state

import (
	"github.com/brojonat/atlasclaim/service/solana"
)

// Fleet is one staked SCORE fleet as shown on the dashboard.
// Amount fields are raw ATLAS base units.
type Fleet struct {
	ID             string `json:"id"` // fleet staking account address
	Owner          string `json:"owner"`
	ShipMint       string `json:"ship_mint"`
	Name           string `json:"name"`
	Size           uint64 `json:"size"`
	SecondsLeft    int64  `json:"seconds_left"`
	TotalPaid      uint64 `json:"total_paid"`
	PendingRewards uint64 `json:"pending_rewards"`
	RewardPerDay   uint64 `json:"reward_per_day"`
	ImageURL       string `json:"image_url"`
}

// WaitingSignature is a submitted claim transaction being tracked.
type WaitingSignature struct {
	Hash   string          `json:"hash"`
	Status solana.TxStatus `json:"status"`
}

// ModalKind distinguishes success notices from failure notices.
type ModalKind string

const (
	ModalInfo  ModalKind = "info"
	ModalError ModalKind = "error"
)

// Modal is the single-slot notice shown after a user action.
type Modal struct {
	Kind    ModalKind `json:"kind"`
	Message string    `json:"message"`
	List    []string  `json:"list,omitempty"`
}
