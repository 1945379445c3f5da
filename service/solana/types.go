package solana

// TxStatus is the lifecycle state of a submitted transaction as far as
// this service cares: still in flight, landed, or rejected.
type TxStatus string

const (
	TxStatusProcessing TxStatus = "processing"
	TxStatusConfirmed  TxStatus = "confirmed"
	TxStatusFailed     TxStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s TxStatus) Terminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

// SignatureStatus is our domain view of a getSignatureStatuses entry.
type SignatureStatus struct {
	Signature string
	Status    TxStatus
	Slot      uint64
	Err       *string // nil unless the transaction failed on chain
}
