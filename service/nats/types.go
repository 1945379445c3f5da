package nats

import (
	"time"

	"github.com/brojonat/atlasclaim/service/db"
)

// SignatureEvent is a status change of a submitted claim transaction.
// It is published to the subject "claims.{owner}" in JetStream.
type SignatureEvent struct {
	Signature string  `json:"signature"`
	Owner     string  `json:"owner"`
	BatchID   string  `json:"batch_id"`
	Status    string  `json:"status"` // processing, confirmed or failed
	Error     *string `json:"error,omitempty"`
	Slot      uint64  `json:"slot,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject for an owner's claim events.
func Subject(owner string) string {
	return SubjectPrefix + owner
}

// FromClaim converts a stored claim record to an event for publishing.
func FromClaim(c *db.Claim) *SignatureEvent {
	return &SignatureEvent{
		Signature:   c.Signature,
		Owner:       c.Owner,
		BatchID:     c.BatchID,
		Status:      c.Status,
		Error:       c.Error,
		Slot:        c.Slot,
		PublishedAt: time.Now().UTC(),
	}
}
