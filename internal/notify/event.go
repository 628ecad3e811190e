// Package notify emits domain lifecycle events to the outside world.
//
// Events are written to an outbox table in the same transaction as the
// domain mutation where possible, then relayed to kafka by a background
// worker. The emitting operation never waits on, or fails because of,
// event delivery.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the events topic.
const (
	TypeDomainDeleted = "domain.deleted"
)

// Event is one outbound notification.
type Event struct {
	// RowID is the outbox sequence number, assigned on enqueue.
	RowID      int64
	EventID    uuid.UUID
	Type       string
	Key        string
	Payload    json.RawMessage
	OccurredAt time.Time
	SentAt     *time.Time
}

// DomainDeleted is the payload for TypeDomainDeleted.
type DomainDeleted struct {
	DomainID    string    `json:"domain_id"`
	Domain      string    `json:"domain"`
	UserID      string    `json:"user_id"`
	SoftDeleted bool      `json:"soft_deleted"`
	DeletedAt   time.Time `json:"deleted_at"`
}
