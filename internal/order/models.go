// Package order implements the order lifecycle: one persisted record per
// pending domain operation, a state machine over it, the background
// processor that advances it, and the confirmation query surface.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"registrar/internal/zone"
	id "registrar/pkg/domain"
)

// Kind discriminates the four order variants. They share one state-machine
// shape and differ only in the registry operation performed while
// PROCESSING.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindRenewal      Kind = "renewal"
	KindRestore      Kind = "restore"
	KindTransfer     Kind = "transfer"
)

// State is the order workflow state.
type State string

const (
	StatePending         State = "pending"
	StateStarted         State = "started"
	StateNeedsPayment    State = "needs_payment"
	StateProcessing      State = "processing"
	StatePendingApproval State = "pending_approval"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// transitions is the directed graph of legal state changes. Anything not
// listed is rejected; per-order writes are compare-and-swap against the
// expected source state so re-delivered work observes ErrInvalidState and
// no-ops.
var transitions = map[State][]State{
	StatePending:         {StateStarted, StateFailed},
	StateStarted:         {StateNeedsPayment, StateProcessing, StateFailed},
	StateNeedsPayment:    {StateStarted, StateProcessing, StateFailed},
	StateProcessing:      {StatePendingApproval, StateCompleted, StateFailed},
	StatePendingApproval: {StateCompleted, StateFailed},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Order is one pending domain operation. Orders are created by the request
// handler, mutated only by the processor and the confirmation handler, and
// never deleted; terminal orders remain as the audit trail.
type Order struct {
	ID     id.OrderID
	Kind   Kind
	UserID id.UserID

	// Domain is the ASCII (punycode) target name. Registration and transfer
	// create a new registry object for it; renewal and restore reference an
	// existing one via DomainObjID.
	Domain      string
	DomainObjID *id.DomainID

	// Period applies to registration and renewal only.
	Period zone.Period

	Price    decimal.Decimal
	Currency string
	// ChargeStateID is the billing session reference, nil until a charge
	// has been created.
	ChargeStateID *string
	// OffSession allows charging a stored payment method without the user
	// present.
	OffSession bool

	// Contact links apply to registration and transfer only.
	RegistrantContactID *id.ContactID
	AdminContactID      *id.ContactID
	BillingContactID    *id.ContactID
	TechContactID       *id.ContactID

	State State
	// AuthInfo is generated at creation for registrations; AuthCode is the
	// user-supplied code for transfers.
	AuthInfo string
	AuthCode string

	LastError   string
	RedirectURI string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Free reports whether the order owes nothing and may skip billing.
func (o *Order) Free() bool {
	return o.Price.IsZero()
}
