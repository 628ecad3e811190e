package order

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"

	id "registrar/pkg/domain"
)

// Store persists orders.
//
// AdvanceState is the only way an order changes state. It atomically
// verifies the order is still in the from state, applies mutate to the
// in-memory copy, and writes the new state; if the stored state differs
// from from it returns sentinel.ErrInvalidState and writes nothing. Every
// caller that may run twice (webhook redelivery, task retry) relies on
// this compare-and-swap for idempotence.
type Store interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, orderID id.OrderID) (*Order, error)
	FindByChargeStateID(ctx context.Context, chargeStateID string) (*Order, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Order, error)
	// ExistsActiveForDomain reports whether a non-terminal order already
	// references the domain name. Used to refuse duplicate concurrent
	// operations on one name.
	ExistsActiveForDomain(ctx context.Context, domain string) (bool, error)
	AdvanceState(ctx context.Context, orderID id.OrderID, from, to State, mutate func(*Order)) (*Order, error)
}
