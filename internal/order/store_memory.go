package order

import (
	"context"
	"strings"
	"sync"

	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"

	id "registrar/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[id.OrderID]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[id.OrderID]*Order)}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return sentinel.ErrConflict
	}
	now := requestcontext.Now(ctx).UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, orderID id.OrderID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) FindByChargeStateID(ctx context.Context, chargeStateID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ChargeStateID != nil && *o.ChargeStateID == chargeStateID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Order
	for _, o := range s.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ExistsActiveForDomain(ctx context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if strings.EqualFold(o.Domain, domain) && !o.State.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AdvanceState(ctx context.Context, orderID id.OrderID, from, to State, mutate func(*Order)) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if o.State != from {
		return nil, sentinel.ErrInvalidState
	}
	if !CanTransition(from, to) {
		return nil, sentinel.ErrInvalidState
	}
	cp := *o
	if mutate != nil {
		mutate(&cp)
	}
	cp.State = to
	cp.UpdatedAt = requestcontext.Now(ctx).UTC()
	s.orders[orderID] = &cp
	out := cp
	return &out, nil
}
