package registrar

import (
	"context"
	"strings"
	"sync"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

// MemoryStore keeps domains in a map. Used in tests and local dev.
type MemoryStore struct {
	mu      sync.RWMutex
	domains map[id.DomainID]*Domain
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{domains: make(map[id.DomainID]*Domain)}
}

func (s *MemoryStore) Create(ctx context.Context, d *Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if strings.EqualFold(existing.Name, d.Name) && !existing.Deleted {
			return sentinel.ErrConflict
		}
	}
	now := requestcontext.Now(ctx)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	cp := *d
	s.domains[d.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, domainID id.DomainID) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[domainID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if strings.EqualFold(d.Name, name) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Domain
	for _, d := range s.domains {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, d *Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	d.UpdatedAt = requestcontext.Now(ctx)
	cp := *d
	s.domains[d.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, domainID id.DomainID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[domainID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.domains, domainID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
