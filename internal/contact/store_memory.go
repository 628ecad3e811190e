package contact

import (
	"context"
	"sync"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// MemoryStore keeps reference data in maps. Used in tests and local dev.
type MemoryStore struct {
	mu          sync.RWMutex
	contacts    map[id.ContactID]*Contact
	addresses   map[id.ContactID]*Address
	nameServers map[string]*NameServer // keyed by registry + "/" + host
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:    make(map[id.ContactID]*Contact),
		addresses:   make(map[id.ContactID]*Address),
		nameServers: make(map[string]*NameServer),
	}
}

// PutContact seeds a contact; test helper.
func (s *MemoryStore) PutContact(c *Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.RegistryIDs == nil {
		c.RegistryIDs = make(map[string]string)
	}
	s.contacts[c.ID] = c
}

// PutAddress seeds an address; test helper.
func (s *MemoryStore) PutAddress(a *Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = a
}

func (s *MemoryStore) FindContact(_ context.Context, contactID id.ContactID) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListContactsByUser(_ context.Context, userID id.UserID) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Contact
	for _, c := range s.contacts {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAddressesByUser(_ context.Context, userID id.UserID) ([]*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Address
	for _, a := range s.addresses {
		if a.UserID == userID {
			ap := *a
			out = append(out, &ap)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetRegistryID(_ context.Context, contactID id.ContactID, registry, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.RegistryIDs == nil {
		c.RegistryIDs = make(map[string]string)
	}
	c.RegistryIDs[registry] = handle
	return nil
}

func (s *MemoryStore) FindOrCreateNameServer(_ context.Context, userID id.UserID, hostObj, registry string) (*NameServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := registry + "/" + hostObj
	if ns, ok := s.nameServers[key]; ok {
		nsp := *ns
		return &nsp, nil
	}
	ns := &NameServer{
		ID:       id.DomainID(uuid.New()),
		UserID:   userID,
		HostObj:  hostObj,
		Registry: registry,
	}
	s.nameServers[key] = ns
	nsp := *ns
	return &nsp, nil
}

var _ Store = (*MemoryStore)(nil)
