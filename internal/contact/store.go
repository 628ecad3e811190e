package contact

import (
	"context"

	id "registrar/pkg/domain"
)

// Store is interface-driven so order processing can be tested against the
// in-memory implementation without a database.
type Store interface {
	FindContact(ctx context.Context, contactID id.ContactID) (*Contact, error)
	ListContactsByUser(ctx context.Context, userID id.UserID) ([]*Contact, error)
	ListAddressesByUser(ctx context.Context, userID id.UserID) ([]*Address, error)
	// SetRegistryID records the handle a contact received at a registry.
	SetRegistryID(ctx context.Context, contactID id.ContactID, registry, handle string) error
	// FindOrCreateNameServer returns the local row for a registry host,
	// creating it on first sight.
	FindOrCreateNameServer(ctx context.Context, userID id.UserID, hostObj, registry string) (*NameServer, error)
}
