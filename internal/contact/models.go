// Package contact holds the reference data used in registry operations:
// contacts, their postal addresses, and known name servers. These are owned
// by the user and merely referenced from orders; they carry no workflow
// state of their own.
package contact

import (
	"time"

	id "registrar/pkg/domain"
)

// Contact is a party (registrant, admin, billing, or tech) usable on
// domain objects. A contact gains a registry-scoped id the first time it is
// pushed to a given registry.
type Contact struct {
	ID          id.ContactID
	UserID      id.UserID
	Description string
	AddressID   id.ContactID
	CreatedAt   time.Time

	// RegistryIDs maps registry name to the contact's handle there.
	RegistryIDs map[string]string
}

// RegistryID returns the contact's handle at the given registry, or ok false
// when the contact has never been provisioned there.
func (c *Contact) RegistryID(registry string) (string, bool) {
	handle, ok := c.RegistryIDs[registry]
	return handle, ok
}

// Address is the postal address backing one or more contacts.
type Address struct {
	ID           id.ContactID
	UserID       id.UserID
	Name         string
	Organisation string
	Street       string
	City         string
	Province     string
	PostalCode   string
	CountryCode  string
}

// NameServer is a host object the user has referenced at some registry.
type NameServer struct {
	ID       id.DomainID
	UserID   id.UserID
	HostObj  string
	Registry string
}
