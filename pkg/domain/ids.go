// Package domain provides typed identifiers shared across the registrar.
//
// Each entity gets its own UUID-backed type so the compiler rejects
// cross-entity assignments (an OrderID can never be passed where a
// DomainID is expected). Parse functions enforce validity at trust
// boundaries: IDs must be valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

type (
	// OrderID identifies a pending domain operation (order).
	OrderID uuid.UUID
	// DomainID identifies a DomainRegistration under management.
	DomainID uuid.UUID
	// ContactID identifies a contact record.
	ContactID uuid.UUID
	// UserID identifies the portal user that owns a resource.
	UserID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}

// ParseOrderID validates and returns an OrderID.
func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID("order", s)
	return OrderID(u), err
}

// ParseDomainID validates and returns a DomainID.
func ParseDomainID(s string) (DomainID, error) {
	u, err := parseUUID("domain", s)
	return DomainID(u), err
}

// ParseContactID validates and returns a ContactID.
func ParseContactID(s string) (ContactID, error) {
	u, err := parseUUID("contact", s)
	return ContactID(u), err
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user", s)
	return UserID(u), err
}

func (id OrderID) String() string   { return uuid.UUID(id).String() }
func (id DomainID) String() string  { return uuid.UUID(id).String() }
func (id ContactID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

func (id OrderID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DomainID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ContactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewOrderID returns a fresh random OrderID.
func NewOrderID() OrderID { return OrderID(uuid.New()) }

// NewDomainID returns a fresh random DomainID.
func NewDomainID() DomainID { return DomainID(uuid.New()) }
