// Package registrar manages domains under management: the local rows
// mirroring what the user holds at the registries, and the read/mutate
// operations against registry truth.
package registrar

import (
	"time"

	id "registrar/pkg/domain"
)

// Domain is a registration under management. The registry owns the
// authoritative object; this row records ownership, contact links, and the
// soft-delete flag. Rows are created by the order processor when a
// registration, transfer, or restore completes.
type Domain struct {
	ID     id.DomainID
	UserID id.UserID
	// Name is the ASCII (punycode) domain name.
	Name     string
	AuthInfo string

	RegistrantContactID *id.ContactID
	AdminContactID      *id.ContactID
	BillingContactID    *id.ContactID
	TechContactID       *id.ContactID

	// Deleted marks a domain the registry reports as deleted or in
	// redemption. Kept (not dropped) while the zone supports restore.
	Deleted   bool
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
