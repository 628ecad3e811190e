package registrar

import (
	"context"

	id "registrar/pkg/domain"
)

// Store persists domains under management. Interface-driven so the order
// processor and listing service test against the in-memory implementation.
type Store interface {
	Create(ctx context.Context, d *Domain) error
	FindByID(ctx context.Context, domainID id.DomainID) (*Domain, error)
	FindByName(ctx context.Context, name string) (*Domain, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Domain, error)
	// Update rewrites mutable fields (contacts, auth info, deleted flag).
	Update(ctx context.Context, d *Domain) error
	// Delete removes the row outright. Only used for zones without restore
	// support, where a deleted domain cannot come back.
	Delete(ctx context.Context, domainID id.DomainID) error
}
