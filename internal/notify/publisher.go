package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"registrar/internal/registrar"
)

// Publisher turns domain lifecycle callbacks into outbox events. It
// implements registrar.EventPublisher.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// DomainDeleted enqueues a domain.deleted event keyed by domain name so
// per-domain ordering survives partitioning.
func (p *Publisher) DomainDeleted(ctx context.Context, d *registrar.Domain) error {
	deletedAt := time.Now()
	if d.DeletedAt != nil {
		deletedAt = *d.DeletedAt
	}
	payload, err := json.Marshal(DomainDeleted{
		DomainID:    d.ID.String(),
		Domain:      d.Name,
		UserID:      d.UserID.String(),
		SoftDeleted: d.Deleted,
		DeletedAt:   deletedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal domain deleted event: %w", err)
	}
	return p.store.Enqueue(ctx, &Event{
		Type:    TypeDomainDeleted,
		Key:     d.Name,
		Payload: payload,
	})
}

var _ registrar.EventPublisher = (*Publisher)(nil)
