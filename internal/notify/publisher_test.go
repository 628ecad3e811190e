package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/registrar"
	id "registrar/pkg/domain"
)

func TestPublisherDomainDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := NewPublisher(store)

	deletedAt := time.Now().Add(-time.Minute)
	d := &registrar.Domain{
		ID:        id.NewDomainID(),
		UserID:    id.UserID{},
		Name:      "gone.dev",
		Deleted:   true,
		DeletedAt: &deletedAt,
	}
	require.NoError(t, p.DomainDeleted(ctx, d))

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	e := pending[0]
	assert.Equal(t, TypeDomainDeleted, e.Type)
	assert.Equal(t, "gone.dev", e.Key, "keyed by name for per-domain ordering")
	assert.NotZero(t, e.EventID)

	var payload DomainDeleted
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, d.ID.String(), payload.DomainID)
	assert.Equal(t, "gone.dev", payload.Domain)
	assert.True(t, payload.SoftDeleted)
	assert.WithinDuration(t, deletedAt, payload.DeletedAt, time.Second)
}

func TestMemoryStoreOutbox(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, key := range []string{"a.dev", "b.dev", "c.dev"} {
		require.NoError(t, store.Enqueue(ctx, &Event{Type: TypeDomainDeleted, Key: key, Payload: []byte(`{}`)}))
	}

	t.Run("fetch respects the limit and insertion order", func(t *testing.T) {
		pending, err := store.FetchPending(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "a.dev", pending[0].Key)
		assert.Equal(t, "b.dev", pending[1].Key)
		assert.Less(t, pending[0].RowID, pending[1].RowID)
	})

	t.Run("sent events leave the pending set", func(t *testing.T) {
		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 3)

		require.NoError(t, store.MarkSent(ctx, pending[0].RowID))

		remaining, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		assert.Equal(t, "b.dev", remaining[0].Key)
	})
}
