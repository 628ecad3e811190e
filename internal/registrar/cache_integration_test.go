//go:build integration

package registrar

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"registrar/internal/contact"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	"registrar/pkg/testutil/containers"
)

func TestSnapshotCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redis := containers.NewRedisContainer(t)

	store := NewMemoryStore()
	registry := &fakeRegistry{}
	userID := id.UserID(uuid.New())

	zones := zone.NewRegistry([]*zone.Zone{{
		Name:                  "dev",
		Registry:              "test",
		Pricing:               zone.Pricing{Currency: "GBP", Registration: decimal.NewFromInt(10)},
		TransferLockSupported: true,
	}})

	svc := NewService(ServiceConfig{
		Store:    store,
		Contacts: contact.NewMemoryStore(),
		Registry: registry,
		Zones:    zones,
		Orders:   &fakeOcclusion{},
		Events:   &fakeEvents{},
		Cache:    redis.Client,
		Logger:   slog.Default(),
		Metrics:  testMetrics,
	})

	d := &Domain{ID: id.NewDomainID(), UserID: userID, Name: "cached.dev"}
	require.NoError(t, store.Create(ctx, d))

	getCalls := func() int {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		return registry.getCalls
	}

	// First read fills the cache; the second is served from it.
	_, err := svc.Get(ctx, userID, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, getCalls())

	_, err = svc.Get(ctx, userID, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, getCalls())

	// Mutations bypass the cache for their snapshot and invalidate it, so
	// the next read goes back to the registry.
	require.NoError(t, svc.SetTransferLock(ctx, userID, d.ID, true))
	require.Equal(t, 2, getCalls())

	_, err = svc.Get(ctx, userID, d.ID)
	require.NoError(t, err)
	require.Equal(t, 3, getCalls())
}
