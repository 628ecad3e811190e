//go:build integration

package tasks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"registrar/internal/order"
	id "registrar/pkg/domain"
	"registrar/pkg/testutil/containers"
)

func TestQueueDedupesWithRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redis := containers.NewRedisContainer(t)

	proc := newRecordingProcessor(1)
	q := NewQueue(proc, redis.Client, slog.Default(), 1, 16)
	q.Start(ctx)

	orderID := id.OrderID(uuid.New())
	for range 5 {
		require.NoError(t, q.EnqueueProcessOrder(ctx, order.KindRegistration, orderID))
	}

	select {
	case <-proc.done:
	case <-time.After(10 * time.Second):
		t.Fatal("order was never processed")
	}

	// Give the duplicates time to drain through the single worker, then
	// check the redis mark suppressed them.
	time.Sleep(500 * time.Millisecond)
	require.Len(t, proc.ids(), 1, "duplicate deliveries are skipped while the mark lives")

	cancel()
	q.Wait()
}
