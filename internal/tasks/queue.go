// Package tasks dispatches order processing to background workers. Delivery
// is at-least-once: a task may run twice after a crash or a duplicate
// enqueue, and the processor's state compare-and-swap makes the extra run a
// no-op. A redis mark makes the common duplicate cheap to skip but is never
// relied on for correctness.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"registrar/internal/order"
	"registrar/internal/platform/redis"
	id "registrar/pkg/domain"
)

// dedupeTTL bounds how long a processed order id suppresses duplicate
// deliveries.
const dedupeTTL = time.Minute

// processTimeout bounds one processing attempt, covering the billing and
// registry round trips.
const processTimeout = 2 * time.Minute

// Processor runs one order through its next transitions.
type Processor interface {
	Process(ctx context.Context, orderID id.OrderID) error
}

type task struct {
	kind    order.Kind
	orderID id.OrderID
}

// Queue is a channel-fed worker pool implementing order.TaskQueue.
type Queue struct {
	processor Processor
	logger    *slog.Logger
	dedupe    *redis.Client
	inbox     chan task
	workers   int
	wg        sync.WaitGroup
}

// NewQueue builds a queue with the given worker count and buffer size.
// Dedupe may be nil when redis is not configured.
func NewQueue(processor Processor, dedupe *redis.Client, logger *slog.Logger, workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		processor: processor,
		logger:    logger,
		dedupe:    dedupe,
		inbox:     make(chan task, buffer),
		workers:   workers,
	}
}

// EnqueueProcessOrder hands an order id to the worker pool. A full inbox is
// reported to the caller rather than blocking the request.
func (q *Queue) EnqueueProcessOrder(ctx context.Context, kind order.Kind, orderID id.OrderID) error {
	select {
	case q.inbox <- task{kind: kind, orderID: orderID}:
		return nil
	default:
		return fmt.Errorf("task queue full, order %s not enqueued", orderID)
	}
}

// Start launches the workers. They drain the inbox until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for range q.workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.run(ctx)
		}()
	}
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.inbox:
			q.handle(ctx, t)
		}
	}
}

func (q *Queue) handle(ctx context.Context, t task) {
	if q.seenRecently(ctx, t.orderID) {
		q.logger.DebugContext(ctx, "skipping duplicate order task",
			"order_id", t.orderID.String(), "kind", string(t.kind))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()
	if err := q.processor.Process(ctx, t.orderID); err != nil {
		// The processor records user-visible failures on the order itself;
		// anything surfacing here is an infrastructure fault.
		q.logger.ErrorContext(ctx, "order processing failed",
			"order_id", t.orderID.String(), "kind", string(t.kind), "error", err)
	}
}

// seenRecently marks the order id in redis and reports whether it was
// already marked. Without redis every delivery is processed; the store CAS
// still guarantees idempotence.
func (q *Queue) seenRecently(ctx context.Context, orderID id.OrderID) bool {
	if q.dedupe == nil {
		return false
	}
	set, err := q.dedupe.SetNX(ctx, "tasks:order:"+orderID.String(), 1, dedupeTTL).Result()
	if err != nil {
		return false
	}
	return !set
}
