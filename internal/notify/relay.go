package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// relayInterval is how often the relay polls the outbox for unsent events.
const relayInterval = 5 * time.Second

// relayBatch is the number of events drained per poll.
const relayBatch = 100

// Relay drains the outbox to kafka. It is the only component holding a
// kafka producer; everything else just writes outbox rows.
type Relay struct {
	store  Store
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewRelay connects a producer and makes sure the topic exists. Brokers
// empty returns a nil relay; callers treat that as "events disabled" and
// outbox rows simply accumulate unsent.
func NewRelay(ctx context.Context, brokers []string, topic string, store Store, logger *slog.Logger) (*Relay, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Relay{store: store, client: client, topic: topic, logger: logger}, nil
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// Close flushes and releases the producer.
func (r *Relay) Close() {
	r.client.Close()
}

func (r *Relay) drain(ctx context.Context) {
	events, err := r.store.FetchPending(ctx, relayBatch)
	if err != nil {
		r.logger.ErrorContext(ctx, "fetch pending events failed", "error", err)
		return
	}
	for _, e := range events {
		record := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.EventID.String())},
				{Key: "type", Value: []byte(e.Type)},
			},
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Leave the row unsent; the next poll retries from here so
			// per-key ordering is preserved.
			r.logger.ErrorContext(ctx, "produce event failed",
				"event_id", e.EventID.String(), "error", err)
			return
		}
		if err := r.store.MarkSent(ctx, e.RowID); err != nil {
			// The event may be delivered again after a restart; consumers
			// dedupe on the event_id header.
			r.logger.ErrorContext(ctx, "mark event sent failed",
				"event_id", e.EventID.String(), "error", err)
			return
		}
	}
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	res, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range res {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, t.Err)
		}
	}
	return nil
}
