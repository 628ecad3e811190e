package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	txcontext "registrar/pkg/platform/tx"
)

// Store is the outbox. Enqueue joins a caller transaction when one is in
// the context so the event commits atomically with the domain mutation.
type Store interface {
	Enqueue(ctx context.Context, e *Event) error
	// FetchPending returns unsent events in enqueue order.
	FetchPending(ctx context.Context, limit int) ([]*Event, error)
	MarkSent(ctx context.Context, rowID int64) error
}

// PostgresStore persists outbox rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, e *Event) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	const query = `
		INSERT INTO outbox_events (event_id, type, key, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var execer interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		execer = tx
	}
	if err := execer.QueryRowContext(ctx, query,
		e.EventID, e.Type, e.Key, []byte(e.Payload), e.OccurredAt,
	).Scan(&e.RowID); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]*Event, error) {
	const query = `
		SELECT id, event_id, type, key, payload, occurred_at, sent_at
		FROM outbox_events
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(&e.RowID, &e.EventID, &e.Type, &e.Key, &payload, &e.OccurredAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = payload
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, rowID int64) error {
	const query = `UPDATE outbox_events SET sent_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("mark event sent: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory outbox for tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Enqueue(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	s.nextID++
	e.RowID = s.nextID
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) FetchPending(ctx context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, e := range s.events {
		if e.SentAt == nil {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, rowID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.RowID == rowID {
			now := time.Now()
			e.SentAt = &now
			return nil
		}
	}
	return nil
}
