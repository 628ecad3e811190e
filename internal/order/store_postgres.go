package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"registrar/internal/zone"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	txcontext "registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// PostgresStore persists orders in PostgreSQL. AdvanceState takes a row
// lock so concurrent deliveries of the same work serialize and the loser
// observes the already-advanced state.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const orderColumns = `
	id, kind, user_id, domain, domain_obj_id,
	period_unit, period_value, price, currency,
	charge_state_id, off_session,
	registrant_contact_id, admin_contact_id, billing_contact_id, tech_contact_id,
	state, auth_info, auth_code, last_error, redirect_uri,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	now := requestcontext.Now(ctx)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	const query = `
		INSERT INTO domain_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID), string(o.Kind), uuid.UUID(o.UserID), o.Domain, domainObjArg(o.DomainObjID),
		int(o.Period.Unit), o.Period.Value, o.Price, o.Currency,
		o.ChargeStateID, o.OffSession,
		contactArg(o.RegistrantContactID), contactArg(o.AdminContactID),
		contactArg(o.BillingContactID), contactArg(o.TechContactID),
		string(o.State), o.AuthInfo, o.AuthCode, o.LastError, o.RedirectURI,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orderID id.OrderID) (*Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM domain_orders WHERE id = $1`
	return scanOrder(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orderID)))
}

func (s *PostgresStore) FindByChargeStateID(ctx context.Context, chargeStateID string) (*Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM domain_orders WHERE charge_state_id = $1`
	return scanOrder(s.execer(ctx).QueryRowContext(ctx, query, chargeStateID))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM domain_orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExistsActiveForDomain(ctx context.Context, domain string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM domain_orders
			WHERE lower(domain) = lower($1) AND state NOT IN ('completed', 'failed')
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, domain).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active orders: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AdvanceState(ctx context.Context, orderID id.OrderID, from, to State, mutate func(*Order)) (*Order, error) {
	if !CanTransition(from, to) {
		return nil, sentinel.ErrInvalidState
	}
	var out *Order
	advance := func(ctx context.Context) error {
		const lock = `SELECT ` + orderColumns + ` FROM domain_orders WHERE id = $1 FOR UPDATE`
		o, err := scanOrder(s.execer(ctx).QueryRowContext(ctx, lock, uuid.UUID(orderID)))
		if err != nil {
			return err
		}
		if o.State != from {
			return sentinel.ErrInvalidState
		}
		if mutate != nil {
			mutate(o)
		}
		o.State = to
		o.UpdatedAt = requestcontext.Now(ctx)

		const update = `
			UPDATE domain_orders SET
				domain_obj_id = $2, charge_state_id = $3, state = $4,
				last_error = $5, redirect_uri = $6, updated_at = $7
			WHERE id = $1
		`
		if _, err := s.execer(ctx).ExecContext(ctx, update,
			uuid.UUID(o.ID), domainObjArg(o.DomainObjID), o.ChargeStateID,
			string(o.State), o.LastError, o.RedirectURI, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}
		out = o
		return nil
	}

	// Join a caller transaction when one is present so the state change
	// commits together with the caller's other writes.
	var err error
	if _, ok := txcontext.From(ctx); ok {
		err = advance(ctx)
	} else {
		err = txcontext.RunInTx(ctx, s.db, advance)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o           Order
		orderID     uuid.UUID
		kind, state string
		userID      uuid.UUID
		domainObj   uuid.NullUUID
		periodUnit  int
		registrant  uuid.NullUUID
		admin       uuid.NullUUID
		billing     uuid.NullUUID
		tech        uuid.NullUUID
	)
	err := row.Scan(
		&orderID, &kind, &userID, &o.Domain, &domainObj,
		&periodUnit, &o.Period.Value, &o.Price, &o.Currency,
		&o.ChargeStateID, &o.OffSession,
		&registrant, &admin, &billing, &tech,
		&state, &o.AuthInfo, &o.AuthCode, &o.LastError, &o.RedirectURI,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.ID = id.OrderID(orderID)
	o.Kind = Kind(kind)
	o.UserID = id.UserID(userID)
	o.State = State(state)
	o.Period.Unit = zone.PeriodUnit(periodUnit)
	if domainObj.Valid {
		v := id.DomainID(domainObj.UUID)
		o.DomainObjID = &v
	}
	o.RegistrantContactID = contactFromNull(registrant)
	o.AdminContactID = contactFromNull(admin)
	o.BillingContactID = contactFromNull(billing)
	o.TechContactID = contactFromNull(tech)
	return &o, nil
}

func domainObjArg(did *id.DomainID) any {
	if did == nil {
		return nil
	}
	return uuid.UUID(*did)
}

func contactArg(cid *id.ContactID) any {
	if cid == nil {
		return nil
	}
	return uuid.UUID(*cid)
}

func contactFromNull(n uuid.NullUUID) *id.ContactID {
	if !n.Valid {
		return nil
	}
	v := id.ContactID(n.UUID)
	return &v
}
