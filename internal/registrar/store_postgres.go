package registrar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	txcontext "registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// PostgresStore persists domains in PostgreSQL. Writes join a caller
// transaction when one is carried in the context, so the order processor
// can link a domain and complete an order atomically.
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

const domainColumns = `
	id, user_id, name, auth_info,
	registrant_contact_id, admin_contact_id, billing_contact_id, tech_contact_id,
	deleted, deleted_at, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, d *Domain) error {
	now := requestcontext.Now(ctx)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	const query = `
		INSERT INTO domain_registrations (` + domainColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(d.ID), uuid.UUID(d.UserID), d.Name, d.AuthInfo,
		contactArg(d.RegistrantContactID), contactArg(d.AdminContactID),
		contactArg(d.BillingContactID), contactArg(d.TechContactID),
		d.Deleted, d.DeletedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert domain registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, domainID id.DomainID) (*Domain, error) {
	const query = `SELECT ` + domainColumns + ` FROM domain_registrations WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(domainID)))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Domain, error) {
	const query = `SELECT ` + domainColumns + ` FROM domain_registrations WHERE lower(name) = lower($1)`
	return s.scanOne(s.db.QueryRowContext(ctx, query, name))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Domain, error) {
	const query = `SELECT ` + domainColumns + ` FROM domain_registrations WHERE user_id = $1 ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list domain registrations: %w", err)
	}
	defer rows.Close()

	var out []*Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, d *Domain) error {
	d.UpdatedAt = requestcontext.Now(ctx)
	const query = `
		UPDATE domain_registrations SET
			auth_info = $2,
			registrant_contact_id = $3, admin_contact_id = $4,
			billing_contact_id = $5, tech_contact_id = $6,
			deleted = $7, deleted_at = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(d.ID), d.AuthInfo,
		contactArg(d.RegistrantContactID), contactArg(d.AdminContactID),
		contactArg(d.BillingContactID), contactArg(d.TechContactID),
		d.Deleted, d.DeletedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update domain registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update domain registration: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, domainID id.DomainID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM domain_registrations WHERE id = $1`, uuid.UUID(domainID))
	if err != nil {
		return fmt.Errorf("delete domain registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete domain registration: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Domain, error) {
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func scanDomain(row rowScanner) (*Domain, error) {
	var d Domain
	var did, uid uuid.UUID
	var registrant, admin, billing, tech uuid.NullUUID
	err := row.Scan(
		&did, &uid, &d.Name, &d.AuthInfo,
		&registrant, &admin, &billing, &tech,
		&d.Deleted, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan domain registration: %w", err)
	}
	d.ID, d.UserID = id.DomainID(did), id.UserID(uid)
	d.RegistrantContactID = contactFromNull(registrant)
	d.AdminContactID = contactFromNull(admin)
	d.BillingContactID = contactFromNull(billing)
	d.TechContactID = contactFromNull(tech)
	return &d, nil
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
	cid := id.ContactID(n.UUID)
	return &cid
}

var _ Store = (*PostgresStore)(nil)
