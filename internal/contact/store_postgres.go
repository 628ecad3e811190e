package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// PostgresStore persists reference data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindContact(ctx context.Context, contactID id.ContactID) (*Contact, error) {
	const query = `
		SELECT id, user_id, description, address_id, created_at
		FROM contacts WHERE id = $1
	`
	var c Contact
	var cid, uid, aid uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(contactID)).
		Scan(&cid, &uid, &c.Description, &aid, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	c.ID, c.UserID, c.AddressID = id.ContactID(cid), id.UserID(uid), id.ContactID(aid)

	c.RegistryIDs = make(map[string]string)
	rows, err := s.db.QueryContext(ctx,
		`SELECT registry, handle FROM contact_registry_ids WHERE contact_id = $1`, cid)
	if err != nil {
		return nil, fmt.Errorf("find contact registry ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var registry, handle string
		if err := rows.Scan(&registry, &handle); err != nil {
			return nil, fmt.Errorf("scan contact registry id: %w", err)
		}
		c.RegistryIDs[registry] = handle
	}
	return &c, rows.Err()
}

func (s *PostgresStore) ListContactsByUser(ctx context.Context, userID id.UserID) ([]*Contact, error) {
	const query = `
		SELECT id, user_id, description, address_id, created_at
		FROM contacts WHERE user_id = $1 ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		var c Contact
		var cid, uid, aid uuid.UUID
		if err := rows.Scan(&cid, &uid, &c.Description, &aid, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.ID, c.UserID, c.AddressID = id.ContactID(cid), id.UserID(uid), id.ContactID(aid)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAddressesByUser(ctx context.Context, userID id.UserID) ([]*Address, error) {
	const query = `
		SELECT id, user_id, name, organisation, street, city, province, postal_code, country_code
		FROM contact_addresses WHERE user_id = $1 ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var out []*Address
	for rows.Next() {
		var a Address
		var aid, uid uuid.UUID
		if err := rows.Scan(&aid, &uid, &a.Name, &a.Organisation, &a.Street, &a.City,
			&a.Province, &a.PostalCode, &a.CountryCode); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		a.ID, a.UserID = id.ContactID(aid), id.UserID(uid)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetRegistryID(ctx context.Context, contactID id.ContactID, registry, handle string) error {
	const query = `
		INSERT INTO contact_registry_ids (contact_id, registry, handle)
		VALUES ($1, $2, $3)
		ON CONFLICT (contact_id, registry) DO UPDATE SET handle = EXCLUDED.handle
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(contactID), registry, handle); err != nil {
		return fmt.Errorf("set contact registry id: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOrCreateNameServer(ctx context.Context, userID id.UserID, hostObj, registry string) (*NameServer, error) {
	const query = `
		INSERT INTO name_servers (id, user_id, host_obj, registry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host_obj, registry) DO UPDATE SET host_obj = EXCLUDED.host_obj
		RETURNING id, user_id, host_obj, registry
	`
	var ns NameServer
	var nid, uid uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.New(), uuid.UUID(userID), hostObj, registry).
		Scan(&nid, &uid, &ns.HostObj, &ns.Registry)
	if err != nil {
		return nil, fmt.Errorf("find or create name server: %w", err)
	}
	ns.ID, ns.UserID = id.DomainID(nid), id.UserID(uid)
	return &ns, nil
}

var _ Store = (*PostgresStore)(nil)
