//go:build integration

package registrar_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registrar/internal/registrar"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *registrar.PostgresStore
	userID   id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = registrar.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.userID = id.UserID(uuid.New())
	s.Require().NoError(s.postgres.Truncate(context.Background(), "domain_registrations"))
}

func (s *PostgresStoreSuite) newDomain(name string) *registrar.Domain {
	return &registrar.Domain{
		ID:       id.NewDomainID(),
		UserID:   s.userID,
		Name:     name,
		AuthInfo: "secret1234567890",
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	contactID := id.ContactID(uuid.New())

	d := s.newDomain("example.dev")
	d.RegistrantContactID = &contactID
	s.Require().NoError(s.store.Create(ctx, d))

	got, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("example.dev", got.Name)
	s.Equal(s.userID, got.UserID)
	s.Equal("secret1234567890", got.AuthInfo)
	s.Require().NotNil(got.RegistrantContactID)
	s.Equal(contactID, *got.RegistrantContactID)
	s.Nil(got.AdminContactID)
	s.False(got.Deleted)
	s.False(got.CreatedAt.IsZero())
}

func (s *PostgresStoreSuite) TestFindByNameCaseInsensitive() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDomain("mixed.dev")))

	got, err := s.store.FindByName(ctx, "MIXED.dev")
	s.Require().NoError(err)
	s.Equal("mixed.dev", got.Name)

	_, err = s.store.FindByName(ctx, "absent.dev")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateNameRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDomain("dup.dev")))
	s.Error(s.store.Create(ctx, s.newDomain("DUP.dev")))
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	d := s.newDomain("upd.dev")
	s.Require().NoError(s.store.Create(ctx, d))

	now := time.Now()
	d.Deleted = true
	d.DeletedAt = &now
	d.AuthInfo = "rotated-secret-99"
	s.Require().NoError(s.store.Update(ctx, d))

	got, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.True(got.Deleted)
	s.Require().NotNil(got.DeletedAt)
	s.WithinDuration(now, *got.DeletedAt, time.Second)
	s.Equal("rotated-secret-99", got.AuthInfo)
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	d := s.newDomain("gone.dev")
	s.Require().NoError(s.store.Create(ctx, d))

	s.Require().NoError(s.store.Delete(ctx, d.ID))
	_, err := s.store.FindByID(ctx, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(ctx, d.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByUser() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDomain("a.dev")))
	s.Require().NoError(s.store.Create(ctx, s.newDomain("b.dev")))

	other := s.newDomain("c.dev")
	other.UserID = id.UserID(uuid.New())
	s.Require().NoError(s.store.Create(ctx, other))

	out, err := s.store.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(out, 2)
}
