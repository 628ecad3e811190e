//go:build integration

package order_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"registrar/internal/order"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *order.PostgresStore
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
	s.store = order.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.userID = id.UserID(uuid.New())
	s.Require().NoError(s.postgres.Truncate(context.Background(), "domain_orders"))
}

func (s *PostgresStoreSuite) newOrder(domain string) *order.Order {
	return &order.Order{
		ID:       id.NewOrderID(),
		Kind:     order.KindRegistration,
		UserID:   s.userID,
		Domain:   domain,
		Period:   zone.Period{Unit: zone.PeriodYears, Value: 1},
		Price:    decimal.NewFromInt(10),
		Currency: "GBP",
		State:    order.StatePending,
		AuthInfo: "secret1234567890",
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	domainID := id.NewDomainID()
	contactID := id.ContactID(uuid.New())
	chargeStateID := "cs_" + uuid.NewString()

	o := s.newOrder("example.dev")
	o.DomainObjID = &domainID
	o.ChargeStateID = &chargeStateID
	o.RegistrantContactID = &contactID
	o.OffSession = true
	o.RedirectURI = "https://pay.example/x"
	s.Require().NoError(s.store.Create(ctx, o))

	got, err := s.store.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.Kind, got.Kind)
	s.Equal(o.Domain, got.Domain)
	s.Require().NotNil(got.DomainObjID)
	s.Equal(domainID, *got.DomainObjID)
	s.Require().NotNil(got.ChargeStateID)
	s.Equal(chargeStateID, *got.ChargeStateID)
	s.Require().NotNil(got.RegistrantContactID)
	s.Equal(contactID, *got.RegistrantContactID)
	s.Nil(got.AdminContactID)
	s.True(got.OffSession)
	s.True(o.Price.Equal(got.Price))
	s.False(got.CreatedAt.IsZero())

	byCharge, err := s.store.FindByChargeStateID(ctx, chargeStateID)
	s.Require().NoError(err)
	s.Equal(o.ID, byCharge.ID)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewOrderID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExistsActiveForDomain() {
	ctx := context.Background()
	o := s.newOrder("busy.dev")
	s.Require().NoError(s.store.Create(ctx, o))

	busy, err := s.store.ExistsActiveForDomain(ctx, "BUSY.dev")
	s.Require().NoError(err)
	s.True(busy, "match is case insensitive")

	_, err = s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateFailed, nil)
	s.Require().NoError(err)

	busy, err = s.store.ExistsActiveForDomain(ctx, "busy.dev")
	s.Require().NoError(err)
	s.False(busy, "terminal orders do not occlude")
}

func (s *PostgresStoreSuite) TestAdvanceState() {
	ctx := context.Background()

	s.Run("applies the mutation with the transition", func() {
		o := s.newOrder("adv.dev")
		s.Require().NoError(s.store.Create(ctx, o))

		out, err := s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateFailed, func(o *order.Order) {
			o.LastError = "order cancelled"
		})
		s.Require().NoError(err)
		s.Equal(order.StateFailed, out.State)
		s.Equal("order cancelled", out.LastError)
	})

	s.Run("rejects a stale source state", func() {
		o := s.newOrder("stale.dev")
		s.Require().NoError(s.store.Create(ctx, o))
		_, err := s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateStarted, nil)
		s.Require().NoError(err)

		_, err = s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateStarted, nil)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("rejects illegal edges", func() {
		o := s.newOrder("edge.dev")
		s.Require().NoError(s.store.Create(ctx, o))

		_, err := s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateCompleted, nil)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

// TestConcurrentAdvance verifies the row lock makes concurrent transitions
// race-free: exactly one wins.
func (s *PostgresStoreSuite) TestConcurrentAdvance() {
	ctx := context.Background()
	o := s.newOrder("race.dev")
	s.Require().NoError(s.store.Create(ctx, o))

	const goroutines = 20
	var wg sync.WaitGroup
	var wins, losses atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AdvanceState(ctx, o.ID, order.StatePending, order.StateStarted, nil)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one transition should win")
	s.Equal(int32(goroutines-1), losses.Load())
}

func (s *PostgresStoreSuite) TestChargeStateIDUnique() {
	ctx := context.Background()
	chargeStateID := "cs_dup"

	first := s.newOrder("one.dev")
	s.Require().NoError(s.store.Create(ctx, first))
	_, err := s.store.AdvanceState(ctx, first.ID, order.StatePending, order.StateStarted, nil)
	s.Require().NoError(err)
	_, err = s.store.AdvanceState(ctx, first.ID, order.StateStarted, order.StateNeedsPayment, func(o *order.Order) {
		o.ChargeStateID = &chargeStateID
	})
	s.Require().NoError(err)

	second := s.newOrder("two.dev")
	second.ChargeStateID = &chargeStateID
	s.Error(s.store.Create(ctx, second), "duplicate charge state id must be rejected")
}

func (s *PostgresStoreSuite) TestListByUser() {
	ctx := context.Background()
	for _, name := range []string{"a.dev", "b.dev"} {
		s.Require().NoError(s.store.Create(ctx, s.newOrder(name)))
	}
	other := s.newOrder("c.dev")
	other.UserID = id.UserID(uuid.New())
	s.Require().NoError(s.store.Create(ctx, other))

	out, err := s.store.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Len(out, 2)
}
