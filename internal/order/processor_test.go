package order

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"registrar/internal/billing"
	"registrar/internal/contact"
	"registrar/internal/epp"
	"registrar/internal/registrar"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
)

type ProcessorSuite struct {
	suite.Suite
	ctx      context.Context
	store    *MemoryStore
	domains  *registrar.MemoryStore
	contacts *contact.MemoryStore
	registry *fakeRegistry
	billing  *fakeBilling
	proc     *Processor
	userID   id.UserID
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
	s.domains = registrar.NewMemoryStore()
	s.contacts = contact.NewMemoryStore()
	s.registry = &fakeRegistry{}
	s.billing = &fakeBilling{}
	s.userID = id.UserID(uuid.New())

	zones := zone.NewRegistry([]*zone.Zone{
		{
			Name:     "tld",
			Registry: "test",
			Pricing:  zone.Pricing{Currency: "GBP"},
		},
		{
			Name:     "dev",
			Registry: "test",
			Pricing: zone.Pricing{
				Currency:     "GBP",
				Registration: decimal.NewFromInt(10),
				Renewal:      decimal.NewFromInt(10),
				Restore:      decimal.NewFromInt(40),
				Transfer:     decimal.NewFromInt(10),
			},
			RestoreSupported:  true,
			TransferSupported: true,
		},
	})

	s.proc = NewProcessor(ProcessorConfig{
		Store:     s.store,
		Domains:   s.domains,
		Contacts:  s.contacts,
		Registry:  s.registry,
		Billing:   s.billing,
		Zones:     zones,
		Logger:    slog.Default(),
		Metrics:   nopObserver{},
		ReturnURL: "http://localhost/orders/%s/confirm",
	})
}

func (s *ProcessorSuite) createOrder(kind Kind, domain string, price decimal.Decimal, state State) *Order {
	o := &Order{
		ID:       id.NewOrderID(),
		Kind:     kind,
		UserID:   s.userID,
		Domain:   domain,
		Period:   zone.Period{Unit: zone.PeriodYears, Value: 1},
		Price:    price,
		Currency: "GBP",
		State:    state,
		AuthInfo: "secret1234567890",
	}
	s.Require().NoError(s.store.Create(s.ctx, o))
	return o
}

func (s *ProcessorSuite) reload(orderID id.OrderID) *Order {
	o, err := s.store.FindByID(s.ctx, orderID)
	s.Require().NoError(err)
	return o
}

func (s *ProcessorSuite) TestZeroPriceRegistrationCompletes() {
	o := s.createOrder(KindRegistration, "example.tld", decimal.Zero, StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Require().NotNil(got.DomainObjID, "completed registration links a domain row")
	s.Zero(s.billing.calls, "a free order never touches billing")

	d, err := s.domains.FindByID(s.ctx, *got.DomainObjID)
	s.Require().NoError(err)
	s.Equal("example.tld", d.Name)
	s.Equal(s.userID, d.UserID)
	s.Equal(o.AuthInfo, d.AuthInfo)
}

func (s *ProcessorSuite) TestPricedOrderWaitsForPayment() {
	s.billing.charge = billing.Charge{ChargeStateID: "cs_1", RedirectURI: "https://pay.example/cs_1"}

	o := s.createOrder(KindRegistration, "example.dev", decimal.NewFromInt(10), StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateNeedsPayment, got.State)
	s.Require().NotNil(got.ChargeStateID)
	s.Equal("cs_1", *got.ChargeStateID)
	s.Equal("https://pay.example/cs_1", got.RedirectURI)
	s.Zero(s.registry.totalCalls(), "no registry call before payment settles")
}

func (s *ProcessorSuite) TestSettledChargeSkipsWaiting() {
	s.billing.charge = billing.Charge{ChargeStateID: "cs_2", Settled: true}

	o := s.createOrder(KindRegistration, "example.dev", decimal.NewFromInt(10), StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Equal(1, s.registry.createCalls)
}

func (s *ProcessorSuite) TestProcessIsIdempotent() {
	o := s.createOrder(KindRegistration, "example.tld", decimal.Zero, StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	s.Equal(1, s.registry.createCalls, "second invocation is a no-op")
	s.Equal(StateCompleted, s.reload(o.ID).State)
}

func (s *ProcessorSuite) TestProcessSkipsNonProcessableStates() {
	o := s.createOrder(KindRegistration, "example.tld", decimal.Zero, StatePending)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	s.Equal(StatePending, s.reload(o.ID).State)
	s.Zero(s.registry.totalCalls())
}

func (s *ProcessorSuite) TestTransferPendingParksForApproval() {
	s.registry.transferRes = epp.TransferResult{Pending: true}
	o := s.createOrder(KindTransfer, "example.tld", decimal.Zero, StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StatePendingApproval, got.State)
	s.Nil(got.DomainObjID, "no domain row before the registry approves")
}

func (s *ProcessorSuite) TestResolveApprovalCompletesTransfer() {
	s.registry.transferRes = epp.TransferResult{Pending: true}
	o := s.createOrder(KindTransfer, "example.tld", decimal.Zero, StateStarted)
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	s.Require().NoError(s.proc.ResolveApproval(s.ctx, o.ID, true, ""))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Require().NotNil(got.DomainObjID)
	d, err := s.domains.FindByID(s.ctx, *got.DomainObjID)
	s.Require().NoError(err)
	s.Equal("example.tld", d.Name)
}

func (s *ProcessorSuite) TestResolveApprovalCompletesPendingRegistration() {
	s.registry.createRes = epp.CreateResult{Pending: true}
	o := s.createOrder(KindRegistration, "example.tld", decimal.Zero, StateStarted)
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))
	s.Equal(StatePendingApproval, s.reload(o.ID).State)

	s.Require().NoError(s.proc.ResolveApproval(s.ctx, o.ID, true, ""))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Require().NotNil(got.DomainObjID, "completed registration must link a domain row")
	d, err := s.domains.FindByID(s.ctx, *got.DomainObjID)
	s.Require().NoError(err)
	s.Equal("example.tld", d.Name)
}

func (s *ProcessorSuite) TestResolveApprovalRejection() {
	s.registry.transferRes = epp.TransferResult{Pending: true}
	o := s.createOrder(KindTransfer, "example.tld", decimal.Zero, StateStarted)
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	s.Require().NoError(s.proc.ResolveApproval(s.ctx, o.ID, false, "losing registrar declined"))

	got := s.reload(o.ID)
	s.Equal(StateFailed, got.State)
	s.Equal("losing registrar declined", got.LastError)
	s.Nil(got.DomainObjID)
}

func (s *ProcessorSuite) TestRestoreFailureKeepsDeletedFlag() {
	d := &registrar.Domain{
		ID:      id.NewDomainID(),
		UserID:  s.userID,
		Name:    "held.dev",
		Deleted: true,
	}
	s.Require().NoError(s.domains.Create(s.ctx, d))

	s.registry.restoreErr = &epp.RPCError{Method: "domain.restore", Detail: "not eligible"}
	o := &Order{
		ID:          id.NewOrderID(),
		Kind:        KindRestore,
		UserID:      s.userID,
		Domain:      "held.dev",
		DomainObjID: &d.ID,
		Price:       decimal.Zero,
		Currency:    "GBP",
		State:       StateStarted,
	}
	s.Require().NoError(s.store.Create(s.ctx, o))

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateFailed, got.State)
	s.Equal("not eligible", got.LastError)

	after, err := s.domains.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.True(after.Deleted, "failed restore leaves the deleted flag alone")
}

func (s *ProcessorSuite) TestRestoreSuccessClearsDeletedFlag() {
	d := &registrar.Domain{
		ID:      id.NewDomainID(),
		UserID:  s.userID,
		Name:    "held.dev",
		Deleted: true,
	}
	s.Require().NoError(s.domains.Create(s.ctx, d))

	o := &Order{
		ID:          id.NewOrderID(),
		Kind:        KindRestore,
		UserID:      s.userID,
		Domain:      "held.dev",
		DomainObjID: &d.ID,
		Price:       decimal.Zero,
		Currency:    "GBP",
		State:       StateStarted,
	}
	s.Require().NoError(s.store.Create(s.ctx, o))

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Require().NotNil(got.DomainObjID)
	s.Equal(d.ID, *got.DomainObjID, "restore keeps its existing link")

	after, err := s.domains.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.False(after.Deleted)
	s.Nil(after.DeletedAt)
}

func (s *ProcessorSuite) TestRenewalLeavesLinkUnchanged() {
	d := &registrar.Domain{ID: id.NewDomainID(), UserID: s.userID, Name: "keep.dev"}
	s.Require().NoError(s.domains.Create(s.ctx, d))

	o := &Order{
		ID:          id.NewOrderID(),
		Kind:        KindRenewal,
		UserID:      s.userID,
		Domain:      "keep.dev",
		DomainObjID: &d.ID,
		Period:      zone.Period{Unit: zone.PeriodYears, Value: 1},
		Price:       decimal.Zero,
		Currency:    "GBP",
		State:       StateStarted,
	}
	s.Require().NoError(s.store.Create(s.ctx, o))

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateCompleted, got.State)
	s.Equal(1, s.registry.renewCalls)
	s.Require().NotNil(got.DomainObjID)
	s.Equal(d.ID, *got.DomainObjID)
}

func (s *ProcessorSuite) TestRegistryFailureIsTerminal() {
	s.registry.createErr = &epp.RPCError{Method: "domain.create", Detail: "registry says no"}
	o := s.createOrder(KindRegistration, "example.tld", decimal.Zero, StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateFailed, got.State)
	s.Equal("registry says no", got.LastError)
	s.Nil(got.DomainObjID)

	// A later re-delivery finds the terminal state and no-ops.
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))
	s.Equal(1, s.registry.createCalls)
}

func (s *ProcessorSuite) TestHandlePaymentSettled() {
	s.billing.charge = billing.Charge{ChargeStateID: "cs_3", RedirectURI: "https://pay.example/cs_3"}
	o := s.createOrder(KindRegistration, "example.dev", decimal.NewFromInt(10), StateStarted)
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))
	s.Require().Equal(StateNeedsPayment, s.reload(o.ID).State)

	s.Run("success resumes processing", func() {
		s.Require().NoError(s.proc.HandlePaymentSettled(s.ctx, "cs_3", true, ""))
		got := s.reload(o.ID)
		s.Equal(StateCompleted, got.State)
		s.NotNil(got.DomainObjID)
	})

	s.Run("redelivery is a no-op", func() {
		s.Require().NoError(s.proc.HandlePaymentSettled(s.ctx, "cs_3", true, ""))
		s.Equal(1, s.registry.createCalls)
	})

	s.Run("unknown charge state is ignored", func() {
		s.Require().NoError(s.proc.HandlePaymentSettled(s.ctx, "cs_unknown", true, ""))
	})
}

func (s *ProcessorSuite) TestHandlePaymentFailed() {
	s.billing.charge = billing.Charge{ChargeStateID: "cs_4", RedirectURI: "https://pay.example/cs_4"}
	o := s.createOrder(KindRenewal, "example.dev", decimal.NewFromInt(10), StateStarted)
	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	s.Require().NoError(s.proc.HandlePaymentSettled(s.ctx, "cs_4", false, "card declined"))

	got := s.reload(o.ID)
	s.Equal(StateFailed, got.State)
	s.Equal("card declined", got.LastError)
	s.Zero(s.registry.totalCalls())
}

func (s *ProcessorSuite) TestBillingFailureIsTerminal() {
	s.billing.err = context.DeadlineExceeded
	o := s.createOrder(KindRegistration, "example.dev", decimal.NewFromInt(10), StateStarted)

	s.Require().NoError(s.proc.Process(s.ctx, o.ID))

	got := s.reload(o.ID)
	s.Equal(StateFailed, got.State)
	s.NotEmpty(got.LastError)
}
