package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"registrar/internal/registrar"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/secrets"
)

// TaskQueue dispatches order processing to the background worker. Delivery
// is at-least-once; the processor's state compare-and-swap absorbs
// duplicates.
type TaskQueue interface {
	EnqueueProcessOrder(ctx context.Context, kind Kind, orderID id.OrderID) error
}

// Service creates orders and answers the confirmation query. All state
// transitions it performs go through Store.AdvanceState.
type Service struct {
	store    Store
	domains  registrar.Store
	zones    *zone.Registry
	tasks    TaskQueue
	logger   *slog.Logger
	metrics  Observer
	enabled  bool
	basePath string
}

// Observer is the slice of the metrics surface the order module touches.
type Observer interface {
	ObserveCreated(kind string)
	ObserveCompleted(kind string)
	ObserveFailed(kind string)
	ObserveUnknownState()
	ObserveRegistryCall(method string, seconds float64)
}

// ServiceConfig carries the service's wiring.
type ServiceConfig struct {
	Store               Store
	Domains             registrar.Store
	Zones               *zone.Registry
	Tasks               TaskQueue
	Logger              *slog.Logger
	Metrics             Observer
	RegistrationEnabled bool
	// DomainDetailPath is the path prefix completed orders redirect to,
	// with the domain id appended.
	DomainDetailPath string
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:    cfg.Store,
		domains:  cfg.Domains,
		zones:    cfg.Zones,
		tasks:    cfg.Tasks,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		enabled:  cfg.RegistrationEnabled,
		basePath: strings.TrimSuffix(cfg.DomainDetailPath, "/"),
	}
}

// RegistrationInput describes a registration order request.
type RegistrationInput struct {
	UserID              id.UserID
	Domain              string
	Period              zone.Period
	RegistrantContactID *id.ContactID
	AdminContactID      *id.ContactID
	BillingContactID    *id.ContactID
	TechContactID       *id.ContactID
	OffSession          bool
}

// CreateRegistration validates the request against the zone's rules, prices
// it, and persists a PENDING order. Nothing is sent to the registry yet.
func (s *Service) CreateRegistration(ctx context.Context, in RegistrationInput) (*Order, error) {
	if !s.enabled {
		return nil, dErrors.New(dErrors.CodeForbidden, "registration is not currently available")
	}
	z, _, err := s.zones.Lookup(in.Domain)
	if err != nil {
		return nil, err
	}
	if err := validateContacts(z, in.RegistrantContactID, in.AdminContactID, in.BillingContactID, in.TechContactID); err != nil {
		return nil, err
	}
	price, err := z.RegistrationPrice(in.Period)
	if err != nil {
		return nil, err
	}
	if err := s.refuseDuplicate(ctx, in.Domain); err != nil {
		return nil, err
	}

	authInfo, err := secrets.NewAuthInfo()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate auth info")
	}
	o := &Order{
		ID:                  id.NewOrderID(),
		Kind:                KindRegistration,
		UserID:              in.UserID,
		Domain:              strings.ToLower(in.Domain),
		Period:              in.Period,
		Price:               price,
		Currency:            z.Pricing.Currency,
		OffSession:          in.OffSession,
		RegistrantContactID: in.RegistrantContactID,
		AdminContactID:      in.AdminContactID,
		BillingContactID:    in.BillingContactID,
		TechContactID:       in.TechContactID,
		State:               StatePending,
		AuthInfo:            authInfo,
	}
	return s.create(ctx, o)
}

// RenewalInput describes a renewal order request.
type RenewalInput struct {
	UserID      id.UserID
	DomainObjID id.DomainID
	Period      zone.Period
	OffSession  bool
}

func (s *Service) CreateRenewal(ctx context.Context, in RenewalInput) (*Order, error) {
	d, err := s.ownedDomain(ctx, in.UserID, in.DomainObjID)
	if err != nil {
		return nil, err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}
	price, err := z.RenewalPrice(in.Period)
	if err != nil {
		return nil, err
	}
	if err := s.refuseDuplicate(ctx, d.Name); err != nil {
		return nil, err
	}
	o := &Order{
		ID:          id.NewOrderID(),
		Kind:        KindRenewal,
		UserID:      in.UserID,
		Domain:      d.Name,
		DomainObjID: &in.DomainObjID,
		Period:      in.Period,
		Price:       price,
		Currency:    z.Pricing.Currency,
		OffSession:  in.OffSession,
		State:       StatePending,
	}
	return s.create(ctx, o)
}

// RestoreInput describes a redemption restore request.
type RestoreInput struct {
	UserID      id.UserID
	DomainObjID id.DomainID
	OffSession  bool
}

func (s *Service) CreateRestore(ctx context.Context, in RestoreInput) (*Order, error) {
	d, err := s.ownedDomain(ctx, in.UserID, in.DomainObjID)
	if err != nil {
		return nil, err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}
	if !z.RestoreSupported {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support redemption restore", z.Name)
	}
	if err := s.refuseDuplicate(ctx, d.Name); err != nil {
		return nil, err
	}
	o := &Order{
		ID:          id.NewOrderID(),
		Kind:        KindRestore,
		UserID:      in.UserID,
		Domain:      d.Name,
		DomainObjID: &in.DomainObjID,
		Price:       z.RestorePrice(),
		Currency:    z.Pricing.Currency,
		OffSession:  in.OffSession,
		State:       StatePending,
	}
	return s.create(ctx, o)
}

// TransferInput describes an inbound transfer request.
type TransferInput struct {
	UserID              id.UserID
	Domain              string
	AuthCode            string
	RegistrantContactID *id.ContactID
	AdminContactID      *id.ContactID
	BillingContactID    *id.ContactID
	TechContactID       *id.ContactID
	OffSession          bool
}

func (s *Service) CreateTransfer(ctx context.Context, in TransferInput) (*Order, error) {
	if !s.enabled {
		return nil, dErrors.New(dErrors.CodeForbidden, "transfers are not currently available")
	}
	z, _, err := s.zones.Lookup(in.Domain)
	if err != nil {
		return nil, err
	}
	if !z.TransferSupported {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support transfers", z.Name)
	}
	if strings.TrimSpace(in.AuthCode) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "transfer auth code is required")
	}
	if err := validateContacts(z, in.RegistrantContactID, in.AdminContactID, in.BillingContactID, in.TechContactID); err != nil {
		return nil, err
	}
	if err := s.refuseDuplicate(ctx, in.Domain); err != nil {
		return nil, err
	}
	o := &Order{
		ID:                  id.NewOrderID(),
		Kind:                KindTransfer,
		UserID:              in.UserID,
		Domain:              strings.ToLower(in.Domain),
		Price:               z.TransferPrice(),
		Currency:            z.Pricing.Currency,
		OffSession:          in.OffSession,
		RegistrantContactID: in.RegistrantContactID,
		AdminContactID:      in.AdminContactID,
		BillingContactID:    in.BillingContactID,
		TechContactID:       in.TechContactID,
		State:               StatePending,
		AuthCode:            in.AuthCode,
	}
	return s.create(ctx, o)
}

func (s *Service) create(ctx context.Context, o *Order) (*Order, error) {
	if err := s.store.Create(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist order")
	}
	s.metrics.ObserveCreated(string(o.Kind))
	s.logger.InfoContext(ctx, "order created",
		"order_id", o.ID.String(),
		"kind", string(o.Kind),
		"domain", o.Domain,
		"price", o.Price.String(),
	)
	return o, nil
}

// Get returns an order the user owns.
func (s *Service) Get(ctx context.Context, userID id.UserID, orderID id.OrderID) (*Order, error) {
	o, err := s.store.FindByID(ctx, orderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load order")
	}
	if o.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "permission denied")
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*Order, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list orders")
	}
	return out, nil
}

// Decide applies the user's yes/no answer to a PENDING order. Accepting
// moves it to STARTED and enqueues processing; declining moves it to FAILED
// with no external side effects. An order that already left PENDING is left
// untouched.
func (s *Service) Decide(ctx context.Context, userID id.UserID, orderID id.OrderID, accept bool) (*Order, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if !accept {
		out, err := s.store.AdvanceState(ctx, orderID, StatePending, StateFailed, func(o *Order) {
			o.LastError = "order cancelled"
		})
		if errors.Is(err, sentinel.ErrInvalidState) {
			return o, nil
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cancel order")
		}
		return out, nil
	}

	out, err := s.store.AdvanceState(ctx, orderID, StatePending, StateStarted, nil)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return o, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "start order")
	}
	if err := s.tasks.EnqueueProcessOrder(ctx, out.Kind, out.ID); err != nil {
		// The order stays STARTED; a later enqueue retry or manual kick
		// picks it up from there.
		s.logger.ErrorContext(ctx, "enqueue order processing failed",
			"order_id", out.ID.String(), "error", err)
	}
	return out, nil
}

// OutcomeKind tags the confirmation response shape.
type OutcomeKind string

const (
	OutcomePrompt          OutcomeKind = "prompt"
	OutcomeProcessing      OutcomeKind = "processing"
	OutcomeRedirect        OutcomeKind = "redirect"
	OutcomePendingApproval OutcomeKind = "pending_approval"
	OutcomeError           OutcomeKind = "error"
	OutcomeCompleted       OutcomeKind = "completed"
)

// ConfirmOutcome is the state-dependent confirmation response, identical in
// shape for all four order kinds.
type ConfirmOutcome struct {
	Kind  OutcomeKind
	Order *Order
	// RedirectURI is set for OutcomeRedirect (payment page) and
	// OutcomeCompleted (domain detail view).
	RedirectURI string
	// Detail carries the stored failure message for OutcomeError.
	Detail string
}

// Confirm maps the order's current state to a response shape. fromProvider
// marks a return visit from the payment provider; it suppresses the payment
// redirect so the user sees a waiting page instead of bouncing back out.
// Confirm never mutates the order.
func (s *Service) Confirm(ctx context.Context, userID id.UserID, orderID id.OrderID, fromProvider bool) (*ConfirmOutcome, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch o.State {
	case StatePending:
		return &ConfirmOutcome{Kind: OutcomePrompt, Order: o}, nil
	case StateNeedsPayment:
		if fromProvider || o.RedirectURI == "" {
			return &ConfirmOutcome{Kind: OutcomeProcessing, Order: o}, nil
		}
		return &ConfirmOutcome{Kind: OutcomeRedirect, Order: o, RedirectURI: o.RedirectURI}, nil
	case StatePendingApproval:
		return &ConfirmOutcome{Kind: OutcomePendingApproval, Order: o}, nil
	case StateFailed:
		return &ConfirmOutcome{Kind: OutcomeError, Order: o, Detail: o.LastError}, nil
	case StateCompleted:
		return &ConfirmOutcome{Kind: OutcomeCompleted, Order: o, RedirectURI: s.domainDetailURI(o)}, nil
	case StateStarted, StateProcessing:
		return &ConfirmOutcome{Kind: OutcomeProcessing, Order: o}, nil
	default:
		// Tolerates the gap between order creation and task execution, but
		// an unrecognized state here usually means a missed case.
		s.metrics.ObserveUnknownState()
		s.logger.WarnContext(ctx, "order in unrecognized state, showing processing placeholder",
			"order_id", o.ID.String(), "state", string(o.State))
		return &ConfirmOutcome{Kind: OutcomeProcessing, Order: o}, nil
	}
}

func (s *Service) domainDetailURI(o *Order) string {
	if o.DomainObjID == nil {
		return s.basePath
	}
	return fmt.Sprintf("%s/%s", s.basePath, o.DomainObjID.String())
}

func (s *Service) ownedDomain(ctx context.Context, userID id.UserID, domainID id.DomainID) (*registrar.Domain, error) {
	d, err := s.domains.FindByID(ctx, domainID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "domain not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load domain")
	}
	if d.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "permission denied")
	}
	return d, nil
}

func (s *Service) refuseDuplicate(ctx context.Context, domain string) error {
	busy, err := s.store.ExistsActiveForDomain(ctx, domain)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check active orders")
	}
	if busy {
		return dErrors.New(dErrors.CodeConflict, "an order for this domain is already in progress")
	}
	return nil
}

func validateContacts(z *zone.Zone, registrant, admin, billing, tech *id.ContactID) error {
	if z.RegistrantSupported && registrant == nil {
		return dErrors.New(dErrors.CodeBadRequest, "registrant contact is required")
	}
	if z.AdminRequired && admin == nil {
		return dErrors.New(dErrors.CodeBadRequest, "admin contact is required")
	}
	if z.BillingRequired && billing == nil {
		return dErrors.New(dErrors.CodeBadRequest, "billing contact is required")
	}
	if z.TechRequired && tech == nil {
		return dErrors.New(dErrors.CodeBadRequest, "tech contact is required")
	}
	return nil
}
