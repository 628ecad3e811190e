package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/billing"
	"registrar/internal/contact"
	"registrar/internal/epp"
	"registrar/internal/registrar"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	txcontext "registrar/pkg/platform/tx"
)

var tracer = otel.Tracer("registrar/order")

// Processor drives one order from STARTED to a terminal or waiting state.
// It is the only component that talks to the billing provider and the
// registry on an order's behalf. Every transition goes through the store's
// compare-and-swap, so re-delivered work observes the advanced state and
// no-ops.
type Processor struct {
	store    Store
	domains  registrar.Store
	contacts contact.Store
	registry epp.Client
	billing  billing.Client
	zones    *zone.Registry
	db       *sql.DB
	logger   *slog.Logger
	metrics  Observer
	// returnURL is the confirmation page template the billing provider
	// sends the user back to, with the order id substituted for %s.
	returnURL string
}

// ProcessorConfig carries the processor's wiring.
type ProcessorConfig struct {
	Store     Store
	Domains   registrar.Store
	Contacts  contact.Store
	Registry  epp.Client
	Billing   billing.Client
	Zones     *zone.Registry
	DB        *sql.DB
	Logger    *slog.Logger
	Metrics   Observer
	ReturnURL string
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		store:     cfg.Store,
		domains:   cfg.Domains,
		contacts:  cfg.Contacts,
		registry:  cfg.Registry,
		billing:   cfg.Billing,
		zones:     cfg.Zones,
		db:        cfg.DB,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		returnURL: cfg.ReturnURL,
	}
}

// Process advances the order from STARTED: settles billing first, then
// performs the kind-specific registry call. Orders found in PROCESSING are
// resumed (an earlier run was interrupted after payment but before the
// registry call completed and recorded its outcome). Any other state is a
// no-op.
func (p *Processor) Process(ctx context.Context, orderID id.OrderID) error {
	ctx, span := tracer.Start(ctx, "order.process", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	o, err := p.store.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	span.SetAttributes(attribute.String("order.kind", string(o.Kind)))

	switch o.State {
	case StateStarted:
		return p.processStarted(ctx, o)
	case StateProcessing:
		return p.performRegistryOperation(ctx, o)
	default:
		p.logger.DebugContext(ctx, "order not in a processable state, skipping",
			"order_id", o.ID.String(), "state", string(o.State))
		return nil
	}
}

func (p *Processor) processStarted(ctx context.Context, o *Order) error {
	if o.Free() {
		o, err := p.store.AdvanceState(ctx, o.ID, StateStarted, StateProcessing, nil)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance to processing: %w", err)
		}
		return p.performRegistryOperation(ctx, o)
	}

	charge, err := p.billing.CreateCharge(ctx, billing.ChargeRequest{
		Amount:      o.Price,
		Currency:    o.Currency,
		Description: chargeDescription(o),
		OffSession:  o.OffSession,
		ReturnURL:   fmt.Sprintf(p.returnURL, o.ID.String()),
	})
	if err != nil {
		return p.fail(ctx, o, StateStarted, billing.ErrorDetail(err))
	}

	if charge.Settled {
		o, err := p.store.AdvanceState(ctx, o.ID, StateStarted, StateProcessing, func(o *Order) {
			o.ChargeStateID = &charge.ChargeStateID
		})
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance to processing: %w", err)
		}
		return p.performRegistryOperation(ctx, o)
	}

	_, err = p.store.AdvanceState(ctx, o.ID, StateStarted, StateNeedsPayment, func(o *Order) {
		o.ChargeStateID = &charge.ChargeStateID
		o.RedirectURI = charge.RedirectURI
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance to needs_payment: %w", err)
	}
	p.logger.InfoContext(ctx, "order awaiting payment",
		"order_id", o.ID.String(), "charge_state_id", charge.ChargeStateID)
	return nil
}

// HandlePaymentSettled resumes an order waiting in NEEDS_PAYMENT once the
// billing provider reports the charge outcome. Redelivered webhooks find
// the state already advanced and no-op.
func (p *Processor) HandlePaymentSettled(ctx context.Context, chargeStateID string, ok bool, detail string) error {
	o, err := p.store.FindByChargeStateID(ctx, chargeStateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		p.logger.WarnContext(ctx, "payment signal for unknown charge state",
			"charge_state_id", chargeStateID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order by charge state: %w", err)
	}

	if !ok {
		if detail == "" {
			detail = "payment failed"
		}
		return p.fail(ctx, o, StateNeedsPayment, detail)
	}

	o, err = p.store.AdvanceState(ctx, o.ID, StateNeedsPayment, StateProcessing, nil)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance to processing: %w", err)
	}
	return p.performRegistryOperation(ctx, o)
}

// ResolveApproval settles an order parked in PENDING_APPROVAL. There is no
// automatic registry re-poll; an administrative action or a registry
// message consumer calls this once the out-of-band decision is known.
func (p *Processor) ResolveApproval(ctx context.Context, orderID id.OrderID, approved bool, detail string) error {
	o, err := p.store.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	if !approved {
		if detail == "" {
			detail = "rejected by registry"
		}
		return p.fail(ctx, o, StatePendingApproval, detail)
	}

	// Orders parked here before acquiring a domain object get one now.
	err = p.inTx(ctx, func(ctx context.Context) error {
		var objID *id.DomainID
		if needsNewDomainRow(o) {
			d, err := p.createDomainRow(ctx, o)
			if err != nil {
				return err
			}
			objID = &d.ID
		}
		_, err := p.store.AdvanceState(ctx, o.ID, StatePendingApproval, StateCompleted, func(o *Order) {
			if objID != nil {
				o.DomainObjID = objID
			}
		})
		return err
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete approved order: %w", err)
	}
	p.metrics.ObserveCompleted(string(o.Kind))
	p.logger.InfoContext(ctx, "order completed after approval", "order_id", o.ID.String())
	return nil
}

// operationResult is what a kind-specific registry call reports back.
type operationResult struct {
	// pending means the registry accepted the request but completion waits
	// on an out-of-band approval.
	pending bool
	// domainObjID is the row to link on completion, nil when the order
	// keeps its existing link.
	domainObjID *id.DomainID
}

// performRegistryOperation runs the PROCESSING step: the one registry call
// that differs per order kind, then the shared outcome handling. The
// registry call happens outside any transaction; only the local outcome
// write is transactional.
func (p *Processor) performRegistryOperation(ctx context.Context, o *Order) error {
	var (
		res operationResult
		err error
	)
	start := time.Now()
	switch o.Kind {
	case KindRegistration:
		res, err = p.registerDomain(ctx, o)
	case KindRenewal:
		res, err = p.renewDomain(ctx, o)
	case KindRestore:
		res, err = p.restoreDomain(ctx, o)
	case KindTransfer:
		res, err = p.transferDomain(ctx, o)
	default:
		return p.fail(ctx, o, StateProcessing, "unsupported order kind")
	}
	p.metrics.ObserveRegistryCall(string(o.Kind), time.Since(start).Seconds())

	if err != nil {
		var coded *dErrors.Error
		if errors.As(err, &coded) && coded.Code == dErrors.CodeInternal {
			// Configuration faults are logged in full but never displayed.
			p.logger.ErrorContext(ctx, "registry operation hit internal fault",
				"order_id", o.ID.String(), "error", err)
			return p.fail(ctx, o, StateProcessing, "internal error, please contact support")
		}
		return p.fail(ctx, o, StateProcessing, epp.ErrorDetail(err))
	}

	if res.pending {
		_, err := p.store.AdvanceState(ctx, o.ID, StateProcessing, StatePendingApproval, nil)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance to pending_approval: %w", err)
		}
		p.logger.InfoContext(ctx, "order awaiting registry approval", "order_id", o.ID.String())
		return nil
	}

	err = p.completeOrder(ctx, o, res)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return err
	}
	p.metrics.ObserveCompleted(string(o.Kind))
	p.logger.InfoContext(ctx, "order completed",
		"order_id", o.ID.String(), "kind", string(o.Kind), "domain", o.Domain)
	return nil
}

// completeOrder writes the terminal success outcome. Registration and
// transfer create the domain row in the same transaction that flips the
// order to COMPLETED, so a crash between the two cannot orphan either side.
func (p *Processor) completeOrder(ctx context.Context, o *Order, res operationResult) error {
	return p.inTx(ctx, func(ctx context.Context) error {
		objID := res.domainObjID
		if objID == nil && needsNewDomainRow(o) {
			d, err := p.createDomainRow(ctx, o)
			if err != nil {
				return err
			}
			objID = &d.ID
		}
		if o.Kind == KindRestore && o.DomainObjID != nil {
			if err := p.clearDeleted(ctx, *o.DomainObjID); err != nil {
				return err
			}
		}
		_, err := p.store.AdvanceState(ctx, o.ID, StateProcessing, StateCompleted, func(o *Order) {
			if objID != nil {
				o.DomainObjID = objID
			}
		})
		return err
	})
}

// inTx runs fn in a database transaction when a database is wired. The
// in-memory stores used in tests carry no shared transaction, so fn runs
// directly against them.
func (p *Processor) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.db == nil {
		return fn(ctx)
	}
	return txcontext.RunInTx(ctx, p.db, fn)
}

func needsNewDomainRow(o *Order) bool {
	return (o.Kind == KindRegistration || o.Kind == KindTransfer) && o.DomainObjID == nil
}

func (p *Processor) registerDomain(ctx context.Context, o *Order) (operationResult, error) {
	z, _, err := p.zones.Lookup(o.Domain)
	if err != nil {
		return operationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for ordered domain")
	}

	req := epp.CreateDomain{
		Name:     o.Domain,
		Period:   eppPeriod(o.Period),
		AuthInfo: o.AuthInfo,
		Contacts: map[epp.ContactRole]string{},
	}
	if z.RegistrantSupported && o.RegistrantContactID != nil {
		handle, err := p.contactHandle(ctx, *o.RegistrantContactID, z.Registry)
		if err != nil {
			return operationResult{}, err
		}
		req.Registrant = handle
	}
	for role, cid := range map[epp.ContactRole]*id.ContactID{
		epp.RoleAdmin:   o.AdminContactID,
		epp.RoleBilling: o.BillingContactID,
		epp.RoleTech:    o.TechContactID,
	} {
		if cid == nil {
			continue
		}
		handle, err := p.contactHandle(ctx, *cid, z.Registry)
		if err != nil {
			return operationResult{}, err
		}
		req.Contacts[role] = handle
	}

	res, err := p.registry.CreateDomain(ctx, req)
	if err != nil {
		return operationResult{}, err
	}
	return operationResult{pending: res.Pending}, nil
}

func (p *Processor) renewDomain(ctx context.Context, o *Order) (operationResult, error) {
	snapshot, err := p.registry.GetDomain(ctx, o.Domain)
	if err != nil {
		return operationResult{}, err
	}
	if err := p.registry.RenewDomain(ctx, o.Domain, snapshot.Expiry, eppPeriod(o.Period)); err != nil {
		return operationResult{}, err
	}
	return operationResult{}, nil
}

func (p *Processor) restoreDomain(ctx context.Context, o *Order) (operationResult, error) {
	if err := p.registry.RestoreDomain(ctx, o.Domain); err != nil {
		return operationResult{}, err
	}
	return operationResult{}, nil
}

func (p *Processor) transferDomain(ctx context.Context, o *Order) (operationResult, error) {
	res, err := p.registry.TransferDomain(ctx, epp.TransferDomain{
		Name:     o.Domain,
		AuthCode: o.AuthCode,
	})
	if err != nil {
		return operationResult{}, err
	}
	return operationResult{pending: res.Pending}, nil
}

// createDomainRow persists the local registration record for a newly
// acquired domain object. Runs inside the completion transaction.
func (p *Processor) createDomainRow(ctx context.Context, o *Order) (*registrar.Domain, error) {
	d := &registrar.Domain{
		ID:                  id.NewDomainID(),
		UserID:              o.UserID,
		Name:                o.Domain,
		AuthInfo:            o.AuthInfo,
		RegistrantContactID: o.RegistrantContactID,
		AdminContactID:      o.AdminContactID,
		BillingContactID:    o.BillingContactID,
		TechContactID:       o.TechContactID,
	}
	if err := p.domains.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create domain registration: %w", err)
	}
	return d, nil
}

func (p *Processor) clearDeleted(ctx context.Context, domainID id.DomainID) error {
	d, err := p.domains.FindByID(ctx, domainID)
	if err != nil {
		return fmt.Errorf("load domain registration: %w", err)
	}
	d.Deleted = false
	d.DeletedAt = nil
	if err := p.domains.Update(ctx, d); err != nil {
		return fmt.Errorf("clear deleted flag: %w", err)
	}
	return nil
}

// fail moves the order to FAILED with the displayable detail. A concurrent
// transition away from the expected state makes this a no-op.
func (p *Processor) fail(ctx context.Context, o *Order, from State, detail string) error {
	if detail == "" {
		detail = "operation failed"
	}
	_, err := p.store.AdvanceState(ctx, o.ID, from, StateFailed, func(o *Order) {
		o.LastError = detail
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fail order: %w", err)
	}
	p.metrics.ObserveFailed(string(o.Kind))
	p.logger.WarnContext(ctx, "order failed",
		"order_id", o.ID.String(), "kind", string(o.Kind), "detail", detail)
	return nil
}

func (p *Processor) contactHandle(ctx context.Context, contactID id.ContactID, registry string) (string, error) {
	c, err := p.contacts.FindContact(ctx, contactID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load contact")
	}
	handle, ok := c.RegistryID(registry)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInternal, "contact %s has no identity at registry %s", contactID, registry)
	}
	return handle, nil
}

func eppPeriod(p zone.Period) epp.Period {
	unit := epp.PeriodYears
	if p.Unit == zone.PeriodMonths {
		unit = epp.PeriodMonths
	}
	return epp.Period{Unit: unit, Value: p.Value}
}

func chargeDescription(o *Order) string {
	verb := map[Kind]string{
		KindRegistration: "Registration",
		KindRenewal:      "Renewal",
		KindRestore:      "Restore",
		KindTransfer:     "Transfer",
	}[o.Kind]
	if verb == "" {
		verb = "Order"
	}
	return verb + " of " + strings.ToLower(o.Domain)
}
