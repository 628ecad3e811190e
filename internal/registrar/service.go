package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"registrar/internal/contact"
	"registrar/internal/epp"
	"registrar/internal/platform/redis"
	registrarMetrics "registrar/internal/registrar/metrics"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// listingConcurrency bounds the parallel per-domain registry lookups in the
// listing fan-out.
const listingConcurrency = 8

// snapshotTTL bounds how stale a cached registry snapshot may be.
const snapshotTTL = 5 * time.Minute

// EventPublisher receives domain lifecycle events. Delivery is
// fire-and-forget from the caller's perspective; a publish failure is
// logged and never fails the domain operation.
type EventPublisher interface {
	DomainDeleted(ctx context.Context, d *Domain) error
}

// OrderOcclusion reports whether an in-flight order already claims a domain
// name, so availability checks do not offer a name twice.
type OrderOcclusion interface {
	ExistsActiveForDomain(ctx context.Context, domain string) (bool, error)
}

// Service manages registered domains: listing with live registry state,
// availability checks, and the registry mutations exposed to domain owners.
type Service struct {
	store    Store
	contacts contact.Store
	registry epp.Client
	zones    *zone.Registry
	orders   OrderOcclusion
	events   EventPublisher
	cache    *redis.Client
	dnsSetup *DNSSetup
	logger   *slog.Logger
	metrics  *registrarMetrics.Metrics
}

// ServiceConfig carries the service's wiring. Cache and DNSSetup may be nil
// when not configured.
type ServiceConfig struct {
	Store    Store
	Contacts contact.Store
	Registry epp.Client
	Zones    *zone.Registry
	Orders   OrderOcclusion
	Events   EventPublisher
	Cache    *redis.Client
	DNSSetup *DNSSetup
	Logger   *slog.Logger
	Metrics  *registrarMetrics.Metrics
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:    cfg.Store,
		contacts: cfg.Contacts,
		registry: cfg.Registry,
		zones:    cfg.Zones,
		orders:   cfg.Orders,
		events:   cfg.Events,
		cache:    cfg.Cache,
		dnsSetup: cfg.DNSSetup,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Availability is a domain availability answer.
type Availability struct {
	Domain    string
	Available bool
	Reason    string
	Fee       string
	Zone      *zone.Zone
}

// CheckAvailability asks the registry whether a name can be registered. A
// name claimed by a local registration or an in-flight order is reported
// unavailable without a registry round trip.
func (s *Service) CheckAvailability(ctx context.Context, domain string) (*Availability, error) {
	z, _, err := s.zones.Lookup(domain)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByName(ctx, domain); err == nil {
		return &Availability{Domain: domain, Available: false, Reason: "already registered here", Zone: z}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check local registrations")
	}

	busy, err := s.orders.ExistsActiveForDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check active orders")
	}
	if busy {
		return &Availability{Domain: domain, Available: false, Reason: "an order for this domain is in progress", Zone: z}, nil
	}

	res, err := s.registry.CheckDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
	}
	return &Availability{
		Domain:    domain,
		Available: res.Available,
		Reason:    res.Reason,
		Fee:       res.Fee,
		Zone:      z,
	}, nil
}

// TransferEligibility reports whether an external domain can be transferred
// in. Registry statuses that prohibit or already imply a transfer block it.
type TransferEligibility struct {
	Domain   string
	Eligible bool
	Reason   string
}

// transferBlockingStatuses are the registry statuses under which a transfer
// request is pointless or will be rejected outright.
var transferBlockingStatuses = []epp.DomainStatus{
	epp.StatusClientTransferProhibited,
	epp.StatusPendingDelete,
	epp.StatusPendingTransfer,
	epp.StatusServerTransferProhibited,
	epp.StatusTransferPeriod,
}

// CheckTransfer queries the registry for a pre-transfer eligibility answer.
// Only zones that expose pre-transfer queries support this.
func (s *Service) CheckTransfer(ctx context.Context, domain string) (*TransferEligibility, error) {
	z, _, err := s.zones.Lookup(domain)
	if err != nil {
		return nil, err
	}
	if !z.TransferSupported {
		return &TransferEligibility{Domain: domain, Eligible: false, Reason: "zone does not support transfers"}, nil
	}
	if !z.PreTransferQuerySupported {
		return &TransferEligibility{Domain: domain, Eligible: true}, nil
	}

	snapshot, err := s.registry.GetDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
	}
	if snapshot.HasStatus(transferBlockingStatuses...) {
		return &TransferEligibility{Domain: domain, Eligible: false, Reason: "domain is locked or in a blocking transfer state"}, nil
	}
	return &TransferEligibility{Domain: domain, Eligible: true}, nil
}

// ZonePrice is the representative price card for one zone.
type ZonePrice struct {
	Zone         *zone.Zone
	Registration string
	Renewal      string
	Restore      string
	Transfer     string
}

// Prices lists representative one-year prices per configured zone.
func (s *Service) Prices(ctx context.Context) []*ZonePrice {
	oneYear := zone.Period{Unit: zone.PeriodYears, Value: 1}
	zones := s.zones.Zones()
	out := make([]*ZonePrice, 0, len(zones))
	for _, z := range zones {
		p := &ZonePrice{Zone: z}
		if reg, err := z.RegistrationPrice(oneYear); err == nil {
			p.Registration = reg.StringFixed(2)
		}
		if ren, err := z.RenewalPrice(oneYear); err == nil {
			p.Renewal = ren.StringFixed(2)
		}
		if z.RestoreSupported {
			p.Restore = z.RestorePrice().StringFixed(2)
		}
		if z.TransferSupported {
			p.Transfer = z.TransferPrice().StringFixed(2)
		}
		out = append(out, p)
	}
	return out
}

// ListedDomain is one listing entry: the local row plus the registry's
// current view when it could be fetched.
type ListedDomain struct {
	Domain   *Domain
	Snapshot *epp.DomainSnapshot
	// FetchError carries the displayable reason the registry view is
	// missing; the local row is still listed.
	FetchError string
}

// List returns the user's domains with live registry state, fetched in
// parallel. Domains the registry reports in redemption are marked deleted
// on their own row; each worker writes at most its own row so the fan-out
// shares no mutable state.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*ListedDomain, error) {
	domains, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list domains")
	}

	start := time.Now()
	out := make([]*ListedDomain, len(domains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listingConcurrency)
	for i, d := range domains {
		g.Go(func() error {
			entry := &ListedDomain{Domain: d}
			out[i] = entry

			snapshot, err := s.getSnapshot(gctx, d.Name)
			if err != nil {
				entry.FetchError = epp.ErrorDetail(err)
				return nil
			}
			entry.Snapshot = snapshot

			if snapshot.InRedemption() && !d.Deleted {
				now := time.Now()
				d.Deleted = true
				d.DeletedAt = &now
				if err := s.store.Update(gctx, d); err != nil {
					s.logger.ErrorContext(gctx, "mark domain deleted failed",
						"domain", d.Name, "error", err)
				}
			}
			return nil
		})
	}
	// Workers only record errors per entry; the group never fails.
	_ = g.Wait()
	s.metrics.ListingDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

// Get returns one owned domain with its live registry state.
func (s *Service) Get(ctx context.Context, userID id.UserID, domainID id.DomainID) (*ListedDomain, error) {
	d, err := s.ownedDomain(ctx, userID, domainID)
	if err != nil {
		return nil, err
	}
	entry := &ListedDomain{Domain: d}
	snapshot, err := s.getSnapshot(ctx, d.Name)
	if err != nil {
		entry.FetchError = epp.ErrorDetail(err)
		return entry, nil
	}
	entry.Snapshot = snapshot
	return entry, nil
}

// Delete removes the domain at the registry. Zones with restore support
// keep the local row soft-deleted so a redemption restore can find it;
// other zones drop the row outright. A "domain deleted" event is emitted
// either way; event failure never fails the delete.
func (s *Service) Delete(ctx context.Context, userID id.UserID, domainID id.DomainID) error {
	d, err := s.ownedDomain(ctx, userID, domainID)
	if err != nil {
		return err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}

	if _, err := s.registry.DeleteDomain(ctx, d.Name); err != nil {
		return dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
	}

	if z.RestoreSupported {
		now := time.Now()
		d.Deleted = true
		d.DeletedAt = &now
		if err := s.store.Update(ctx, d); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark domain deleted")
		}
	} else {
		if err := s.store.Delete(ctx, domainID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "remove domain row")
		}
	}
	s.invalidateSnapshot(ctx, d.Name)
	s.metrics.DomainsDeleted.Inc()

	if err := s.events.DomainDeleted(ctx, d); err != nil {
		s.logger.ErrorContext(ctx, "publish domain deleted event failed",
			"domain", d.Name, "error", err)
	}
	s.logger.InfoContext(ctx, "domain deleted", "domain", d.Name, "soft", z.RestoreSupported)
	return nil
}

func (s *Service) ownedDomain(ctx context.Context, userID id.UserID, domainID id.DomainID) (*Domain, error) {
	d, err := s.store.FindByID(ctx, domainID)
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

// getSnapshot fetches the registry view of a domain through the cache.
// Cache misses and unmarshal failures fall through to the registry.
func (s *Service) getSnapshot(ctx context.Context, name string) (*epp.DomainSnapshot, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, snapshotKey(name)).Bytes()
		if err == nil {
			var snapshot epp.DomainSnapshot
			if err := json.Unmarshal(raw, &snapshot); err == nil {
				s.metrics.ObserveCacheHit(true)
				return snapshot.Bind(s.registry), nil
			}
		}
		s.metrics.ObserveCacheHit(false)
	}

	snapshot, err := s.registry.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(snapshot); err == nil {
			_ = s.cache.Set(ctx, snapshotKey(name), raw, snapshotTTL).Err()
		}
	}
	return snapshot, nil
}

// invalidateSnapshot drops the cached registry view after a mutation so the
// next read reflects registry truth.
func (s *Service) invalidateSnapshot(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, snapshotKey(name)).Err()
}

func snapshotKey(name string) string {
	return "registrar:snapshot:" + name
}
