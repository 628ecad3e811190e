package registrar

import (
	"context"
	"strings"

	"registrar/internal/epp"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/secrets"
)

// Every mutation follows one shape: fetch the current registry snapshot,
// apply a single mutation RPC through it, and abort on failure with the
// registry's own message. Local rows are written only after the registry
// accepted the change, so the local view never runs ahead of registry
// truth.

// snapshotFor loads the owned domain and its live registry snapshot,
// bypassing the cache because mutations must see current state.
func (s *Service) snapshotFor(ctx context.Context, userID id.UserID, domainID id.DomainID) (*Domain, *epp.DomainSnapshot, error) {
	d, err := s.ownedDomain(ctx, userID, domainID)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := s.registry.GetDomain(ctx, d.Name)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
	}
	return d, snapshot, nil
}

func (s *Service) mutationErr(ctx context.Context, kind, name string, err error) error {
	s.metrics.ObserveMutation(kind, err)
	if err == nil {
		s.invalidateSnapshot(ctx, name)
		return nil
	}
	return dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
}

// SetRegistrant changes the registrant contact at the registry, then
// records the link locally.
func (s *Service) SetRegistrant(ctx context.Context, userID id.UserID, domainID id.DomainID, contactID id.ContactID) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}
	if !z.RegistrantChangeSupported {
		return dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not allow registrant changes", z.Name)
	}
	handle, err := s.contactHandle(ctx, userID, contactID, snapshot.Registry)
	if err != nil {
		return err
	}
	if err := s.mutationErr(ctx, "set_registrant", d.Name, snapshot.SetRegistrant(ctx, handle)); err != nil {
		return err
	}
	d.RegistrantContactID = &contactID
	return s.persistRow(ctx, d)
}

// SetContact changes or clears one of the admin/billing/tech contact slots.
// A nil contactID clears the slot, which required slots refuse.
func (s *Service) SetContact(ctx context.Context, userID id.UserID, domainID id.DomainID, role epp.ContactRole, contactID *id.ContactID) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}
	if err := checkContactSlot(z, role, contactID == nil); err != nil {
		return err
	}

	var handle *string
	if contactID != nil {
		h, err := s.contactHandle(ctx, userID, *contactID, snapshot.Registry)
		if err != nil {
			return err
		}
		handle = &h
	}
	if err := s.mutationErr(ctx, "set_contact", d.Name, snapshot.SetContact(ctx, role, handle)); err != nil {
		return err
	}
	switch role {
	case epp.RoleAdmin:
		d.AdminContactID = contactID
	case epp.RoleBilling:
		d.BillingContactID = contactID
	case epp.RoleTech:
		d.TechContactID = contactID
	}
	return s.persistRow(ctx, d)
}

// AddHostObjs delegates the domain to existing registry host objects,
// creating any host the registry does not know yet.
func (s *Service) AddHostObjs(ctx context.Context, userID id.UserID, domainID id.DomainID, hosts []string) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		if err := s.ensureHost(ctx, userID, h, snapshot.Registry); err != nil {
			return err
		}
	}
	return s.mutationErr(ctx, "add_host_objs", d.Name, snapshot.AddHostObjs(ctx, hosts))
}

// DelHostObjs removes host object delegations.
func (s *Service) DelHostObjs(ctx context.Context, userID id.UserID, domainID id.DomainID, hosts []string) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "del_host_objs", d.Name, snapshot.DelHostObjs(ctx, hosts))
}

// AddHostAddrs adds name server entries with inline glue.
func (s *Service) AddHostAddrs(ctx context.Context, userID id.UserID, domainID id.DomainID, addrs []epp.HostAddr) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "add_host_addrs", d.Name, snapshot.AddHostAddrs(ctx, addrs))
}

// DelHostAddrs removes name server entries with inline glue.
func (s *Service) DelHostAddrs(ctx context.Context, userID id.UserID, domainID id.DomainID, addrs []epp.HostAddr) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "del_host_addrs", d.Name, snapshot.DelHostAddrs(ctx, addrs))
}

// AddDSData publishes DS records at the registry.
func (s *Service) AddDSData(ctx context.Context, userID id.UserID, domainID id.DomainID, ds []epp.SecDNSDSData) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "add_ds", d.Name, snapshot.AddDSData(ctx, ds))
}

// DelDSData withdraws DS records.
func (s *Service) DelDSData(ctx context.Context, userID id.UserID, domainID id.DomainID, ds []epp.SecDNSDSData) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "del_ds", d.Name, snapshot.DelDSData(ctx, ds))
}

// AddDNSKeyData publishes DNSKEY records at the registry.
func (s *Service) AddDNSKeyData(ctx context.Context, userID id.UserID, domainID id.DomainID, keys []epp.SecDNSKeyData) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "add_dnskey", d.Name, snapshot.AddDNSKeyData(ctx, keys))
}

// DelDNSKeyData withdraws DNSKEY records.
func (s *Service) DelDNSKeyData(ctx context.Context, userID id.UserID, domainID id.DomainID, keys []epp.SecDNSKeyData) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "del_dnskey", d.Name, snapshot.DelDNSKeyData(ctx, keys))
}

// DelSecDNSAll withdraws all secure delegation material.
func (s *Service) DelSecDNSAll(ctx context.Context, userID id.UserID, domainID id.DomainID) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	return s.mutationErr(ctx, "del_secdns_all", d.Name, snapshot.DelSecDNSAll(ctx))
}

// SetTransferLock toggles clientTransferProhibited. Re-applying the current
// setting is a no-op rather than an error.
func (s *Service) SetTransferLock(ctx context.Context, userID id.UserID, domainID id.DomainID, locked bool) error {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return err
	}
	z, _, err := s.zones.Lookup(d.Name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no zone configured for registered domain")
	}
	if !z.TransferLockSupported {
		return dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support transfer locks", z.Name)
	}

	has := snapshot.HasStatus(epp.StatusClientTransferProhibited)
	if has == locked {
		return nil
	}
	states := []epp.DomainStatus{epp.StatusClientTransferProhibited}
	if locked {
		return s.mutationErr(ctx, "transfer_lock", d.Name, snapshot.AddStates(ctx, states))
	}
	return s.mutationErr(ctx, "transfer_lock", d.Name, snapshot.DelStates(ctx, states))
}

// RegenerateAuthInfo rotates the domain's transfer secret: a new secret is
// pushed to the registry first and persisted locally only once the registry
// accepted it. Returns the new secret for display.
func (s *Service) RegenerateAuthInfo(ctx context.Context, userID id.UserID, domainID id.DomainID) (string, error) {
	d, snapshot, err := s.snapshotFor(ctx, userID, domainID)
	if err != nil {
		return "", err
	}
	authInfo, err := secrets.NewAuthInfo()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate auth info")
	}
	if err := s.mutationErr(ctx, "set_auth_info", d.Name, snapshot.SetAuthInfo(ctx, authInfo)); err != nil {
		return "", err
	}
	d.AuthInfo = authInfo
	if err := s.persistRow(ctx, d); err != nil {
		return "", err
	}
	return authInfo, nil
}

// ensureHost makes sure a host object exists at the registry, creating it
// when the check reports it available. Hosts subordinate to a domain the
// user manages get a local name server row for bookkeeping.
func (s *Service) ensureHost(ctx context.Context, userID id.UserID, host, registry string) error {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	res, err := s.registry.CheckHost(ctx, host, registry)
	if err != nil {
		return dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
	}
	if res.Available {
		if err := s.registry.CreateHost(ctx, host, nil, registry); err != nil {
			return dErrors.New(dErrors.CodeUpstream, epp.ErrorDetail(err))
		}
	}
	if _, err := s.contacts.FindOrCreateNameServer(ctx, userID, host, registry); err != nil {
		s.logger.WarnContext(ctx, "record name server row failed", "host", host, "error", err)
	}
	return nil
}

func (s *Service) contactHandle(ctx context.Context, userID id.UserID, contactID id.ContactID, registry string) (string, error) {
	c, err := s.contacts.FindContact(ctx, contactID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load contact")
	}
	if c.UserID != userID {
		return "", dErrors.New(dErrors.CodeForbidden, "permission denied")
	}
	handle, ok := c.RegistryID(registry)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "contact is not provisioned at registry %s", registry)
	}
	return handle, nil
}

func (s *Service) persistRow(ctx context.Context, d *Domain) error {
	if err := s.store.Update(ctx, d); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist domain row")
	}
	return nil
}

func checkContactSlot(z *zone.Zone, role epp.ContactRole, clearing bool) error {
	switch role {
	case epp.RoleAdmin:
		if !z.AdminSupported {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support admin contacts", z.Name)
		}
		if clearing && z.AdminRequired {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s requires an admin contact", z.Name)
		}
	case epp.RoleBilling:
		if !z.BillingSupported {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support billing contacts", z.Name)
		}
		if clearing && z.BillingRequired {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s requires a billing contact", z.Name)
		}
	case epp.RoleTech:
		if !z.TechSupported {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not support tech contacts", z.Name)
		}
		if clearing && z.TechRequired {
			return dErrors.Newf(dErrors.CodeBadRequest, "zone %s requires a tech contact", z.Name)
		}
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unknown contact role")
	}
	return nil
}
