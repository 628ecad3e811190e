package epp

import (
	"context"
	"time"
)

// DomainSnapshot is the registry's current view of one domain, plus helpers
// that apply single mutations through the owning client.
type DomainSnapshot struct {
	Name        string
	Registry    string
	Registrant  string
	Admin       *ContactBinding
	Billing     *ContactBinding
	Tech        *ContactBinding
	NameServers []NameServer
	Hosts       []string
	Statuses    []DomainStatus
	RGPState    []RGPState
	DSData      []SecDNSDSData
	DNSKeyData  []SecDNSKeyData
	Expiry      time.Time

	client Client
}

// Bind attaches the client used by mutation helpers. GetDomain does this for
// snapshots it returns; tests use it to wire fakes.
func (s *DomainSnapshot) Bind(c Client) *DomainSnapshot {
	s.client = c
	return s
}

// InRedemption reports whether the registry holds this domain in the
// post-delete redemption grace period.
func (s *DomainSnapshot) InRedemption() bool {
	for _, st := range s.RGPState {
		if st == RGPRedemptionPeriod {
			return true
		}
	}
	return false
}

// HasStatus reports whether the domain carries any of the given statuses.
func (s *DomainSnapshot) HasStatus(statuses ...DomainStatus) bool {
	for _, want := range statuses {
		for _, have := range s.Statuses {
			if want == have {
				return true
			}
		}
	}
	return false
}

// UpdateDomain carries exactly one mutation; the proxy rejects requests
// setting more than one field group.
type UpdateDomain struct {
	Name string

	SetRegistrant *string
	SetContact    *SetContact
	AddHostObjs   []string
	DelHostObjs   []string
	AddHostAddrs  []HostAddr
	DelHostAddrs  []HostAddr
	AddDSData     []SecDNSDSData
	DelDSData     []SecDNSDSData
	AddDNSKeyData []SecDNSKeyData
	DelDNSKeyData []SecDNSKeyData
	DelSecDNSAll  bool
	AddStates     []DomainStatus
	DelStates     []DomainStatus
	SetAuthInfo   *string
}

// SetContact rebinds one contact role; a nil ContactID clears the role.
type SetContact struct {
	Role      ContactRole
	ContactID *string
}

// HostAddr pairs a delegated host name with its glue addresses.
type HostAddr struct {
	Host  string
	Addrs []IPAddress
}

// SetRegistrant changes the registrant contact.
func (s *DomainSnapshot) SetRegistrant(ctx context.Context, contactID string) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, SetRegistrant: &contactID})
}

// SetContact rebinds a contact role; nil clears it.
func (s *DomainSnapshot) SetContact(ctx context.Context, role ContactRole, contactID *string) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, SetContact: &SetContact{Role: role, ContactID: contactID}})
}

// AddHostObjs delegates to existing host objects.
func (s *DomainSnapshot) AddHostObjs(ctx context.Context, hosts []string) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, AddHostObjs: hosts})
}

// DelHostObjs removes host object delegations.
func (s *DomainSnapshot) DelHostObjs(ctx context.Context, hosts []string) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelHostObjs: hosts})
}

// AddHostAddrs adds host-attribute delegations with glue.
func (s *DomainSnapshot) AddHostAddrs(ctx context.Context, addrs []HostAddr) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, AddHostAddrs: addrs})
}

// DelHostAddrs removes host-attribute delegations.
func (s *DomainSnapshot) DelHostAddrs(ctx context.Context, addrs []HostAddr) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelHostAddrs: addrs})
}

// AddDSData publishes DS records.
func (s *DomainSnapshot) AddDSData(ctx context.Context, ds []SecDNSDSData) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, AddDSData: ds})
}

// DelDSData withdraws DS records.
func (s *DomainSnapshot) DelDSData(ctx context.Context, ds []SecDNSDSData) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelDSData: ds})
}

// AddDNSKeyData publishes DNSKEY records.
func (s *DomainSnapshot) AddDNSKeyData(ctx context.Context, keys []SecDNSKeyData) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, AddDNSKeyData: keys})
}

// DelDNSKeyData withdraws DNSKEY records.
func (s *DomainSnapshot) DelDNSKeyData(ctx context.Context, keys []SecDNSKeyData) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelDNSKeyData: keys})
}

// DelSecDNSAll withdraws all secure-DNS data.
func (s *DomainSnapshot) DelSecDNSAll(ctx context.Context) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelSecDNSAll: true})
}

// AddStates sets registry status flags (e.g. the transfer lock).
func (s *DomainSnapshot) AddStates(ctx context.Context, states []DomainStatus) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, AddStates: states})
}

// DelStates clears registry status flags.
func (s *DomainSnapshot) DelStates(ctx context.Context, states []DomainStatus) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, DelStates: states})
}

// SetAuthInfo replaces the domain's transfer auth code at the registry.
func (s *DomainSnapshot) SetAuthInfo(ctx context.Context, authInfo string) error {
	return s.client.UpdateDomain(ctx, UpdateDomain{Name: s.Name, SetAuthInfo: &authInfo})
}
