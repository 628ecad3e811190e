// Package epp defines the port to the EPP proxy: the RPC service that owns
// authoritative domain, host, and contact state at the registries.
//
// The portal treats the proxy as an opaque stub with the call contracts
// below. Every call can fail with an *RPCError carrying the human-readable
// detail string the proxy returned; that detail is what users see.
package epp

import "time"

// Period is a registration or renewal term as the registry understands it.
type Period struct {
	Unit  PeriodUnit
	Value int
}

// PeriodUnit enumerates registry period units.
type PeriodUnit int

const (
	PeriodYears PeriodUnit = iota
	PeriodMonths
)

// DomainStatus is a registry status flag on a domain object.
type DomainStatus int

// Status values observed from the proxy. Only the ones the portal acts on
// are named.
const (
	StatusClientTransferProhibited DomainStatus = 3
	StatusPendingDelete            DomainStatus = 7
	StatusPendingTransfer          DomainStatus = 8
	StatusServerTransferProhibited DomainStatus = 10
	StatusTransferPeriod           DomainStatus = 15
)

// RGPState is a registry grace period state.
type RGPState int

const (
	RGPRedemptionPeriod RGPState = 1
	RGPPendingRestore   RGPState = 2
	RGPAddPeriod        RGPState = 3
)

// IPVersion tags a host address.
type IPVersion int

const (
	IPUnknown IPVersion = iota
	IPv4
	IPv6
)

// IPAddress is a glue address on a host object.
type IPAddress struct {
	Address string
	Version IPVersion
}

// NameServer is one delegation entry, either a host object reference or a
// host name with inline glue.
type NameServer struct {
	HostObj  string
	HostName string
	Addrs    []IPAddress
}

// ContactBinding links a contact role to a registry contact id.
type ContactBinding struct {
	ContactID string
}

// SecDNSDSData is one DS record at the registry.
type SecDNSDSData struct {
	KeyTag     int
	Algorithm  int
	DigestType int
	Digest     string
}

// SecDNSKeyData is one DNSKEY record at the registry.
type SecDNSKeyData struct {
	Flags     int
	Protocol  int
	Algorithm int
	PublicKey string
}

// ContactRole names a contact slot on a domain object.
type ContactRole string

const (
	RoleAdmin   ContactRole = "admin"
	RoleBilling ContactRole = "billing"
	RoleTech    ContactRole = "tech"
)

// CreateDomain is the request for a domain create call.
type CreateDomain struct {
	Name        string
	Period      Period
	Registrant  string
	Contacts    map[ContactRole]string
	AuthInfo    string
	NameServers []NameServer
}

// CreateResult reports the outcome of a domain create call.
type CreateResult struct {
	Pending  bool
	Registry string
	Expiry   time.Time
}

// TransferDomain is the request for a transfer-request call.
type TransferDomain struct {
	Name     string
	AuthCode string
}

// TransferResult reports the outcome of a transfer-request call. Pending
// means the losing registrar must approve before the transfer completes.
type TransferResult struct {
	Pending  bool
	Registry string
}

// DeleteResult reports the outcome of a domain delete call.
type DeleteResult struct {
	Pending       bool
	Registry      string
	TransactionID string
	Fee           string
}

// CheckResult reports domain or host availability.
type CheckResult struct {
	Available bool
	Reason    string
	Fee       string
}
