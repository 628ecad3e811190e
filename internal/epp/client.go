package epp

import (
	"context"
	"errors"
	"time"
)

// Client is the call contract against the EPP proxy.
//
// Domain mutations go through the snapshot returned by GetDomain (fetch
// current state, apply one mutation RPC, abort on failure) so local state is
// never updated ahead of registry truth.
type Client interface {
	GetDomain(ctx context.Context, name string) (*DomainSnapshot, error)
	CheckDomain(ctx context.Context, name string) (CheckResult, error)
	CreateDomain(ctx context.Context, req CreateDomain) (CreateResult, error)
	RenewDomain(ctx context.Context, name string, currentExpiry time.Time, period Period) error
	RestoreDomain(ctx context.Context, name string) error
	TransferDomain(ctx context.Context, req TransferDomain) (TransferResult, error)
	DeleteDomain(ctx context.Context, name string) (DeleteResult, error)

	CheckHost(ctx context.Context, name, registry string) (CheckResult, error)
	CreateHost(ctx context.Context, name string, addrs []IPAddress, registry string) error

	// UpdateDomain applies one mutation to a domain object. Callers go
	// through DomainSnapshot helpers rather than building requests by hand.
	UpdateDomain(ctx context.Context, req UpdateDomain) error
}

// RPCError is a failed proxy call. Detail is the human-readable message from
// the proxy or registry and is safe to show to the user.
type RPCError struct {
	Method string
	Detail string
}

func (e *RPCError) Error() string {
	return "epp " + e.Method + ": " + e.Detail
}

// ErrorDetail extracts the displayable detail from a proxy call error.
// Non-RPC errors (timeouts, transport faults) collapse to a generic message
// so internals never reach the user.
func ErrorDetail(err error) string {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Detail
	}
	return "registry temporarily unavailable"
}
