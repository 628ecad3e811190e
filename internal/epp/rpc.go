package epp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("registrar/epp")

// RPCClient talks to the EPP proxy over its JSON-RPC HTTP surface.
type RPCClient struct {
	http *http.Client
	addr string
}

// NewRPCClient creates a proxy client. The timeout bounds each RPC; the
// proxy itself enforces per-registry deadlines.
func NewRPCClient(addr string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		http: &http.Client{Timeout: timeout},
		addr: addr,
	}
}

type rpcFault struct {
	Error string `json:"error"`
}

// call posts one RPC, decoding the response into out when non-nil.
// Proxy-reported failures become *RPCError with the proxy's detail string.
func (c *RPCClient) call(ctx context.Context, method string, req, out any) error {
	ctx, span := tracer.Start(ctx, "epp."+method, trace.WithAttributes(
		attribute.String("epp.method", method),
	))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/epp/v1/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var fault rpcFault
		if err := json.NewDecoder(resp.Body).Decode(&fault); err != nil || fault.Error == "" {
			fault.Error = resp.Status
		}
		span.SetStatus(codes.Error, fault.Error)
		return &RPCError{Method: method, Detail: fault.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

type domainNameReq struct {
	Name string `json:"name"`
}

func (c *RPCClient) GetDomain(ctx context.Context, name string) (*DomainSnapshot, error) {
	var snapshot DomainSnapshot
	if err := c.call(ctx, "domain.info", domainNameReq{Name: name}, &snapshot); err != nil {
		return nil, err
	}
	return snapshot.Bind(c), nil
}

func (c *RPCClient) CheckDomain(ctx context.Context, name string) (CheckResult, error) {
	var result CheckResult
	err := c.call(ctx, "domain.check", domainNameReq{Name: name}, &result)
	return result, err
}

func (c *RPCClient) CreateDomain(ctx context.Context, req CreateDomain) (CreateResult, error) {
	var result CreateResult
	err := c.call(ctx, "domain.create", req, &result)
	return result, err
}

type renewReq struct {
	Name          string    `json:"name"`
	CurrentExpiry time.Time `json:"current_expiry"`
	Period        Period    `json:"period"`
}

func (c *RPCClient) RenewDomain(ctx context.Context, name string, currentExpiry time.Time, period Period) error {
	return c.call(ctx, "domain.renew", renewReq{Name: name, CurrentExpiry: currentExpiry, Period: period}, nil)
}

func (c *RPCClient) RestoreDomain(ctx context.Context, name string) error {
	return c.call(ctx, "domain.restore", domainNameReq{Name: name}, nil)
}

func (c *RPCClient) TransferDomain(ctx context.Context, req TransferDomain) (TransferResult, error) {
	var result TransferResult
	err := c.call(ctx, "domain.transfer", req, &result)
	return result, err
}

func (c *RPCClient) DeleteDomain(ctx context.Context, name string) (DeleteResult, error) {
	var result DeleteResult
	err := c.call(ctx, "domain.delete", domainNameReq{Name: name}, &result)
	return result, err
}

type hostReq struct {
	Name     string      `json:"name"`
	Registry string      `json:"registry"`
	Addrs    []IPAddress `json:"addrs,omitempty"`
}

func (c *RPCClient) CheckHost(ctx context.Context, name, registry string) (CheckResult, error) {
	var result CheckResult
	err := c.call(ctx, "host.check", hostReq{Name: name, Registry: registry}, &result)
	return result, err
}

func (c *RPCClient) CreateHost(ctx context.Context, name string, addrs []IPAddress, registry string) error {
	return c.call(ctx, "host.create", hostReq{Name: name, Registry: registry, Addrs: addrs}, nil)
}

func (c *RPCClient) UpdateDomain(ctx context.Context, req UpdateDomain) error {
	return c.call(ctx, "domain.update", req, nil)
}

var _ Client = (*RPCClient)(nil)
