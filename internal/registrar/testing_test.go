package registrar

import (
	"context"
	"sync"
	"time"

	"registrar/internal/epp"
	registrarMetrics "registrar/internal/registrar/metrics"
)

// The prometheus default registry tolerates one registration per metric
// name, so all suites in this package share one instance.
var testMetrics = registrarMetrics.New()

// fakeRegistry scripts registry responses and records update requests.
type fakeRegistry struct {
	mu sync.Mutex

	snapshot  *epp.DomainSnapshot
	getErr    error
	checkRes  epp.CheckResult
	checkErr  error
	deleteErr error
	updateErr error

	hostAvailable bool
	hostCreateErr error

	updates      []epp.UpdateDomain
	createdHosts []string
	deleteCalls  int
	checkCalls   int
	getCalls     int
}

func (f *fakeRegistry) GetDomain(ctx context.Context, name string) (*epp.DomainSnapshot, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.snapshot != nil {
		cp := *f.snapshot
		return cp.Bind(f), nil
	}
	return (&epp.DomainSnapshot{Name: name, Registry: "test", Expiry: time.Now().AddDate(1, 0, 0)}).Bind(f), nil
}

func (f *fakeRegistry) CheckDomain(ctx context.Context, name string) (epp.CheckResult, error) {
	f.mu.Lock()
	f.checkCalls++
	f.mu.Unlock()
	return f.checkRes, f.checkErr
}

func (f *fakeRegistry) CreateDomain(ctx context.Context, req epp.CreateDomain) (epp.CreateResult, error) {
	return epp.CreateResult{}, nil
}

func (f *fakeRegistry) RenewDomain(ctx context.Context, name string, currentExpiry time.Time, period epp.Period) error {
	return nil
}

func (f *fakeRegistry) RestoreDomain(ctx context.Context, name string) error {
	return nil
}

func (f *fakeRegistry) TransferDomain(ctx context.Context, req epp.TransferDomain) (epp.TransferResult, error) {
	return epp.TransferResult{}, nil
}

func (f *fakeRegistry) DeleteDomain(ctx context.Context, name string) (epp.DeleteResult, error) {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	return epp.DeleteResult{}, f.deleteErr
}

func (f *fakeRegistry) CheckHost(ctx context.Context, name, registry string) (epp.CheckResult, error) {
	return epp.CheckResult{Available: f.hostAvailable}, nil
}

func (f *fakeRegistry) CreateHost(ctx context.Context, name string, addrs []epp.IPAddress, registry string) error {
	f.mu.Lock()
	f.createdHosts = append(f.createdHosts, name)
	f.mu.Unlock()
	return f.hostCreateErr
}

func (f *fakeRegistry) UpdateDomain(ctx context.Context, req epp.UpdateDomain) error {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	f.mu.Unlock()
	return f.updateErr
}

func (f *fakeRegistry) lastUpdate() *epp.UpdateDomain {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	u := f.updates[len(f.updates)-1]
	return &u
}

// fakeOcclusion scripts the in-flight order check.
type fakeOcclusion struct {
	busy bool
	err  error
}

func (f *fakeOcclusion) ExistsActiveForDomain(ctx context.Context, domain string) (bool, error) {
	return f.busy, f.err
}

// fakeEvents records published lifecycle events.
type fakeEvents struct {
	deleted []string
	err     error
}

func (f *fakeEvents) DomainDeleted(ctx context.Context, d *Domain) error {
	f.deleted = append(f.deleted, d.Name)
	return f.err
}
