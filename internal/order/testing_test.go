package order

import (
	"context"
	"sync"
	"time"

	"registrar/internal/billing"
	"registrar/internal/epp"
	id "registrar/pkg/domain"
)

// nopObserver satisfies Observer without touching the global prometheus
// registry, which only tolerates one registration per metric name.
type nopObserver struct{}

func (nopObserver) ObserveCreated(string)               {}
func (nopObserver) ObserveCompleted(string)             {}
func (nopObserver) ObserveFailed(string)                {}
func (nopObserver) ObserveUnknownState()                {}
func (nopObserver) ObserveRegistryCall(string, float64) {}

// fakeRegistry scripts registry responses and counts calls.
type fakeRegistry struct {
	mu sync.Mutex

	snapshot    *epp.DomainSnapshot
	getErr      error
	createRes   epp.CreateResult
	createErr   error
	renewErr    error
	restoreErr  error
	transferRes epp.TransferResult
	transferErr error

	createCalls   int
	renewCalls    int
	restoreCalls  int
	transferCalls int
}

func (f *fakeRegistry) GetDomain(ctx context.Context, name string) (*epp.DomainSnapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.snapshot != nil {
		return f.snapshot.Bind(f), nil
	}
	return (&epp.DomainSnapshot{Name: name, Expiry: time.Now().AddDate(1, 0, 0)}).Bind(f), nil
}

func (f *fakeRegistry) CheckDomain(ctx context.Context, name string) (epp.CheckResult, error) {
	return epp.CheckResult{Available: true}, nil
}

func (f *fakeRegistry) CreateDomain(ctx context.Context, req epp.CreateDomain) (epp.CreateResult, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	return f.createRes, f.createErr
}

func (f *fakeRegistry) RenewDomain(ctx context.Context, name string, currentExpiry time.Time, period epp.Period) error {
	f.mu.Lock()
	f.renewCalls++
	f.mu.Unlock()
	return f.renewErr
}

func (f *fakeRegistry) RestoreDomain(ctx context.Context, name string) error {
	f.mu.Lock()
	f.restoreCalls++
	f.mu.Unlock()
	return f.restoreErr
}

func (f *fakeRegistry) TransferDomain(ctx context.Context, req epp.TransferDomain) (epp.TransferResult, error) {
	f.mu.Lock()
	f.transferCalls++
	f.mu.Unlock()
	return f.transferRes, f.transferErr
}

func (f *fakeRegistry) DeleteDomain(ctx context.Context, name string) (epp.DeleteResult, error) {
	return epp.DeleteResult{}, nil
}

func (f *fakeRegistry) CheckHost(ctx context.Context, name, registry string) (epp.CheckResult, error) {
	return epp.CheckResult{}, nil
}

func (f *fakeRegistry) CreateHost(ctx context.Context, name string, addrs []epp.IPAddress, registry string) error {
	return nil
}

func (f *fakeRegistry) UpdateDomain(ctx context.Context, req epp.UpdateDomain) error {
	return nil
}

func (f *fakeRegistry) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls + f.renewCalls + f.restoreCalls + f.transferCalls
}

// fakeBilling scripts charge creation.
type fakeBilling struct {
	charge billing.Charge
	err    error
	calls  int
}

func (f *fakeBilling) CreateCharge(ctx context.Context, req billing.ChargeRequest) (billing.Charge, error) {
	f.calls++
	return f.charge, f.err
}

// fakeQueue records enqueued order ids.
type fakeQueue struct {
	enqueued []id.OrderID
}

func (f *fakeQueue) EnqueueProcessOrder(ctx context.Context, kind Kind, orderID id.OrderID) error {
	f.enqueued = append(f.enqueued, orderID)
	return nil
}
