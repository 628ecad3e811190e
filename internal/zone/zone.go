// Package zone describes top-level domain extensions: their pricing,
// currency, and registry capabilities.
//
// Lookup is an injected service rather than a module-level table so handlers
// and the order processor receive it explicitly and tests can supply a
// two-zone fixture.
package zone

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "registrar/pkg/domain-errors"
)

// PeriodUnit mirrors the registry's period units.
type PeriodUnit int

const (
	PeriodYears PeriodUnit = iota
	PeriodMonths
)

// Period is a registration or renewal term.
type Period struct {
	Unit  PeriodUnit
	Value int
}

// Pricing holds per-operation prices for one zone, quoted per year.
type Pricing struct {
	Currency     string
	Registration decimal.Decimal
	Renewal      decimal.Decimal
	Restore      decimal.Decimal
	Transfer     decimal.Decimal
	// Periods lists the terms the registry accepts; empty means 1..10 years.
	Periods []Period
}

// Zone is one supported extension and its rules.
type Zone struct {
	// Name is the extension without leading dot, e.g. "co.uk".
	Name     string
	Registry string
	Notice   string
	Pricing  Pricing

	RegistrantSupported       bool
	RegistrantChangeSupported bool
	AdminSupported            bool
	AdminRequired             bool
	BillingSupported          bool
	BillingRequired           bool
	TechSupported             bool
	TechRequired              bool

	TransferSupported         bool
	PreTransferQuerySupported bool
	TransferLockSupported     bool
	RestoreSupported          bool
}

// RegistrationPrice returns the price for registering for the given period,
// or an error when the zone does not sell that term.
func (z *Zone) RegistrationPrice(period Period) (decimal.Decimal, error) {
	if !z.allowsPeriod(period) {
		return decimal.Zero, dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not offer that period", z.Name)
	}
	return scaleByPeriod(z.Pricing.Registration, period), nil
}

// RenewalPrice returns the price for renewing for the given period.
func (z *Zone) RenewalPrice(period Period) (decimal.Decimal, error) {
	if !z.allowsPeriod(period) {
		return decimal.Zero, dErrors.Newf(dErrors.CodeBadRequest, "zone %s does not offer that period", z.Name)
	}
	return scaleByPeriod(z.Pricing.Renewal, period), nil
}

// RestorePrice returns the redemption restore fee.
func (z *Zone) RestorePrice() decimal.Decimal { return z.Pricing.Restore }

// TransferPrice returns the transfer fee (one year renewal included at most
// registries).
func (z *Zone) TransferPrice() decimal.Decimal { return z.Pricing.Transfer }

func (z *Zone) allowsPeriod(period Period) bool {
	if len(z.Pricing.Periods) == 0 {
		return period.Unit == PeriodYears && period.Value >= 1 && period.Value <= 10
	}
	for _, p := range z.Pricing.Periods {
		if p == period {
			return true
		}
	}
	return false
}

func scaleByPeriod(perYear decimal.Decimal, period Period) decimal.Decimal {
	switch period.Unit {
	case PeriodMonths:
		return perYear.Mul(decimal.NewFromInt(int64(period.Value))).Div(decimal.NewFromInt(12)).Round(2)
	default:
		return perYear.Mul(decimal.NewFromInt(int64(period.Value)))
	}
}

// Registry resolves domains to their zone.
type Registry struct {
	zones map[string]*Zone
}

// NewRegistry builds a lookup service over the configured zones.
func NewRegistry(zones []*Zone) *Registry {
	m := make(map[string]*Zone, len(zones))
	for _, z := range zones {
		m[z.Name] = z
	}
	return &Registry{zones: m}
}

// Lookup finds the zone for a fully qualified domain and returns it with
// the second-level label. Longest matching suffix wins so "example.co.uk"
// resolves to "co.uk" ahead of "uk".
func (r *Registry) Lookup(domain string) (*Zone, string, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	labels := strings.Split(domain, ".")
	for i := 1; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".")
		if z, ok := r.zones[suffix]; ok {
			sld := strings.Join(labels[:i], ".")
			return z, sld, nil
		}
	}
	return nil, "", dErrors.New(dErrors.CodeBadRequest, "unsupported or invalid domain")
}

// Zones returns all configured zones sorted by name for price listings.
func (r *Registry) Zones() []*Zone {
	out := make([]*Zone, 0, len(r.zones))
	for _, z := range r.zones {
		out = append(out, z)
	}
	slices.SortFunc(out, func(a, b *Zone) int { return strings.Compare(a.Name, b.Name) })
	return out
}
