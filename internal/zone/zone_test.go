package zone

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry([]*Zone{
		{Name: "uk", Registry: "nominet"},
		{Name: "co.uk", Registry: "nominet"},
		{Name: "dev", Registry: "google"},
	})
}

func TestLookup(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		domain  string
		zone    string
		sld     string
		wantErr bool
	}{
		{domain: "example.dev", zone: "dev", sld: "example"},
		{domain: "Example.DEV", zone: "dev", sld: "example"},
		{domain: "example.dev.", zone: "dev", sld: "example"},
		{domain: "example.uk", zone: "uk", sld: "example"},
		{domain: "example.co.uk", zone: "co.uk", sld: "example"},
		{domain: "deep.example.co.uk", zone: "co.uk", sld: "deep.example"},
		{domain: "example.com", wantErr: true},
		{domain: "dev", wantErr: true},
		{domain: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.domain, func(t *testing.T) {
			z, sld, err := r.Lookup(tc.domain)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.zone, z.Name)
			assert.Equal(t, tc.sld, sld)
		})
	}
}

func TestZonesSorted(t *testing.T) {
	zones := testRegistry().Zones()
	require.Len(t, zones, 3)
	assert.Equal(t, "co.uk", zones[0].Name)
	assert.Equal(t, "dev", zones[1].Name)
	assert.Equal(t, "uk", zones[2].Name)
}

func TestPricing(t *testing.T) {
	z := &Zone{
		Name: "dev",
		Pricing: Pricing{
			Currency:     "GBP",
			Registration: decimal.NewFromInt(10),
			Renewal:      decimal.NewFromInt(8),
		},
	}

	t.Run("scales yearly prices by the term", func(t *testing.T) {
		p, err := z.RegistrationPrice(Period{Unit: PeriodYears, Value: 3})
		require.NoError(t, err)
		assert.Equal(t, "30", p.String())
	})

	t.Run("prorates monthly terms", func(t *testing.T) {
		monthly := &Zone{
			Pricing: Pricing{
				Registration: decimal.NewFromInt(12),
				Periods:      []Period{{Unit: PeriodMonths, Value: 3}},
			},
		}
		p, err := monthly.RegistrationPrice(Period{Unit: PeriodMonths, Value: 3})
		require.NoError(t, err)
		assert.Equal(t, "3", p.String())
	})

	t.Run("rejects terms outside the default 1..10 years", func(t *testing.T) {
		for _, period := range []Period{
			{Unit: PeriodYears, Value: 0},
			{Unit: PeriodYears, Value: 11},
			{Unit: PeriodMonths, Value: 6},
		} {
			_, err := z.RenewalPrice(period)
			assert.Error(t, err, "period %+v", period)
		}
	})

	t.Run("an explicit period list is exclusive", func(t *testing.T) {
		listed := &Zone{
			Pricing: Pricing{
				Registration: decimal.NewFromInt(10),
				Periods:      []Period{{Unit: PeriodYears, Value: 2}},
			},
		}
		_, err := listed.RegistrationPrice(Period{Unit: PeriodYears, Value: 1})
		assert.Error(t, err)
		_, err = listed.RegistrationPrice(Period{Unit: PeriodYears, Value: 2})
		assert.NoError(t, err)
	})
}
