package zone

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// zoneFile is the JSON shape of one configured zone.
type zoneFile struct {
	Name     string `json:"name"`
	Registry string `json:"registry"`
	Notice   string `json:"notice"`
	Pricing  struct {
		Currency     string          `json:"currency"`
		Registration decimal.Decimal `json:"registration"`
		Renewal      decimal.Decimal `json:"renewal"`
		Restore      decimal.Decimal `json:"restore"`
		Transfer     decimal.Decimal `json:"transfer"`
		Periods      []struct {
			Unit  string `json:"unit"`
			Value int    `json:"value"`
		} `json:"periods"`
	} `json:"pricing"`
	RegistrantSupported       bool `json:"registrant_supported"`
	RegistrantChangeSupported bool `json:"registrant_change_supported"`
	AdminSupported            bool `json:"admin_supported"`
	AdminRequired             bool `json:"admin_required"`
	BillingSupported          bool `json:"billing_supported"`
	BillingRequired           bool `json:"billing_required"`
	TechSupported             bool `json:"tech_supported"`
	TechRequired              bool `json:"tech_required"`
	TransferSupported         bool `json:"transfer_supported"`
	PreTransferQuerySupported bool `json:"pre_transfer_query_supported"`
	TransferLockSupported     bool `json:"transfer_lock_supported"`
	RestoreSupported          bool `json:"restore_supported"`
}

// LoadFile reads zone configuration from a JSON file.
func LoadFile(path string) ([]*Zone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	var entries []zoneFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}

	out := make([]*Zone, 0, len(entries))
	for _, e := range entries {
		z := &Zone{
			Name:     e.Name,
			Registry: e.Registry,
			Notice:   e.Notice,
			Pricing: Pricing{
				Currency:     e.Pricing.Currency,
				Registration: e.Pricing.Registration,
				Renewal:      e.Pricing.Renewal,
				Restore:      e.Pricing.Restore,
				Transfer:     e.Pricing.Transfer,
			},
			RegistrantSupported:       e.RegistrantSupported,
			RegistrantChangeSupported: e.RegistrantChangeSupported,
			AdminSupported:            e.AdminSupported,
			AdminRequired:             e.AdminRequired,
			BillingSupported:          e.BillingSupported,
			BillingRequired:           e.BillingRequired,
			TechSupported:             e.TechSupported,
			TechRequired:              e.TechRequired,
			TransferSupported:         e.TransferSupported,
			PreTransferQuerySupported: e.PreTransferQuerySupported,
			TransferLockSupported:     e.TransferLockSupported,
			RestoreSupported:          e.RestoreSupported,
		}
		for _, p := range e.Pricing.Periods {
			unit := PeriodYears
			if p.Unit == "months" {
				unit = PeriodMonths
			}
			z.Pricing.Periods = append(z.Pricing.Periods, Period{Unit: unit, Value: p.Value})
		}
		if z.Name == "" {
			return nil, fmt.Errorf("zones file: entry with empty name")
		}
		out = append(out, z)
	}
	return out, nil
}

// DevZones is the built-in development zone set used when no zones file is
// configured.
func DevZones() []*Zone {
	return []*Zone{
		{
			Name:     "example",
			Registry: "dev",
			Pricing: Pricing{
				Currency:     "GBP",
				Registration: decimal.NewFromInt(10),
				Renewal:      decimal.NewFromInt(10),
				Restore:      decimal.NewFromInt(40),
				Transfer:     decimal.NewFromInt(10),
			},
			RegistrantSupported:       true,
			RegistrantChangeSupported: true,
			AdminSupported:            true,
			TechSupported:             true,
			BillingSupported:          true,
			TransferSupported:         true,
			TransferLockSupported:     true,
			RestoreSupported:          true,
		},
	}
}
