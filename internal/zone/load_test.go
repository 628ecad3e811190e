package zone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZones(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeZones(t, `[
		{
			"name": "co.uk",
			"registry": "nominet",
			"pricing": {
				"currency": "GBP",
				"registration": "8.50",
				"renewal": "8.50",
				"periods": [
					{"unit": "years", "value": 1},
					{"unit": "months", "value": 3}
				]
			},
			"admin_required": true,
			"transfer_supported": true
		}
	]`)

	zones, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, zones, 1)

	z := zones[0]
	assert.Equal(t, "co.uk", z.Name)
	assert.Equal(t, "nominet", z.Registry)
	assert.Equal(t, "GBP", z.Pricing.Currency)
	assert.Equal(t, "8.5", z.Pricing.Registration.String())
	assert.True(t, z.AdminRequired)
	assert.True(t, z.TransferSupported)
	assert.False(t, z.RestoreSupported)
	require.Len(t, z.Pricing.Periods, 2)
	assert.Equal(t, Period{Unit: PeriodYears, Value: 1}, z.Pricing.Periods[0])
	assert.Equal(t, Period{Unit: PeriodMonths, Value: 3}, z.Pricing.Periods[1])
}

func TestLoadFileRejectsEmptyName(t *testing.T) {
	path := writeZones(t, `[{"registry": "nominet"}]`)
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "empty name")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDevZonesResolve(t *testing.T) {
	r := NewRegistry(DevZones())
	z, sld, err := r.Lookup("test.example")
	require.NoError(t, err)
	assert.Equal(t, "example", z.Name)
	assert.Equal(t, "test", sld)
}
