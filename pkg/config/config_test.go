package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVariants(t *testing.T) {
	iir := Default(VariantIIR)
	assert.Equal(t, VariantIIR, iir.Variant)
	assert.Equal(t, 1000.0, iir.UnitFactor)
	assert.Equal(t, "t", iir.Unit)
	assert.Equal(t, "NFR Total", iir.Totals.Process)
	assert.Equal(t, 0.8, iir.KCA.Approach1)
	assert.True(t, iir.KCA.PerCompound)
	assert.Empty(t, iir.Subsets.LULUCFCodes)
	require.NoError(t, iir.Validate())

	nid := Default(VariantNID)
	assert.Equal(t, 1.0, nid.UnitFactor)
	assert.Equal(t, "kt CO2 eq.", nid.Unit)
	assert.Equal(t, "CRT Total incl. LULUCF", nid.Totals.Process)
	assert.Equal(t, 0.95, nid.KCA.Approach1)
	assert.Equal(t, 0.92, nid.KCA.Approach2Extended)
	assert.Len(t, nid.Subsets.LULUCFCodes, 2)
	assert.Contains(t, nid.Subsets.CompoundTotals, "CO2 fossil ox. total")
	require.NoError(t, nid.Validate())
}

func TestDefaultsAreIndependent(t *testing.T) {
	a := Default(VariantIIR)
	a.Subsets.FuelSold[0] = "changed"
	b := Default(VariantIIR)
	assert.Equal(t, "1A3b", b.Subsets.FuelSold[0])
}

func TestParseOverlaysVariantDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
variant: nid
simulations: 500
seed: 42
totals:
  process: Total
`))
	require.NoError(t, err)
	assert.Equal(t, VariantNID, cfg.Variant)
	assert.Equal(t, 500, cfg.Simulations)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "Total", cfg.Totals.Process)
	assert.Equal(t, "All resources", cfg.Totals.ResourceIntermediate)
	assert.Equal(t, 1.0, cfg.UnitFactor)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, VariantIIR, cfg.Variant)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "euq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: iir\ncoverage: 0.9\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Coverage)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EUQ_SIMULATIONS", "1234")
	t.Setenv("EUQ_BLOB_DRIVER", "memory")
	t.Setenv("EUQ_BLOB_S3_PATH_STYLE", "TRUE")
	cfg := Default(VariantIIR)
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 1234, cfg.Simulations)
	assert.Equal(t, "memory", cfg.Publish.Driver)
	assert.True(t, cfg.Publish.PathStyle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"variant", func(c *Config) { c.Variant = "other" }},
		{"simulations", func(c *Config) { c.Simulations = 1 }},
		{"coverage", func(c *Config) { c.Coverage = 1 }},
		{"ppf", func(c *Config) { c.PPFLower = 0.9; c.PPFUpper = 0.1 }},
		{"coverage factor", func(c *Config) { c.CoverageFactor = 0 }},
		{"unit factor", func(c *Config) { c.UnitFactor = -1 }},
		{"process total", func(c *Config) { c.Totals.Process = "" }},
		{"kca", func(c *Config) { c.KCA.Approach2 = 1.5 }},
		{"publish driver", func(c *Config) { c.Publish.Driver = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(VariantIIR)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIsCorrelated(t *testing.T) {
	cfg := Default(VariantIIR)
	assert.True(t, cfg.IsCorrelated("korreliert"))
	assert.True(t, cfg.IsCorrelated(" Correlated "))
	assert.False(t, cfg.IsCorrelated(""))
	assert.False(t, cfg.IsCorrelated("no"))
}
