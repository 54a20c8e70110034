package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variant selects the regulatory constant set of a run.
type Variant string

const (
	// VariantIIR reports air pollutants (CLRTAP informative inventory report).
	VariantIIR Variant = "iir"
	// VariantNID reports greenhouse gases (UNFCCC national inventory document).
	VariantNID Variant = "nid"
)

// Config is the complete set of constants a run depends on. It is passed by
// value into the engine and never mutated there.
type Config struct {
	Variant         Variant  `yaml:"variant" json:"variant"`
	Simulations     int      `yaml:"simulations" json:"simulations"`         // Monte Carlo draws per category
	Seed            uint64   `yaml:"seed" json:"seed"`                       // 0 = seed from clock
	Workers         int      `yaml:"workers" json:"workers"`                 // parallel sampling workers
	Coverage        float64  `yaml:"coverage" json:"coverage"`               // interval coverage, e.g. 0.95
	PPFLower        float64  `yaml:"ppf_lower" json:"ppf_lower"`             // lower quantile edge
	PPFUpper        float64  `yaml:"ppf_upper" json:"ppf_upper"`             // upper quantile edge
	CoverageFactor  float64  `yaml:"coverage_factor" json:"coverage_factor"` // 95% half-width to one sigma
	UnitFactor      float64  `yaml:"unit_factor" json:"unit_factor"`
	Unit            string   `yaml:"unit" json:"unit"`
	UseFuelUsed     bool     `yaml:"use_fuel_used" json:"use_fuel_used"`
	QATolerance     float64  `yaml:"qa_tolerance" json:"qa_tolerance"`
	CorrelatedFlags []string `yaml:"correlated_flags" json:"correlated_flags"`

	Totals  Totals  `yaml:"totals" json:"totals"`
	KCA     KCA     `yaml:"kca" json:"kca"`
	Subsets Subsets `yaml:"subsets" json:"subsets"`
	Publish Publish `yaml:"publish" json:"publish"`
}

// Totals names the root node of each taxonomy.
type Totals struct {
	Process              string `yaml:"process" json:"process"`
	Compound             string `yaml:"compound" json:"compound"`
	Resource             string `yaml:"resource" json:"resource"`
	ResourceIntermediate string `yaml:"resource_intermediate" json:"resource_intermediate"`
}

// KCA holds the cumulative thresholds of the key category analysis.
type KCA struct {
	Approach1         float64 `yaml:"approach1" json:"approach1"`
	Approach2         float64 `yaml:"approach2" json:"approach2"`
	Approach1Extended float64 `yaml:"approach1_extended" json:"approach1_extended"`
	Approach2Extended float64 `yaml:"approach2_extended" json:"approach2_extended"`
	// PerCompound runs the assessment separately for every compound.
	PerCompound bool `yaml:"per_compound" json:"per_compound"`
}

// Subsets lists the codes that define reporting subsets and input filters.
type Subsets struct {
	SectorCodes    []string `yaml:"sector_codes" json:"sector_codes"`
	LULUCFCodes    []string `yaml:"lulucf_codes" json:"lulucf_codes"`
	CompoundTotals []string `yaml:"compound_totals" json:"compound_totals"`
	FuelSold       []string `yaml:"fuel_sold" json:"fuel_sold"`
	FuelUsed       []string `yaml:"fuel_used" json:"fuel_used"`
}

// Publish configures where finished runs are written.
type Publish struct {
	Driver    string `yaml:"driver" json:"driver"` // "", fs, memory, s3
	Root      string `yaml:"root" json:"root"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	PathStyle bool   `yaml:"path_style" json:"path_style"`
}

var (
	fuelSold = []string{"1A3b", "1A3bi", "1A3bii", "1A3biii", "1A3biv", "1A3bv", "1A3bvi", "1A3bvii"}
	fuelUsed = []string{"1A3b(fu)", "1A3bi(fu)", "1A3bii(fu)", "1A3biii(fu)", "1A3biv(fu)", "1A3bv(fu)", "1A3bvi(fu)", "1A3bvii(fu)"}
)

// Default returns the constant set of a regulatory variant. Unknown variants
// fall back to IIR.
func Default(v Variant) Config {
	cfg := Config{
		Variant:         VariantIIR,
		Simulations:     10000,
		Workers:         runtime.NumCPU(),
		Coverage:        0.95,
		PPFLower:        0.025,
		PPFUpper:        0.975,
		CoverageFactor:  1.96,
		UnitFactor:      1000,
		Unit:            "t",
		QATolerance:     1e-6,
		CorrelatedFlags: []string{"korreliert", "correlated"},
		Totals: Totals{
			Process:              "NFR Total",
			Compound:             "Total",
			Resource:             "Total",
			ResourceIntermediate: "All resources",
		},
		KCA: KCA{
			Approach1:         0.8,
			Approach2:         0.8,
			Approach1Extended: 0.85,
			Approach2Extended: 0.85,
			PerCompound:       true,
		},
		Subsets: Subsets{
			SectorCodes:    []string{"1", "2", "3", "4", "5", "6"},
			CompoundTotals: []string{"NOx", "NMVOC", "SOx", "NH3", "PM2.5", "PM10"},
			FuelSold:       append([]string(nil), fuelSold...),
			FuelUsed:       append([]string(nil), fuelUsed...),
		},
	}
	if v == VariantNID {
		cfg.Variant = VariantNID
		cfg.UnitFactor = 1
		cfg.Unit = "kt CO2 eq."
		cfg.Totals.Process = "CRT Total incl. LULUCF"
		cfg.KCA = KCA{
			Approach1:         0.95,
			Approach2:         0.9,
			Approach1Extended: 0.97,
			Approach2Extended: 0.92,
		}
		cfg.Subsets.LULUCFCodes = []string{"Total excl. LULUCF", "Total incl. LULUCF"}
		cfg.Subsets.CompoundTotals = []string{"CO2", "CH4", "N2O", "HFCs", "PFCs", "SF6", "NF3", "CO2 fossil ox. total"}
	}
	return cfg
}

// Load reads a YAML file on top of the defaults of the variant it names.
// A missing file yields the IIR defaults. Environment overrides are applied
// after the file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default(VariantIIR)
			cfg.ApplyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults of the variant named in the document.
func Parse(data []byte) (Config, error) {
	var head struct {
		Variant Variant `yaml:"variant"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg := Default(head.Variant)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets the environment override run size and publishing.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("EUQ_SIMULATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Simulations = n
		}
	}
	if v := os.Getenv("EUQ_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Seed = n
		}
	}
	if v := os.Getenv("EUQ_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("EUQ_BLOB_DRIVER"); v != "" {
		c.Publish.Driver = v
	}
	if v := os.Getenv("EUQ_BLOB_ROOT"); v != "" {
		c.Publish.Root = v
	}
	if v := os.Getenv("EUQ_BLOB_S3_BUCKET"); v != "" {
		c.Publish.Bucket = v
	}
	if v := os.Getenv("EUQ_BLOB_S3_REGION"); v != "" {
		c.Publish.Region = v
	}
	if v := os.Getenv("EUQ_BLOB_S3_ENDPOINT"); v != "" {
		c.Publish.Endpoint = v
	}
	if v := os.Getenv("EUQ_BLOB_S3_PATH_STYLE"); v != "" {
		c.Publish.PathStyle = strings.EqualFold(v, "true")
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Variant != VariantIIR && c.Variant != VariantNID {
		return fmt.Errorf("variant must be iir or nid (got: %s)", c.Variant)
	}
	if c.Simulations < 2 {
		return errors.New("simulations must be >= 2")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if c.Coverage <= 0 || c.Coverage >= 1 {
		return fmt.Errorf("coverage must be in (0, 1) (got: %v)", c.Coverage)
	}
	if c.PPFLower <= 0 || c.PPFUpper >= 1 || c.PPFLower >= c.PPFUpper {
		return fmt.Errorf("ppf edges must satisfy 0 < lower < upper < 1 (got: %v, %v)", c.PPFLower, c.PPFUpper)
	}
	if c.CoverageFactor <= 0 {
		return errors.New("coverage_factor must be > 0")
	}
	if c.UnitFactor <= 0 {
		return errors.New("unit_factor must be > 0")
	}
	if c.QATolerance < 0 {
		return errors.New("qa_tolerance must be >= 0")
	}
	if c.Totals.Process == "" {
		return errors.New("totals.process required")
	}
	if c.Totals.Resource == "" || c.Totals.ResourceIntermediate == "" {
		return errors.New("totals.resource and totals.resource_intermediate required")
	}
	for name, v := range map[string]float64{
		"kca.approach1":          c.KCA.Approach1,
		"kca.approach2":          c.KCA.Approach2,
		"kca.approach1_extended": c.KCA.Approach1Extended,
		"kca.approach2_extended": c.KCA.Approach2Extended,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1] (got: %v)", name, v)
		}
	}
	switch c.Publish.Driver {
	case "", "fs", "memory", "s3":
	default:
		return fmt.Errorf("publish.driver must be fs, memory or s3 (got: %s)", c.Publish.Driver)
	}
	return nil
}

// IsCorrelated reports whether a correlation flag from the input table marks
// a parameter as correlated between base year and reporting year.
func (c Config) IsCorrelated(flag string) bool {
	flag = strings.TrimSpace(flag)
	for _, f := range c.CorrelatedFlags {
		if strings.EqualFold(flag, f) {
			return true
		}
	}
	return false
}
