// Package inventory turns raw emission and uncertainty tables into checked,
// typed categories ready for propagation and simulation.
//
// Every pass is a function from one snapshot to the next; inputs are never
// modified in place. Non-fatal findings go to the diagnostic logger, fatal
// ones are returned as errors carrying the offending keys.
package inventory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sampler"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

// Year selects a year-parameterised quantity.
type Year int

const (
	BY    Year = iota // base year
	RY                // reporting year
	Trend             // BY to RY trend normalised by the BY inventory
)

// Years lists the two inventory years.
var Years = [2]Year{BY, RY}

// Quantities lists every year-parameterised quantity.
var Quantities = [3]Year{BY, RY, Trend}

func (y Year) String() string {
	switch y {
	case BY:
		return "BY"
	case RY:
		return "RY"
	case Trend:
		return "trend"
	}
	return fmt.Sprintf("year(%d)", int(y))
}

func (y Year) MarshalText() ([]byte, error) { return []byte(y.String()), nil }

// ParseYear is the inverse of String.
func ParseYear(s string) (Year, bool) {
	for _, y := range Quantities {
		if strings.EqualFold(s, y.String()) {
			return y, true
		}
	}
	return 0, false
}

func (y *Year) UnmarshalText(b []byte) error {
	v, ok := ParseYear(string(b))
	if !ok {
		return fmt.Errorf("unknown year %q", string(b))
	}
	*y = v
	return nil
}

// Status is the status tag of an emission or uncertainty value: ES for an
// estimate, a notation key, or MI for missing input.
type Status string

const (
	StatusNA Status = "NA" // not applicable
	StatusNO Status = "NO" // not occurring
	StatusNE Status = "NE" // not estimated
	StatusIE Status = "IE" // included elsewhere
	StatusC  Status = "C"  // confidential
	StatusES Status = "ES" // estimated
	StatusMI Status = "MI" // missing
)

// NotationKeys are the recognised status tags.
var NotationKeys = []Status{StatusNA, StatusNO, StatusNE, StatusIE, StatusC, StatusES}

// ParseStatus recognises a notation key.
func ParseStatus(s string) (Status, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, k := range NotationKeys {
		if string(k) == s {
			return k, true
		}
	}
	return StatusMI, false
}

// Reported is true for any recognised notation key, ES included.
func (s Status) Reported() bool {
	for _, k := range NotationKeys {
		if s == k {
			return true
		}
	}
	return false
}

// Param is one input type of a category.
type Param int

const (
	AD Param = iota // activity data
	EF              // emission factor
	EM              // direct emission
)

// Params lists the input types.
var Params = [3]Param{AD, EF, EM}

func (p Param) String() string {
	switch p {
	case AD:
		return "AD"
	case EF:
		return "EF"
	case EM:
		return "EM"
	}
	return fmt.Sprintf("param(%d)", int(p))
}

func (p Param) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Key identifies a category.
type Key struct {
	Process  string `json:"process"`
	Compound string `json:"compound"`
	Resource string `json:"resource"`
}

func (k Key) String() string {
	return k.Process + " | " + k.Compound + " | " + k.Resource
}

// Get returns the id on one axis.
func (k Key) Get(a taxonomy.Axis) string {
	switch a {
	case taxonomy.Compound:
		return k.Compound
	case taxonomy.Resource:
		return k.Resource
	}
	return k.Process
}

// With returns k with the id on axis a replaced.
func (k Key) With(a taxonomy.Axis, id string) Key {
	switch a {
	case taxonomy.Compound:
		k.Compound = id
	case taxonomy.Resource:
		k.Resource = id
	default:
		k.Process = id
	}
	return k
}

// Value is a table cell: a number, a notation key, or nothing.
type Value struct {
	Amount float64
	Note   string
	Valid  bool
}

// Num is a numeric cell.
func Num(v float64) Value { return Value{Amount: v, Valid: true} }

// Note is a text cell, normally a notation key.
func Note(s string) Value { return Value{Note: s} }

// Missing is true for an empty cell.
func (v Value) Missing() bool { return !v.Valid && v.Note == "" }

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("value must be a number, a string or null: %s", string(b))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*v = Value{}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*v = Num(f)
		return nil
	}
	*v = Note(s)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Valid:
		return json.Marshal(v.Amount)
	case v.Note != "":
		return json.Marshal(v.Note)
	}
	return []byte("null"), nil
}

// EmissionRecord is one row of an emission table.
type EmissionRecord struct {
	Key
	Value Value `json:"value"`
}

// ParamInput is the raw uncertainty of one input type. Sym is the symmetric
// 95% half-width in percent used by normal, uniform and gamma; Lower and
// Upper are used by triangular and lognormal.
type ParamInput struct {
	Dist  string `json:"dist,omitempty"`
	Sym   Value  `json:"sym"`
	Lower Value  `json:"lower"`
	Upper Value  `json:"upper"`
	Corr  string `json:"corr,omitempty"`
}

// UncertaintyRecord is one row of an uncertainty table.
type UncertaintyRecord struct {
	Key
	AD ParamInput `json:"ad"`
	EF ParamInput `json:"ef"`
	EM ParamInput `json:"em"`
}

// Input returns the raw input of p.
func (r UncertaintyRecord) Input(p Param) ParamInput {
	switch p {
	case EF:
		return r.EF
	case EM:
		return r.EM
	}
	return r.AD
}

// Uncertainty is a prepared parameter. Lower and Upper are fractions of the
// mean; for symmetric kinds both hold one standard deviation.
type Uncertainty struct {
	Kind       sampler.Kind `json:"kind"`
	Status     Status       `json:"status"`
	Lower      float64      `json:"lower"`
	Upper      float64      `json:"upper"`
	Correlated bool         `json:"correlated"`
}

// Numeric is true when the parameter can be propagated and sampled.
func (u Uncertainty) Numeric() bool {
	return u.Status == StatusES && u.Kind.Supported()
}

// YearUncertainty holds the three parameters of one category in one year.
type YearUncertainty struct {
	Param    [3]Uncertainty `json:"param"`
	Complete bool           `json:"complete"`
}

// Direct is true when the emission itself carries the uncertainty.
func (y YearUncertainty) Direct() bool { return y.Param[EM].Numeric() }

// Category is a checked input row.
type Category struct {
	Key
	Emission    [2]float64         `json:"emission"`
	Status      [3]Status          `json:"status"`
	Trend       float64            `json:"trend"`
	Uncertainty [2]YearUncertainty `json:"uncertainty"`
}

// Value returns the point value of a quantity.
func (c Category) Value(y Year) float64 {
	if y == Trend {
		return c.Trend
	}
	return c.Emission[y]
}

// Reported is true when the emission of year y carries a recognised status.
func (c Category) Reported(y Year) bool { return c.Status[y].Reported() }

// Estimated is true when the emission of year y is a numeric estimate.
func (c Category) Estimated(y Year) bool { return c.Status[y] == StatusES }

// Totals are the inventory sums.
type Totals struct {
	BY float64 `json:"by"`
	RY float64 `json:"ry"`
}

// Trend is the inventory trend in percent of the base year.
func (t Totals) Trend() float64 {
	if t.BY == 0 {
		return 0
	}
	return (t.RY - t.BY) / t.BY * 100
}

// Get returns the total of a year.
func (t Totals) Get(y Year) float64 {
	switch y {
	case BY:
		return t.BY
	case RY:
		return t.RY
	}
	return t.Trend()
}
