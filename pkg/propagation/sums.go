package propagation

import (
	"math"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/aggregate"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/estimator"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
)

// Sums is the payload the analytic path aggregates: the point value and the
// summed variance contributions of one quantity.
type Sums struct {
	Value    float64
	VarLower float64
	VarUpper float64
}

// Ops adds Sums field by field.
func Ops() aggregate.Ops[Sums] {
	return aggregate.Ops[Sums]{
		Zero: func() Sums { return Sums{} },
		Add: func(acc, v Sums) Sums {
			return Sums{Value: acc.Value + v.Value, VarLower: acc.VarLower + v.VarLower, VarUpper: acc.VarUpper + v.VarUpper}
		},
	}
}

// Rows returns the leaf rows of quantity y.
func Rows(cats []inventory.Category, res []Category, y inventory.Year) []aggregate.Row[Sums] {
	out := make([]aggregate.Row[Sums], len(cats))
	for i, c := range cats {
		lo, hi := res[i].Var(y)
		out[i] = aggregate.Row[Sums]{
			Key:    c.Key,
			Status: c.Status[y],
			Import: true,
			Data:   Sums{Value: c.Value(y), VarLower: lo, VarUpper: hi},
		}
	}
	return out
}

// Variance is a pair of variance contributions from the lower and the upper
// bounds.
type Variance struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Normalised is the analytic uncertainty of an aggregated row.
type Normalised struct {
	U         estimator.Uncertainty `json:"u"`
	VarNormed Variance              `json:"var_normed"`
}

// Normalise turns summed variances into percent uncertainties. Emission rows
// divide by their own value and need status ES and a non-zero value; their
// contribution is expressed relative to the squared inventory total. Trend
// variances are already in squared percentage points and are only rooted.
func Normalise(y inventory.Year, st inventory.Status, s Sums, total float64) Normalised {
	var n Normalised
	if y == inventory.Trend {
		n.U.Lower, n.U.Upper = math.Sqrt(s.VarLower), math.Sqrt(s.VarUpper)
		n.U.Mean = (n.U.Lower + n.U.Upper) / 2
		n.VarNormed = Variance{Lower: s.VarLower, Upper: s.VarUpper}
		return n
	}
	if st == inventory.StatusES && s.Value != 0 {
		v2 := s.Value * s.Value
		n.U.Lower, n.U.Upper = math.Sqrt(s.VarLower/v2), math.Sqrt(s.VarUpper/v2)
		n.U.Mean = (n.U.Lower + n.U.Upper) / 2
	}
	if total != 0 {
		t2 := total * total
		n.VarNormed = Variance{Lower: s.VarLower / t2, Upper: s.VarUpper / t2}
	}
	return n
}
