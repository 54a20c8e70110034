package aggregate

import (
	"errors"
	"fmt"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

// ErrMixedAxis is returned when only part of the rows can be aggregated on
// an axis.
var ErrMixedAxis = errors.New("axis partly covered by its aggregation tree")

// Plan lists the axes to aggregate and the total id of every axis.
type Plan struct {
	Axes   []taxonomy.Axis
	Totals [3]string
}

// Total returns the key of the grand total row.
func (p Plan) Total() inventory.Key {
	return inventory.Key{
		Process:  p.Totals[taxonomy.Process],
		Compound: p.Totals[taxonomy.Compound],
		Resource: p.Totals[taxonomy.Resource],
	}
}

// Aggregates reports whether axis a is aggregated.
func (p Plan) Aggregates(a taxonomy.Axis) bool {
	for _, x := range p.Axes {
		if x == a {
			return true
		}
	}
	return false
}

// PlanAxes decides per axis whether to aggregate. Processes are always
// aggregated. Compounds are aggregated when every compound is part of the
// compound tree and skipped when none is, in which case the single compound
// is its own total. Resources are skipped when every row already carries
// the resource total and aggregated when none does.
func PlanAxes(f taxonomy.Forest, keys []inventory.Key, totals config.Totals) (Plan, error) {
	p := Plan{Axes: []taxonomy.Axis{taxonomy.Process}}
	p.Totals[taxonomy.Process] = totals.Process
	if len(keys) == 0 {
		p.Totals[taxonomy.Compound] = totals.Compound
		p.Totals[taxonomy.Resource] = totals.Resource
		return p, nil
	}

	ct := f.Get(taxonomy.Compound).Tree
	inTree := 0
	distinct := make(map[string]bool)
	for _, k := range keys {
		if _, ok := ct.Lookup(k.Compound); ok {
			inTree++
		}
		distinct[k.Compound] = true
	}
	switch {
	case inTree == len(keys):
		p.Axes = append(p.Axes, taxonomy.Compound)
		p.Totals[taxonomy.Compound] = totals.Compound
	case inTree == 0 && len(distinct) == 1:
		p.Totals[taxonomy.Compound] = keys[0].Compound
	case inTree == 0:
		return Plan{}, fmt.Errorf("%w: %d compounds without compound tree", ErrMixedAxis, len(distinct))
	default:
		return Plan{}, fmt.Errorf("%w: %d of %d compound ids in compound tree", ErrMixedAxis, inTree, len(keys))
	}

	total := totals.Resource
	if root, ok := f.Get(taxonomy.Resource).Tree.Root(); ok {
		total = root
	}
	p.Totals[taxonomy.Resource] = total
	atTotal := 0
	for _, k := range keys {
		if k.Resource == total {
			atTotal++
		}
	}
	switch atTotal {
	case len(keys):
	case 0:
		p.Axes = append(p.Axes, taxonomy.Resource)
	default:
		return Plan{}, fmt.Errorf("%w: %d of %d rows at resource total %s", ErrMixedAxis, atTotal, len(keys), total)
	}
	return p, nil
}
