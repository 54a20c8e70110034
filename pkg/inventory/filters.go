package inventory

import (
	"fmt"
	"strings"
)

func blankResource(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || strings.EqualFold(id, string(StatusMI))
}

// ResourceDefault returns the id blank resources are replaced with: the
// intermediate resource total, or the resource total when no row of recs
// names a resource at all.
func (c *Checker) ResourceDefault(recs ...[]EmissionRecord) string {
	for _, rs := range recs {
		for _, r := range rs {
			if !blankResource(r.Resource) {
				return c.cfg.Totals.ResourceIntermediate
			}
		}
	}
	return c.cfg.Totals.Resource
}

func fillResource(k Key, def string) Key {
	if blankResource(k.Resource) {
		k.Resource = def
	}
	return k
}

// FillResources returns copies of the tables with blank resources replaced.
func FillResources(def string, r Records) Records {
	out := Records{
		EmissionsBY:   make([]EmissionRecord, len(r.EmissionsBY)),
		EmissionsRY:   make([]EmissionRecord, len(r.EmissionsRY)),
		UncertaintyRY: make([]UncertaintyRecord, len(r.UncertaintyRY)),
	}
	for i, e := range r.EmissionsBY {
		e.Key = fillResource(e.Key, def)
		out.EmissionsBY[i] = e
	}
	for i, e := range r.EmissionsRY {
		e.Key = fillResource(e.Key, def)
		out.EmissionsRY[i] = e
	}
	for i, u := range r.UncertaintyRY {
		u.Key = fillResource(u.Key, def)
		out.UncertaintyRY[i] = u
	}
	if r.UncertaintyBY != nil {
		out.UncertaintyBY = make([]UncertaintyRecord, len(r.UncertaintyBY))
		for i, u := range r.UncertaintyBY {
			u.Key = fillResource(u.Key, def)
			out.UncertaintyBY[i] = u
		}
	}
	return out
}

func countCodes(codes map[string]bool, recs ...[]EmissionRecord) int {
	n := 0
	for _, rs := range recs {
		for _, r := range rs {
			if codes[r.Process] {
				n++
			}
		}
	}
	return n
}

func set(codes []string) map[string]bool {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

// SelectFuelBasis keeps either the fuel-sold or the fuel-used road transport
// rows and drops the other basis from every table.
func (c *Checker) SelectFuelBasis(r Records) (Records, error) {
	sold, used := set(c.cfg.Subsets.FuelSold), set(c.cfg.Subsets.FuelUsed)
	nSold := countCodes(sold, r.EmissionsBY, r.EmissionsRY)
	nUsed := countCodes(used, r.EmissionsBY, r.EmissionsRY)

	drop := used
	nKeep, nDrop, basis := nSold, nUsed, "fuel sold"
	if c.cfg.UseFuelUsed {
		drop = sold
		nKeep, nDrop, basis = nUsed, nSold, "fuel used"
	}
	switch {
	case nKeep == 0 && nDrop > 0:
		return Records{}, fmt.Errorf("%w: %s basis requested but only the other basis is present", ErrFuelBasis, basis)
	case nKeep > 0 && nKeep < nDrop:
		return Records{}, fmt.Errorf("%w: %s basis has %d rows, the other basis %d", ErrFuelBasis, basis, nKeep, nDrop)
	}
	if nDrop == 0 {
		return r, nil
	}
	c.log.Info("fuel basis selected", "basis", basis, "dropped", nDrop)

	out := Records{
		EmissionsBY:   filterEmissions(r.EmissionsBY, drop),
		EmissionsRY:   filterEmissions(r.EmissionsRY, drop),
		UncertaintyRY: filterUncertainty(r.UncertaintyRY, drop),
	}
	if r.UncertaintyBY != nil {
		out.UncertaintyBY = filterUncertainty(r.UncertaintyBY, drop)
	}
	return out, nil
}

func filterEmissions(recs []EmissionRecord, drop map[string]bool) []EmissionRecord {
	out := make([]EmissionRecord, 0, len(recs))
	for _, r := range recs {
		if !drop[r.Process] {
			out = append(out, r)
		}
	}
	return out
}

func filterUncertainty(recs []UncertaintyRecord, drop map[string]bool) []UncertaintyRecord {
	out := make([]UncertaintyRecord, 0, len(recs))
	for _, r := range recs {
		if !drop[r.Process] {
			out = append(out, r)
		}
	}
	return out
}

// duplicates returns the keys that occur more than once, in first-seen order.
func duplicates(keys []Key) []Key {
	seen := make(map[Key]int, len(keys))
	var out []Key
	for _, k := range keys {
		seen[k]++
		if seen[k] == 2 {
			out = append(out, k)
		}
	}
	return out
}
