package inventory

import (
	"log/slog"
)

// Records are the raw input tables. UncertaintyBY may be nil, in which case
// the base year uses the reporting year's uncertainty.
type Records struct {
	EmissionsBY   []EmissionRecord    `json:"emissions_by"`
	EmissionsRY   []EmissionRecord    `json:"emissions_ry"`
	UncertaintyBY []UncertaintyRecord `json:"uncertainty_by,omitempty"`
	UncertaintyRY []UncertaintyRecord `json:"uncertainty_ry"`
}

// Inventory is the checked input of a run.
type Inventory struct {
	Categories []Category `json:"categories"`
	Totals     Totals     `json:"totals"`
}

func emissionKeys(recs []EmissionRecord) []Key {
	out := make([]Key, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func uncertaintyKeys(recs []UncertaintyRecord) []Key {
	out := make([]Key, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

// unmatched returns the keys of a missing from b followed by those of b
// missing from a.
func unmatched(a, b []Key) []Key {
	inA, inB := make(map[Key]bool, len(a)), make(map[Key]bool, len(b))
	for _, k := range a {
		inA[k] = true
	}
	for _, k := range b {
		inB[k] = true
	}
	var out []Key
	for _, k := range a {
		if !inB[k] {
			out = append(out, k)
		}
	}
	for _, k := range b {
		if !inA[k] {
			out = append(out, k)
		}
	}
	return out
}

func (c *Checker) fail(err *KeyError) error {
	keys := make([]string, 0, len(err.Keys))
	for _, k := range err.Keys {
		keys = append(keys, k.String())
	}
	c.log.Error(err.Err.Error(), "what", err.What, "keys", keys)
	return err
}

// trendStatus keeps a common status and falls back to ES otherwise.
func trendStatus(by, ry Status) Status {
	if by == ry {
		return by
	}
	return StatusES
}

// Build runs every input pass and merges the tables into categories. It
// fails before any computation on duplicate keys, on rows present in one
// table but not its counterpart, and on categories with a non-zero emission
// but no valid uncertainty combination.
func (c *Checker) Build(r Records) (*Inventory, error) {
	r = FillResources(c.ResourceDefault(r.EmissionsBY, r.EmissionsRY), r)
	r, err := c.SelectFuelBasis(r)
	if err != nil {
		c.log.Error(err.Error())
		return nil, err
	}

	tables := []struct {
		name string
		keys []Key
	}{
		{"emissions BY", emissionKeys(r.EmissionsBY)},
		{"emissions RY", emissionKeys(r.EmissionsRY)},
		{"uncertainty BY", uncertaintyKeys(r.UncertaintyBY)},
		{"uncertainty RY", uncertaintyKeys(r.UncertaintyRY)},
	}
	for _, t := range tables {
		if d := duplicates(t.keys); len(d) > 0 {
			return nil, c.fail(&KeyError{Err: ErrDuplicateKey, What: t.name, Keys: d})
		}
	}
	if u := unmatched(tables[0].keys, tables[1].keys); len(u) > 0 {
		return nil, c.fail(&KeyError{Err: ErrUnmatched, What: "emissions between base year and reporting year", Keys: u})
	}
	if r.UncertaintyBY != nil {
		if u := unmatched(tables[2].keys, tables[3].keys); len(u) > 0 {
			return nil, c.fail(&KeyError{Err: ErrUnmatched, What: "uncertainty between base year and reporting year", Keys: u})
		}
	}
	if u := unmatched(tables[1].keys, tables[3].keys); len(u) > 0 {
		return nil, c.fail(&KeyError{Err: ErrUnmatched, What: "emissions and uncertainty", Keys: u})
	}

	emBY := c.CheckEmissions(BY, r.EmissionsBY)
	emRY := c.CheckEmissions(RY, r.EmissionsRY)
	byIndex := make(map[Key]Emission, len(emBY))
	for _, e := range emBY {
		byIndex[e.Key] = e
	}

	uRY := c.PrepareUncertainty(RY, r.UncertaintyRY)
	uBY := uRY
	if r.UncertaintyBY != nil {
		uBY = c.PrepareUncertainty(BY, r.UncertaintyBY)
	} else {
		c.log.Info("no base year uncertainty table, using reporting year uncertainty")
	}

	inv := &Inventory{Categories: make([]Category, 0, len(emRY))}
	var incomplete []Key
	for _, ry := range emRY {
		by := byIndex[ry.Key]
		cat := Category{
			Key:      ry.Key,
			Emission: [2]float64{by.Amount, ry.Amount},
			Status:   [3]Status{by.Status, ry.Status, trendStatus(by.Status, ry.Status)},
		}
		uby := c.Fallback(ry.Key, uBY[ry.Key], uRY[ry.Key])
		cat.Uncertainty[BY] = c.Complete(BY, ry.Key, uby)
		cat.Uncertainty[RY] = c.Complete(RY, ry.Key, uRY[ry.Key])
		cat.Uncertainty[BY], cat.Uncertainty[RY] = c.CheckCorrelation(ry.Key, cat.Uncertainty[BY], cat.Uncertainty[RY])
		for _, y := range Years {
			if !cat.Uncertainty[y].Complete && cat.Emission[y] != 0 {
				incomplete = append(incomplete, ry.Key)
				break
			}
		}
		inv.Totals.BY += cat.Emission[BY]
		inv.Totals.RY += cat.Emission[RY]
		inv.Categories = append(inv.Categories, cat)
	}
	if len(incomplete) > 0 {
		return nil, c.fail(&KeyError{Err: ErrIncomplete, What: "non-zero emission without valid uncertainty", Keys: incomplete})
	}
	for i := range inv.Categories {
		cat := &inv.Categories[i]
		if inv.Totals.BY != 0 {
			cat.Trend = (cat.Emission[RY] - cat.Emission[BY]) / inv.Totals.BY * 100
		}
	}
	c.log.Info("inventory built",
		slog.Int("categories", len(inv.Categories)),
		slog.Float64("total_by", inv.Totals.BY),
		slog.Float64("total_ry", inv.Totals.RY))
	return inv, nil
}
