// Package propagation implements the analytic (IPCC Approach 1) uncertainty
// of categories, aggregates and the trend.
package propagation

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sampler"
)

// Bounds is a two-sided uncertainty in percent of the mean.
type Bounds struct {
	Lower float64 `json:"lower_pct"`
	Upper float64 `json:"upper_pct"`
}

func (b Bounds) Mean() float64 { return (b.Lower + b.Upper) / 2 }

// rss combines independent uncertainties.
func rss(a, b Bounds) Bounds {
	return Bounds{Lower: math.Hypot(a.Lower, b.Lower), Upper: math.Hypot(a.Upper, b.Upper)}
}

// YearBounds is the analytic result of one category in one year.
type YearBounds struct {
	Param    [3]Bounds `json:"param"`
	Has      [3]bool   `json:"has"`
	EM       Bounds    `json:"em"`
	VarLower float64   `json:"var_lower"`
	VarUpper float64   `json:"var_upper"`
}

// TrendBounds holds the trend sensitivities of one category and its
// contribution to the trend variance in squared percentage points.
type TrendBounds struct {
	SensCorr   float64 `json:"sens_corr"`
	SensNoCorr float64 `json:"sens_no_corr"`
	AD         Bounds  `json:"ad"`
	EF         Bounds  `json:"ef"`
	VarLower   float64 `json:"var_lower"`
	VarUpper   float64 `json:"var_upper"`
}

// Category is the analytic result of one input category.
type Category struct {
	Key   inventory.Key `json:"key"`
	Years [2]YearBounds `json:"years"`
	Trend TrendBounds   `json:"trend"`
}

// Var returns the variance contribution of quantity y.
func (c Category) Var(y inventory.Year) (lower, upper float64) {
	if y == inventory.Trend {
		return c.Trend.VarLower, c.Trend.VarUpper
	}
	return c.Years[y].VarLower, c.Years[y].VarUpper
}

// Propagator evaluates closed-form quantiles at the configured edges.
type Propagator struct {
	ppfLower float64
	ppfUpper float64
	log      *slog.Logger
}

func NewPropagator(cfg config.Config, log *slog.Logger) *Propagator {
	if log == nil {
		log = slog.Default()
	}
	return &Propagator{ppfLower: cfg.PPFLower, ppfUpper: cfg.PPFUpper, log: log}
}

// ParamBounds returns the percent uncertainty of one prepared parameter.
// Normal bounds scale one standard deviation to two; every other kind reads
// the quantiles of its unit-mean distribution.
func (p *Propagator) ParamBounds(u inventory.Uncertainty) (Bounds, error) {
	if !u.Numeric() {
		return Bounds{}, nil
	}
	if u.Kind == sampler.KindNormal {
		return Bounds{Lower: u.Lower * 200, Upper: u.Upper * 200}, nil
	}
	d, err := sampler.New(u.Kind, 1, u.Lower, u.Upper)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{
		Lower: (1 - d.Quantile(p.ppfLower)) * 100,
		Upper: (d.Quantile(p.ppfUpper) - 1) * 100,
	}, nil
}

// Year computes the bounds and the variance contribution of one category in
// year y. A category with zero emission contributes nothing.
func (p *Propagator) Year(c inventory.Category, y inventory.Year) (YearBounds, error) {
	var out YearBounds
	em := c.Emission[y]
	if em == 0 {
		return out, nil
	}
	yu := c.Uncertainty[y]
	for _, prm := range inventory.Params {
		u := yu.Param[prm]
		if !u.Numeric() {
			continue
		}
		b, err := p.ParamBounds(u)
		if err != nil {
			return out, fmt.Errorf("%s %s %s: %w", c.Key, y, prm, err)
		}
		out.Param[prm], out.Has[prm] = b, true
	}
	switch {
	case out.Has[inventory.AD] && out.Has[inventory.EF]:
		out.EM = rss(out.Param[inventory.AD], out.Param[inventory.EF])
	case out.Has[inventory.EM]:
		out.EM = out.Param[inventory.EM]
	}
	if c.Estimated(y) {
		out.VarLower = math.Pow(out.EM.Lower*em, 2)
		out.VarUpper = math.Pow(out.EM.Upper*em, 2)
	}
	return out, nil
}

// sensitivities returns the trend sensitivity of a category fully correlated
// between the years, obtained by perturbing it by one percent, and the
// sensitivity of an uncorrelated category.
func sensitivities(by, ry float64, tot inventory.Totals) (corr, noCorr float64) {
	if tot.BY == 0 {
		return 0, 0
	}
	base := 0.01*by + tot.BY
	if base != 0 {
		perturbed := (0.01*ry + tot.RY - base) / base * 100
		corr = math.Abs(perturbed - (tot.RY-tot.BY)/tot.BY*100)
	}
	return corr, math.Abs(ry / tot.BY)
}

// Trend computes the trend contribution of a category from its year bounds.
// The category takes part when either year is estimated and contributes when
// the reporting year is. Categories with AD and EF in both years combine the
// two parameters; all others use the combined reporting year uncertainty.
func (p *Propagator) Trend(c inventory.Category, years [2]YearBounds, tot inventory.Totals) TrendBounds {
	var out TrendBounds
	if !c.Estimated(inventory.BY) && !c.Estimated(inventory.RY) {
		return out
	}
	out.SensCorr, out.SensNoCorr = sensitivities(c.Emission[inventory.BY], c.Emission[inventory.RY], tot)
	if !c.Estimated(inventory.RY) {
		return out
	}
	ry := years[inventory.RY]
	uRY := c.Uncertainty[inventory.RY]
	factor := func(correlated bool) float64 {
		if correlated {
			return out.SensCorr
		}
		return out.SensNoCorr * math.Sqrt2
	}
	direct := c.Uncertainty[inventory.BY].Direct() || uRY.Direct()
	if !direct {
		fa := factor(uRY.Param[inventory.AD].Correlated)
		fe := factor(uRY.Param[inventory.EF].Correlated)
		ad, ef := ry.Param[inventory.AD], ry.Param[inventory.EF]
		out.AD = Bounds{Lower: fa * ad.Lower, Upper: fa * ad.Upper}
		out.EF = Bounds{Lower: fe * ef.Lower, Upper: fe * ef.Upper}
		out.VarLower = out.AD.Lower*out.AD.Lower + out.EF.Lower*out.EF.Lower
		out.VarUpper = out.AD.Upper*out.AD.Upper + out.EF.Upper*out.EF.Upper
		return out
	}
	f := factor(uRY.Param[inventory.EM].Correlated)
	out.VarLower = math.Pow(f*ry.EM.Lower, 2)
	out.VarUpper = math.Pow(f*ry.EM.Upper, 2)
	return out
}

// Categories runs the analytic propagation over the whole inventory.
func (p *Propagator) Categories(inv *inventory.Inventory) ([]Category, error) {
	out := make([]Category, 0, len(inv.Categories))
	for _, c := range inv.Categories {
		r := Category{Key: c.Key}
		for _, y := range inventory.Years {
			yb, err := p.Year(c, y)
			if err != nil {
				p.log.Error("analytic propagation failed", "key", c.Key, "year", y, "err", err)
				return nil, err
			}
			r.Years[y] = yb
		}
		r.Trend = p.Trend(c, r.Years, inv.Totals)
		out = append(out, r)
	}
	return out, nil
}
