package inventory

import (
	"log/slog"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sampler"
)

// Diagnostic messages other packages and tests match on.
const (
	MsgEmissionZero        = "emission is zero, write a notation key instead"
	MsgEmissionNotationKey = "emission reported as notation key"
	MsgEmissionUnknown     = "emission value not recognised"
	MsgTriangularRepaired  = "triangular uncertainty input not valid"
	MsgParamDropped        = "uncertainty parameter dropped"
	MsgIncomplete          = "no valid AD/EF/EM combination"
	MsgCorrelationDropped  = "correlation set to false"
	MsgFallback            = "base year uncertainty taken from reporting year"
)

// Checker runs the input passes of one configuration.
type Checker struct {
	cfg config.Config
	log *slog.Logger
}

func NewChecker(cfg config.Config, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{cfg: cfg, log: log}
}

// Emission is a checked emission cell converted to the output unit.
type Emission struct {
	Key
	Amount float64
	Status Status
}

// CheckEmissions assigns a status to every emission cell. Numbers get ES,
// notation keys count as zero, anything else becomes MI.
func (c *Checker) CheckEmissions(y Year, recs []EmissionRecord) []Emission {
	out := make([]Emission, 0, len(recs))
	for _, r := range recs {
		e := Emission{Key: r.Key}
		switch {
		case r.Value.Valid:
			e.Status = StatusES
			e.Amount = r.Value.Amount * c.cfg.UnitFactor
			if r.Value.Amount == 0 {
				c.log.Warn(MsgEmissionZero, "year", y, "key", r.Key)
			}
		default:
			if st, ok := ParseStatus(r.Value.Note); ok {
				e.Status = st
				c.log.Info(MsgEmissionNotationKey, "year", y, "key", r.Key, "status", st)
			} else {
				e.Status = StatusMI
				c.log.Warn(MsgEmissionUnknown, "year", y, "key", r.Key, "value", r.Value.Note)
			}
		}
		out = append(out, e)
	}
	return out
}

// PrepareUncertainty converts one year's raw uncertainty rows.
func (c *Checker) PrepareUncertainty(y Year, recs []UncertaintyRecord) map[Key]YearUncertainty {
	out := make(map[Key]YearUncertainty, len(recs))
	for _, r := range recs {
		var yu YearUncertainty
		for _, p := range Params {
			yu.Param[p] = c.prepareParam(y, r.Key, p, r.Input(p))
		}
		out[r.Key] = yu
	}
	return out
}

func cellStatus(v Value) (Status, float64) {
	switch {
	case v.Valid:
		return StatusES, v.Amount
	case v.Note != "":
		st, _ := ParseStatus(v.Note)
		return st, 0
	}
	return StatusMI, 0
}

func (c *Checker) prepareParam(y Year, key Key, p Param, in ParamInput) Uncertainty {
	log := c.log.With("year", y, "key", key, "param", p)
	kind, known := sampler.ParseKind(in.Dist)
	if !known {
		log.Warn("distribution name not recognised", "dist", in.Dist)
	} else if kind == sampler.KindFractile {
		log.Warn("fractile distribution not supported", "dist", in.Dist)
	}

	symmetric := kind.Symmetric()
	var st Status
	var lo, hi float64
	if symmetric || (kind == sampler.KindNone && !in.Sym.Missing()) {
		st, lo = cellStatus(in.Sym)
		hi = lo
	} else {
		sl, l := cellStatus(in.Lower)
		su, u := cellStatus(in.Upper)
		switch {
		case sl == StatusES && su == StatusES:
			st, lo, hi = StatusES, l, u
		case sl == su:
			st = sl
		default:
			st = StatusMI
		}
	}

	switch {
	case kind != sampler.KindNone && st == StatusMI:
		log.Warn("uncertainty missing for given distribution", "dist", kind)
	case st == StatusES && kind == sampler.KindNone && (lo > 0 || hi > 0):
		log.Warn("uncertainty given without a recognised distribution", "lower", lo, "upper", hi)
	case st == StatusES && (lo <= 0 || hi <= 0):
		log.Warn("uncertainty value <= 0", "lower", lo, "upper", hi)
	}

	if st == StatusES && kind == sampler.KindTriangular {
		kind, lo, hi = c.repairTriangular(log, lo, hi)
	}

	u := Uncertainty{
		Kind:       kind,
		Status:     st,
		Lower:      lo / 100,
		Upper:      hi / 100,
		Correlated: c.cfg.IsCorrelated(in.Corr),
	}
	if symmetric {
		u.Lower /= c.cfg.CoverageFactor
		u.Upper = u.Lower
	}
	return u
}

// repairTriangular works on percent bounds. A triangle whose mode leaves its
// own edges becomes normal when the lower bound dominates and gamma when the
// upper bound dominates; the dominant bound is used on both sides.
func (c *Checker) repairTriangular(log *slog.Logger, lo, hi float64) (sampler.Kind, float64, float64) {
	left, right := 1-lo/100, 1+hi/100
	mode := 3 - left - right
	if mode >= left-1e-12 && mode <= right+1e-12 {
		return sampler.KindTriangular, lo, hi
	}
	switch {
	case lo > hi:
		log.Warn(MsgTriangularRepaired,
			"cause", "mode right of the upper edge",
			"solution", "normal distribution with upper := lower",
			"lower", lo, "upper", hi)
		return sampler.KindNormal, lo, lo
	default:
		log.Warn(MsgTriangularRepaired,
			"cause", "mode left of the lower edge",
			"solution", "gamma distribution with lower := upper",
			"lower", lo, "upper", hi)
		return sampler.KindGamma, hi, hi
	}
}

// Complete applies the precedence between AD/EF and EM for one year. AD and
// EF together are authoritative; EM is dropped when all three are given,
// which is a reporting convention rather than a mathematical requirement.
func (c *Checker) Complete(y Year, key Key, u YearUncertainty) YearUncertainty {
	ad, ef, em := u.Param[AD].Numeric(), u.Param[EF].Numeric(), u.Param[EM].Numeric()
	drop := func(p Param, reason string) {
		u.Param[p].Status = StatusMI
		c.log.Info(MsgParamDropped, "year", y, "key", key, "param", p, "reason", reason)
	}
	switch {
	case ad && ef && em:
		drop(EM, "AD and EF given, EM dropped by reporting convention")
		u.Complete = true
	case ad && ef:
		u.Complete = true
	case ad && em:
		drop(AD, "AD without EF")
		u.Complete = true
	case ef && em:
		drop(EF, "EF without AD")
		u.Complete = true
	case em:
		u.Complete = true
	default:
		u.Complete = false
		c.log.Warn(MsgIncomplete, "year", y, "key", key, "ad", ad, "ef", ef, "em", em)
	}
	return u
}

// Fallback fills gaps of the base year from the reporting year and takes the
// reporting year's correlation flags.
func (c *Checker) Fallback(key Key, by, ry YearUncertainty) YearUncertainty {
	for _, p := range Params {
		b, r := by.Param[p], ry.Param[p]
		changed := false
		if b.Kind == sampler.KindNone && r.Kind != sampler.KindNone {
			b.Kind = r.Kind
			changed = true
		}
		if b.Status == StatusMI && r.Status != StatusMI {
			b.Status, b.Lower, b.Upper = r.Status, r.Lower, r.Upper
			changed = true
		} else {
			if b.Lower == 0 && r.Lower > 0 {
				b.Lower = r.Lower
				changed = true
			}
			if b.Upper == 0 && r.Upper > 0 {
				b.Upper = r.Upper
				changed = true
			}
		}
		b.Correlated = r.Correlated
		if changed {
			c.log.Info(MsgFallback, "key", key, "param", p)
		}
		by.Param[p] = b
	}
	return by
}

// CheckCorrelation keeps a correlation flag only when distribution and
// bounds are identical in both years.
func (c *Checker) CheckCorrelation(key Key, by, ry YearUncertainty) (YearUncertainty, YearUncertainty) {
	for _, p := range Params {
		b, r := by.Param[p], ry.Param[p]
		if !r.Correlated && !b.Correlated {
			continue
		}
		same := b.Numeric() && r.Numeric() && b.Kind == r.Kind && b.Lower == r.Lower && b.Upper == r.Upper
		if !same {
			c.log.Info(MsgCorrelationDropped, "key", key, "param", p,
				"by", b.Kind, "ry", r.Kind, "hint", "use specific input uncertainty for BY")
		}
		by.Param[p].Correlated = same
		ry.Param[p].Correlated = same
	}
	return by, ry
}
