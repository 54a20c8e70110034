package montecarlo

import (
	"errors"
	"log/slog"
	"math"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/aggregate"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/estimator"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sensitivity"
)

// ErrMatrixState is returned for a year read after the trend replaced it and
// for the trend read before it was computed.
var ErrMatrixState = errors.New("sample matrix not available for this quantity")

// Rows returns the leaf rows of year y. The rows share the simulation's
// vectors; aggregation allocates new vectors for every parent.
func (s *Simulation) Rows(cats []inventory.Category, y inventory.Year) ([]aggregate.Row[[]float64], error) {
	var m [][]float64
	switch {
	case y == inventory.Trend && s.trend:
		m = s.Years[inventory.RY]
	case y == inventory.Trend || s.trend:
		return nil, ErrMatrixState
	default:
		m = s.Years[y]
	}
	out := make([]aggregate.Row[[]float64], len(cats))
	for i, c := range cats {
		out[i] = aggregate.Row[[]float64]{Key: c.Key, Status: c.Status[y], Import: true, Data: m[i]}
	}
	return out, nil
}

// Trend turns the reporting year matrix into normalised trend samples in
// place, (RY - BY) / inventory BY * 100 per draw, and releases the base year
// matrix. Draws with a zero base year inventory are NaN.
func (s *Simulation) Trend() {
	if s.trend {
		return
	}
	inv := s.Inventory[inventory.BY]
	for i, ry := range s.Years[inventory.RY] {
		by := s.Years[inventory.BY][i]
		for j := range ry {
			if inv[j] == 0 {
				ry[j] = math.NaN()
				continue
			}
			ry[j] = (ry[j] - by[j]) / inv[j] * 100
		}
	}
	s.Years[inventory.BY] = nil
	s.trend = true
}

// Stats are the Monte Carlo statistics of one row.
type Stats struct {
	Mean      float64               `json:"mean"`
	Var       float64               `json:"var"`
	TwoStdDev float64               `json:"two_stddev"`
	Interval  estimator.Interval    `json:"interval"`
	Centered  estimator.Interval    `json:"centered"`
	U         estimator.Uncertainty `json:"u"`
	Corr      float64               `json:"corr"`
	Valid     bool                  `json:"valid"`
}

// Summarize computes the statistics of one row against the total vector of
// the same quantity. Intervals and the sensitivity need active; they are
// skipped for rows without a point value. Emission rows report relative
// uncertainties, trend rows absolute ones in percentage points.
func Summarize(y inventory.Year, x, total []float64, coverage float64, active bool) Stats {
	var st Stats
	st.Mean, st.Var = estimator.NanMeanVariance(x)
	sd := math.Sqrt(st.Var)
	switch {
	case y == inventory.Trend:
		st.TwoStdDev = 2 * sd
	case st.Mean != 0:
		st.TwoStdDev = sd / st.Mean * 200
	}
	if !active {
		return st
	}
	st.Valid = true
	st.Interval = estimator.Narrowest(x, coverage)
	st.Centered = estimator.Centered(x, coverage)
	st.Corr = sensitivity.Correlation(x, total)
	if st.Mean != 0 && !math.IsNaN(st.Mean) {
		if y == inventory.Trend {
			st.U = estimator.Absolute(st.Interval, st.Mean)
		} else {
			st.U = estimator.Relative(st.Interval, st.Mean)
		}
	}
	return st
}

// QA is the consistency check of the simulated means. RelOffset compares the
// aggregated total mean with the mean of the per-draw inventory sum and
// decides Passed. InventoryOffset is the relative distance of the total mean
// from the point inventory and only informs.
type QA struct {
	Year            inventory.Year `json:"year"`
	Inventory       float64        `json:"inventory"`
	Simulated       float64        `json:"simulated"`
	Mean            float64        `json:"mean"`
	RelOffset       float64        `json:"rel_offset"`
	InventoryOffset float64        `json:"inventory_offset"`
	OffsetPctStdDev float64        `json:"offset_pct_stddev"`
	Passed          bool           `json:"passed"`
}

// CheckMeans compares the aggregated total mean with the mean of the
// simulated inventory vector and reports the spread of per-category mean
// offsets in percent over imported rows with a non-zero value. A failed
// check is a diagnostic, not an error.
func CheckMeans(log *slog.Logger, y inventory.Year, inv float64, simulated []float64, mcMean float64, values, means []float64, tolerance float64) QA {
	q := QA{Year: y, Inventory: inv, Mean: mcMean, Passed: true}
	q.Simulated, _ = estimator.NanMeanVariance(simulated)
	if q.Simulated != 0 && !math.IsNaN(q.Simulated) {
		q.RelOffset = math.Abs(mcMean-q.Simulated) / math.Abs(q.Simulated)
		q.Passed = q.RelOffset <= tolerance
	}
	if inv != 0 {
		q.InventoryOffset = math.Abs(mcMean-inv) / math.Abs(inv)
	}
	var offsets []float64
	for i, v := range values {
		if v == 0 || math.IsNaN(means[i]) {
			continue
		}
		offsets = append(offsets, (means[i]-v)/v*100)
	}
	if len(offsets) > 0 {
		_, variance := estimator.NanMeanVariance(offsets)
		q.OffsetPctStdDev = math.Sqrt(variance)
	}
	if !q.Passed {
		log.Warn(MsgMeanMismatch,
			"year", y, "simulated", q.Simulated, "mean", mcMean, "rel_offset", q.RelOffset,
			"tolerance", tolerance, "inventory_offset", q.InventoryOffset, "offset_pct_stddev", q.OffsetPctStdDev)
	}
	return q
}

// MsgMeanMismatch is logged when aggregation lost part of the simulated
// inventory.
const MsgMeanMismatch = "aggregated monte carlo mean differs from simulated inventory"
