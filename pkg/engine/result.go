package engine

import (
	"math"
	"sort"
	"time"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/estimator"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/kca"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/montecarlo"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/propagation"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

// YearResult is one quantity of one row.
type YearResult struct {
	Status   inventory.Status       `json:"status"`
	Value    float64                `json:"value"`
	Analytic propagation.Normalised `json:"analytic"`
	MC       montecarlo.Stats       `json:"mc"`
}

// Row is a leaf or aggregated category with its results for BY, RY and the
// trend.
type Row struct {
	Key    inventory.Key `json:"key"`
	Names  [3]string     `json:"names"`
	Depth  int           `json:"depth"`
	Import bool          `json:"import"`
	Years  [3]YearResult `json:"years"`
	rank   [3]int
}

// Subset is a reporting subset with the Monte Carlo variance share of every
// member per quantity. Shares of one quantity sum to one.
type Subset struct {
	Name   string          `json:"name"`
	Keys   []inventory.Key `json:"keys"`
	Shares [3][]float64    `json:"shares"`
}

// Totals are the inventory totals of the run.
type Totals struct {
	BY    float64 `json:"by"`
	RY    float64 `json:"ry"`
	Trend float64 `json:"trend"`
}

// Result is everything one run produces.
type Result struct {
	RunID         string                      `json:"run_id"`
	Variant       config.Variant              `json:"variant"`
	Unit          string                      `json:"unit"`
	Seed          uint64                      `json:"seed"`
	Simulations   int                         `json:"simulations"`
	Started       time.Time                   `json:"started"`
	Finished      time.Time                   `json:"finished"`
	Total         inventory.Key               `json:"total"`
	Totals        Totals                      `json:"totals"`
	Axes          []taxonomy.Axis             `json:"axes"`
	Rows          []Row                       `json:"rows"`
	Params        []montecarlo.CategoryParams `json:"params"`
	Subsets       []Subset                    `json:"subsets"`
	Tornado       [3][]Ranked                 `json:"tornado"`
	QA            []montecarlo.QA             `json:"qa"`
	KeyCategories []kca.Assessment            `json:"key_categories"`
	Diagnostics   []diag.Entry                `json:"diagnostics"`
}

// Row returns the row of key.
func (r *Result) Row(key inventory.Key) (Row, bool) {
	for _, row := range r.Rows {
		if row.Key == key {
			return row, true
		}
	}
	return Row{}, false
}

// TotalRow returns the grand total row.
func (r *Result) TotalRow() (Row, bool) { return r.Row(r.Total) }

// Record is one row and quantity flattened for tables and CSV output.
type Record struct {
	Key        inventory.Key
	Depth      int
	Import     bool
	Quantity   inventory.Year
	Status     inventory.Status
	Value      float64
	Analytic   estimator.Uncertainty
	MCMean     float64
	MCInterval estimator.Interval
	MC         estimator.Uncertainty
	Corr       float64
}

// Records flattens the rows, three records per row in row order.
func (r *Result) Records() []Record {
	out := make([]Record, 0, 3*len(r.Rows))
	for _, row := range r.Rows {
		for _, y := range inventory.Quantities {
			yr := row.Years[y]
			out = append(out, Record{
				Key:        row.Key,
				Depth:      row.Depth,
				Import:     row.Import,
				Quantity:   y,
				Status:     yr.Status,
				Value:      yr.Value,
				Analytic:   yr.Analytic.U,
				MCMean:     yr.MC.Mean,
				MCInterval: yr.MC.Interval,
				MC:         yr.MC.U,
				Corr:       yr.MC.Corr,
			})
		}
	}
	return out
}

// sortRows orders by process rank, process name, resource rank and compound
// rank.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.rank[taxonomy.Process] != b.rank[taxonomy.Process] {
			return a.rank[taxonomy.Process] < b.rank[taxonomy.Process]
		}
		if a.Names[taxonomy.Process] != b.Names[taxonomy.Process] {
			return a.Names[taxonomy.Process] < b.Names[taxonomy.Process]
		}
		if a.rank[taxonomy.Resource] != b.rank[taxonomy.Resource] {
			return a.rank[taxonomy.Resource] < b.rank[taxonomy.Resource]
		}
		return a.rank[taxonomy.Compound] < b.rank[taxonomy.Compound]
	})
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteInterval(iv estimator.Interval) estimator.Interval {
	return estimator.Interval{Low: finite(iv.Low), High: finite(iv.High)}
}

func finiteU(u estimator.Uncertainty) estimator.Uncertainty {
	return estimator.Uncertainty{Lower: finite(u.Lower), Upper: finite(u.Upper), Mean: finite(u.Mean)}
}

// finiteStats replaces undefined statistics, such as trend draws with a zero
// base year, by zero so results stay encodable.
func finiteStats(s montecarlo.Stats) montecarlo.Stats {
	s.Mean = finite(s.Mean)
	s.Var = finite(s.Var)
	s.TwoStdDev = finite(s.TwoStdDev)
	s.Interval = finiteInterval(s.Interval)
	s.Centered = finiteInterval(s.Centered)
	s.U = finiteU(s.U)
	s.Corr = finite(s.Corr)
	return s
}
