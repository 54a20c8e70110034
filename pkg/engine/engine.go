// Package engine runs the uncertainty pipeline of one inventory: input
// checks, analytic propagation, Monte Carlo simulation, aggregation over the
// three taxonomies, variance shares, sensitivities and the key category
// analysis.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/aggregate"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/kca"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/montecarlo"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/propagation"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sensitivity"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

var (
	ErrMissingTotal = errors.New("aggregation error: total row not found")
	ErrNoReportRows = errors.New("aggregation error: no recognised output indexes")
	ErrEmptySubset  = errors.New("aggregation error: subset has no rows")
)

// Input is everything a run reads besides the configuration. Report lists
// the output categories; empty means the input categories.
type Input struct {
	Taxonomy taxonomy.Input    `json:"taxonomy"`
	Records  inventory.Records `json:"records"`
	Report   []inventory.Key   `json:"report,omitempty"`
}

// Ranked is one entry of a sensitivity ranking.
type Ranked struct {
	Key  inventory.Key `json:"key"`
	Corr float64       `json:"corr"`
}

// table is the result table under construction, one row per key.
type table struct {
	rows  []Row
	index map[inventory.Key]int
}

func newTable(f taxonomy.Forest, rows []aggregate.Row[propagation.Sums]) *table {
	t := &table{rows: make([]Row, len(rows)), index: make(map[inventory.Key]int, len(rows))}
	for i, r := range rows {
		row := Row{Key: r.Key, Import: r.Import}
		for _, a := range taxonomy.Axes {
			e := f.Get(a).Entry(r.Key.Get(a))
			row.Names[a] = e.Name
			row.rank[a] = e.Rank
		}
		if n, ok := f.Get(taxonomy.Process).Tree.Lookup(r.Key.Process); ok {
			row.Depth = n.Depth
		}
		t.rows[i] = row
		t.index[r.Key] = i
	}
	return t
}

func (t *table) get(k inventory.Key) *Row {
	i, ok := t.index[k]
	if !ok {
		return nil
	}
	return &t.rows[i]
}

// match returns the keys of fixed with the id on axis replaced by each code
// that has a row.
func (t *table) match(codes []string, axis taxonomy.Axis, fixed inventory.Key) []inventory.Key {
	var out []inventory.Key
	for _, c := range codes {
		k := fixed.With(axis, c)
		if _, ok := t.index[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (t *table) subset(name string, keys []inventory.Key) Subset {
	s := Subset{Name: name, Keys: keys}
	for _, y := range inventory.Quantities {
		vars := make([]float64, len(keys))
		for i, k := range keys {
			vars[i] = t.get(k).Years[y].MC.Var
		}
		s.Shares[y] = sensitivity.Shares(vars)
		for i := range s.Shares[y] {
			s.Shares[y][i] = finite(s.Shares[y][i])
		}
	}
	return s
}

// RunError is a fatal error of a run with the diagnostics recorded until it
// stopped.
type RunError struct {
	RunID       string
	Err         error
	Diagnostics []diag.Entry
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Run checks the input and computes all results. Diagnostics are written to
// logger and recorded in the result. Every fatal error is logged before it is
// returned as a *RunError; there is no partial result.
func Run(ctx context.Context, cfg config.Config, in Input, logger *slog.Logger) (_ *Result, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rec := diag.NewRecorder(logger.Handler(), slog.LevelInfo)
	log := slog.New(rec)
	started := time.Now().UTC()
	runID := uuid.NewString()
	defer func() {
		if err != nil {
			err = &RunError{RunID: runID, Err: err, Diagnostics: rec.Entries()}
		}
	}()
	log.Info("run started", "run_id", runID, "variant", cfg.Variant, "simulations", cfg.Simulations)

	p, err := prepare(cfg, in, log)
	if err != nil {
		return nil, err
	}
	forest, inv, plan, keys, t := p.forest, p.inv, p.plan, p.keys, p.table
	total := plan.Total()

	if err := ctx.Err(); err != nil {
		log.Error("run cancelled", "err", err)
		return nil, err
	}
	eng := montecarlo.NewEngine(cfg, log)
	sim, qa, err := simulate(ctx, cfg, eng, forest, plan, inv, t, log)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Variant:     cfg.Variant,
		Unit:        cfg.Unit,
		Seed:        eng.Seed(),
		Simulations: cfg.Simulations,
		Started:     started,
		Total:       total,
		Totals:      Totals{BY: inv.Totals.BY, RY: inv.Totals.RY, Trend: inv.Totals.Trend()},
		Axes:        plan.Axes,
		Params:      sim.Params,
		QA:          qa,
	}

	report, err := reportKeys(t, in.Report, keys, log)
	if err != nil {
		return nil, err
	}
	res.Subsets, err = subsets(cfg, plan, t, report, log)
	if err != nil {
		return nil, err
	}
	for _, y := range inventory.Quantities {
		res.Tornado[y] = tornado(t, report, y)
	}

	items := make([]kca.Item, 0, len(inv.Categories))
	for _, c := range inv.Categories {
		row := t.get(c.Key)
		items = append(items, kca.Item{
			Key: c.Key,
			BY:  c.Emission[inventory.BY],
			RY:  c.Emission[inventory.RY],
			U:   [2]float64{row.Years[inventory.BY].Analytic.U.Mean, row.Years[inventory.RY].Analytic.U.Mean},
		})
	}
	res.KeyCategories = kca.Analyze(cfg.KCA, items)

	for i := range t.rows {
		for _, y := range inventory.Quantities {
			t.rows[i].Years[y].MC = finiteStats(t.rows[i].Years[y].MC)
		}
	}
	sortRows(t.rows)
	res.Rows = t.rows
	res.Finished = time.Now().UTC()

	if tr, ok := res.TotalRow(); ok {
		log.Info("run finished",
			"run_id", res.RunID,
			"seed", res.Seed,
			"rows", len(res.Rows),
			"u_by", tr.Years[inventory.BY].MC.U.Mean,
			"u_ry", tr.Years[inventory.RY].MC.U.Mean,
			"u_trend", tr.Years[inventory.Trend].MC.U.Mean,
			"elapsed", res.Finished.Sub(started).String())
	}
	res.Diagnostics = rec.Entries()
	return res, nil
}

// prepared is the checked input with its analytic table.
type prepared struct {
	forest taxonomy.Forest
	inv    *inventory.Inventory
	plan   aggregate.Plan
	keys   []inventory.Key
	table  *table
}

// prepare runs every check that needs no simulation and builds the analytic
// table.
func prepare(cfg config.Config, in Input, log *slog.Logger) (prepared, error) {
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		return prepared{}, fmt.Errorf("invalid config: %w", err)
	}
	forest, err := taxonomy.BuildForest(in.Taxonomy)
	if err != nil {
		log.Error("invalid taxonomy", "err", err)
		return prepared{}, err
	}
	inv, err := inventory.NewChecker(cfg, log).Build(in.Records)
	if err != nil {
		return prepared{}, err
	}
	keys := make([]inventory.Key, len(inv.Categories))
	for i, c := range inv.Categories {
		keys[i] = c.Key
	}
	plan, err := aggregate.PlanAxes(forest, keys, cfg.Totals)
	if err != nil {
		log.Error("cannot plan aggregation", "err", err)
		return prepared{}, err
	}
	if err := checkReferences(forest, plan, keys); err != nil {
		log.Error("referential integrity error", "err", err)
		return prepared{}, err
	}
	log.Info("aggregation planned", "axes", plan.Axes, "total", plan.Total().String())

	t, err := analytic(cfg, forest, plan, inv, log)
	if err != nil {
		return prepared{}, err
	}
	if t.get(plan.Total()) == nil {
		err := fmt.Errorf("%w: %s", ErrMissingTotal, plan.Total())
		log.Error(err.Error())
		return prepared{}, err
	}
	return prepared{forest: forest, inv: inv, plan: plan, keys: keys, table: t}, nil
}

// Check validates config and input without simulating. It returns the
// diagnostics written on the way, also when the input is rejected.
func Check(cfg config.Config, in Input, logger *slog.Logger) ([]diag.Entry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rec := diag.NewRecorder(logger.Handler(), slog.LevelInfo)
	_, err := prepare(cfg, in, slog.New(rec))
	return rec.Entries(), err
}

// checkReferences requires every id on an aggregated axis to reach the
// axis total.
func checkReferences(f taxonomy.Forest, p aggregate.Plan, keys []inventory.Key) error {
	for _, a := range p.Axes {
		tx := f.Get(a)
		for _, k := range keys {
			id := k.Get(a)
			if !tx.Known(id) {
				return &inventory.KeyError{Err: taxonomy.ErrUnknownID, What: a.String() + " " + id, Keys: []inventory.Key{k}}
			}
			if err := tx.Tree.ResolvesTo(id, p.Totals[a]); err != nil {
				return &inventory.KeyError{Err: err, What: a.String(), Keys: []inventory.Key{k}}
			}
		}
	}
	return nil
}

// analytic propagates and aggregates every quantity and builds the result
// table from the aggregated rows.
func analytic(cfg config.Config, f taxonomy.Forest, p aggregate.Plan, inv *inventory.Inventory, log *slog.Logger) (*table, error) {
	res, err := propagation.NewPropagator(cfg, log).Categories(inv)
	if err != nil {
		return nil, err
	}
	var t *table
	for _, y := range inventory.Quantities {
		rows := aggregate.Run(f, p, propagation.Rows(inv.Categories, res, y), propagation.Ops(), log)
		if t == nil {
			t = newTable(f, rows)
		}
		for _, r := range rows {
			row := t.get(r.Key)
			if row == nil {
				continue
			}
			row.Years[y].Status = r.Status
			row.Years[y].Value = r.Data.Value
			row.Years[y].Analytic = propagation.Normalise(y, r.Status, r.Data, inv.Totals.Get(y))
		}
	}
	return t, nil
}

// simulate runs the Monte Carlo path. Each year is aggregated and summarised
// before the next one; the trend replaces the reporting year matrix last.
func simulate(ctx context.Context, cfg config.Config, eng *montecarlo.Engine, f taxonomy.Forest, p aggregate.Plan,
	inv *inventory.Inventory, t *table, log *slog.Logger) (*montecarlo.Simulation, []montecarlo.QA, error) {
	sim, err := eng.Simulate(ctx, inv)
	if err != nil {
		return nil, nil, err
	}
	total := p.Total()
	var qa []montecarlo.QA
	for _, y := range []inventory.Year{inventory.RY, inventory.BY, inventory.Trend} {
		if y == inventory.Trend {
			sim.Trend()
		}
		leaves, err := sim.Rows(inv.Categories, y)
		if err != nil {
			log.Error("monte carlo rows unavailable", "year", y, "err", err)
			return nil, nil, err
		}
		rows := aggregate.Run(f, p, leaves, aggregate.Samples(sim.N), log)
		ti := aggregate.Find(rows, total)
		if ti < 0 {
			err := fmt.Errorf("%w: %s in %s samples", ErrMissingTotal, total, y)
			log.Error(err.Error())
			return nil, nil, err
		}
		tv := rows[ti].Data

		var values, means []float64
		for _, r := range rows {
			row := t.get(r.Key)
			if row == nil {
				continue
			}
			active := row.Years[y].Value != 0
			if y == inventory.Trend {
				active = row.Years[inventory.BY].Value != 0 || row.Years[inventory.RY].Value != 0
			}
			row.Years[y].MC = montecarlo.Summarize(y, r.Data, tv, cfg.Coverage, active)
			if r.Import {
				values = append(values, row.Years[y].Value)
				means = append(means, row.Years[y].MC.Mean)
			}
		}
		if y != inventory.Trend {
			qa = append(qa, montecarlo.CheckMeans(log, y, inv.Totals.Get(y), sim.Inventory[y], t.get(total).Years[y].MC.Mean, values, means, cfg.QATolerance))
		}
		if err := ctx.Err(); err != nil {
			log.Error("run cancelled", "err", err)
			return nil, nil, err
		}
	}
	return sim, qa, nil
}

func reportKeys(t *table, want, leaves []inventory.Key, log *slog.Logger) ([]inventory.Key, error) {
	if len(want) == 0 {
		want = leaves
	}
	var out []inventory.Key
	for _, k := range want {
		if t.get(k) == nil {
			log.Warn("output index not found", "key", k.String())
			continue
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		log.Error(ErrNoReportRows.Error(), "requested", len(want))
		return nil, ErrNoReportRows
	}
	return out, nil
}

// subsets builds the variance share subsets: the report rows, the sector
// totals and, for NID, the compound totals and the LULUCF totals. An empty
// code list skips its subset; a configured subset without rows is fatal.
func subsets(cfg config.Config, p aggregate.Plan, t *table, report []inventory.Key, log *slog.Logger) ([]Subset, error) {
	total := p.Total()
	out := []Subset{t.subset("report", report)}

	type spec struct {
		name  string
		codes []string
		axis  taxonomy.Axis
	}
	specs := []spec{{"sectors", cfg.Subsets.SectorCodes, taxonomy.Process}}
	if cfg.Variant == config.VariantNID {
		specs = append(specs,
			spec{"compounds", cfg.Subsets.CompoundTotals, taxonomy.Compound},
			spec{"lulucf", cfg.Subsets.LULUCFCodes, taxonomy.Process})
	}
	for _, s := range specs {
		if len(s.codes) == 0 {
			continue
		}
		keys := t.match(s.codes, s.axis, total)
		if len(keys) == 0 {
			err := fmt.Errorf("%w: %s", ErrEmptySubset, s.name)
			log.Error(err.Error(), "codes", s.codes)
			return nil, err
		}
		out = append(out, t.subset(s.name, keys))
	}
	return out, nil
}

// tornado ranks the report rows by the absolute correlation of their samples
// with the inventory total.
func tornado(t *table, keys []inventory.Key, y inventory.Year) []Ranked {
	corr := make([]float64, len(keys))
	for i, k := range keys {
		st := t.get(k).Years[y].MC
		corr[i] = st.Corr
		if !st.Valid {
			corr[i] = 0
		}
	}
	ranked := sensitivity.Rank(corr)
	out := make([]Ranked, len(ranked))
	for i, r := range ranked {
		out[i] = Ranked{Key: keys[r.Index], Corr: finite(r.Corr)}
	}
	return out
}
