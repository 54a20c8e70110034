// Package montecarlo draws correlated base year and reporting year samples
// for every category and derives inventory and trend samples from them.
//
// Every category owns its own PCG stream keyed by the run seed and the
// category index, so results do not depend on how categories are spread
// over workers.
package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/estimator"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/sampler"
)

// ParamStats summarises the samples of one input parameter.
type ParamStats struct {
	Valid    bool                  `json:"valid"`
	Mean     float64               `json:"mean"`
	Interval estimator.Interval    `json:"interval"`
	U        estimator.Uncertainty `json:"u"`
}

// CategoryParams holds the AD and EF statistics of one category per year.
type CategoryParams struct {
	Key inventory.Key `json:"key"`
	AD  [2]ParamStats `json:"ad"`
	EF  [2]ParamStats `json:"ef"`
}

// Simulation holds the sample matrices of one run. Years[y][i] is the
// sample vector of category i. Inventory[y] is the per-draw inventory sum.
type Simulation struct {
	N         int
	Seed      uint64
	Years     [2][][]float64
	Inventory [2][]float64
	Params    []CategoryParams
	trend     bool
}

// Engine runs simulations for one configuration.
type Engine struct {
	n        int
	seed     uint64
	workers  int
	coverage float64
	log      *slog.Logger
}

// NewEngine resolves the seed: zero seeds from the clock.
func NewEngine(cfg config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Engine{n: cfg.Simulations, seed: seed, workers: workers, coverage: cfg.Coverage, log: log}
}

// Seed is the seed the engine draws with.
func (e *Engine) Seed() uint64 { return e.seed }

// Simulate samples every category in parallel.
func (e *Engine) Simulate(ctx context.Context, inv *inventory.Inventory) (*Simulation, error) {
	start := time.Now()
	m := len(inv.Categories)
	sim := &Simulation{N: e.n, Seed: e.seed, Params: make([]CategoryParams, m)}
	for _, y := range inventory.Years {
		sim.Years[y] = make([][]float64, m)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range inv.Categories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := inv.Categories[i]
			src := rand.NewPCG(e.seed, uint64(i))
			by, ry, params, err := e.category(c, src)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Key, err)
			}
			sim.Years[inventory.BY][i] = by
			sim.Years[inventory.RY][i] = ry
			sim.Params[i] = params
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Error("monte carlo sampling failed", "err", err)
		return nil, err
	}

	for _, y := range inventory.Years {
		sum := make([]float64, e.n)
		for _, v := range sim.Years[y] {
			floats.Add(sum, v)
		}
		sim.Inventory[y] = sum
	}
	e.log.Info("monte carlo sampling done",
		"categories", m, "simulations", e.n, "seed", e.seed, "workers", e.workers,
		"took", time.Since(start).String())
	return sim, nil
}

// draw samples kind around mean with bounds given as fractions of |scale|.
func (e *Engine) draw(u inventory.Uncertainty, mean, scale float64, src rand.Source) ([]float64, error) {
	s := math.Abs(scale)
	return sampler.Sample(u.Kind, mean, u.Lower*s, u.Upper*s, e.n, src)
}

func (e *Engine) stats(x []float64) ParamStats {
	mean, _ := estimator.NanMeanVariance(x)
	iv := estimator.Narrowest(x, e.coverage)
	return ParamStats{Valid: true, Mean: mean, Interval: iv, U: estimator.Relative(iv, mean)}
}

// category draws both years of one category. The base year is always drawn
// independently. A correlated reporting year parameter reuses the base year
// draw: activity data scaled by the emission ratio, emission factors as is.
// When every sampled parameter is correlated the reporting year vector is
// exactly the base year vector times the ratio.
func (e *Engine) category(c inventory.Category, src rand.Source) (by, ry []float64, p CategoryParams, err error) {
	p.Key = c.Key
	var ad, ef [2][]float64
	out := [2][]float64{}
	emBY := c.Emission[inventory.BY]
	for _, y := range inventory.Years {
		em := c.Emission[y]
		yu := c.Uncertainty[y]
		if em == 0 {
			out[y] = make([]float64, e.n)
			continue
		}
		derive := y == inventory.RY && emBY != 0
		ratio := 0.0
		if derive {
			ratio = em / emBY
		}
		scaled := func(v []float64) []float64 {
			r := make([]float64, len(v))
			for i := range v {
				r[i] = v[i] * ratio
			}
			return r
		}

		if yu.Direct() {
			u := yu.Param[inventory.EM]
			if derive && u.Correlated && out[inventory.BY] != nil {
				out[y] = scaled(out[inventory.BY])
				continue
			}
			if out[y], err = e.draw(u, em, em, src); err != nil {
				return nil, nil, p, fmt.Errorf("%s EM: %w", y, err)
			}
			continue
		}

		uad, uef := yu.Param[inventory.AD], yu.Param[inventory.EF]
		if derive && uad.Correlated && ad[inventory.BY] != nil {
			ad[y] = scaled(ad[inventory.BY])
		} else if ad[y], err = e.draw(uad, em, em, src); err != nil {
			return nil, nil, p, fmt.Errorf("%s AD: %w", y, err)
		}
		if y == inventory.RY && uef.Correlated && ef[inventory.BY] != nil {
			ef[y] = ef[inventory.BY]
		} else if ef[y], err = e.draw(uef, 1, 1, src); err != nil {
			return nil, nil, p, fmt.Errorf("%s EF: %w", y, err)
		}

		if derive && uad.Correlated && uef.Correlated && ad[inventory.BY] != nil && ef[inventory.BY] != nil {
			out[y] = scaled(out[inventory.BY])
		} else {
			v := make([]float64, e.n)
			floats.MulTo(v, ad[y], ef[y])
			out[y] = v
		}
		p.AD[y] = e.stats(ad[y])
		p.EF[y] = e.stats(ef[y])
	}
	return out[inventory.BY], out[inventory.RY], p, nil
}
