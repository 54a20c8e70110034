// Package kca runs the key category analysis: level and trend assessments
// with approach 1 (emission shares) and approach 2 (shares weighted by the
// analytic uncertainty).
package kca

import (
	"math"
	"sort"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
)

// Kind is the assessed quantity.
type Kind string

const (
	LevelBY Kind = "level_by"
	LevelRY Kind = "level_ry"
	Trend   Kind = "trend"
)

// Kinds lists the assessments in output order.
var Kinds = []Kind{LevelBY, LevelRY, Trend}

// Item is one category entering the analysis. U holds the combined analytic
// uncertainty in percent of the base and reporting year.
type Item struct {
	Key inventory.Key
	BY  float64
	RY  float64
	U   [2]float64
}

// Assessment is the result for one category, kind and approach.
type Assessment struct {
	Key        inventory.Key `json:"key"`
	Kind       Kind          `json:"kind"`
	Approach   int           `json:"approach"`
	Share      float64       `json:"share"`
	Cumulative float64       `json:"cumulative"`
	IsKey      bool          `json:"is_key"`
	Extended   bool          `json:"extended"`
}

// Analyze assesses items with the thresholds of cfg. When cfg.PerCompound is
// set every compound is assessed on its own; otherwise all items together.
func Analyze(cfg config.KCA, items []Item) []Assessment {
	if !cfg.PerCompound {
		return assess(cfg, items)
	}
	var order []string
	groups := make(map[string][]Item)
	for _, it := range items {
		if _, ok := groups[it.Key.Compound]; !ok {
			order = append(order, it.Key.Compound)
		}
		groups[it.Key.Compound] = append(groups[it.Key.Compound], it)
	}
	var out []Assessment
	for _, c := range order {
		out = append(out, assess(cfg, groups[c])...)
	}
	return out
}

func assess(cfg config.KCA, items []Item) []Assessment {
	var sumBY, sumRY, absBY, absRY float64
	for _, it := range items {
		sumBY += it.BY
		sumRY += it.RY
		absBY += math.Abs(it.BY)
		absRY += math.Abs(it.RY)
	}

	level := func(v, abs float64) float64 {
		if abs == 0 {
			return 0
		}
		return math.Abs(v) / abs
	}
	trend := func(it Item) float64 {
		if sumBY == 0 {
			return 0
		}
		if it.BY == 0 {
			return math.Abs(it.RY / sumBY)
		}
		return math.Abs(it.BY/sumBY) * math.Abs((it.RY-it.BY)/math.Abs(it.BY)-(sumRY-sumBY)/math.Abs(sumBY))
	}

	var out []Assessment
	for _, k := range Kinds {
		a1 := make([]float64, len(items))
		a2 := make([]float64, len(items))
		for i, it := range items {
			switch k {
			case LevelBY:
				a1[i] = level(it.BY, absBY)
				a2[i] = a1[i] * it.U[inventory.BY]
			case LevelRY:
				a1[i] = level(it.RY, absRY)
				a2[i] = a1[i] * it.U[inventory.RY]
			case Trend:
				a1[i] = trend(it)
				a2[i] = a1[i] * it.U[inventory.RY]
			}
		}
		out = append(out, rank(items, k, 1, a1, cfg.Approach1, cfg.Approach1Extended)...)
		out = append(out, rank(items, k, 2, a2, cfg.Approach2, cfg.Approach2Extended)...)
	}
	return out
}

// rank normalises the scores to shares, sorts them in descending order and
// marks every category whose preceding cumulative share is below the
// threshold as key.
func rank(items []Item, k Kind, approach int, scores []float64, threshold, extended float64) []Assessment {
	total := 0.0
	for _, s := range scores {
		total += s
	}
	out := make([]Assessment, len(items))
	for i, it := range items {
		out[i] = Assessment{Key: it.Key, Kind: k, Approach: approach}
		if total > 0 {
			out[i].Share = scores[i] / total
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Share > out[j].Share })
	cum := 0.0
	for i := range out {
		if out[i].Share > 0 {
			out[i].IsKey = cum < threshold
			out[i].Extended = cum < extended
		}
		cum += out[i].Share
		out[i].Cumulative = cum
	}
	return out
}
