// Package sensitivity ranks rows by their correlation with the inventory
// total and splits the total variance into normalised contributions.
package sensitivity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Correlation is the Pearson coefficient between x and the total vector over
// draws where both are finite. It is NaN when fewer than two such draws
// remain or either side has no spread.
func Correlation(x, total []float64) float64 {
	n := min(len(x), len(total))
	a := make([]float64, 0, n)
	b := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(total[i]) {
			a = append(a, x[i])
			b = append(b, total[i])
		}
	}
	if len(a) < 2 {
		return math.NaN()
	}
	if _, sa := stat.PopMeanVariance(a, nil); sa == 0 {
		return math.NaN()
	}
	if _, sb := stat.PopMeanVariance(b, nil); sb == 0 {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Shares divides every variance by the sum over the subset. NaN variances
// count as zero. All shares are zero when the subset has no variance.
func Shares(variances []float64) []float64 {
	out := make([]float64, len(variances))
	for i, v := range variances {
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	sum := floats.Sum(out)
	if sum == 0 {
		return out
	}
	floats.Scale(1/sum, out)
	return out
}

// Ranking is one row of a tornado chart.
type Ranking struct {
	Index int     `json:"index"`
	Corr  float64 `json:"corr"`
}

// Rank orders rows by the absolute value of their correlation, NaN last.
// Ties keep their input order.
func Rank(corr []float64) []Ranking {
	out := make([]Ranking, len(corr))
	for i, c := range corr {
		out[i] = Ranking{Index: i, Corr: c}
	}
	key := func(c float64) float64 {
		if math.IsNaN(c) {
			return -1
		}
		return math.Abs(c)
	}
	sort.SliceStable(out, func(i, j int) bool { return key(out[i].Corr) > key(out[j].Corr) })
	return out
}
