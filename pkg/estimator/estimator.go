package estimator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Interval is a confidence interval read off a sample vector.
type Interval struct {
	Low  float64 `json:"ci_low"`
	High float64 `json:"ci_high"`
}

func (iv Interval) Width() float64 { return iv.High - iv.Low }

// Uncertainty is an interval expressed around a mean, in percent of the
// mean (relative) or in the unit of the values (absolute).
type Uncertainty struct {
	Lower float64 `json:"u_lower_pct"`
	Upper float64 `json:"u_upper_pct"`
	Mean  float64 `json:"u_mean_pct"`
}

// ZScore returns z for a two-sided confidence level (e.g., 0.95 -> ~1.96).
func ZScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// Finite returns a sorted copy of the finite values of x.
func Finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// window is the number of sorted values a coverage fraction spans.
func window(coverage float64, n int) int {
	w := int(math.Ceil(coverage*float64(n) - 1e-9))
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

// Narrowest returns the shortest interval holding ceil(coverage*n) of the
// finite values of x. The interval need not be centred, which matters for
// skewed outputs. One valid value gives (x, x); none gives (NaN, NaN).
func Narrowest(x []float64, coverage float64) Interval {
	s := Finite(x)
	n := len(s)
	switch n {
	case 0:
		return Interval{Low: math.NaN(), High: math.NaN()}
	case 1:
		return Interval{Low: s[0], High: s[0]}
	}
	w := window(coverage, n)
	best := 0
	bestWidth := math.Inf(1)
	for i := 0; i+w-1 < n; i++ {
		if d := s[i+w-1] - s[i]; d < bestWidth {
			best, bestWidth = i, d
		}
	}
	return Interval{Low: s[best], High: s[best+w-1]}
}

// Centered returns the equal-tailed interval of the finite values of x.
func Centered(x []float64, coverage float64) Interval {
	s := Finite(x)
	n := len(s)
	switch n {
	case 0:
		return Interval{Low: math.NaN(), High: math.NaN()}
	case 1:
		return Interval{Low: s[0], High: s[0]}
	}
	w := window(coverage, n)
	qi := int(math.Round((1 - coverage) / 2 * float64(n)))
	if qi > n-w {
		qi = n - w
	}
	if qi < 0 {
		qi = 0
	}
	return Interval{Low: s[qi], High: s[qi+w-1]}
}

// NanMeanVariance is the population mean and variance of the non-NaN values.
func NanMeanVariance(x []float64) (mean, variance float64) {
	valid := x
	for _, v := range x {
		if math.IsNaN(v) {
			valid = make([]float64, 0, len(x))
			for _, w := range x {
				if !math.IsNaN(w) {
					valid = append(valid, w)
				}
			}
			break
		}
	}
	if len(valid) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanVariance(valid, nil)
}

// Relative expresses iv around mean in percent of mean.
func Relative(iv Interval, mean float64) Uncertainty {
	if mean == 0 || math.IsNaN(mean) {
		return Uncertainty{}
	}
	return Uncertainty{
		Lower: math.Abs((mean - iv.Low) / mean * 100),
		Upper: math.Abs((iv.High - mean) / mean * 100),
		Mean:  math.Abs(iv.Width() / 2 / mean * 100),
	}
}

// Absolute expresses iv around mean in the unit of the values. Used for
// quantities that are already percentages, such as the normalised trend.
func Absolute(iv Interval, mean float64) Uncertainty {
	if math.IsNaN(mean) {
		return Uncertainty{}
	}
	return Uncertainty{
		Lower: math.Abs(mean - iv.Low),
		Upper: math.Abs(iv.High - mean),
		Mean:  math.Abs(iv.Width()) / 2,
	}
}
