package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrUnknownDistribution = errors.New("unknown distribution")
	ErrMissingDistribution = errors.New("missing distribution")
	ErrInvalidEdges        = errors.New("right edge below left edge")
	ErrModeOutsideEdges    = errors.New("triangular mode outside its edges")
)

// Distribution is one parameterised variant. Sample fills dst with draws
// from src; Quantile is the inverse CDF.
type Distribution interface {
	Kind() Kind
	Sample(dst []float64, src rand.Source)
	Quantile(p float64) float64
}

// Constant is the degenerate distribution every draw of which is Value.
type Constant struct{ Value float64 }

// Uniform on [Min, Max].
type Uniform struct{ Min, Max float64 }

// Normal with mean Mu and standard deviation Sigma.
type Normal struct{ Mu, Sigma float64 }

// Triangular with edges Min, Max and mode Mode.
type Triangular struct{ Min, Mode, Max float64 }

// Gamma with shape and scale.
type Gamma struct{ Shape, Scale float64 }

// LogNormal where ln(X) ~ N(Mu, Sigma).
type LogNormal struct{ Mu, Sigma float64 }

func (Constant) Kind() Kind   { return KindNone }
func (Uniform) Kind() Kind    { return KindUniform }
func (Normal) Kind() Kind     { return KindNormal }
func (Triangular) Kind() Kind { return KindTriangular }
func (Gamma) Kind() Kind      { return KindGamma }
func (LogNormal) Kind() Kind  { return KindLogNormal }

func (d Constant) Sample(dst []float64, _ rand.Source) {
	for i := range dst {
		dst[i] = d.Value
	}
}

func (d Constant) Quantile(float64) float64 { return d.Value }

func (d Uniform) Sample(dst []float64, src rand.Source) {
	u := distuv.Uniform{Min: d.Min, Max: d.Max, Src: src}
	for i := range dst {
		dst[i] = u.Rand()
	}
}

func (d Uniform) Quantile(p float64) float64 {
	return distuv.Uniform{Min: d.Min, Max: d.Max}.Quantile(p)
}

func (d Normal) Sample(dst []float64, src rand.Source) {
	n := distuv.Normal{Mu: d.Mu, Sigma: d.Sigma, Src: src}
	for i := range dst {
		dst[i] = n.Rand()
	}
}

func (d Normal) Quantile(p float64) float64 {
	return distuv.Normal{Mu: d.Mu, Sigma: d.Sigma}.Quantile(p)
}

func (d Triangular) Sample(dst []float64, src rand.Source) {
	t := distuv.NewTriangle(d.Min, d.Max, d.Mode, src)
	for i := range dst {
		dst[i] = t.Rand()
	}
}

func (d Triangular) Quantile(p float64) float64 {
	return distuv.NewTriangle(d.Min, d.Max, d.Mode, nil).Quantile(p)
}

func (d Gamma) Sample(dst []float64, src rand.Source) {
	g := distuv.Gamma{Alpha: d.Shape, Beta: 1 / d.Scale, Src: src}
	for i := range dst {
		dst[i] = g.Rand()
	}
}

func (d Gamma) Quantile(p float64) float64 {
	return distuv.Gamma{Alpha: d.Shape, Beta: 1 / d.Scale}.Quantile(p)
}

func (d LogNormal) Sample(dst []float64, src rand.Source) {
	l := distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: src}
	for i := range dst {
		dst[i] = l.Rand()
	}
}

func (d LogNormal) Quantile(p float64) float64 {
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma}.Quantile(p)
}

// New builds the distribution of kind around mean with one-sided bounds
// lower and upper, expressed in the units of mean.
//
//   - uniform and triangular use the edges mean-lower and mean+upper
//   - normal takes lower as one standard deviation
//   - gamma takes upper as the standard deviation and needs mean > 0
//   - lognormal takes upper/mean as the sigma of ln(X) and needs mean > 0
//
// Degenerate inputs (coinciding edges, non-positive gamma or lognormal
// means, zero spread) yield a Constant at mean.
func New(kind Kind, mean, lower, upper float64) (Distribution, error) {
	switch kind {
	case KindNone:
		return nil, ErrMissingDistribution
	case KindUniform:
		left, right := mean-lower, mean+upper
		if right < left {
			return nil, fmt.Errorf("%w: uniform [%g, %g]", ErrInvalidEdges, left, right)
		}
		if left == right {
			return Constant{mean}, nil
		}
		return Uniform{Min: left, Max: right}, nil
	case KindNormal:
		return Normal{Mu: mean, Sigma: math.Abs(lower)}, nil
	case KindTriangular:
		left, right := mean-lower, mean+upper
		if right < left {
			return nil, fmt.Errorf("%w: triangular [%g, %g]", ErrInvalidEdges, left, right)
		}
		if left == right {
			return Constant{mean}, nil
		}
		mode := 3*mean - left - right
		// absorb rounding when the mode sits on an edge
		eps := 1e-12 * math.Max(math.Abs(left), math.Abs(right))
		if mode < left && left-mode <= eps {
			mode = left
		}
		if mode > right && mode-right <= eps {
			mode = right
		}
		if mode < left || mode > right {
			return nil, fmt.Errorf("%w: mode %g not in [%g, %g]", ErrModeOutsideEdges, mode, left, right)
		}
		return Triangular{Min: left, Mode: mode, Max: right}, nil
	case KindGamma:
		if mean <= 0 || upper == 0 {
			return Constant{mean}, nil
		}
		variance := upper * upper
		scale := variance / mean
		return Gamma{Shape: mean / scale, Scale: scale}, nil
	case KindLogNormal:
		if mean <= 0 || upper == 0 {
			return Constant{mean}, nil
		}
		sigma := math.Abs(upper / mean)
		return LogNormal{Mu: math.Log(mean) - sigma*sigma/2, Sigma: sigma}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDistribution, kind)
	}
}

// Sample draws n variates of kind around mean.
func Sample(kind Kind, mean, lower, upper float64, n int, src rand.Source) ([]float64, error) {
	d, err := New(kind, mean, lower, upper)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	d.Sample(out, src)
	return out, nil
}
