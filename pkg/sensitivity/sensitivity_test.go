package sensitivity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1, Correlation(x, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1, Correlation(x, []float64{8, 6, 4, 2}), 1e-12)

	// the NaN draw is dropped from both sides
	assert.InDelta(t, 1, Correlation([]float64{1, math.NaN(), 3, 4}, []float64{1, 100, 3, 4}), 1e-12)

	assert.True(t, math.IsNaN(Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(Correlation([]float64{1}, []float64{1})))
	assert.True(t, math.IsNaN(Correlation(nil, nil)))
}

func TestShares(t *testing.T) {
	s := Shares([]float64{1, 3, math.NaN(), 4})
	assert.InDeltaSlice(t, []float64{0.125, 0.375, 0, 0.5}, s, 1e-12)

	sum := 0.0
	for _, v := range Shares([]float64{0.3, 7.1, 2.2, 11}) {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)

	assert.Equal(t, []float64{0, 0}, Shares([]float64{0, 0}))
	assert.Empty(t, Shares(nil))
}

func TestRank(t *testing.T) {
	r := Rank([]float64{0.1, -0.9, math.NaN(), 0.5, -0.5})
	idx := make([]int, len(r))
	for i, x := range r {
		idx[i] = x.Index
	}
	assert.Equal(t, []int{1, 3, 4, 0, 2}, idx)
}
