package dataset

import (
	"math"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	data := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1},
		// Ties are decided on the binary value, as Python's round() does.
		{1.015, 1.01},
		{2.675, 2.67},
		{0.125, 0.12},
		{0.375, 0.38},
		{12925.662905, 12925.66},
		{-1.235, -1.24},
		{1e300, 1e300},
	}
	for _, line := range data {
		assert.InDelta(t, line.want, Round2(line.in), 1e-9, "%v", line.in)
	}
	assert.True(t, math.IsInf(Round2(math.Inf(1)), 1))
	assert.True(t, math.IsNaN(Round2(math.NaN())))
}

func TestRoundTo(t *testing.T) {
	assert.InDelta(t, 1.01, roundTo(1.001, 2, apd.RoundCeiling), 1e-9)
	assert.InDelta(t, 1.99, roundTo(1.999, 2, apd.RoundFloor), 1e-9)
	assert.InDelta(t, 0.13, roundTo(0.125, 2, apd.RoundHalfUp), 1e-9)
	assert.InDelta(t, 0.12, roundTo(0.125, 2, apd.RoundHalfEven), 1e-9)
	// 0.12345 is slightly above the tie in binary.
	assert.InDelta(t, 0.1235, roundTo(0.12345, 4, apd.RoundHalfEven), 1e-9)
}

func TestMean2(t *testing.T) {
	assert.InDelta(t, 3000, mean2([]float64{2000, 4000}), 1e-9)
	assert.InDelta(t, 0.2, mean2([]float64{0.1, 0.2, 0.3}), 1e-12)
	assert.True(t, math.IsNaN(mean2(nil)))
}
