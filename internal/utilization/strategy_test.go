package utilization_test

import (
	"testing"
	"time"

	"github.com/septivank/running-hours-ledger/internal/utilization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func at(days int, rh float64) utilization.Sample {
	return utilization.Sample{At: day0.AddDate(0, 0, days), CumulativeRH: rh}
}

func TestSimpleDelta(t *testing.T) {
	rate, ok := utilization.SimpleDelta([]utilization.Sample{at(10, 1240), at(0, 1000), at(5, 1100)})

	require.True(t, ok)
	assert.InDelta(t, 24.0, rate, 1e-9)
}

func TestSimpleDelta_InsufficientData(t *testing.T) {
	_, ok := utilization.SimpleDelta(nil)
	assert.False(t, ok)

	_, ok = utilization.SimpleDelta([]utilization.Sample{at(0, 1000)})
	assert.False(t, ok)
}

func TestSimpleDelta_SameInstant(t *testing.T) {
	_, ok := utilization.SimpleDelta([]utilization.Sample{at(3, 1000), at(3, 1010)})
	assert.False(t, ok)
}

func TestSimpleDelta_IdleComponentIsZeroNotUnavailable(t *testing.T) {
	rate, ok := utilization.SimpleDelta([]utilization.Sample{at(0, 500), at(30, 500)})

	require.True(t, ok)
	assert.Zero(t, rate)
}

func TestLeastSquares(t *testing.T) {
	history := []utilization.Sample{at(0, 100), at(1, 112), at(2, 124), at(3, 136)}

	rate, ok := utilization.LeastSquares(history)

	require.True(t, ok)
	assert.InDelta(t, 12.0, rate, 1e-9)
}

func TestLeastSquares_NeedsThreeSamples(t *testing.T) {
	_, ok := utilization.LeastSquares([]utilization.Sample{at(0, 100), at(1, 112)})
	assert.False(t, ok)
}

func TestLeastSquares_DeclinesNegativeSlope(t *testing.T) {
	_, ok := utilization.LeastSquares([]utilization.Sample{at(0, 300), at(1, 200), at(2, 100)})
	assert.False(t, ok)
}

func TestByName(t *testing.T) {
	s, err := utilization.ByName("delta")
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = utilization.ByName("regression")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = utilization.ByName("random")
	require.Error(t, err)
}
