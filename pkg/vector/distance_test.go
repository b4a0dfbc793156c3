package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceCosine(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{1, 0, 0}
	assert.InDelta(t, 0, Distance(MetricCosine, a, b), 1e-9)

	b = []float64{0, 1, 0}
	assert.InDelta(t, 1, Distance(MetricCosine, a, b), 1e-9)

	b = []float64{-1, 0, 0}
	assert.InDelta(t, 2, Distance(MetricCosine, a, b), 1e-9)
}

func TestDistanceEuclidean(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{3, 4}
	assert.InDelta(t, 5, Distance(MetricEuclidean, a, b), 1e-9)
}

func TestDistanceDot(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	assert.InDelta(t, -32, Distance(MetricDot, a, b), 1e-9)
}

func TestDistanceMismatchedDims(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{1, 2, 3}
	assert.Equal(t, 2.0, Distance(MetricCosine, a, b))
	assert.True(t, math.IsInf(Distance(MetricEuclidean, a, b), 1))
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-9)
	assert.InDelta(t, 0.8, got[1], 1e-9)

	zero := Normalize([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, zero)
}
