package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/engine/enginetest"
	"github.com/lumen-ml/lumen/internal/ndarray"
)

func TestUniformBoundsAndShape(t *testing.T) {
	e := enginetest.New()
	a, err := Uniform(e, -2, 3, ndarray.Shape{4, 8}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)

	assert.Equal(t, ndarray.Shape{4, 8}, a.Shape())
	assert.Equal(t, capi.Float64, a.DType())
	vals, err := a.Float64s()
	require.NoError(t, err)
	for i, v := range vals {
		assert.GreaterOrEqualf(t, v, -2.0, "value %d below low", i)
		assert.Lessf(t, v, 3.0, "value %d at or above high", i)
	}
}

func TestUniformRejectsEmptyInterval(t *testing.T) {
	e := enginetest.New()
	_, err := Uniform(e, 1, 1, ndarray.Shape{2}, capi.Float64, ndarray.CPU())
	assert.Error(t, err)
	_, err = Uniform(e, 2, 1, ndarray.Shape{2}, capi.Float64, ndarray.CPU())
	assert.Error(t, err)
}

func TestNormalMoments(t *testing.T) {
	e := enginetest.New()
	require.NoError(t, Seed(e, 1))

	a, err := Normal(e, 10, 0.5, ndarray.Shape{4096}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	vals, err := a.Float64s()
	require.NoError(t, err)

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	assert.InDelta(t, 10, mean, 0.1)

	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))
	assert.InDelta(t, 0.25, variance, 0.05)
}

func TestNormalRejectsNegativeScale(t *testing.T) {
	e := enginetest.New()
	_, err := Normal(e, 0, -1, ndarray.Shape{2}, capi.Float64, ndarray.CPU())
	assert.Error(t, err)
}

func TestRandintRange(t *testing.T) {
	e := enginetest.New()
	a, err := Randint(e, -3, 4, ndarray.Shape{64}, capi.Int32, ndarray.CPU())
	require.NoError(t, err)

	assert.Equal(t, capi.Int32, a.DType())
	ints, err := a.Int32s()
	require.NoError(t, err)
	for i, v := range ints {
		assert.GreaterOrEqualf(t, v, int32(-3), "value %d below low", i)
		assert.Lessf(t, v, int32(4), "value %d at or above high", i)
	}

	_, err = Randint(e, 5, 5, ndarray.Shape{2}, capi.Int32, ndarray.CPU())
	assert.Error(t, err)
}

func TestSeedReproducesDraws(t *testing.T) {
	e := enginetest.New()

	require.NoError(t, Seed(e, 99))
	a, err := Uniform(e, 0, 1, ndarray.Shape{32}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	first, err := a.Float64s()
	require.NoError(t, err)

	require.NoError(t, Seed(e, 99))
	b, err := Uniform(e, 0, 1, ndarray.Shape{32}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	second, err := b.Float64s()
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// A different seed gives a different sequence.
	require.NoError(t, Seed(e, 100))
	c, err := Uniform(e, 0, 1, ndarray.Shape{32}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	third, err := c.Float64s()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRejectsInvalidShape(t *testing.T) {
	e := enginetest.New()
	_, err := Uniform(e, 0, 1, ndarray.Shape{0}, capi.Float64, ndarray.CPU())
	assert.Error(t, err)
}
