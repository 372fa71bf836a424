// Package random provides the public API for drawing random arrays from the
// engine's samplers.
package random

import (
	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/ndarray"
	internalrandom "github.com/lumen-ml/lumen/internal/random"
)

// Seed seeds the engine's global random state. Draws after the same seed
// produce the same sequence.
func Seed(eng capi.Engine, seed uint64) error {
	return internalrandom.Seed(eng, seed)
}

// Uniform draws from the uniform distribution on [low, high).
func Uniform(eng capi.Engine, low, high float64, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	return internalrandom.Uniform(eng, low, high, shape, dtype, ctx)
}

// Normal draws from the normal distribution with mean loc and standard
// deviation scale.
func Normal(eng capi.Engine, loc, scale float64, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	return internalrandom.Normal(eng, loc, scale, shape, dtype, ctx)
}

// Randint draws integers from [low, high).
func Randint(eng capi.Engine, low, high int, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	return internalrandom.Randint(eng, low, high, shape, dtype, ctx)
}
