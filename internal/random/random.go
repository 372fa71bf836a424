// Package random draws random arrays from the engine's samplers.
//
// All draws come from the engine's global random state; Seed makes runs
// reproducible.
package random

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/ndarray"
)

// Seed seeds the engine's global random state. Draws after the same seed
// produce the same sequence.
func Seed(eng capi.Engine, seed uint64) error {
	return eng.RandomSeed(seed)
}

func sample(eng capi.Engine, op string, p capi.Params, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	p.SetShape("shape", shape)
	p["dtype"] = dtype.String()
	p.SetInt("dev_type", int(ctx.Device))
	p.SetInt("dev_id", ctx.ID)
	outs, err := ndarray.Invoke(eng, op, nil, p)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// Uniform draws from the uniform distribution on [low, high).
func Uniform(eng capi.Engine, low, high float64, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	if low >= high {
		return nil, fmt.Errorf("uniform: low %v must be below high %v", low, high)
	}
	p := capi.Params{}
	p.SetFloat("low", low)
	p.SetFloat("high", high)
	return sample(eng, "_random_uniform", p, shape, dtype, ctx)
}

// Normal draws from the normal distribution with mean loc and standard
// deviation scale.
func Normal(eng capi.Engine, loc, scale float64, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	if scale < 0 {
		return nil, fmt.Errorf("normal: scale %v must be non-negative", scale)
	}
	p := capi.Params{}
	p.SetFloat("loc", loc)
	p.SetFloat("scale", scale)
	return sample(eng, "_random_normal", p, shape, dtype, ctx)
}

// Randint draws integers from [low, high).
func Randint(eng capi.Engine, low, high int, shape ndarray.Shape, dtype capi.DataType, ctx ndarray.Context) (*ndarray.Array, error) {
	if low >= high {
		return nil, fmt.Errorf("randint: low %d must be below high %d", low, high)
	}
	p := capi.Params{}
	p.SetInt("low", low)
	p.SetInt("high", high)
	return sample(eng, "_random_randint", p, shape, dtype, ctx)
}
