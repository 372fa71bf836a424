// Package ndarray provides the public API for Lumen arrays.
//
// An Array is a handle to an n-dimensional array owned by the native
// engine. Arrays are created against an engine and a device context:
//
//	eng, _ := native.Load("")
//	x, _ := ndarray.Zeros(eng, ndarray.Shape{2, 3}, ndarray.Float32, ndarray.CPU())
//	y, _ := ndarray.Ones(eng, ndarray.Shape{2, 3}, ndarray.Float32, ndarray.CPU())
//	z, _ := x.Add(y)
package ndarray

import (
	"github.com/lumen-ml/lumen/internal/capi"
	internalnd "github.com/lumen-ml/lumen/internal/ndarray"
)

// Array is a handle to a native n-dimensional array.
type Array = internalnd.Array

// Shape represents the dimensions of an array.
type Shape = internalnd.Shape

// Context identifies the device an array's buffer resides on.
type Context = internalnd.Context

// Element is the set of host element types that map onto engine data types.
type Element = internalnd.Element

// DataType represents the element type of an array.
type DataType = capi.DataType

// Data type constants.
const (
	Float32 DataType = capi.Float32
	Float64 DataType = capi.Float64
	Int32   DataType = capi.Int32
	Int64   DataType = capi.Int64
	Uint8   DataType = capi.Uint8
	Bool    DataType = capi.Bool
)

// CPU returns the context for the host CPU.
func CPU() Context { return internalnd.CPU() }

// GPU returns the context for GPU device i.
func GPU(i int) Context { return internalnd.GPU(i) }

// CPUPinned returns the context for pinned host memory usable by device i.
func CPUPinned(i int) Context { return internalnd.CPUPinned(i) }

// Empty allocates an uninitialized array.
func Empty(eng capi.Engine, shape Shape, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.Empty(eng, shape, dtype, ctx)
}

// Zeros allocates an array filled with zeros.
func Zeros(eng capi.Engine, shape Shape, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.Zeros(eng, shape, dtype, ctx)
}

// Ones allocates an array filled with ones.
func Ones(eng capi.Engine, shape Shape, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.Ones(eng, shape, dtype, ctx)
}

// Full allocates an array with every element set to value.
func Full(eng capi.Engine, shape Shape, dtype DataType, ctx Context, value float64) (*Array, error) {
	return internalnd.Full(eng, shape, dtype, ctx, value)
}

// Scalar allocates a rank-0 array holding value.
func Scalar(eng capi.Engine, value float64, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.Scalar(eng, value, dtype, ctx)
}

// Arange allocates a 1-d array with values [start, stop) stepping by step.
func Arange(eng capi.Engine, start, stop, step float64, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.Arange(eng, start, stop, step, dtype, ctx)
}

// FromSlice allocates an array from host data. The element type determines
// the array's dtype.
func FromSlice[T Element](eng capi.Engine, data []T, shape Shape, ctx Context) (*Array, error) {
	return internalnd.FromSlice(eng, data, shape, ctx)
}

// FromFloat64s allocates an array of the given dtype from float64 host data.
func FromFloat64s(eng capi.Engine, data []float64, shape Shape, dtype DataType, ctx Context) (*Array, error) {
	return internalnd.FromFloat64s(eng, data, shape, dtype, ctx)
}

// Concat joins arrays along axis dim.
func Concat(dim int, arrays ...*Array) (*Array, error) {
	return internalnd.Concat(dim, arrays...)
}

// Invoke dispatches a registered operator by name.
func Invoke(eng capi.Engine, op string, inputs []*Array, params capi.Params) ([]*Array, error) {
	return internalnd.Invoke(eng, op, inputs, params)
}

// Save writes named arrays to path in the engine container format.
func Save(path string, arrays map[string]*Array) error {
	return internalnd.Save(path, arrays)
}

// SaveList writes arrays to path under the given names, in order.
func SaveList(path string, names []string, arrays []*Array) error {
	return internalnd.SaveList(path, names, arrays)
}

// Load reads a container file, returning the arrays keyed by name.
func Load(eng capi.Engine, path string) (map[string]*Array, error) {
	return internalnd.Load(eng, path)
}
