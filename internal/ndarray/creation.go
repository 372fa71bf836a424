package ndarray

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Element is the set of host element types that map onto engine data types.
type Element interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// dtypeOf maps a host element type to the engine data type.
func dtypeOf[T Element]() capi.DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return capi.Float32
	case float64:
		return capi.Float64
	case int32:
		return capi.Int32
	case int64:
		return capi.Int64
	case uint8:
		return capi.Uint8
	case bool:
		return capi.Bool
	default:
		panic("unreachable")
	}
}

// Empty allocates an uninitialized array.
func Empty(eng capi.Engine, shape Shape, dtype capi.DataType, ctx Context) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	h, err := eng.ArrayCreate(shape, dtype, ctx.Device, ctx.ID)
	if err != nil {
		return nil, err
	}
	return wrap(eng, h)
}

// Full allocates an array with every element set to value.
func Full(eng capi.Engine, shape Shape, dtype capi.DataType, ctx Context, value float64) (*Array, error) {
	a, err := Empty(eng, shape, dtype, ctx)
	if err != nil {
		return nil, err
	}
	elem := encodeElem(dtype, value)
	buf := make([]byte, a.ByteSize())
	for i := 0; i < len(buf); i += len(elem) {
		copy(buf[i:], elem)
	}
	if err := eng.ArrayCopyFromHost(a.h, buf); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Zeros allocates an array filled with zeros.
func Zeros(eng capi.Engine, shape Shape, dtype capi.DataType, ctx Context) (*Array, error) {
	return Full(eng, shape, dtype, ctx, 0)
}

// Ones allocates an array filled with ones.
func Ones(eng capi.Engine, shape Shape, dtype capi.DataType, ctx Context) (*Array, error) {
	return Full(eng, shape, dtype, ctx, 1)
}

// Scalar allocates a rank-0 array holding value.
func Scalar(eng capi.Engine, value float64, dtype capi.DataType, ctx Context) (*Array, error) {
	a, err := Empty(eng, Shape{}, dtype, ctx)
	if err != nil {
		return nil, err
	}
	if err := eng.ArrayCopyFromHost(a.h, encodeElem(dtype, value)); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Arange allocates a 1-d array with values [start, stop) stepping by step.
func Arange(eng capi.Engine, start, stop, step float64, dtype capi.DataType, ctx Context) (*Array, error) {
	if step == 0 {
		return nil, fmt.Errorf("arange: step must be non-zero")
	}
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil, fmt.Errorf("arange: empty range [%v, %v) step %v", start, stop, step)
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	a, err := Empty(eng, Shape{n}, dtype, ctx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, a.ByteSize())
	for _, v := range values {
		buf = append(buf, encodeElem(dtype, v)...)
	}
	if err := eng.ArrayCopyFromHost(a.h, buf); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// FromSlice allocates an array from host data. The element type determines
// the array's dtype; len(data) must match the shape.
func FromSlice[T Element](eng capi.Engine, data []T, shape Shape, ctx Context) (*Array, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("fromslice: %d elements do not fit shape %v (%d elements)",
			len(data), []int(shape), shape.NumElements())
	}
	a, err := Empty(eng, shape, dtypeOf[T](), ctx)
	if err != nil {
		return nil, err
	}
	if err := eng.ArrayCopyFromHost(a.h, encodeSlice(data)); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// FromFloat64s allocates an array of the given dtype from float64 host data,
// converting each element.
func FromFloat64s(eng capi.Engine, data []float64, shape Shape, dtype capi.DataType, ctx Context) (*Array, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("fromfloat64s: %d elements do not fit shape %v (%d elements)",
			len(data), []int(shape), shape.NumElements())
	}
	a, err := Empty(eng, shape, dtype, ctx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, a.ByteSize())
	for _, v := range data {
		buf = append(buf, encodeElem(dtype, v)...)
	}
	if err := eng.ArrayCopyFromHost(a.h, buf); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
