// Package ndarray wraps the Lumen engine's n-dimensional array handles.
//
// An Array is a thin handle around a native pointer: all arithmetic,
// reductions and transfers happen inside the engine. The package adds host
// ergonomics on top: typed data accessors, indexing, iteration over the
// first axis, and save/load helpers.
package ndarray

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Array is a handle to a native n-dimensional array.
//
// Shape, dtype and context are fixed at creation; Reshape and Cast produce
// new handles. The native buffer is released exactly once: either by an
// explicit Close or by the finalizer when the last host reference drops.
type Array struct {
	h    capi.ArrayHandle
	eng  capi.Engine
	shp  Shape
	dt   capi.DataType
	ctx  Context
	done atomic.Bool
}

// wrap adopts a native handle, caching its metadata and arming the
// release finalizer. If a metadata query fails the handle is freed before
// returning: the caller has no way to release it otherwise.
func wrap(eng capi.Engine, h capi.ArrayHandle) (*Array, error) {
	shape, err := eng.ArrayShape(h)
	if err != nil {
		_ = eng.ArrayFree(h)
		return nil, err
	}
	dtype, err := eng.ArrayDType(h)
	if err != nil {
		_ = eng.ArrayFree(h)
		return nil, err
	}
	dev, devID, err := eng.ArrayContext(h)
	if err != nil {
		_ = eng.ArrayFree(h)
		return nil, err
	}
	a := &Array{
		h:   h,
		eng: eng,
		shp: Shape(shape),
		dt:  dtype,
		ctx: Context{Device: dev, ID: devID},
	}
	runtime.SetFinalizer(a, (*Array).finalize)
	return a, nil
}

func (a *Array) finalize() {
	_ = a.Close()
}

// Close releases the native buffer. It is safe to call more than once;
// only the first call reaches the engine. Using the array afterwards
// returns capi.ErrInvalidHandle from the engine.
func (a *Array) Close() error {
	if !a.done.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(a, nil)
	return a.eng.ArrayFree(a.h)
}

// Handle exposes the native handle for advanced use (executor binding).
func (a *Array) Handle() capi.ArrayHandle {
	return a.h
}

// Engine returns the engine this array belongs to.
func (a *Array) Engine() capi.Engine {
	return a.eng
}

// Shape returns the array's shape.
func (a *Array) Shape() Shape {
	return a.shp.Clone()
}

// DType returns the array's element type.
func (a *Array) DType() capi.DataType {
	return a.dt
}

// Context returns the device the array resides on.
func (a *Array) Context() Context {
	return a.ctx
}

// NumElements returns the total number of elements.
func (a *Array) NumElements() int {
	return a.shp.NumElements()
}

// ByteSize returns the buffer size in bytes.
func (a *Array) ByteSize() int {
	return a.NumElements() * a.dt.Size()
}

// Len returns the length of the first axis. Scalars have length 0.
func (a *Array) Len() int {
	if len(a.shp) == 0 {
		return 0
	}
	return a.shp[0]
}

// invoke forwards an op call with this array as first input, adopting the
// single output handle.
func (a *Array) invoke(op string, others []*Array, params capi.Params) (*Array, error) {
	inputs := make([]capi.ArrayHandle, 0, len(others)+1)
	inputs = append(inputs, a.h)
	for _, o := range others {
		inputs = append(inputs, o.h)
	}
	outs, err := a.eng.Invoke(op, inputs, params)
	if err != nil {
		return nil, err
	}
	out, err := wrap(a.eng, outs[0])
	runtime.KeepAlive(a)
	runtime.KeepAlive(others)
	return out, err
}

// String returns a compact description; small arrays include their values.
func (a *Array) String() string {
	if a.NumElements() <= 20 {
		if data, err := a.Float64s(); err == nil {
			return fmt.Sprintf("Array%v %v %s @%s", []int(a.shp), data, a.dt, a.ctx)
		}
	}
	return fmt.Sprintf("Array%v %s @%s", []int(a.shp), a.dt, a.ctx)
}
