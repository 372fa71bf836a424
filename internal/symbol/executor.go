package symbol

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/ndarray"
)

// Executor is a bound execution plan for a graph: argument arrays are fixed
// at bind time, Forward evaluates the graph and Backward writes gradients
// into the bound gradient arrays.
type Executor struct {
	h    capi.ExecutorHandle
	eng  capi.Engine
	sym  *Symbol
	args map[string]*ndarray.Array
	grad map[string]*ndarray.Array
	done atomic.Bool
}

// Bind allocates an executor on ctx. args must provide an array for every
// graph argument. grads may be nil for inference, or map argument names to
// gradient arrays of the same shape; arguments absent from grads get no
// gradient.
func (s *Symbol) Bind(ctx ndarray.Context, args map[string]*ndarray.Array, grads map[string]*ndarray.Array) (*Executor, error) {
	names, err := s.ListArguments()
	if err != nil {
		return nil, err
	}
	argHandles := make([]capi.ArrayHandle, len(names))
	for i, name := range names {
		a, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("bind: no array for argument %q", name)
		}
		argHandles[i] = a.Handle()
	}
	var gradHandles []capi.ArrayHandle
	if grads != nil {
		gradHandles = make([]capi.ArrayHandle, len(names))
		for i, name := range names {
			if g, ok := grads[name]; ok {
				gradHandles[i] = g.Handle()
			}
		}
	}
	h, err := s.eng.ExecutorBind(s.h, ctx.Device, ctx.ID, argHandles, gradHandles)
	if err != nil {
		return nil, err
	}
	ex := &Executor{h: h, eng: s.eng, sym: s, args: args, grad: grads}
	runtime.SetFinalizer(ex, (*Executor).finalize)
	return ex, nil
}

func (ex *Executor) finalize() {
	_ = ex.Close()
}

// Close releases the native executor. The bound arrays are the caller's and
// stay alive.
func (ex *Executor) Close() error {
	if !ex.done.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(ex, nil)
	return ex.eng.ExecutorFree(ex.h)
}

// Forward evaluates the graph with the currently bound argument values.
func (ex *Executor) Forward() error {
	err := ex.eng.ExecutorForward(ex.h)
	runtime.KeepAlive(ex)
	return err
}

// Backward propagates gradients from the output back to the bound gradient
// arrays. With no heads the output gradient is implicitly all ones; a single
// head seeds the output gradient explicitly.
func (ex *Executor) Backward(heads ...*ndarray.Array) error {
	handles := make([]capi.ArrayHandle, len(heads))
	for i, h := range heads {
		handles[i] = h.Handle()
	}
	err := ex.eng.ExecutorBackward(ex.h, handles)
	runtime.KeepAlive(ex)
	runtime.KeepAlive(heads)
	return err
}

// Outputs returns fresh arrays holding the graph outputs from the last
// Forward.
func (ex *Executor) Outputs() ([]*ndarray.Array, error) {
	handles, err := ex.eng.ExecutorOutputs(ex.h)
	runtime.KeepAlive(ex)
	if err != nil {
		return nil, err
	}
	outs := make([]*ndarray.Array, len(handles))
	for i, h := range handles {
		a, err := ndarray.FromHandle(ex.eng, h)
		if err != nil {
			return nil, err
		}
		outs[i] = a
	}
	return outs, nil
}

// Output returns the graph's single output from the last Forward.
func (ex *Executor) Output() (*ndarray.Array, error) {
	outs, err := ex.Outputs()
	if err != nil {
		return nil, err
	}
	if len(outs) != 1 {
		return nil, fmt.Errorf("output: graph has %d outputs", len(outs))
	}
	return outs[0], nil
}

// Grad returns the gradient array bound for name, or nil if none was.
func (ex *Executor) Grad(name string) *ndarray.Array {
	return ex.grad[name]
}

// Arg returns the argument array bound for name, or nil if none was.
func (ex *Executor) Arg(name string) *ndarray.Array {
	return ex.args[name]
}
