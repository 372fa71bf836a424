// Package symbol builds computation graphs on the engine and runs them
// through executors.
//
// A Symbol is a handle to a graph node. Graphs are built from named
// variables and operator nodes, serialized as JSON, shape-checked with
// InferShape, and evaluated by binding argument arrays into an Executor.
package symbol

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/ndarray"
)

// Symbol is a handle to a native computation-graph node.
type Symbol struct {
	h    capi.SymbolHandle
	eng  capi.Engine
	done atomic.Bool
}

func wrap(eng capi.Engine, h capi.SymbolHandle) *Symbol {
	s := &Symbol{h: h, eng: eng}
	runtime.SetFinalizer(s, (*Symbol).finalize)
	return s
}

func (s *Symbol) finalize() {
	_ = s.Close()
}

// Close releases the native node handle. Symbols already composed into other
// graphs remain reachable through their parents.
func (s *Symbol) Close() error {
	if !s.done.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(s, nil)
	return s.eng.SymbolFree(s.h)
}

// Handle exposes the native handle.
func (s *Symbol) Handle() capi.SymbolHandle {
	return s.h
}

// Engine returns the engine this symbol belongs to.
func (s *Symbol) Engine() capi.Engine {
	return s.eng
}

// Variable creates a named graph input placeholder.
func Variable(eng capi.Engine, name string) (*Symbol, error) {
	if name == "" {
		return nil, fmt.Errorf("variable: name must be non-empty")
	}
	h, err := eng.SymbolVariable(name)
	if err != nil {
		return nil, err
	}
	return wrap(eng, h), nil
}

// Create builds an operator node over the given inputs. All inputs must
// belong to the same engine.
func Create(eng capi.Engine, op, name string, params capi.Params, args ...*Symbol) (*Symbol, error) {
	h, err := eng.SymbolCreate(op, name, params)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		handles := make([]capi.SymbolHandle, len(args))
		for i, a := range args {
			if a.eng != eng {
				return nil, fmt.Errorf("create %s: input %d belongs to a different engine", op, i)
			}
			handles[i] = a.h
		}
		if err := eng.SymbolCompose(h, nil, handles); err != nil {
			return nil, err
		}
		runtime.KeepAlive(args)
	}
	return wrap(eng, h), nil
}

func binary(op, name string, lhs, rhs *Symbol) (*Symbol, error) {
	return Create(lhs.eng, op, name, nil, lhs, rhs)
}

// Add returns an addition node.
func Add(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return binary("add", name, lhs, rhs)
}

// Sub returns a subtraction node.
func Sub(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return binary("subtract", name, lhs, rhs)
}

// Mul returns an elementwise product node.
func Mul(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return binary("multiply", name, lhs, rhs)
}

// Div returns a division node.
func Div(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return binary("divide", name, lhs, rhs)
}

// Dot returns a matrix product node.
func Dot(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return binary("dot", name, lhs, rhs)
}

// AddScalar returns an addition-by-constant node.
func AddScalar(name string, in *Symbol, s float64) (*Symbol, error) {
	p := capi.Params{}
	p.SetFloat("scalar", s)
	return Create(in.eng, "_plus_scalar", name, p, in)
}

// MulScalar returns a multiplication-by-constant node.
func MulScalar(name string, in *Symbol, s float64) (*Symbol, error) {
	p := capi.Params{}
	p.SetFloat("scalar", s)
	return Create(in.eng, "_mul_scalar", name, p, in)
}

// Sum returns a reduction node summing over all elements, or along axis when
// axis is non-negative.
func Sum(name string, in *Symbol, axis int, keepdims bool) (*Symbol, error) {
	p := capi.Params{}
	if axis >= 0 {
		p.SetInt("axis", axis)
	}
	p.SetBool("keepdims", keepdims)
	return Create(in.eng, "sum", name, p, in)
}

// Mean returns an arithmetic-mean reduction node.
func Mean(name string, in *Symbol, axis int, keepdims bool) (*Symbol, error) {
	p := capi.Params{}
	if axis >= 0 {
		p.SetInt("axis", axis)
	}
	p.SetBool("keepdims", keepdims)
	return Create(in.eng, "mean", name, p, in)
}

// Reshape returns a reshape node.
func Reshape(name string, in *Symbol, shape ...int) (*Symbol, error) {
	p := capi.Params{}
	p.SetShape("shape", shape)
	return Create(in.eng, "reshape", name, p, in)
}

// ListArguments lists the graph's input argument names in depth-first
// first-appearance order.
func (s *Symbol) ListArguments() ([]string, error) {
	names, err := s.eng.SymbolListArguments(s.h)
	runtime.KeepAlive(s)
	return names, err
}

// ListOutputs lists the graph's output names.
func (s *Symbol) ListOutputs() ([]string, error) {
	names, err := s.eng.SymbolListOutputs(s.h)
	runtime.KeepAlive(s)
	return names, err
}

// ToJSON serializes the graph definition.
func (s *Symbol) ToJSON() (string, error) {
	js, err := s.eng.SymbolToJSON(s.h)
	runtime.KeepAlive(s)
	return js, err
}

// FromJSON reconstructs a graph from its JSON definition.
func FromJSON(eng capi.Engine, js string) (*Symbol, error) {
	h, err := eng.SymbolFromJSON(js)
	if err != nil {
		return nil, err
	}
	return wrap(eng, h), nil
}

// InferShape completes argument and output shapes from the shapes given for
// the graph's variables. Argument shapes come back in ListArguments order.
func (s *Symbol) InferShape(args map[string]ndarray.Shape) (argShapes, outShapes []ndarray.Shape, err error) {
	in := make(map[string][]int, len(args))
	for name, shape := range args {
		in[name] = shape
	}
	rawArgs, rawOuts, err := s.eng.SymbolInferShape(s.h, in)
	runtime.KeepAlive(s)
	if err != nil {
		return nil, nil, err
	}
	argShapes = make([]ndarray.Shape, len(rawArgs))
	for i, raw := range rawArgs {
		argShapes[i] = ndarray.Shape(raw)
	}
	outShapes = make([]ndarray.Shape, len(rawOuts))
	for i, raw := range rawOuts {
		outShapes[i] = ndarray.Shape(raw)
	}
	return argShapes, outShapes, nil
}
