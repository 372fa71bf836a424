// Package symbol provides the public API for Lumen computation graphs.
//
// Graphs are built from named variables and operator nodes, serialized as
// JSON, shape-checked with InferShape, and evaluated by binding argument
// arrays into an Executor:
//
//	x, _ := symbol.Variable(eng, "x")
//	w, _ := symbol.Variable(eng, "w")
//	y, _ := symbol.Dot("y", x, w)
//	exec, _ := y.Bind(ndarray.CPU(), args, grads)
//	exec.Forward()
//	exec.Backward()
package symbol

import (
	"github.com/lumen-ml/lumen/internal/capi"
	internalsym "github.com/lumen-ml/lumen/internal/symbol"
)

// Symbol is a handle to a native computation-graph node.
type Symbol = internalsym.Symbol

// Executor is a bound execution plan for a graph.
type Executor = internalsym.Executor

// Variable creates a named graph input placeholder.
func Variable(eng capi.Engine, name string) (*Symbol, error) {
	return internalsym.Variable(eng, name)
}

// Create builds an operator node over the given inputs.
func Create(eng capi.Engine, op, name string, params capi.Params, args ...*Symbol) (*Symbol, error) {
	return internalsym.Create(eng, op, name, params, args...)
}

// FromJSON reconstructs a graph from its JSON definition.
func FromJSON(eng capi.Engine, js string) (*Symbol, error) {
	return internalsym.FromJSON(eng, js)
}

// Add returns an addition node.
func Add(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return internalsym.Add(name, lhs, rhs)
}

// Sub returns a subtraction node.
func Sub(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return internalsym.Sub(name, lhs, rhs)
}

// Mul returns an elementwise product node.
func Mul(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return internalsym.Mul(name, lhs, rhs)
}

// Div returns a division node.
func Div(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return internalsym.Div(name, lhs, rhs)
}

// Dot returns a matrix product node.
func Dot(name string, lhs, rhs *Symbol) (*Symbol, error) {
	return internalsym.Dot(name, lhs, rhs)
}

// AddScalar returns an addition-by-constant node.
func AddScalar(name string, in *Symbol, s float64) (*Symbol, error) {
	return internalsym.AddScalar(name, in, s)
}

// MulScalar returns a multiplication-by-constant node.
func MulScalar(name string, in *Symbol, s float64) (*Symbol, error) {
	return internalsym.MulScalar(name, in, s)
}

// Sum returns a reduction node summing over all elements, or along axis
// when axis is non-negative.
func Sum(name string, in *Symbol, axis int, keepdims bool) (*Symbol, error) {
	return internalsym.Sum(name, in, axis, keepdims)
}

// Mean returns an arithmetic-mean reduction node.
func Mean(name string, in *Symbol, axis int, keepdims bool) (*Symbol, error) {
	return internalsym.Mean(name, in, axis, keepdims)
}

// Reshape returns a reshape node.
func Reshape(name string, in *Symbol, shape ...int) (*Symbol, error) {
	return internalsym.Reshape(name, in, shape...)
}
