package ndarray

import "github.com/lumen-ml/lumen/internal/capi"

// Elementwise binary ops. Shapes broadcast following the usual trailing-axis
// rules; mismatched non-broadcastable shapes fail inside the engine.

// Add returns a + b.
func (a *Array) Add(b *Array) (*Array, error) {
	return a.invoke("add", []*Array{b}, nil)
}

// Sub returns a - b.
func (a *Array) Sub(b *Array) (*Array, error) {
	return a.invoke("subtract", []*Array{b}, nil)
}

// Mul returns the elementwise product a * b.
func (a *Array) Mul(b *Array) (*Array, error) {
	return a.invoke("multiply", []*Array{b}, nil)
}

// Div returns a / b.
func (a *Array) Div(b *Array) (*Array, error) {
	return a.invoke("divide", []*Array{b}, nil)
}

// Maximum returns the elementwise maximum of a and b.
func (a *Array) Maximum(b *Array) (*Array, error) {
	return a.invoke("maximum", []*Array{b}, nil)
}

// Minimum returns the elementwise minimum of a and b.
func (a *Array) Minimum(b *Array) (*Array, error) {
	return a.invoke("minimum", []*Array{b}, nil)
}

// Pow returns a raised to b elementwise.
func (a *Array) Pow(b *Array) (*Array, error) {
	return a.invoke("power", []*Array{b}, nil)
}

// Scalar ops.

func (a *Array) scalarOp(op string, s float64) (*Array, error) {
	p := capi.Params{}
	p.SetFloat("scalar", s)
	return a.invoke(op, nil, p)
}

// AddScalar returns a + s.
func (a *Array) AddScalar(s float64) (*Array, error) {
	return a.scalarOp("_plus_scalar", s)
}

// SubScalar returns a - s.
func (a *Array) SubScalar(s float64) (*Array, error) {
	return a.scalarOp("_minus_scalar", s)
}

// RSubScalar returns s - a.
func (a *Array) RSubScalar(s float64) (*Array, error) {
	return a.scalarOp("_rminus_scalar", s)
}

// MulScalar returns a * s.
func (a *Array) MulScalar(s float64) (*Array, error) {
	return a.scalarOp("_mul_scalar", s)
}

// DivScalar returns a / s.
func (a *Array) DivScalar(s float64) (*Array, error) {
	return a.scalarOp("_div_scalar", s)
}

// RDivScalar returns s / a.
func (a *Array) RDivScalar(s float64) (*Array, error) {
	return a.scalarOp("_rdiv_scalar", s)
}

// PowScalar returns a raised to s elementwise.
func (a *Array) PowScalar(s float64) (*Array, error) {
	return a.scalarOp("_power_scalar", s)
}

// Unary ops.

// Neg returns -a.
func (a *Array) Neg() (*Array, error) {
	return a.invoke("negative", nil, nil)
}

// Exp returns e**a elementwise.
func (a *Array) Exp() (*Array, error) {
	return a.invoke("exp", nil, nil)
}

// Log returns the natural logarithm elementwise.
func (a *Array) Log() (*Array, error) {
	return a.invoke("log", nil, nil)
}

// Sqrt returns the square root elementwise.
func (a *Array) Sqrt() (*Array, error) {
	return a.invoke("sqrt", nil, nil)
}

// Abs returns the absolute value elementwise.
func (a *Array) Abs() (*Array, error) {
	return a.invoke("abs", nil, nil)
}

// Comparisons. Results have the operands' broadcast shape with 1.0 where the
// predicate holds and 0.0 elsewhere, in the left operand's dtype.

// Equal returns a == b elementwise.
func (a *Array) Equal(b *Array) (*Array, error) {
	return a.invoke("equal", []*Array{b}, nil)
}

// NotEqual returns a != b elementwise.
func (a *Array) NotEqual(b *Array) (*Array, error) {
	return a.invoke("not_equal", []*Array{b}, nil)
}

// Greater returns a > b elementwise.
func (a *Array) Greater(b *Array) (*Array, error) {
	return a.invoke("greater", []*Array{b}, nil)
}

// GreaterEqual returns a >= b elementwise.
func (a *Array) GreaterEqual(b *Array) (*Array, error) {
	return a.invoke("greater_equal", []*Array{b}, nil)
}

// Lesser returns a < b elementwise.
func (a *Array) Lesser(b *Array) (*Array, error) {
	return a.invoke("lesser", []*Array{b}, nil)
}

// LesserEqual returns a <= b elementwise.
func (a *Array) LesserEqual(b *Array) (*Array, error) {
	return a.invoke("lesser_equal", []*Array{b}, nil)
}

// Dot returns the matrix product of two 2-d arrays, or the inner product of
// two 1-d arrays.
func (a *Array) Dot(b *Array) (*Array, error) {
	return a.invoke("dot", []*Array{b}, nil)
}

// Reductions. An axis of -1 reduces over all elements to a rank-0 array.

func (a *Array) reduceOp(op string, axis int, keepdims bool) (*Array, error) {
	p := capi.Params{}
	if axis >= 0 {
		p.SetInt("axis", axis)
	}
	p.SetBool("keepdims", keepdims)
	return a.invoke(op, nil, p)
}

// Sum reduces by addition along axis, or over all elements if axis is -1.
func (a *Array) Sum(axis int, keepdims bool) (*Array, error) {
	return a.reduceOp("sum", axis, keepdims)
}

// Mean reduces to the arithmetic mean along axis, or over all elements if
// axis is -1.
func (a *Array) Mean(axis int, keepdims bool) (*Array, error) {
	return a.reduceOp("mean", axis, keepdims)
}

// Max reduces to the maximum along axis, or over all elements if axis is -1.
func (a *Array) Max(axis int, keepdims bool) (*Array, error) {
	return a.reduceOp("max", axis, keepdims)
}

// Min reduces to the minimum along axis, or over all elements if axis is -1.
func (a *Array) Min(axis int, keepdims bool) (*Array, error) {
	return a.reduceOp("min", axis, keepdims)
}

// Argmax returns the index of the maximum along axis. The default axis is
// the last one.
func (a *Array) Argmax(axis int) (*Array, error) {
	p := capi.Params{}
	p.SetInt("axis", axis)
	return a.invoke("argmax", nil, p)
}
