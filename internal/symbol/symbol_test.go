package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/engine/enginetest"
	"github.com/lumen-ml/lumen/internal/ndarray"
)

func TestVariableAndListArguments(t *testing.T) {
	e := enginetest.New()

	x, err := Variable(e, "x")
	require.NoError(t, err)
	w, err := Variable(e, "w")
	require.NoError(t, err)

	y, err := Dot("y", x, w)
	require.NoError(t, err)

	args, err := y.ListArguments()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "w"}, args)

	outs, err := y.ListOutputs()
	require.NoError(t, err)
	assert.Equal(t, []string{"y_output"}, outs)
}

func TestVariableRejectsEmptyName(t *testing.T) {
	e := enginetest.New()
	_, err := Variable(e, "")
	assert.Error(t, err)
}

func TestCreateRejectsUnknownOp(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	_, err = Create(e, "no_such_op", "n", nil, x)
	assert.Error(t, err)
}

func TestSharedInputAppearsOnce(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)

	// x * x: the variable is used twice but listed once.
	sq, err := Mul("sq", x, x)
	require.NoError(t, err)

	args, err := sq.ListArguments()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, args)
}

func TestInferShape(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	w, err := Variable(e, "w")
	require.NoError(t, err)

	y, err := Dot("y", x, w)
	require.NoError(t, err)

	argShapes, outShapes, err := y.InferShape(map[string]ndarray.Shape{
		"x": {4, 3},
		"w": {3, 2},
	})
	require.NoError(t, err)
	require.Len(t, argShapes, 2)
	assert.Equal(t, ndarray.Shape{4, 3}, argShapes[0])
	assert.Equal(t, ndarray.Shape{3, 2}, argShapes[1])
	require.Len(t, outShapes, 1)
	assert.Equal(t, ndarray.Shape{4, 2}, outShapes[0])
}

func TestInferShapeMissingArgument(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	y, err := AddScalar("y", x, 1)
	require.NoError(t, err)

	_, _, err = y.InferShape(map[string]ndarray.Shape{})
	assert.Error(t, err)
}

func TestInferShapeIncompatible(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	w, err := Variable(e, "w")
	require.NoError(t, err)
	y, err := Dot("y", x, w)
	require.NoError(t, err)

	_, _, err = y.InferShape(map[string]ndarray.Shape{
		"x": {4, 3},
		"w": {5, 2},
	})
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	scaled, err := MulScalar("scaled", x, 3)
	require.NoError(t, err)
	y, err := AddScalar("y", scaled, 1)
	require.NoError(t, err)

	js, err := y.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"_mul_scalar"`)

	restored, err := FromJSON(e, js)
	require.NoError(t, err)

	args, err := restored.ListArguments()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, args)

	// The restored graph computes the same function.
	in, err := ndarray.FromSlice(e, []float64{1, 2}, ndarray.Shape{2}, ndarray.CPU())
	require.NoError(t, err)
	exec, err := restored.Bind(ndarray.CPU(), map[string]*ndarray.Array{"x": in}, nil)
	require.NoError(t, err)
	require.NoError(t, exec.Forward())
	out, err := exec.Output()
	require.NoError(t, err)
	vals, err := out.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 7}, vals)
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	e := enginetest.New()
	_, err := FromJSON(e, "not json")
	assert.Error(t, err)
	_, err = FromJSON(e, `{"nodes": [], "head": 0}`)
	assert.Error(t, err)
}

func TestComposeRejectsCycle(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	a, err := AddScalar("a", x, 1)
	require.NoError(t, err)

	// Composing a into itself must fail.
	err = e.SymbolCompose(a.Handle(), nil, []capi.SymbolHandle{a.Handle()})
	assert.Error(t, err)

	// A node cannot be composed twice either.
	err = e.SymbolCompose(a.Handle(), nil, []capi.SymbolHandle{x.Handle()})
	assert.Error(t, err)
}

func TestExecutorForward(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	w, err := Variable(e, "w")
	require.NoError(t, err)
	y, err := Dot("y", x, w)
	require.NoError(t, err)

	xv, err := ndarray.FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, ndarray.Shape{2, 3}, ndarray.CPU())
	require.NoError(t, err)
	wv, err := ndarray.FromSlice(e, []float64{1, 0, 0, 1, 1, 1}, ndarray.Shape{3, 2}, ndarray.CPU())
	require.NoError(t, err)

	exec, err := y.Bind(ndarray.CPU(), map[string]*ndarray.Array{"x": xv, "w": wv}, nil)
	require.NoError(t, err)
	defer exec.Close()

	require.NoError(t, exec.Forward())
	out, err := exec.Output()
	require.NoError(t, err)
	assert.Equal(t, ndarray.Shape{2, 2}, out.Shape())
	vals, err := out.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 10, 11}, vals)

	// A second Forward picks up mutated argument values: row 0 becomes
	// [10,2,3], so output row 0 is [10+3, 2+3] = [13, 5].
	require.NoError(t, xv.Set(10, 0, 0))
	require.NoError(t, exec.Forward())
	out, err = exec.Output()
	require.NoError(t, err)
	vals, err = out.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{13, 5, 10, 11}, vals)
}

func TestBindValidation(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	y, err := AddScalar("y", x, 1)
	require.NoError(t, err)

	// Missing argument array.
	_, err = y.Bind(ndarray.CPU(), map[string]*ndarray.Array{}, nil)
	assert.Error(t, err)

	// Gradient shape mismatch.
	xv, err := ndarray.Zeros(e, ndarray.Shape{2, 2}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	bad, err := ndarray.Zeros(e, ndarray.Shape{3}, capi.Float64, ndarray.CPU())
	require.NoError(t, err)
	_, err = y.Bind(ndarray.CPU(), map[string]*ndarray.Array{"x": xv},
		map[string]*ndarray.Array{"x": bad})
	assert.Error(t, err)
}

func TestExecutorBackward(t *testing.T) {
	e := enginetest.New()

	// loss = mean((x*w - y)^2), gradient checked against the closed form.
	x, err := Variable(e, "x")
	require.NoError(t, err)
	w, err := Variable(e, "w")
	require.NoError(t, err)
	yv, err := Variable(e, "y")
	require.NoError(t, err)

	pred, err := Dot("pred", x, w)
	require.NoError(t, err)
	diff, err := Sub("diff", pred, yv)
	require.NoError(t, err)
	sq, err := Mul("sq", diff, diff)
	require.NoError(t, err)
	loss, err := Mean("loss", sq, -1, false)
	require.NoError(t, err)

	ctx := ndarray.CPU()
	xv, err := ndarray.FromSlice(e, []float64{1, 2, 3, 4}, ndarray.Shape{2, 2}, ctx)
	require.NoError(t, err)
	wv, err := ndarray.FromSlice(e, []float64{1, -1}, ndarray.Shape{2, 1}, ctx)
	require.NoError(t, err)
	tv, err := ndarray.FromSlice(e, []float64{0, 0}, ndarray.Shape{2, 1}, ctx)
	require.NoError(t, err)
	grad, err := ndarray.Zeros(e, ndarray.Shape{2, 1}, capi.Float64, ctx)
	require.NoError(t, err)

	exec, err := loss.Bind(ctx,
		map[string]*ndarray.Array{"x": xv, "w": wv, "y": tv},
		map[string]*ndarray.Array{"w": grad})
	require.NoError(t, err)
	defer exec.Close()

	require.NoError(t, exec.Forward())
	out, err := exec.Output()
	require.NoError(t, err)
	lossVals, err := out.Float64s()
	require.NoError(t, err)
	// pred = [-1, -1], loss = mean(1, 1) = 1.
	assert.InDelta(t, 1.0, lossVals[0], 1e-12)

	require.NoError(t, exec.Backward())
	gvals, err := grad.Float64s()
	require.NoError(t, err)
	// dloss/dw = X^T (2/n (Xw - y)) = [[1,3],[2,4]] . [-1, -1] = [-4, -6].
	require.Len(t, gvals, 2)
	assert.InDelta(t, -4.0, gvals[0], 1e-12)
	assert.InDelta(t, -6.0, gvals[1], 1e-12)
}

func TestExecutorBackwardBroadcastAdd(t *testing.T) {
	e := enginetest.New()

	// A bias broadcast over rows: loss = mean(x + b) with x {2,3}, b {3}.
	// The bias gradient must be summed back over the broadcast axis.
	x, err := Variable(e, "x")
	require.NoError(t, err)
	b, err := Variable(e, "b")
	require.NoError(t, err)
	biased, err := Add("biased", x, b)
	require.NoError(t, err)
	loss, err := Mean("loss", biased, -1, false)
	require.NoError(t, err)

	ctx := ndarray.CPU()
	xv, err := ndarray.FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, ndarray.Shape{2, 3}, ctx)
	require.NoError(t, err)
	bv, err := ndarray.FromSlice(e, []float64{10, 20, 30}, ndarray.Shape{3}, ctx)
	require.NoError(t, err)
	gx, err := ndarray.Zeros(e, ndarray.Shape{2, 3}, capi.Float64, ctx)
	require.NoError(t, err)
	gb, err := ndarray.Zeros(e, ndarray.Shape{3}, capi.Float64, ctx)
	require.NoError(t, err)

	exec, err := loss.Bind(ctx,
		map[string]*ndarray.Array{"x": xv, "b": bv},
		map[string]*ndarray.Array{"x": gx, "b": gb})
	require.NoError(t, err)
	defer exec.Close()

	require.NoError(t, exec.Forward())
	out, err := exec.Output()
	require.NoError(t, err)
	lossVals, err := out.Float64s()
	require.NoError(t, err)
	assert.InDelta(t, 141.0/6, lossVals[0], 1e-12)

	require.NoError(t, exec.Backward())

	xGrads, err := gx.Float64s()
	require.NoError(t, err)
	for i, v := range xGrads {
		assert.InDeltaf(t, 1.0/6, v, 1e-12, "x grad %d", i)
	}
	// Each bias element feeds both rows: dloss/db_j = 2 * 1/6.
	bGrads, err := gb.Float64s()
	require.NoError(t, err)
	require.Len(t, bGrads, 3)
	for i, v := range bGrads {
		assert.InDeltaf(t, 1.0/3, v, 1e-12, "b grad %d", i)
	}
}

func TestExecutorBackwardBroadcastMultiply(t *testing.T) {
	e := enginetest.New()

	// y = sum(x * b) with x {2,3}, b {3}: db_j = sum_i x_ij, dx_ij = b_j.
	x, err := Variable(e, "x")
	require.NoError(t, err)
	b, err := Variable(e, "b")
	require.NoError(t, err)
	prod, err := Mul("prod", x, b)
	require.NoError(t, err)
	y, err := Sum("y", prod, -1, false)
	require.NoError(t, err)

	ctx := ndarray.CPU()
	xv, err := ndarray.FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, ndarray.Shape{2, 3}, ctx)
	require.NoError(t, err)
	bv, err := ndarray.FromSlice(e, []float64{10, 20, 30}, ndarray.Shape{3}, ctx)
	require.NoError(t, err)
	gx, err := ndarray.Zeros(e, ndarray.Shape{2, 3}, capi.Float64, ctx)
	require.NoError(t, err)
	gb, err := ndarray.Zeros(e, ndarray.Shape{3}, capi.Float64, ctx)
	require.NoError(t, err)

	exec, err := y.Bind(ctx,
		map[string]*ndarray.Array{"x": xv, "b": bv},
		map[string]*ndarray.Array{"x": gx, "b": gb})
	require.NoError(t, err)
	defer exec.Close()

	require.NoError(t, exec.Forward())
	out, err := exec.Output()
	require.NoError(t, err)
	sumVals, err := out.Float64s()
	require.NoError(t, err)
	assert.InDelta(t, 460.0, sumVals[0], 1e-12)

	require.NoError(t, exec.Backward())

	xGrads, err := gx.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 10, 20, 30}, xGrads)
	bGrads, err := gb.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 9}, bGrads)
}

func TestExecutorGradAccessors(t *testing.T) {
	e := enginetest.New()
	x, err := Variable(e, "x")
	require.NoError(t, err)
	y, err := MulScalar("y", x, 2)
	require.NoError(t, err)

	ctx := ndarray.CPU()
	xv, err := ndarray.FromSlice(e, []float64{1, 2, 3}, ndarray.Shape{3}, ctx)
	require.NoError(t, err)
	grad, err := ndarray.Zeros(e, ndarray.Shape{3}, capi.Float64, ctx)
	require.NoError(t, err)

	exec, err := y.Bind(ctx, map[string]*ndarray.Array{"x": xv},
		map[string]*ndarray.Array{"x": grad})
	require.NoError(t, err)
	defer exec.Close()

	assert.Same(t, xv, exec.Arg("x"))
	assert.Same(t, grad, exec.Grad("x"))
	assert.Nil(t, exec.Grad("missing"))

	require.NoError(t, exec.Forward())
	require.NoError(t, exec.Backward())
	gvals, err := grad.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, gvals)
}
