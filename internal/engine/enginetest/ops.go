package enginetest

import (
	"math"
	"sort"

	"github.com/lumen-ml/lumen/internal/capi"
)

// opFunc evaluates one operator on already-resolved input buffers.
// Callers hold the engine mutex.
type opFunc func(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error)

// opRegistry maps operator names to implementations. Names follow the
// engine's op dictionary; the leading underscore marks internal ops that the
// binding reaches through scalar shims and transfer helpers.
var opRegistry = map[string]opFunc{
	// Element-wise binary.
	"add":      binaryOp(func(x, y float64) float64 { return x + y }),
	"subtract": binaryOp(func(x, y float64) float64 { return x - y }),
	"multiply": binaryOp(func(x, y float64) float64 { return x * y }),
	"divide":   binaryOp(func(x, y float64) float64 { return x / y }),
	"maximum":  binaryOp(math.Max),
	"minimum":  binaryOp(math.Min),
	"power":    binaryOp(math.Pow),

	// Scalar shims.
	"_plus_scalar":   scalarOp(func(x, s float64) float64 { return x + s }),
	"_minus_scalar":  scalarOp(func(x, s float64) float64 { return x - s }),
	"_rminus_scalar": scalarOp(func(x, s float64) float64 { return s - x }),
	"_mul_scalar":    scalarOp(func(x, s float64) float64 { return x * s }),
	"_div_scalar":    scalarOp(func(x, s float64) float64 { return x / s }),
	"_rdiv_scalar":   scalarOp(func(x, s float64) float64 { return s / x }),
	"_power_scalar":  scalarOp(math.Pow),

	// Element-wise unary.
	"negative": unaryOp(func(x float64) float64 { return -x }),
	"exp":      unaryOp(math.Exp),
	"log":      unaryOp(math.Log),
	"sqrt":     unaryOp(math.Sqrt),
	"abs":      unaryOp(math.Abs),

	// Comparison (results are 0/1 in the left operand's dtype).
	"equal":         binaryOp(cmp(func(x, y float64) bool { return x == y })),
	"not_equal":     binaryOp(cmp(func(x, y float64) bool { return x != y })),
	"greater":       binaryOp(cmp(func(x, y float64) bool { return x > y })),
	"greater_equal": binaryOp(cmp(func(x, y float64) bool { return x >= y })),
	"lesser":        binaryOp(cmp(func(x, y float64) bool { return x < y })),
	"lesser_equal":  binaryOp(cmp(func(x, y float64) bool { return x <= y })),

	// Matrix.
	"dot": opDot,

	// Reductions.
	"sum":    reduceOp(func(acc, x float64, _ int) float64 { return acc + x }, nil),
	"mean":   reduceOp(func(acc, x float64, _ int) float64 { return acc + x }, func(acc float64, n int) float64 { return acc / float64(n) }),
	"max":    reduceOp(func(acc, x float64, i int) float64 { return pick(i == 0 || x > acc, x, acc) }, nil),
	"min":    reduceOp(func(acc, x float64, i int) float64 { return pick(i == 0 || x < acc, x, acc) }, nil),
	"argmax": opArgmax,

	// Shape.
	"reshape":     opReshape,
	"transpose":   opTranspose,
	"expand_dims": opExpandDims,
	"squeeze":     opSqueeze,
	"slice":       opSlice,
	"concat":      opConcat,

	// Type and device.
	"_cast":   opCast,
	"_copyto": opCopyTo,

	// Random.
	"_random_uniform": opRandomUniform,
	"_random_normal":  opRandomNormal,
	"_random_randint": opRandomRandint,
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func cmp(f func(x, y float64) bool) func(x, y float64) float64 {
	return func(x, y float64) float64 {
		if f(x, y) {
			return 1
		}
		return 0
	}
}

func wantInputs(op string, in []*buffer, n int) error {
	if len(in) != n {
		return statusErr(op, "expected %d inputs, got %d", n, len(in))
	}
	return nil
}

// binaryOp builds a broadcasting element-wise operator.
func binaryOp(f func(x, y float64) float64) opFunc {
	return func(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
		if err := wantInputs("binary op", in, 2); err != nil {
			return nil, err
		}
		a, b := in[0], in[1]
		outShape, err := broadcastShapes(a.shape, b.shape)
		if err != nil {
			return nil, statusErr("binary op", "%v", err)
		}
		out := newBuffer(outShape, a.dtype, a.dev, a.devID)
		aData, bData := a.f64(), b.f64()
		n := out.numElements()
		for i := 0; i < n; i++ {
			x := aData[broadcastIndex(i, outShape, a.shape)]
			y := bData[broadcastIndex(i, outShape, b.shape)]
			out.setF64(i, f(x, y))
		}
		return []*buffer{out}, nil
	}
}

// scalarOp builds an element-wise operator with a "scalar" keyword argument.
func scalarOp(f func(x, s float64) float64) opFunc {
	return func(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
		if err := wantInputs("scalar op", in, 1); err != nil {
			return nil, err
		}
		s, err := params.Float("scalar", 0)
		if err != nil {
			return nil, err
		}
		a := in[0]
		out := newBuffer(a.shape, a.dtype, a.dev, a.devID)
		for i, x := range a.f64() {
			out.setF64(i, f(x, s))
		}
		return []*buffer{out}, nil
	}
}

func unaryOp(f func(x float64) float64) opFunc {
	return func(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
		if err := wantInputs("unary op", in, 1); err != nil {
			return nil, err
		}
		a := in[0]
		out := newBuffer(a.shape, a.dtype, a.dev, a.devID)
		for i, x := range a.f64() {
			out.setF64(i, f(x))
		}
		return []*buffer{out}, nil
	}
}

func opDot(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("dot", in, 2); err != nil {
		return nil, err
	}
	a, b := in[0], in[1]
	if len(a.shape) == 1 && len(b.shape) == 1 {
		if a.shape[0] != b.shape[0] {
			return nil, statusErr("dot", "incompatible shapes %v and %v", a.shape, b.shape)
		}
		out := newBuffer([]int{}, a.dtype, a.dev, a.devID)
		aData, bData := a.f64(), b.f64()
		sum := 0.0
		for i := range aData {
			sum += aData[i] * bData[i]
		}
		out.setF64(0, sum)
		return []*buffer{out}, nil
	}
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, statusErr("dot", "requires 1-D or 2-D inputs, got %v and %v", a.shape, b.shape)
	}
	if a.shape[1] != b.shape[0] {
		return nil, statusErr("dot", "incompatible shapes %v and %v", a.shape, b.shape)
	}
	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	out := newBuffer([]int{m, n}, a.dtype, a.dev, a.devID)
	aData, bData := a.f64(), b.f64()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for p := 0; p < k; p++ {
				sum += aData[i*k+p] * bData[p*n+j]
			}
			out.setF64(i*n+j, sum)
		}
	}
	return []*buffer{out}, nil
}

// reduceOp builds a reduction with optional "axis" and "keepdims" kwargs.
// acc folds values (index 0 initializes); finish post-processes (mean).
func reduceOp(acc func(acc, x float64, i int) float64, finish func(acc float64, n int) float64) opFunc {
	return func(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
		if err := wantInputs("reduce op", in, 1); err != nil {
			return nil, err
		}
		a := in[0]
		keepdims, err := params.Bool("keepdims", false)
		if err != nil {
			return nil, err
		}

		if _, hasAxis := params["axis"]; !hasAxis {
			// Full reduction to a scalar (or all-ones shape with keepdims).
			total := 0.0
			for i, x := range a.f64() {
				total = acc(total, x, i)
			}
			if finish != nil {
				total = finish(total, a.numElements())
			}
			outShape := []int{}
			if keepdims {
				outShape = make([]int, len(a.shape))
				for i := range outShape {
					outShape[i] = 1
				}
			}
			out := newBuffer(outShape, a.dtype, a.dev, a.devID)
			out.setF64(0, total)
			return []*buffer{out}, nil
		}

		axis, err := params.Int("axis", 0)
		if err != nil {
			return nil, err
		}
		if axis < 0 {
			axis += len(a.shape)
		}
		if axis < 0 || axis >= len(a.shape) {
			return nil, statusErr("reduce op", "axis %s out of range for shape %v", params["axis"], a.shape)
		}

		outShape := reducedShape(a.shape, axis, keepdims)
		out := newBuffer(outShape, a.dtype, a.dev, a.devID)

		outer, axisLen, inner := splitAxis(a.shape, axis)
		data := a.f64()
		for o := 0; o < outer; o++ {
			for iIdx := 0; iIdx < inner; iIdx++ {
				total := 0.0
				for j := 0; j < axisLen; j++ {
					total = acc(total, data[(o*axisLen+j)*inner+iIdx], j)
				}
				if finish != nil {
					total = finish(total, axisLen)
				}
				out.setF64(o*inner+iIdx, total)
			}
		}
		return []*buffer{out}, nil
	}
}

func opArgmax(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("argmax", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	axis, err := params.Int("axis", len(a.shape)-1)
	if err != nil {
		return nil, err
	}
	if axis < 0 {
		axis += len(a.shape)
	}
	if axis < 0 || axis >= len(a.shape) {
		return nil, statusErr("argmax", "axis out of range for shape %v", a.shape)
	}

	outShape := reducedShape(a.shape, axis, false)
	out := newBuffer(outShape, capi.Int64, a.dev, a.devID)

	outer, axisLen, inner := splitAxis(a.shape, axis)
	data := a.f64()
	for o := 0; o < outer; o++ {
		for iIdx := 0; iIdx < inner; iIdx++ {
			best, bestIdx := math.Inf(-1), 0
			for j := 0; j < axisLen; j++ {
				if v := data[(o*axisLen+j)*inner+iIdx]; v > best {
					best, bestIdx = v, j
				}
			}
			out.setF64(o*inner+iIdx, float64(bestIdx))
		}
	}
	return []*buffer{out}, nil
}

func reducedShape(shape []int, axis int, keepdims bool) []int {
	out := make([]int, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != axis:
			out = append(out, d)
		case keepdims:
			out = append(out, 1)
		}
	}
	return out
}

func splitAxis(shape []int, axis int) (outer, axisLen, inner int) {
	outer, axisLen, inner = 1, shape[axis], 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, axisLen, inner
}

func opReshape(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("reshape", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	shape, err := params.Shape("shape")
	if err != nil {
		return nil, err
	}
	// A single -1 dimension is inferred from the element count.
	inferIdx, known := -1, 1
	for i, d := range shape {
		if d == -1 {
			if inferIdx >= 0 {
				return nil, statusErr("reshape", "at most one -1 dimension allowed in %v", shape)
			}
			inferIdx = i
		} else {
			known *= d
		}
	}
	if inferIdx >= 0 {
		if known == 0 || a.numElements()%known != 0 {
			return nil, statusErr("reshape", "cannot infer dimension for %v from %d elements", shape, a.numElements())
		}
		shape = append([]int(nil), shape...)
		shape[inferIdx] = a.numElements() / known
	}
	if numElements(shape) != a.numElements() {
		return nil, statusErr("reshape", "cannot reshape %d elements to %v", a.numElements(), shape)
	}
	out := newBuffer(shape, a.dtype, a.dev, a.devID)
	copy(out.data, a.data)
	return []*buffer{out}, nil
}

func opTranspose(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("transpose", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	axes, err := params.Shape("axes")
	if err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		axes = make([]int, len(a.shape))
		for i := range axes {
			axes[i] = len(a.shape) - 1 - i
		}
	}
	if len(axes) != len(a.shape) {
		return nil, statusErr("transpose", "axes %v do not match shape %v", axes, a.shape)
	}
	outShape := make([]int, len(axes))
	for i, ax := range axes {
		if ax < 0 || ax >= len(a.shape) {
			return nil, statusErr("transpose", "axis %d out of range", ax)
		}
		outShape[i] = a.shape[ax]
	}
	out := newBuffer(outShape, a.dtype, a.dev, a.devID)

	oldStrides := computeStrides(a.shape)
	newStrides := computeStrides(outShape)
	data := a.f64()
	for i := 0; i < a.numElements(); i++ {
		rem := i
		indices := make([]int, len(a.shape))
		for j := range a.shape {
			indices[j] = rem / oldStrides[j]
			rem %= oldStrides[j]
		}
		newIdx := 0
		for j, ax := range axes {
			newIdx += indices[ax] * newStrides[j]
		}
		out.setF64(newIdx, data[i])
	}
	return []*buffer{out}, nil
}

func opExpandDims(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("expand_dims", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	axis, err := params.Int("axis", 0)
	if err != nil {
		return nil, err
	}
	if axis < 0 {
		axis += len(a.shape) + 1
	}
	if axis < 0 || axis > len(a.shape) {
		return nil, statusErr("expand_dims", "axis out of range for shape %v", a.shape)
	}
	shape := make([]int, 0, len(a.shape)+1)
	shape = append(shape, a.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, a.shape[axis:]...)
	out := newBuffer(shape, a.dtype, a.dev, a.devID)
	copy(out.data, a.data)
	return []*buffer{out}, nil
}

func opSqueeze(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("squeeze", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	var shape []int
	if _, hasAxis := params["axis"]; hasAxis {
		axis, err := params.Int("axis", 0)
		if err != nil {
			return nil, err
		}
		if axis < 0 {
			axis += len(a.shape)
		}
		if axis < 0 || axis >= len(a.shape) || a.shape[axis] != 1 {
			return nil, statusErr("squeeze", "cannot squeeze axis %s of shape %v", params["axis"], a.shape)
		}
		shape = append(shape, a.shape[:axis]...)
		shape = append(shape, a.shape[axis+1:]...)
	} else {
		for _, d := range a.shape {
			if d != 1 {
				shape = append(shape, d)
			}
		}
	}
	out := newBuffer(shape, a.dtype, a.dev, a.devID)
	copy(out.data, a.data)
	return []*buffer{out}, nil
}

func opSlice(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("slice", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	if len(a.shape) == 0 {
		return nil, statusErr("slice", "cannot slice a scalar")
	}
	begin, err := params.Int("begin", 0)
	if err != nil {
		return nil, err
	}
	end, err := params.Int("end", a.shape[0])
	if err != nil {
		return nil, err
	}
	if begin < 0 || end > a.shape[0] || begin > end {
		return nil, statusErr("slice", "range [%d, %d) out of bounds for axis 0 of %v", begin, end, a.shape)
	}
	shape := append([]int{end - begin}, a.shape[1:]...)
	out := newBuffer(shape, a.dtype, a.dev, a.devID)
	rowBytes := a.byteSize() / a.shape[0]
	copy(out.data, a.data[begin*rowBytes:end*rowBytes])
	return []*buffer{out}, nil
}

func opConcat(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if len(in) == 0 {
		return nil, statusErr("concat", "needs at least one input")
	}
	dim, err := params.Int("dim", 0)
	if err != nil {
		return nil, err
	}
	first := in[0]
	if dim < 0 || dim >= len(first.shape) {
		return nil, statusErr("concat", "dim %d out of range for shape %v", dim, first.shape)
	}
	outShape := append([]int(nil), first.shape...)
	for _, b := range in[1:] {
		if len(b.shape) != len(first.shape) {
			return nil, statusErr("concat", "rank mismatch: %v vs %v", first.shape, b.shape)
		}
		for i := range b.shape {
			if i != dim && b.shape[i] != first.shape[i] {
				return nil, statusErr("concat", "shape mismatch on dim %d: %v vs %v", i, first.shape, b.shape)
			}
		}
		outShape[dim] += b.shape[dim]
	}

	out := newBuffer(outShape, first.dtype, first.dev, first.devID)
	outer, _, inner := splitAxis(outShape, dim)
	elemSize := first.dtype.Size()
	dst := 0
	for o := 0; o < outer; o++ {
		for _, b := range in {
			chunk := b.shape[dim] * inner * elemSize
			copy(out.data[dst:dst+chunk], b.data[o*chunk:(o+1)*chunk])
			dst += chunk
		}
	}
	return []*buffer{out}, nil
}

func opCast(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("_cast", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	dtype, ok := capi.DataTypeFromString(params["dtype"])
	if !ok {
		return nil, statusErr("_cast", "unsupported dtype %q", params["dtype"])
	}
	out := newBuffer(a.shape, dtype, a.dev, a.devID)
	out.fill(a.f64())
	return []*buffer{out}, nil
}

func opCopyTo(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	if err := wantInputs("_copyto", in, 1); err != nil {
		return nil, err
	}
	a := in[0]
	devType, err := params.Int("dev_type", int(a.dev))
	if err != nil {
		return nil, err
	}
	devID, err := params.Int("dev_id", a.devID)
	if err != nil {
		return nil, err
	}
	out := a.clone()
	out.dev = capi.DeviceKind(devType)
	out.devID = devID
	return []*buffer{out}, nil
}

// Random ops share creation-style kwargs: shape, dtype, dev_type, dev_id.

func randomTarget(op string, params capi.Params) (*buffer, error) {
	shape, err := params.Shape("shape")
	if err != nil {
		return nil, err
	}
	if shape == nil {
		return nil, statusErr(op, "missing shape")
	}
	dtype := capi.Float32
	if s, ok := params["dtype"]; ok {
		dtype, ok = capi.DataTypeFromString(s)
		if !ok {
			return nil, statusErr(op, "unsupported dtype %q", s)
		}
	}
	devType, err := params.Int("dev_type", int(capi.DeviceCPU))
	if err != nil {
		return nil, err
	}
	devID, err := params.Int("dev_id", 0)
	if err != nil {
		return nil, err
	}
	return newBuffer(shape, dtype, capi.DeviceKind(devType), devID), nil
}

func opRandomUniform(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	out, err := randomTarget("_random_uniform", params)
	if err != nil {
		return nil, err
	}
	low, err := params.Float("low", 0)
	if err != nil {
		return nil, err
	}
	high, err := params.Float("high", 1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < out.numElements(); i++ {
		out.setF64(i, low+e.rng.Float64()*(high-low))
	}
	return []*buffer{out}, nil
}

func opRandomNormal(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	out, err := randomTarget("_random_normal", params)
	if err != nil {
		return nil, err
	}
	loc, err := params.Float("loc", 0)
	if err != nil {
		return nil, err
	}
	scale, err := params.Float("scale", 1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < out.numElements(); i++ {
		out.setF64(i, loc+e.rng.NormFloat64()*scale)
	}
	return []*buffer{out}, nil
}

func opRandomRandint(e *Engine, in []*buffer, params capi.Params) ([]*buffer, error) {
	out, err := randomTarget("_random_randint", params)
	if err != nil {
		return nil, err
	}
	low, err := params.Int("low", 0)
	if err != nil {
		return nil, err
	}
	high, err := params.Int("high", 1)
	if err != nil {
		return nil, err
	}
	if high <= low {
		return nil, statusErr("_random_randint", "empty range [%d, %d)", low, high)
	}
	for i := 0; i < out.numElements(); i++ {
		out.setF64(i, float64(low+e.rng.Intn(high-low)))
	}
	return []*buffer{out}, nil
}

// OpNames returns the registered operator names, sorted. Used by tests.
func OpNames() []string {
	names := make([]string, 0, len(opRegistry))
	for name := range opRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
