package enginetest

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/capi"
)

// executor holds the bound state of one graph execution plan.
type executor struct {
	head    *node
	order   []*node
	argList []*node // opNull nodes, ListArguments order
	dev     capi.DeviceKind
	devID   int

	args  []*buffer // bound argument buffers, parallel to argList
	grads []*buffer // gradient output buffers, nil entries skip the argument

	vals    map[*node]*buffer // forward values from the last Forward
	outputs []*buffer
}

func (e *Engine) lookupExecutor(h capi.ExecutorHandle) (*executor, error) {
	ex, ok := e.executors[h]
	if !ok {
		return nil, fmt.Errorf("%w: executor %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	return ex, nil
}

// ExecutorBind allocates an execution plan for the graph.
func (e *Engine) ExecutorBind(h capi.SymbolHandle, dev capi.DeviceKind, devID int, args []capi.ArrayHandle, grads []capi.ArrayHandle) (capi.ExecutorHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return 0, err
	}
	argList := listVariables(n)
	if len(args) != len(argList) {
		return 0, statusErr("lumen_executor_bind", "graph has %d arguments, got %d arrays", len(argList), len(args))
	}
	if grads != nil && len(grads) != len(args) {
		return 0, statusErr("lumen_executor_bind", "grads must be nil or parallel to args")
	}

	ex := &executor{
		head:    n,
		order:   topoOrder(n),
		argList: argList,
		dev:     dev,
		devID:   devID,
		args:    make([]*buffer, len(args)),
		grads:   make([]*buffer, len(args)),
	}
	for i, ah := range args {
		b, err := e.lookup(ah)
		if err != nil {
			return 0, err
		}
		ex.args[i] = b
	}
	for i, gh := range grads {
		if gh == 0 {
			continue
		}
		g, err := e.lookup(gh)
		if err != nil {
			return 0, err
		}
		if !shapesEqual(g.shape, ex.args[i].shape) {
			return 0, statusErr("lumen_executor_bind", "grad shape %v does not match argument shape %v", g.shape, ex.args[i].shape)
		}
		ex.grads[i] = g
	}

	eh := capi.ExecutorHandle(e.next)
	e.next++
	e.executors[eh] = ex
	return eh, nil
}

// ExecutorForward evaluates the graph in dependency order.
func (e *Engine) ExecutorForward(h capi.ExecutorHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, err := e.lookupExecutor(h)
	if err != nil {
		return err
	}

	vals := make(map[*node]*buffer, len(ex.order))
	for i, v := range ex.argList {
		vals[v] = ex.args[i]
	}
	for _, cur := range ex.order {
		if cur.op == opNull {
			continue
		}
		fn, ok := opRegistry[cur.op]
		if !ok {
			return statusErr("lumen_executor_forward", "unknown operator %q", cur.op)
		}
		in := make([]*buffer, len(cur.inputs))
		for i, input := range cur.inputs {
			in[i] = vals[input]
		}
		outs, err := fn(e, in, cur.params)
		if err != nil {
			return err
		}
		vals[cur] = outs[0]
	}
	ex.vals = vals
	ex.outputs = []*buffer{vals[ex.head]}
	return nil
}

// ExecutorOutputs returns handles for the last Forward's outputs.
func (e *Engine) ExecutorOutputs(h capi.ExecutorHandle) ([]capi.ArrayHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, err := e.lookupExecutor(h)
	if err != nil {
		return nil, err
	}
	if ex.outputs == nil {
		return nil, statusErr("lumen_executor_outputs", "Forward has not run")
	}
	handles := make([]capi.ArrayHandle, len(ex.outputs))
	for i, b := range ex.outputs {
		handles[i] = e.track(b.clone())
	}
	return handles, nil
}

// ExecutorBackward propagates gradients from the head to bound grad arrays.
func (e *Engine) ExecutorBackward(h capi.ExecutorHandle, heads []capi.ArrayHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, err := e.lookupExecutor(h)
	if err != nil {
		return err
	}
	if ex.vals == nil {
		return statusErr("lumen_executor_backward", "Forward has not run")
	}

	// Seed the head gradient: the supplied head array, or ones.
	out := ex.vals[ex.head]
	seed := newBuffer(out.shape, out.dtype, out.dev, out.devID)
	switch len(heads) {
	case 0:
		for i := 0; i < seed.numElements(); i++ {
			seed.setF64(i, 1)
		}
	case 1:
		hb, err := e.lookup(heads[0])
		if err != nil {
			return err
		}
		if !shapesEqual(hb.shape, out.shape) {
			return statusErr("lumen_executor_backward", "head gradient shape %v does not match output shape %v", hb.shape, out.shape)
		}
		copy(seed.data, hb.data)
	default:
		return statusErr("lumen_executor_backward", "graph has one output, got %d head gradients", len(heads))
	}

	gradMap := map[*node]*buffer{ex.head: seed}
	for i := len(ex.order) - 1; i >= 0; i-- {
		cur := ex.order[i]
		g, ok := gradMap[cur]
		if !ok || cur.op == opNull {
			continue
		}
		inGrads, err := backwardOp(cur, g, ex.vals)
		if err != nil {
			return err
		}
		for j, input := range cur.inputs {
			if inGrads[j] == nil {
				continue
			}
			// A broadcast input receives an output-shaped gradient; sum it
			// over the expanded axes back to the input's shape.
			ig := reduceTo(inGrads[j], ex.vals[input].shape)
			if prev, ok := gradMap[input]; ok {
				accumulate(prev, ig)
			} else {
				gradMap[input] = ig
			}
		}
	}

	for i, v := range ex.argList {
		if ex.grads[i] == nil {
			continue
		}
		g, ok := gradMap[v]
		if !ok {
			// Argument does not influence the output: gradient is zero.
			for j := range ex.grads[i].data {
				ex.grads[i].data[j] = 0
			}
			continue
		}
		ex.grads[i].fill(g.f64())
	}
	return nil
}

// ExecutorFree releases the execution plan.
func (e *Engine) ExecutorFree(h capi.ExecutorHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.executors[h]; !ok {
		return fmt.Errorf("%w: executor %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	delete(e.executors, h)
	return nil
}

// backwardOp returns the gradient w.r.t. each input of cur, given the
// gradient g w.r.t. its output. Entries may be nil for no gradient flow.
func backwardOp(cur *node, g *buffer, vals map[*node]*buffer) ([]*buffer, error) {
	in := make([]*buffer, len(cur.inputs))
	for i, input := range cur.inputs {
		in[i] = vals[input]
	}
	out := vals[cur]

	switch cur.op {
	case "add":
		return []*buffer{g.clone(), g.clone()}, nil
	case "subtract":
		return []*buffer{g.clone(), scaled(g, -1)}, nil
	case "multiply":
		da, err := hadamard(g, in[1])
		if err != nil {
			return nil, err
		}
		db, err := hadamard(g, in[0])
		if err != nil {
			return nil, err
		}
		return []*buffer{da, db}, nil
	case "divide":
		// d/da (a/b) = 1/b; d/db (a/b) = -a/b^2
		da, err := quotient(g, in[1])
		if err != nil {
			return nil, err
		}
		num, err := hadamard(g, in[0])
		if err != nil {
			return nil, err
		}
		den, err := hadamard(in[1], in[1])
		if err != nil {
			return nil, err
		}
		db, err := quotient(num, den)
		if err != nil {
			return nil, err
		}
		return []*buffer{da, scaled(db, -1)}, nil
	case "negative":
		return []*buffer{scaled(g, -1)}, nil
	case "exp":
		dg, err := hadamard(g, out)
		if err != nil {
			return nil, err
		}
		return []*buffer{dg}, nil
	case "log":
		dg, err := quotient(g, in[0])
		if err != nil {
			return nil, err
		}
		return []*buffer{dg}, nil
	case "sqrt":
		dg, err := quotient(g, out)
		if err != nil {
			return nil, err
		}
		return []*buffer{scaled(dg, 0.5)}, nil
	case "_plus_scalar", "_minus_scalar":
		return []*buffer{g.clone()}, nil
	case "_rminus_scalar":
		return []*buffer{scaled(g, -1)}, nil
	case "_mul_scalar":
		s, err := cur.params.Float("scalar", 0)
		if err != nil {
			return nil, err
		}
		return []*buffer{scaled(g, s)}, nil
	case "_div_scalar":
		s, err := cur.params.Float("scalar", 1)
		if err != nil {
			return nil, err
		}
		return []*buffer{scaled(g, 1/s)}, nil
	case "dot":
		// dA = g · Bᵀ, dB = Aᵀ · g
		da, err := matmulT(g, in[1], false, true)
		if err != nil {
			return nil, err
		}
		db, err := matmulT(in[0], g, true, false)
		if err != nil {
			return nil, err
		}
		return []*buffer{da, db}, nil
	case "sum":
		if _, hasAxis := cur.params["axis"]; hasAxis {
			return nil, statusErr("lumen_executor_backward", "gradient of axis sum not implemented in reference engine")
		}
		da := newBuffer(in[0].shape, in[0].dtype, in[0].dev, in[0].devID)
		gv := g.f64At(0)
		for i := 0; i < da.numElements(); i++ {
			da.setF64(i, gv)
		}
		return []*buffer{da}, nil
	case "mean":
		if _, hasAxis := cur.params["axis"]; hasAxis {
			return nil, statusErr("lumen_executor_backward", "gradient of axis mean not implemented in reference engine")
		}
		da := newBuffer(in[0].shape, in[0].dtype, in[0].dev, in[0].devID)
		gv := g.f64At(0) / float64(in[0].numElements())
		for i := 0; i < da.numElements(); i++ {
			da.setF64(i, gv)
		}
		return []*buffer{da}, nil
	case "reshape", "_copyto":
		da := newBuffer(in[0].shape, in[0].dtype, in[0].dev, in[0].devID)
		copy(da.data, g.data)
		return []*buffer{da}, nil
	default:
		return nil, statusErr("lumen_executor_backward", "gradient of %q not implemented in reference engine", cur.op)
	}
}

// Element-wise helpers for gradients. hadamard and quotient broadcast like
// the forward ops; accumulate and scaled require same-shape operands, which
// the executor guarantees by reducing gradients to value shape first.

func accumulate(dst, src *buffer) {
	for i := 0; i < dst.numElements(); i++ {
		dst.setF64(i, dst.f64At(i)+src.f64At(i))
	}
}

func scaled(a *buffer, s float64) *buffer {
	out := newBuffer(a.shape, a.dtype, a.dev, a.devID)
	for i := 0; i < a.numElements(); i++ {
		out.setF64(i, a.f64At(i)*s)
	}
	return out
}

// reduceTo sums g over broadcast axes so its shape matches the value the
// gradient flows into. Same-shape gradients pass through untouched.
func reduceTo(g *buffer, shape []int) *buffer {
	if shapesEqual(g.shape, shape) {
		return g
	}
	out := newBuffer(shape, g.dtype, g.dev, g.devID)
	for i := 0; i < g.numElements(); i++ {
		j := broadcastIndex(i, g.shape, shape)
		out.setF64(j, out.f64At(j)+g.f64At(i))
	}
	return out
}

func broadcastPair(a, b *buffer, f func(x, y float64) float64) (*buffer, error) {
	outShape, err := broadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, statusErr("lumen_executor_backward", "%v", err)
	}
	out := newBuffer(outShape, a.dtype, a.dev, a.devID)
	aData, bData := a.f64(), b.f64()
	for i := 0; i < out.numElements(); i++ {
		x := aData[broadcastIndex(i, outShape, a.shape)]
		y := bData[broadcastIndex(i, outShape, b.shape)]
		out.setF64(i, f(x, y))
	}
	return out, nil
}

func hadamard(a, b *buffer) (*buffer, error) {
	return broadcastPair(a, b, func(x, y float64) float64 { return x * y })
}

func quotient(a, b *buffer) (*buffer, error) {
	return broadcastPair(a, b, func(x, y float64) float64 { return x / y })
}

// matmulT multiplies 2-D buffers with optional transposes.
func matmulT(a, b *buffer, ta, tb bool) (*buffer, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, statusErr("lumen_executor_backward", "dot gradient requires 2-D values")
	}
	am, ak := a.shape[0], a.shape[1]
	if ta {
		am, ak = ak, am
	}
	bk, bn := b.shape[0], b.shape[1]
	if tb {
		bk, bn = bn, bk
	}
	if ak != bk {
		return nil, statusErr("lumen_executor_backward", "dot gradient shape mismatch: %v vs %v", a.shape, b.shape)
	}
	out := newBuffer([]int{am, bn}, a.dtype, a.dev, a.devID)
	at := func(i, j int) float64 {
		if ta {
			i, j = j, i
		}
		return a.f64At(i*a.shape[1] + j)
	}
	bt := func(i, j int) float64 {
		if tb {
			i, j = j, i
		}
		return b.f64At(i*b.shape[1] + j)
	}
	for i := 0; i < am; i++ {
		for j := 0; j < bn; j++ {
			sum := 0.0
			for p := 0; p < ak; p++ {
				sum += at(i, p) * bt(p, j)
			}
			out.setF64(i*bn+j, sum)
		}
	}
	return out, nil
}
