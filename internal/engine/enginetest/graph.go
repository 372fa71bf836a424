package enginetest

import (
	"encoding/json"
	"fmt"

	"github.com/lumen-ml/lumen/internal/capi"
)

// opNull marks a variable (graph input) node.
const opNull = "null"

// node is one computation-graph vertex. Composition only references
// existing nodes and self-reachability is rejected, so graphs stay acyclic.
type node struct {
	op     string
	name   string
	params capi.Params
	inputs []*node
}

func (e *Engine) trackSymbol(n *node) capi.SymbolHandle {
	h := capi.SymbolHandle(e.next)
	e.next++
	e.symbols[h] = n
	return h
}

func (e *Engine) lookupSymbol(h capi.SymbolHandle) (*node, error) {
	n, ok := e.symbols[h]
	if !ok {
		return nil, fmt.Errorf("%w: symbol %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	return n, nil
}

// SymbolVariable creates a named graph input placeholder.
func (e *Engine) SymbolVariable(name string) (capi.SymbolHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trackSymbol(&node{op: opNull, name: name}), nil
}

// SymbolCreate creates an operator node with no inputs bound yet.
func (e *Engine) SymbolCreate(op, name string, params capi.Params) (capi.SymbolHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := opRegistry[op]; !ok {
		return 0, statusErr("lumen_symbol_create", "unknown operator %q", op)
	}
	return e.trackSymbol(&node{op: op, name: name, params: params.Clone()}), nil
}

// SymbolCompose binds input symbols to an operator node.
func (e *Engine) SymbolCompose(h capi.SymbolHandle, argNames []string, args []capi.SymbolHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return err
	}
	if n.op == opNull {
		return statusErr("lumen_symbol_compose", "cannot compose variable %q", n.name)
	}
	if len(n.inputs) > 0 {
		return statusErr("lumen_symbol_compose", "node %q already composed", n.name)
	}
	if argNames != nil && len(argNames) != len(args) {
		return statusErr("lumen_symbol_compose", "argNames/args length mismatch: %d vs %d", len(argNames), len(args))
	}
	inputs := make([]*node, len(args))
	for i, ah := range args {
		in, err := e.lookupSymbol(ah)
		if err != nil {
			return err
		}
		if reaches(in, n) {
			return statusErr("lumen_symbol_compose", "composition would create a cycle at %q", n.name)
		}
		inputs[i] = in
	}
	n.inputs = inputs
	return nil
}

// reaches reports whether target is reachable from n.
func reaches(n, target *node) bool {
	if n == target {
		return true
	}
	for _, in := range n.inputs {
		if reaches(in, target) {
			return true
		}
	}
	return false
}

// SymbolFree releases a graph node handle.
func (e *Engine) SymbolFree(h capi.SymbolHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.symbols[h]; !ok {
		return fmt.Errorf("%w: symbol %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	delete(e.symbols, h)
	return nil
}

// listVariables collects opNull nodes in depth-first first-appearance order.
func listVariables(n *node) []*node {
	var vars []*node
	seen := make(map[*node]bool)
	var walk func(*node)
	walk = func(cur *node) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		for _, in := range cur.inputs {
			walk(in)
		}
		if cur.op == opNull {
			vars = append(vars, cur)
		}
	}
	walk(n)
	return vars
}

// topoOrder returns nodes in dependency order, ending at n.
func topoOrder(n *node) []*node {
	var order []*node
	seen := make(map[*node]bool)
	var walk func(*node)
	walk = func(cur *node) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		for _, in := range cur.inputs {
			walk(in)
		}
		order = append(order, cur)
	}
	walk(n)
	return order
}

// SymbolListArguments lists the graph's input argument names.
func (e *Engine) SymbolListArguments(h capi.SymbolHandle) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return nil, err
	}
	vars := listVariables(n)
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.name
	}
	return names, nil
}

// SymbolListOutputs lists the graph's output names.
func (e *Engine) SymbolListOutputs(h capi.SymbolHandle) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return nil, err
	}
	name := n.name
	if name == "" {
		name = n.op
	}
	return []string{name + "_output"}, nil
}

// jsonGraph is the serialized graph definition.
type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Head  int        `json:"head"`
}

type jsonNode struct {
	Op     string            `json:"op"`
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
	Inputs []int             `json:"inputs"`
}

// SymbolToJSON serializes the graph definition.
func (e *Engine) SymbolToJSON(h capi.SymbolHandle) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return "", err
	}
	order := topoOrder(n)
	index := make(map[*node]int, len(order))
	for i, cur := range order {
		index[cur] = i
	}
	g := jsonGraph{Nodes: make([]jsonNode, len(order)), Head: index[n]}
	for i, cur := range order {
		inputs := make([]int, len(cur.inputs))
		for j, in := range cur.inputs {
			inputs[j] = index[in]
		}
		g.Nodes[i] = jsonNode{Op: cur.op, Name: cur.name, Params: cur.params, Inputs: inputs}
	}
	data, err := json.Marshal(&g)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SymbolFromJSON reconstructs a graph from its JSON definition.
func (e *Engine) SymbolFromJSON(s string) (capi.SymbolHandle, error) {
	var g jsonGraph
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return 0, statusErr("lumen_symbol_from_json", "invalid graph JSON: %v", err)
	}
	if g.Head < 0 || g.Head >= len(g.Nodes) {
		return 0, statusErr("lumen_symbol_from_json", "head index %d out of range", g.Head)
	}
	nodes := make([]*node, len(g.Nodes))
	for i, jn := range g.Nodes {
		nodes[i] = &node{op: jn.Op, name: jn.Name, params: capi.Params(jn.Params).Clone()}
	}
	for i, jn := range g.Nodes {
		for _, idx := range jn.Inputs {
			if idx < 0 || idx >= i {
				return 0, statusErr("lumen_symbol_from_json", "node %d has invalid input index %d", i, idx)
			}
			nodes[i].inputs = append(nodes[i].inputs, nodes[idx])
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trackSymbol(nodes[g.Head]), nil
}

// SymbolInferShape runs shape inference over the graph.
func (e *Engine) SymbolInferShape(h capi.SymbolHandle, args map[string][]int) (argShapes, outShapes [][]int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.lookupSymbol(h)
	if err != nil {
		return nil, nil, err
	}

	shapes := make(map[*node][]int)
	for _, cur := range topoOrder(n) {
		if cur.op == opNull {
			s, ok := args[cur.name]
			if !ok {
				return nil, nil, statusErr("lumen_symbol_infer_shape", "missing shape for argument %q", cur.name)
			}
			shapes[cur] = s
			continue
		}
		in := make([][]int, len(cur.inputs))
		for i, input := range cur.inputs {
			in[i] = shapes[input]
		}
		s, err := inferOpShape(cur.op, in, cur.params)
		if err != nil {
			return nil, nil, err
		}
		shapes[cur] = s
	}

	for _, v := range listVariables(n) {
		argShapes = append(argShapes, append([]int(nil), shapes[v]...))
	}
	outShapes = [][]int{append([]int(nil), shapes[n]...)}
	return argShapes, outShapes, nil
}

// inferOpShape computes an operator's output shape from its input shapes
// and keyword record, mirroring what the ops themselves produce.
func inferOpShape(op string, in [][]int, params capi.Params) ([]int, error) {
	switch op {
	case "add", "subtract", "multiply", "divide", "maximum", "minimum", "power",
		"equal", "not_equal", "greater", "greater_equal", "lesser", "lesser_equal":
		if len(in) != 2 {
			return nil, statusErr(op, "expected 2 inputs, got %d", len(in))
		}
		out, err := broadcastShapes(in[0], in[1])
		if err != nil {
			return nil, statusErr(op, "%v", err)
		}
		return out, nil

	case "_plus_scalar", "_minus_scalar", "_rminus_scalar", "_mul_scalar",
		"_div_scalar", "_rdiv_scalar", "_power_scalar",
		"negative", "exp", "log", "sqrt", "abs", "_cast", "_copyto":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		return append([]int(nil), in[0]...), nil

	case "dot":
		if len(in) != 2 {
			return nil, statusErr(op, "expected 2 inputs, got %d", len(in))
		}
		if len(in[0]) == 1 && len(in[1]) == 1 {
			if in[0][0] != in[1][0] {
				return nil, statusErr(op, "incompatible shapes %v and %v", in[0], in[1])
			}
			return []int{}, nil
		}
		if len(in[0]) != 2 || len(in[1]) != 2 {
			return nil, statusErr(op, "requires 1-D or 2-D inputs")
		}
		if in[0][1] != in[1][0] {
			return nil, statusErr(op, "incompatible shapes %v and %v", in[0], in[1])
		}
		return []int{in[0][0], in[1][1]}, nil

	case "sum", "mean", "max", "min":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		keepdims, err := params.Bool("keepdims", false)
		if err != nil {
			return nil, err
		}
		if _, hasAxis := params["axis"]; !hasAxis {
			if !keepdims {
				return []int{}, nil
			}
			out := make([]int, len(in[0]))
			for i := range out {
				out[i] = 1
			}
			return out, nil
		}
		axis, err := params.Int("axis", 0)
		if err != nil {
			return nil, err
		}
		if axis < 0 {
			axis += len(in[0])
		}
		if axis < 0 || axis >= len(in[0]) {
			return nil, statusErr(op, "axis out of range for shape %v", in[0])
		}
		return reducedShape(in[0], axis, keepdims), nil

	case "argmax":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		axis, err := params.Int("axis", len(in[0])-1)
		if err != nil {
			return nil, err
		}
		if axis < 0 {
			axis += len(in[0])
		}
		if axis < 0 || axis >= len(in[0]) {
			return nil, statusErr(op, "axis out of range for shape %v", in[0])
		}
		return reducedShape(in[0], axis, false), nil

	case "reshape":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		shape, err := params.Shape("shape")
		if err != nil {
			return nil, err
		}
		inferIdx, known := -1, 1
		for i, d := range shape {
			if d == -1 {
				inferIdx = i
			} else {
				known *= d
			}
		}
		if inferIdx >= 0 {
			if known == 0 || numElements(in[0])%known != 0 {
				return nil, statusErr(op, "cannot infer dimension for %v", shape)
			}
			shape = append([]int(nil), shape...)
			shape[inferIdx] = numElements(in[0]) / known
		}
		if numElements(shape) != numElements(in[0]) {
			return nil, statusErr(op, "cannot reshape %v to %v", in[0], shape)
		}
		return shape, nil

	case "transpose":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		axes, err := params.Shape("axes")
		if err != nil {
			return nil, err
		}
		if len(axes) == 0 {
			out := make([]int, len(in[0]))
			for i := range out {
				out[i] = in[0][len(in[0])-1-i]
			}
			return out, nil
		}
		if len(axes) != len(in[0]) {
			return nil, statusErr(op, "axes %v do not match shape %v", axes, in[0])
		}
		out := make([]int, len(axes))
		for i, ax := range axes {
			if ax < 0 || ax >= len(in[0]) {
				return nil, statusErr(op, "axis %d out of range", ax)
			}
			out[i] = in[0][ax]
		}
		return out, nil

	case "concat":
		if len(in) == 0 {
			return nil, statusErr(op, "needs at least one input")
		}
		dim, err := params.Int("dim", 0)
		if err != nil {
			return nil, err
		}
		out := append([]int(nil), in[0]...)
		if dim < 0 || dim >= len(out) {
			return nil, statusErr(op, "dim %d out of range for shape %v", dim, in[0])
		}
		for _, s := range in[1:] {
			if len(s) != len(out) {
				return nil, statusErr(op, "rank mismatch: %v vs %v", in[0], s)
			}
			out[dim] += s[dim]
		}
		return out, nil

	case "expand_dims":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		axis, err := params.Int("axis", 0)
		if err != nil {
			return nil, err
		}
		if axis < 0 {
			axis += len(in[0]) + 1
		}
		if axis < 0 || axis > len(in[0]) {
			return nil, statusErr(op, "axis out of range for shape %v", in[0])
		}
		out := make([]int, 0, len(in[0])+1)
		out = append(out, in[0][:axis]...)
		out = append(out, 1)
		out = append(out, in[0][axis:]...)
		return out, nil

	case "squeeze":
		if len(in) != 1 {
			return nil, statusErr(op, "expected 1 input, got %d", len(in))
		}
		var out []int
		if _, hasAxis := params["axis"]; hasAxis {
			axis, err := params.Int("axis", 0)
			if err != nil {
				return nil, err
			}
			if axis < 0 {
				axis += len(in[0])
			}
			if axis < 0 || axis >= len(in[0]) || in[0][axis] != 1 {
				return nil, statusErr(op, "cannot squeeze axis of shape %v", in[0])
			}
			out = append(out, in[0][:axis]...)
			out = append(out, in[0][axis+1:]...)
		} else {
			for _, d := range in[0] {
				if d != 1 {
					out = append(out, d)
				}
			}
		}
		return out, nil

	case "slice":
		if len(in) != 1 || len(in[0]) == 0 {
			return nil, statusErr(op, "expected one non-scalar input")
		}
		begin, err := params.Int("begin", 0)
		if err != nil {
			return nil, err
		}
		end, err := params.Int("end", in[0][0])
		if err != nil {
			return nil, err
		}
		if begin < 0 || end > in[0][0] || begin > end {
			return nil, statusErr(op, "range [%d, %d) out of bounds for %v", begin, end, in[0])
		}
		return append([]int{end - begin}, in[0][1:]...), nil

	default:
		return nil, statusErr(op, "shape inference not implemented")
	}
}
