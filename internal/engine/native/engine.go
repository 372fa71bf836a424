//go:build darwin || linux

package native

import (
	"fmt"
	"sort"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Verify that Engine implements the dispatch surface.
var _ capi.Engine = (*Engine)(nil)

// Engine forwards every capi.Engine call into liblumen.
// It carries no state of its own beyond the resolved symbol table; the
// native library owns all arrays, graphs and executors.
type Engine struct {
	lib *libTable
}

// Load opens the Lumen shared library and resolves its symbol table.
// path may be empty, in which case LUMEN_LIBRARY and the default library
// names are tried in order.
func Load(path string) (*Engine, error) {
	lib, err := dlopenLumen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capi.ErrNotLoaded, err)
	}
	return &Engine{lib: resolve(lib)}, nil
}

// check translates a native status code into a Go error.
func (e *Engine) check(op string, status int32) error {
	if status == 0 {
		return nil
	}
	return &capi.Error{Op: op, Code: int(status), Msg: e.lib.lastError()}
}

// Name identifies the engine implementation.
func (e *Engine) Name() string { return "lumen" }

// Version returns the native engine version string.
func (e *Engine) Version() (string, error) {
	return e.lib.version(), nil
}

// Devices enumerates the devices the engine reports.
func (e *Engine) Devices() ([]capi.DeviceInfo, error) {
	var out []capi.DeviceInfo
	for _, kind := range []capi.DeviceKind{capi.DeviceCPU, capi.DeviceGPU} {
		n := e.lib.numDevices(int32(kind))
		for i := int32(0); i < n; i++ {
			out = append(out, capi.DeviceInfo{
				Kind: kind,
				ID:   int(i),
				Name: e.lib.deviceName(int32(kind), i),
			})
		}
	}
	return out, nil
}

// WaitAll blocks until pending engine operations complete.
func (e *Engine) WaitAll() error {
	return e.check("lumen_wait_all", e.lib.waitAll())
}

// RandomSeed seeds the engine's global random state.
func (e *Engine) RandomSeed(seed uint64) error {
	return e.check("lumen_random_seed", e.lib.randomSeed(seed))
}

// Array operations.

// ArrayCreate allocates an uninitialized native array.
func (e *Engine) ArrayCreate(shape []int, dtype capi.DataType, dev capi.DeviceKind, devID int) (capi.ArrayHandle, error) {
	cshape := make([]int64, len(shape))
	for i, d := range shape {
		cshape[i] = int64(d)
	}
	var h uintptr
	status := e.lib.arrayCreate(cshape, int32(len(cshape)), int32(dtype), int32(dev), int32(devID), &h)
	if err := e.check("lumen_array_create", status); err != nil {
		return 0, err
	}
	return capi.ArrayHandle(h), nil
}

// ArrayFree releases a native array.
func (e *Engine) ArrayFree(h capi.ArrayHandle) error {
	return e.check("lumen_array_free", e.lib.arrayFree(uintptr(h)))
}

// ArrayCopyFromHost copies host bytes into the native buffer.
func (e *Engine) ArrayCopyFromHost(h capi.ArrayHandle, data []byte) error {
	return e.check("lumen_array_copy_from_host",
		e.lib.arrayCopyFromHost(uintptr(h), data, int64(len(data))))
}

// ArrayCopyToHost copies the native buffer into host bytes.
func (e *Engine) ArrayCopyToHost(h capi.ArrayHandle, data []byte) error {
	return e.check("lumen_array_copy_to_host",
		e.lib.arrayCopyToHost(uintptr(h), data, int64(len(data))))
}

// ArrayShape queries the native array's shape.
func (e *Engine) ArrayShape(h capi.ArrayHandle) ([]int, error) {
	var ndim int32
	if err := e.check("lumen_array_ndim", e.lib.arrayNDim(uintptr(h), &ndim)); err != nil {
		return nil, err
	}
	if ndim == 0 {
		return []int{}, nil
	}
	cshape := make([]int64, ndim)
	if err := e.check("lumen_array_shape", e.lib.arrayShape(uintptr(h), cshape)); err != nil {
		return nil, err
	}
	shape := make([]int, ndim)
	for i, d := range cshape {
		shape[i] = int(d)
	}
	return shape, nil
}

// ArrayDType queries the native array's element type.
func (e *Engine) ArrayDType(h capi.ArrayHandle) (capi.DataType, error) {
	var dtype int32
	if err := e.check("lumen_array_dtype", e.lib.arrayDType(uintptr(h), &dtype)); err != nil {
		return 0, err
	}
	return capi.DataType(dtype), nil
}

// ArrayContext queries the device a native array resides on.
func (e *Engine) ArrayContext(h capi.ArrayHandle) (capi.DeviceKind, int, error) {
	var devType, devID int32
	if err := e.check("lumen_array_context", e.lib.arrayContext(uintptr(h), &devType, &devID)); err != nil {
		return 0, 0, err
	}
	return capi.DeviceKind(devType), int(devID), nil
}

// maxOutputs bounds the output handle array passed to op invocation.
const maxOutputs = 16

// Invoke dispatches a registered operator by name.
func (e *Engine) Invoke(op string, inputs []capi.ArrayHandle, params capi.Params) ([]capi.ArrayHandle, error) {
	in := make([]uintptr, len(inputs))
	for i, h := range inputs {
		in[i] = uintptr(h)
	}
	keys, vals, nparam := paramArrays(params)

	var nout int32
	out := make([]uintptr, maxOutputs)
	status := e.lib.opInvoke(op, int32(len(in)), in, nparam, keys.ptrs, vals.ptrs, &nout, out)
	keys.keepAlive()
	vals.keepAlive()
	if err := e.check(op, status); err != nil {
		return nil, err
	}

	handles := make([]capi.ArrayHandle, nout)
	for i := range handles {
		handles[i] = capi.ArrayHandle(out[i])
	}
	return handles, nil
}

// Symbol operations.

// SymbolVariable creates a named graph input placeholder.
func (e *Engine) SymbolVariable(name string) (capi.SymbolHandle, error) {
	var h uintptr
	if err := e.check("lumen_symbol_variable", e.lib.symbolVariable(name, &h)); err != nil {
		return 0, err
	}
	return capi.SymbolHandle(h), nil
}

// SymbolCreate creates an operator node with keyword arguments.
func (e *Engine) SymbolCreate(op, name string, params capi.Params) (capi.SymbolHandle, error) {
	keys, vals, nparam := paramArrays(params)
	var h uintptr
	status := e.lib.symbolCreate(op, name, nparam, keys.ptrs, vals.ptrs, &h)
	keys.keepAlive()
	vals.keepAlive()
	if err := e.check("lumen_symbol_create", status); err != nil {
		return 0, err
	}
	return capi.SymbolHandle(h), nil
}

// SymbolCompose binds input symbols to an operator node.
func (e *Engine) SymbolCompose(h capi.SymbolHandle, argNames []string, args []capi.SymbolHandle) error {
	in := make([]uintptr, len(args))
	for i, a := range args {
		in[i] = uintptr(a)
	}
	var names *cStrings
	var namePtrs []uintptr
	if argNames != nil {
		names = newCStrings(argNames)
		namePtrs = names.ptrs
	}
	status := e.lib.symbolCompose(uintptr(h), int32(len(args)), namePtrs, in)
	if names != nil {
		names.keepAlive()
	}
	return e.check("lumen_symbol_compose", status)
}

// SymbolFree releases a graph node.
func (e *Engine) SymbolFree(h capi.SymbolHandle) error {
	return e.check("lumen_symbol_free", e.lib.symbolFree(uintptr(h)))
}

// SymbolListArguments lists the graph's argument names.
func (e *Engine) SymbolListArguments(h capi.SymbolHandle) ([]string, error) {
	var n int32
	if err := e.check("lumen_symbol_num_arguments", e.lib.symbolNumArguments(uintptr(h), &n)); err != nil {
		return nil, err
	}
	names := make([]string, n)
	for i := int32(0); i < n; i++ {
		names[i] = e.lib.symbolArgumentName(uintptr(h), i)
	}
	return names, nil
}

// SymbolListOutputs lists the graph's output names.
func (e *Engine) SymbolListOutputs(h capi.SymbolHandle) ([]string, error) {
	var n int32
	if err := e.check("lumen_symbol_num_outputs", e.lib.symbolNumOutputs(uintptr(h), &n)); err != nil {
		return nil, err
	}
	names := make([]string, n)
	for i := int32(0); i < n; i++ {
		names[i] = e.lib.symbolOutputName(uintptr(h), i)
	}
	return names, nil
}

// SymbolToJSON serializes the graph definition.
func (e *Engine) SymbolToJSON(h capi.SymbolHandle) (string, error) {
	return e.lib.symbolToJSON(uintptr(h)), nil
}

// SymbolFromJSON reconstructs a graph from its JSON definition.
func (e *Engine) SymbolFromJSON(s string) (capi.SymbolHandle, error) {
	var h uintptr
	if err := e.check("lumen_symbol_from_json", e.lib.symbolFromJSON(s, &h)); err != nil {
		return 0, err
	}
	return capi.SymbolHandle(h), nil
}

// SymbolInferShape runs native shape inference.
// Provided argument shapes cross the boundary as name/shape-CSV string
// pairs; inferred shapes are read back per index.
func (e *Engine) SymbolInferShape(h capi.SymbolHandle, args map[string][]int) (argShapes, outShapes [][]int, err error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	shapes := make([]string, len(names))
	for i, name := range names {
		shapes[i] = capi.FormatShape(args[name])
	}

	cNames := newCStrings(names)
	cShapes := newCStrings(shapes)
	status := e.lib.symbolInferShape(uintptr(h), int32(len(names)), cNames.ptrs, cShapes.ptrs)
	cNames.keepAlive()
	cShapes.keepAlive()
	if err := e.check("lumen_symbol_infer_shape", status); err != nil {
		return nil, nil, err
	}

	argNames, err := e.SymbolListArguments(h)
	if err != nil {
		return nil, nil, err
	}
	argShapes = make([][]int, len(argNames))
	for i := range argNames {
		s, err := capi.ParseShape(e.lib.inferredArgShape(uintptr(h), int32(i)))
		if err != nil {
			return nil, nil, err
		}
		argShapes[i] = s
	}

	var nout int32
	if err := e.check("lumen_inferred_num_outputs", e.lib.inferredNumOutputs(uintptr(h), &nout)); err != nil {
		return nil, nil, err
	}
	outShapes = make([][]int, nout)
	for i := int32(0); i < nout; i++ {
		s, err := capi.ParseShape(e.lib.inferredOutShape(uintptr(h), i))
		if err != nil {
			return nil, nil, err
		}
		outShapes[i] = s
	}
	return argShapes, outShapes, nil
}

// Executor operations.

// ExecutorBind allocates a native executor.
func (e *Engine) ExecutorBind(h capi.SymbolHandle, dev capi.DeviceKind, devID int, args []capi.ArrayHandle, grads []capi.ArrayHandle) (capi.ExecutorHandle, error) {
	in := make([]uintptr, len(args))
	for i, a := range args {
		in[i] = uintptr(a)
	}
	var gr []uintptr
	if grads != nil {
		gr = make([]uintptr, len(grads))
		for i, g := range grads {
			gr[i] = uintptr(g)
		}
	}
	var out uintptr
	status := e.lib.executorBind(uintptr(h), int32(dev), int32(devID), int32(len(in)), in, gr, &out)
	if err := e.check("lumen_executor_bind", status); err != nil {
		return 0, err
	}
	return capi.ExecutorHandle(out), nil
}

// ExecutorForward runs the graph forward.
func (e *Engine) ExecutorForward(h capi.ExecutorHandle) error {
	return e.check("lumen_executor_forward", e.lib.executorForward(uintptr(h)))
}

// ExecutorBackward propagates head gradients backward.
func (e *Engine) ExecutorBackward(h capi.ExecutorHandle, heads []capi.ArrayHandle) error {
	in := make([]uintptr, len(heads))
	for i, a := range heads {
		in[i] = uintptr(a)
	}
	return e.check("lumen_executor_backward", e.lib.executorBackward(uintptr(h), int32(len(in)), in))
}

// ExecutorOutputs returns handles for the executor's outputs.
func (e *Engine) ExecutorOutputs(h capi.ExecutorHandle) ([]capi.ArrayHandle, error) {
	var n int32
	if err := e.check("lumen_executor_num_outputs", e.lib.executorNumOutputs(uintptr(h), &n)); err != nil {
		return nil, err
	}
	handles := make([]capi.ArrayHandle, n)
	for i := int32(0); i < n; i++ {
		var out uintptr
		if err := e.check("lumen_executor_output", e.lib.executorOutput(uintptr(h), i, &out)); err != nil {
			return nil, err
		}
		handles[i] = capi.ArrayHandle(out)
	}
	return handles, nil
}

// ExecutorFree releases the executor.
func (e *Engine) ExecutorFree(h capi.ExecutorHandle) error {
	return e.check("lumen_executor_free", e.lib.executorFree(uintptr(h)))
}

// Container save/load.

// SaveArrays writes named arrays through the native container writer.
func (e *Engine) SaveArrays(path string, names []string, handles []capi.ArrayHandle) error {
	if len(names) != len(handles) {
		return fmt.Errorf("names/handles length mismatch: %d vs %d", len(names), len(handles))
	}
	in := make([]uintptr, len(handles))
	for i, h := range handles {
		in[i] = uintptr(h)
	}
	cNames := newCStrings(names)
	status := e.lib.ndarraySave(path, int32(len(in)), in, cNames.ptrs)
	cNames.keepAlive()
	return e.check("lumen_ndarray_save", status)
}

// LoadArrays reads a container file through the native loader.
func (e *Engine) LoadArrays(path string) ([]string, []capi.ArrayHandle, error) {
	var lh uintptr
	var n int32
	if err := e.check("lumen_ndarray_load", e.lib.ndarrayLoad(path, &lh, &n)); err != nil {
		return nil, nil, err
	}
	defer e.lib.loadFree(lh)

	names := make([]string, n)
	handles := make([]capi.ArrayHandle, n)
	for i := int32(0); i < n; i++ {
		names[i] = e.lib.loadName(lh, i)
		var out uintptr
		if err := e.check("lumen_load_array", e.lib.loadArray(lh, i, &out)); err != nil {
			return nil, nil, err
		}
		handles[i] = capi.ArrayHandle(out)
	}
	return names, handles, nil
}
