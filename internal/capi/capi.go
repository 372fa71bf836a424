// Package capi defines the dispatch surface between the Go binding and the
// Lumen native engine.
//
// Everything the binding does goes through the Engine interface: array
// creation and release, imperative op invocation with keyword-argument
// records, symbolic graph construction and shape inference, executor
// bind/forward/backward, container save/load, and RNG seeding.
//
// Two implementations exist:
//   - internal/engine/native: the production engine, calling into liblumen
//     through purego.
//   - internal/engine/enginetest: an in-process reference engine used by the
//     test suite.
package capi

// ArrayHandle identifies a native array. The zero value is invalid.
type ArrayHandle uintptr

// SymbolHandle identifies a native computation-graph node. The zero value is
// invalid.
type SymbolHandle uintptr

// ExecutorHandle identifies a native graph executor. The zero value is
// invalid.
type ExecutorHandle uintptr

// DeviceKind identifies a device class. Values match the native enum.
type DeviceKind int

// Device kinds known to the engine.
const (
	DeviceCPU       DeviceKind = 1
	DeviceGPU       DeviceKind = 2
	DeviceCPUPinned DeviceKind = 3
)

// String returns a human-readable device kind name.
func (d DeviceKind) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceGPU:
		return "gpu"
	case DeviceCPUPinned:
		return "cpu_pinned"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one device reported by the engine.
type DeviceInfo struct {
	Kind DeviceKind
	ID   int
	Name string
}

// Engine is the call surface of the wrapped native library.
//
// All methods are forwarding calls: the binding performs no computation of
// its own. Errors are native status codes translated into *Error values.
type Engine interface {
	// Name identifies the engine implementation (e.g. "lumen", "enginetest").
	Name() string
	// Version returns the native engine version string.
	Version() (string, error)
	// Devices enumerates the devices the engine can place arrays on.
	Devices() ([]DeviceInfo, error)

	// ArrayCreate allocates an uninitialized array on the given device.
	ArrayCreate(shape []int, dtype DataType, dev DeviceKind, devID int) (ArrayHandle, error)
	// ArrayFree releases a native array. Freeing an already-freed handle is
	// an error.
	ArrayFree(h ArrayHandle) error
	// ArrayCopyFromHost copies len(data) bytes from host memory into the
	// array's buffer. len(data) must equal the array's byte size.
	ArrayCopyFromHost(h ArrayHandle, data []byte) error
	// ArrayCopyToHost copies the array's buffer into host memory, waiting
	// for pending writes to complete first.
	ArrayCopyToHost(h ArrayHandle, data []byte) error
	// ArrayShape queries the array's shape.
	ArrayShape(h ArrayHandle) ([]int, error)
	// ArrayDType queries the array's element type.
	ArrayDType(h ArrayHandle) (DataType, error)
	// ArrayContext queries the device the array resides on.
	ArrayContext(h ArrayHandle) (DeviceKind, int, error)

	// Invoke dispatches a registered operator by name. Keyword arguments are
	// marshaled as parallel key/value string arrays at the FFI boundary.
	Invoke(op string, inputs []ArrayHandle, params Params) ([]ArrayHandle, error)
	// WaitAll blocks until all pending engine operations complete.
	WaitAll() error

	// SymbolVariable creates a named graph input placeholder.
	SymbolVariable(name string) (SymbolHandle, error)
	// SymbolCreate creates an operator node with the given keyword arguments.
	// The node has no inputs until composed.
	SymbolCreate(op, name string, params Params) (SymbolHandle, error)
	// SymbolCompose binds input symbols to an operator node. Composition
	// only references existing nodes, so the public API cannot build cycles.
	SymbolCompose(h SymbolHandle, argNames []string, args []SymbolHandle) error
	// SymbolFree releases a graph node.
	SymbolFree(h SymbolHandle) error
	// SymbolListArguments lists the graph's input argument names in order.
	SymbolListArguments(h SymbolHandle) ([]string, error)
	// SymbolListOutputs lists the graph's output names.
	SymbolListOutputs(h SymbolHandle) ([]string, error)
	// SymbolToJSON serializes the graph definition.
	SymbolToJSON(h SymbolHandle) (string, error)
	// SymbolFromJSON reconstructs a graph from its JSON definition.
	SymbolFromJSON(s string) (SymbolHandle, error)
	// SymbolInferShape runs native shape inference given shapes for some or
	// all arguments. Returns the completed argument shapes (ordered as in
	// SymbolListArguments) and the output shapes.
	SymbolInferShape(h SymbolHandle, args map[string][]int) (argShapes, outShapes [][]int, err error)

	// ExecutorBind allocates a native executor for the graph with the given
	// argument arrays. grads may be nil (inference only) or parallel to args;
	// nil entries skip gradient computation for that argument.
	ExecutorBind(h SymbolHandle, dev DeviceKind, devID int, args []ArrayHandle, grads []ArrayHandle) (ExecutorHandle, error)
	// ExecutorForward runs the graph forward.
	ExecutorForward(h ExecutorHandle) error
	// ExecutorBackward propagates head gradients backward through the graph.
	// heads may be empty for a single scalar output (implicit gradient 1).
	ExecutorBackward(h ExecutorHandle, heads []ArrayHandle) error
	// ExecutorOutputs returns handles for the executor's output arrays.
	ExecutorOutputs(h ExecutorHandle) ([]ArrayHandle, error)
	// ExecutorFree releases the executor and its internal buffers.
	ExecutorFree(h ExecutorHandle) error

	// RandomSeed seeds the engine's global random state.
	RandomSeed(seed uint64) error

	// SaveArrays writes named arrays to path in the engine's container
	// format.
	SaveArrays(path string, names []string, handles []ArrayHandle) error
	// LoadArrays reads a container file, returning names and new handles in
	// file order.
	LoadArrays(path string) ([]string, []ArrayHandle, error)
}
