package enginetest

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/serialization"
)

// Verify that Engine implements the dispatch surface.
var _ capi.Engine = (*Engine)(nil)

// Engine is the in-process reference engine.
// All state lives behind one mutex; handles are small integers.
type Engine struct {
	mu        sync.Mutex
	arrays    map[capi.ArrayHandle]*buffer
	symbols   map[capi.SymbolHandle]*node
	executors map[capi.ExecutorHandle]*executor
	next      uintptr
	rng       *rand.Rand

	frees int // Total ArrayFree calls, exposed for lifetime tests
}

// New creates a reference engine with a fixed default seed.
func New() *Engine {
	return &Engine{
		arrays:    make(map[capi.ArrayHandle]*buffer),
		symbols:   make(map[capi.SymbolHandle]*node),
		executors: make(map[capi.ExecutorHandle]*executor),
		next:      1,
		rng:       rand.New(rand.NewSource(0)),
	}
}

// Name identifies the engine implementation.
func (e *Engine) Name() string { return "enginetest" }

// Version returns a fixed version string.
func (e *Engine) Version() (string, error) { return "0.0.0-test", nil }

// Devices reports a single CPU device.
func (e *Engine) Devices() ([]capi.DeviceInfo, error) {
	return []capi.DeviceInfo{{Kind: capi.DeviceCPU, ID: 0, Name: "reference cpu"}}, nil
}

// WaitAll is a no-op: the reference engine is synchronous.
func (e *Engine) WaitAll() error { return nil }

// RandomSeed reseeds the engine's random state.
func (e *Engine) RandomSeed(seed uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewSource(int64(seed)))
	return nil
}

// LiveArrays returns the number of arrays not yet freed.
func (e *Engine) LiveArrays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.arrays)
}

// FreeCount returns the total number of ArrayFree calls.
func (e *Engine) FreeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frees
}

// Array operations.

// ArrayCreate allocates a zero-initialized host buffer.
func (e *Engine) ArrayCreate(shape []int, dtype capi.DataType, dev capi.DeviceKind, devID int) (capi.ArrayHandle, error) {
	for i, d := range shape {
		if d <= 0 {
			return 0, statusErr("lumen_array_create", "invalid dimension %d at index %d", d, i)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.track(newBuffer(shape, dtype, dev, devID)), nil
}

// track registers a buffer and returns its handle. Callers hold e.mu.
func (e *Engine) track(b *buffer) capi.ArrayHandle {
	h := capi.ArrayHandle(e.next)
	e.next++
	e.arrays[h] = b
	return h
}

func (e *Engine) lookup(h capi.ArrayHandle) (*buffer, error) {
	b, ok := e.arrays[h]
	if !ok {
		return nil, fmt.Errorf("%w: array %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	return b, nil
}

// ArrayFree releases an array. Double-free is an error.
func (e *Engine) ArrayFree(h capi.ArrayHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.arrays[h]; !ok {
		return fmt.Errorf("%w: array %#x", capi.ErrInvalidHandle, uintptr(h))
	}
	delete(e.arrays, h)
	e.frees++
	return nil
}

// ArrayCopyFromHost copies host bytes into the array's buffer.
func (e *Engine) ArrayCopyFromHost(h capi.ArrayHandle, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookup(h)
	if err != nil {
		return err
	}
	if len(data) != b.byteSize() {
		return statusErr("lumen_array_copy_from_host", "size mismatch: got %d bytes, array holds %d", len(data), b.byteSize())
	}
	copy(b.data, data)
	return nil
}

// ArrayCopyToHost copies the array's buffer into host bytes.
func (e *Engine) ArrayCopyToHost(h capi.ArrayHandle, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookup(h)
	if err != nil {
		return err
	}
	if len(data) != b.byteSize() {
		return statusErr("lumen_array_copy_to_host", "size mismatch: got %d bytes, array holds %d", len(data), b.byteSize())
	}
	copy(data, b.data)
	return nil
}

// ArrayShape queries an array's shape.
func (e *Engine) ArrayShape(h capi.ArrayHandle) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), b.shape...), nil
}

// ArrayDType queries an array's element type.
func (e *Engine) ArrayDType(h capi.ArrayHandle) (capi.DataType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookup(h)
	if err != nil {
		return 0, err
	}
	return b.dtype, nil
}

// ArrayContext queries the device an array resides on.
func (e *Engine) ArrayContext(h capi.ArrayHandle) (capi.DeviceKind, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookup(h)
	if err != nil {
		return 0, 0, err
	}
	return b.dev, b.devID, nil
}

// Invoke dispatches a registered operator by name.
func (e *Engine) Invoke(op string, inputs []capi.ArrayHandle, params capi.Params) ([]capi.ArrayHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := opRegistry[op]
	if !ok {
		return nil, statusErr(op, "unknown operator")
	}
	in := make([]*buffer, len(inputs))
	for i, h := range inputs {
		b, err := e.lookup(h)
		if err != nil {
			return nil, err
		}
		in[i] = b
	}
	outs, err := fn(e, in, params)
	if err != nil {
		return nil, err
	}
	handles := make([]capi.ArrayHandle, len(outs))
	for i, b := range outs {
		handles[i] = e.track(b)
	}
	return handles, nil
}

// Container save/load.

// SaveArrays writes named arrays in the .lmnc container format.
func (e *Engine) SaveArrays(path string, names []string, handles []capi.ArrayHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(names) != len(handles) {
		return statusErr("lumen_ndarray_save", "names/handles length mismatch: %d vs %d", len(names), len(handles))
	}
	entries := make([]serialization.Entry, len(handles))
	for i, h := range handles {
		b, err := e.lookup(h)
		if err != nil {
			return err
		}
		entries[i] = serialization.Entry{
			Name:  names[i],
			DType: b.dtype,
			Shape: b.shape,
			Data:  b.data,
		}
	}
	return serialization.Save(path, entries)
}

// LoadArrays reads a .lmnc container, creating new arrays on cpu:0.
func (e *Engine) LoadArrays(path string) ([]string, []capi.ArrayHandle, error) {
	r, err := serialization.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	if err := r.VerifyChecksum(); err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	header := r.Header()
	names := make([]string, len(header.Arrays))
	handles := make([]capi.ArrayHandle, len(header.Arrays))
	for i, m := range header.Arrays {
		dtype, ok := m.DataType()
		if !ok {
			return nil, nil, statusErr("lumen_ndarray_load", "array %q: unsupported dtype %q", m.Name, m.DType)
		}
		data, err := r.Data(m.Name)
		if err != nil {
			return nil, nil, err
		}
		b := newBuffer(m.Shape, dtype, capi.DeviceCPU, 0)
		copy(b.data, data)
		names[i] = m.Name
		handles[i] = e.track(b)
	}
	return names, handles, nil
}

// statusErr builds the capi.Error the native engine would have produced.
func statusErr(op, format string, args ...any) error {
	return &capi.Error{Op: op, Code: 1, Msg: fmt.Sprintf(format, args...)}
}
