//go:build !(darwin || linux)

package native

import "github.com/lumen-ml/lumen/internal/capi"

// Engine is a stub on platforms without dynamic loading support in this
// package. Every method reports capi.ErrNotLoaded.
type Engine struct{}

// Load always fails on unsupported platforms.
func Load(path string) (*Engine, error) {
	return nil, capi.ErrNotLoaded
}

var _ capi.Engine = (*Engine)(nil)

func (e *Engine) Name() string              { return "lumen" }
func (e *Engine) Version() (string, error)  { return "", capi.ErrNotLoaded }
func (e *Engine) Devices() ([]capi.DeviceInfo, error) { return nil, capi.ErrNotLoaded }
func (e *Engine) WaitAll() error            { return capi.ErrNotLoaded }
func (e *Engine) RandomSeed(seed uint64) error { return capi.ErrNotLoaded }

func (e *Engine) ArrayCreate(shape []int, dtype capi.DataType, dev capi.DeviceKind, devID int) (capi.ArrayHandle, error) {
	return 0, capi.ErrNotLoaded
}
func (e *Engine) ArrayFree(h capi.ArrayHandle) error                     { return capi.ErrNotLoaded }
func (e *Engine) ArrayCopyFromHost(h capi.ArrayHandle, data []byte) error { return capi.ErrNotLoaded }
func (e *Engine) ArrayCopyToHost(h capi.ArrayHandle, data []byte) error   { return capi.ErrNotLoaded }
func (e *Engine) ArrayShape(h capi.ArrayHandle) ([]int, error)            { return nil, capi.ErrNotLoaded }
func (e *Engine) ArrayDType(h capi.ArrayHandle) (capi.DataType, error)    { return 0, capi.ErrNotLoaded }
func (e *Engine) ArrayContext(h capi.ArrayHandle) (capi.DeviceKind, int, error) {
	return 0, 0, capi.ErrNotLoaded
}

func (e *Engine) Invoke(op string, inputs []capi.ArrayHandle, params capi.Params) ([]capi.ArrayHandle, error) {
	return nil, capi.ErrNotLoaded
}

func (e *Engine) SymbolVariable(name string) (capi.SymbolHandle, error) { return 0, capi.ErrNotLoaded }
func (e *Engine) SymbolCreate(op, name string, params capi.Params) (capi.SymbolHandle, error) {
	return 0, capi.ErrNotLoaded
}
func (e *Engine) SymbolCompose(h capi.SymbolHandle, argNames []string, args []capi.SymbolHandle) error {
	return capi.ErrNotLoaded
}
func (e *Engine) SymbolFree(h capi.SymbolHandle) error                    { return capi.ErrNotLoaded }
func (e *Engine) SymbolListArguments(h capi.SymbolHandle) ([]string, error) { return nil, capi.ErrNotLoaded }
func (e *Engine) SymbolListOutputs(h capi.SymbolHandle) ([]string, error)   { return nil, capi.ErrNotLoaded }
func (e *Engine) SymbolToJSON(h capi.SymbolHandle) (string, error)          { return "", capi.ErrNotLoaded }
func (e *Engine) SymbolFromJSON(s string) (capi.SymbolHandle, error)        { return 0, capi.ErrNotLoaded }
func (e *Engine) SymbolInferShape(h capi.SymbolHandle, args map[string][]int) ([][]int, [][]int, error) {
	return nil, nil, capi.ErrNotLoaded
}

func (e *Engine) ExecutorBind(h capi.SymbolHandle, dev capi.DeviceKind, devID int, args []capi.ArrayHandle, grads []capi.ArrayHandle) (capi.ExecutorHandle, error) {
	return 0, capi.ErrNotLoaded
}
func (e *Engine) ExecutorForward(h capi.ExecutorHandle) error { return capi.ErrNotLoaded }
func (e *Engine) ExecutorBackward(h capi.ExecutorHandle, heads []capi.ArrayHandle) error {
	return capi.ErrNotLoaded
}
func (e *Engine) ExecutorOutputs(h capi.ExecutorHandle) ([]capi.ArrayHandle, error) {
	return nil, capi.ErrNotLoaded
}
func (e *Engine) ExecutorFree(h capi.ExecutorHandle) error { return capi.ErrNotLoaded }

func (e *Engine) SaveArrays(path string, names []string, handles []capi.ArrayHandle) error {
	return capi.ErrNotLoaded
}
func (e *Engine) LoadArrays(path string) ([]string, []capi.ArrayHandle, error) {
	return nil, nil, capi.ErrNotLoaded
}
