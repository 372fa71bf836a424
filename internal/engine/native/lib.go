//go:build darwin || linux

package native

import (
	"fmt"
	"os"

	"github.com/ebitengine/purego"
)

// libName candidates tried in order when no explicit path is given.
// The LUMEN_LIBRARY environment variable overrides the search.
var libNames = []string{
	"liblumen.so",
	"liblumen.so.1",
	"liblumen.dylib",
}

// libTable is the resolved lumen_* symbol table.
type libTable struct {
	version   func() string
	lastError func() string

	numDevices func(kind int32) int32
	deviceName func(kind, id int32) string

	arrayCreate       func(shape []int64, ndim int32, dtype, devType, devID int32, out *uintptr) int32
	arrayFree         func(h uintptr) int32
	arrayCopyFromHost func(h uintptr, data []byte, n int64) int32
	arrayCopyToHost   func(h uintptr, data []byte, n int64) int32
	arrayNDim         func(h uintptr, out *int32) int32
	arrayShape        func(h uintptr, out []int64) int32
	arrayDType        func(h uintptr, out *int32) int32
	arrayContext      func(h uintptr, devType, devID *int32) int32

	opInvoke func(op string, nin int32, in []uintptr, nparam int32, keys, vals []uintptr, nout *int32, out []uintptr) int32
	waitAll  func() int32

	symbolVariable     func(name string, out *uintptr) int32
	symbolCreate       func(op, name string, nparam int32, keys, vals []uintptr, out *uintptr) int32
	symbolCompose      func(h uintptr, nargs int32, names, args []uintptr) int32
	symbolFree         func(h uintptr) int32
	symbolNumArguments func(h uintptr, out *int32) int32
	symbolArgumentName func(h uintptr, i int32) string
	symbolNumOutputs   func(h uintptr, out *int32) int32
	symbolOutputName   func(h uintptr, i int32) string
	symbolToJSON       func(h uintptr) string
	symbolFromJSON     func(s string, out *uintptr) int32

	symbolInferShape   func(h uintptr, nargs int32, names, shapes []uintptr) int32
	inferredArgShape   func(h uintptr, i int32) string
	inferredOutShape   func(h uintptr, i int32) string
	inferredNumOutputs func(h uintptr, out *int32) int32

	executorBind       func(sym uintptr, devType, devID, nargs int32, args, grads []uintptr, out *uintptr) int32
	executorForward    func(h uintptr) int32
	executorBackward   func(h uintptr, nheads int32, heads []uintptr) int32
	executorNumOutputs func(h uintptr, out *int32) int32
	executorOutput     func(h uintptr, i int32, out *uintptr) int32
	executorFree       func(h uintptr) int32

	randomSeed func(seed uint64) int32

	ndarraySave func(path string, n int32, handles, names []uintptr) int32
	ndarrayLoad func(path string, out *uintptr, n *int32) int32
	loadName    func(lh uintptr, i int32) string
	loadArray   func(lh uintptr, i int32, out *uintptr) int32
	loadFree    func(lh uintptr) int32
}

// dlopenLumen locates and opens the shared library.
func dlopenLumen(path string) (uintptr, error) {
	candidates := libNames
	if path != "" {
		candidates = []string{path}
	} else if env := os.Getenv("LUMEN_LIBRARY"); env != "" {
		candidates = []string{env}
	}

	var firstErr error
	for _, name := range candidates {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return lib, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, fmt.Errorf("failed to load lumen library (tried %v): %w", candidates, firstErr)
}

// resolve registers every lumen_* entry point into the table.
func resolve(lib uintptr) *libTable {
	t := &libTable{}
	purego.RegisterLibFunc(&t.version, lib, "lumen_version")
	purego.RegisterLibFunc(&t.lastError, lib, "lumen_last_error")

	purego.RegisterLibFunc(&t.numDevices, lib, "lumen_num_devices")
	purego.RegisterLibFunc(&t.deviceName, lib, "lumen_device_name")

	purego.RegisterLibFunc(&t.arrayCreate, lib, "lumen_array_create")
	purego.RegisterLibFunc(&t.arrayFree, lib, "lumen_array_free")
	purego.RegisterLibFunc(&t.arrayCopyFromHost, lib, "lumen_array_copy_from_host")
	purego.RegisterLibFunc(&t.arrayCopyToHost, lib, "lumen_array_copy_to_host")
	purego.RegisterLibFunc(&t.arrayNDim, lib, "lumen_array_ndim")
	purego.RegisterLibFunc(&t.arrayShape, lib, "lumen_array_shape")
	purego.RegisterLibFunc(&t.arrayDType, lib, "lumen_array_dtype")
	purego.RegisterLibFunc(&t.arrayContext, lib, "lumen_array_context")

	purego.RegisterLibFunc(&t.opInvoke, lib, "lumen_op_invoke")
	purego.RegisterLibFunc(&t.waitAll, lib, "lumen_wait_all")

	purego.RegisterLibFunc(&t.symbolVariable, lib, "lumen_symbol_variable")
	purego.RegisterLibFunc(&t.symbolCreate, lib, "lumen_symbol_create")
	purego.RegisterLibFunc(&t.symbolCompose, lib, "lumen_symbol_compose")
	purego.RegisterLibFunc(&t.symbolFree, lib, "lumen_symbol_free")
	purego.RegisterLibFunc(&t.symbolNumArguments, lib, "lumen_symbol_num_arguments")
	purego.RegisterLibFunc(&t.symbolArgumentName, lib, "lumen_symbol_argument_name")
	purego.RegisterLibFunc(&t.symbolNumOutputs, lib, "lumen_symbol_num_outputs")
	purego.RegisterLibFunc(&t.symbolOutputName, lib, "lumen_symbol_output_name")
	purego.RegisterLibFunc(&t.symbolToJSON, lib, "lumen_symbol_to_json")
	purego.RegisterLibFunc(&t.symbolFromJSON, lib, "lumen_symbol_from_json")

	purego.RegisterLibFunc(&t.symbolInferShape, lib, "lumen_symbol_infer_shape")
	purego.RegisterLibFunc(&t.inferredArgShape, lib, "lumen_inferred_arg_shape")
	purego.RegisterLibFunc(&t.inferredOutShape, lib, "lumen_inferred_out_shape")
	purego.RegisterLibFunc(&t.inferredNumOutputs, lib, "lumen_inferred_num_outputs")

	purego.RegisterLibFunc(&t.executorBind, lib, "lumen_executor_bind")
	purego.RegisterLibFunc(&t.executorForward, lib, "lumen_executor_forward")
	purego.RegisterLibFunc(&t.executorBackward, lib, "lumen_executor_backward")
	purego.RegisterLibFunc(&t.executorNumOutputs, lib, "lumen_executor_num_outputs")
	purego.RegisterLibFunc(&t.executorOutput, lib, "lumen_executor_output")
	purego.RegisterLibFunc(&t.executorFree, lib, "lumen_executor_free")

	purego.RegisterLibFunc(&t.randomSeed, lib, "lumen_random_seed")

	purego.RegisterLibFunc(&t.ndarraySave, lib, "lumen_ndarray_save")
	purego.RegisterLibFunc(&t.ndarrayLoad, lib, "lumen_ndarray_load")
	purego.RegisterLibFunc(&t.loadName, lib, "lumen_load_name")
	purego.RegisterLibFunc(&t.loadArray, lib, "lumen_load_array")
	purego.RegisterLibFunc(&t.loadFree, lib, "lumen_load_free")
	return t
}
