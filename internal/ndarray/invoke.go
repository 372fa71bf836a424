package ndarray

import (
	"runtime"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Invoke dispatches a registered operator by name and adopts every output
// handle. Most callers want the method shims; Invoke is the escape hatch for
// ops without one.
func Invoke(eng capi.Engine, op string, inputs []*Array, params capi.Params) ([]*Array, error) {
	handles := make([]capi.ArrayHandle, len(inputs))
	for i, in := range inputs {
		handles[i] = in.h
	}
	outs, err := eng.Invoke(op, handles, params)
	runtime.KeepAlive(inputs)
	if err != nil {
		return nil, err
	}
	arrays := make([]*Array, len(outs))
	for i, h := range outs {
		a, err := wrap(eng, h)
		if err != nil {
			// wrap freed h; release the siblings adopted so far and the
			// outputs not yet reached.
			for _, done := range arrays[:i] {
				_ = done.Close()
			}
			for _, rest := range outs[i+1:] {
				_ = eng.ArrayFree(rest)
			}
			return nil, err
		}
		arrays[i] = a
	}
	return arrays, nil
}

// FromHandle adopts a native handle produced outside this package. The
// returned array owns the handle and will release it.
func FromHandle(eng capi.Engine, h capi.ArrayHandle) (*Array, error) {
	return wrap(eng, h)
}
