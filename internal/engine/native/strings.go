//go:build darwin || linux

package native

import (
	"runtime"
	"unsafe"

	"github.com/lumen-ml/lumen/internal/capi"
)

// cStrings holds NUL-terminated copies of Go strings plus the pointer array
// handed across the FFI boundary. Call keepAlive after the native call
// returns so the buffers survive the call.
type cStrings struct {
	ptrs []uintptr
	bufs [][]byte
}

func newCStrings(ss []string) *cStrings {
	c := &cStrings{
		ptrs: make([]uintptr, len(ss)),
		bufs: make([][]byte, len(ss)),
	}
	for i, s := range ss {
		buf := make([]byte, len(s)+1)
		copy(buf, s)
		c.bufs[i] = buf
		c.ptrs[i] = uintptr(unsafe.Pointer(&buf[0]))
	}
	return c
}

func (c *cStrings) keepAlive() {
	runtime.KeepAlive(c.bufs)
}

// paramArrays marshals a keyword record into parallel key/value pointer
// arrays. Keys are sorted so marshaled calls are deterministic.
func paramArrays(params capi.Params) (keys, vals *cStrings, n int32) {
	ordered := params.Keys()
	vs := make([]string, len(ordered))
	for i, k := range ordered {
		vs[i] = params[k]
	}
	return newCStrings(ordered), newCStrings(vs), int32(len(ordered))
}
