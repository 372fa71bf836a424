package ndarray

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Context identifies where an array's buffer resides: a device kind plus a
// device index. Contexts are immutable values; arrays carry the context
// they were created with.
type Context struct {
	Device capi.DeviceKind
	ID     int
}

// CPU returns the context for the host CPU.
func CPU() Context {
	return Context{Device: capi.DeviceCPU, ID: 0}
}

// GPU returns the context for GPU device i.
func GPU(i int) Context {
	return Context{Device: capi.DeviceGPU, ID: i}
}

// CPUPinned returns the context for pinned host memory usable by device i.
func CPUPinned(i int) Context {
	return Context{Device: capi.DeviceCPUPinned, ID: i}
}

// Equal reports whether two contexts name the same device.
func (c Context) Equal(other Context) bool {
	return c.Device == other.Device && c.ID == other.ID
}

// String returns the conventional "kind(index)" rendering.
func (c Context) String() string {
	return fmt.Sprintf("%s(%d)", c.Device, c.ID)
}
