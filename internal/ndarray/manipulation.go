package ndarray

import (
	"fmt"
	"runtime"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Reshape returns an array with the same data and a new shape. One dimension
// may be -1 and is inferred from the element count. The result is a new
// handle backed by a copy; the receiver is unchanged.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	p := capi.Params{}
	p.SetShape("shape", shape)
	return a.invoke("reshape", nil, p)
}

// Transpose permutes the axes. With no arguments the axis order is reversed.
func (a *Array) Transpose(axes ...int) (*Array, error) {
	p := capi.Params{}
	if len(axes) > 0 {
		p.SetShape("axes", axes)
	}
	return a.invoke("transpose", nil, p)
}

// ExpandDims inserts a length-1 axis at position axis.
func (a *Array) ExpandDims(axis int) (*Array, error) {
	p := capi.Params{}
	p.SetInt("axis", axis)
	return a.invoke("expand_dims", nil, p)
}

// Squeeze removes the length-1 axis at position axis.
func (a *Array) Squeeze(axis int) (*Array, error) {
	p := capi.Params{}
	p.SetInt("axis", axis)
	return a.invoke("squeeze", nil, p)
}

// SqueezeAll removes every length-1 axis.
func (a *Array) SqueezeAll() (*Array, error) {
	return a.invoke("squeeze", nil, nil)
}

// SliceRange returns rows [begin, end) along the first axis.
func (a *Array) SliceRange(begin, end int) (*Array, error) {
	p := capi.Params{}
	p.SetInt("begin", begin)
	p.SetInt("end", end)
	return a.invoke("slice", nil, p)
}

// Index returns row i of the first axis with the leading axis dropped.
func (a *Array) Index(i int) (*Array, error) {
	if len(a.shp) == 0 {
		return nil, fmt.Errorf("index: cannot index a scalar")
	}
	row, err := a.SliceRange(i, i+1)
	if err != nil {
		return nil, err
	}
	if len(a.shp) == 1 {
		return row, nil
	}
	defer row.Close()
	return row.Reshape(a.shp[1:]...)
}

// Concat joins arrays along axis dim. All inputs must share dtype, context
// and every other dimension.
func Concat(dim int, arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("concat: no inputs")
	}
	p := capi.Params{}
	p.SetInt("dim", dim)
	return arrays[0].invoke("concat", arrays[1:], p)
}

// Cast returns a copy converted to dtype.
func (a *Array) Cast(dtype capi.DataType) (*Array, error) {
	p := capi.Params{"dtype": dtype.String()}
	return a.invoke("_cast", nil, p)
}

// CopyTo copies the array to ctx. Copying to the array's own context still
// allocates a fresh buffer.
func (a *Array) CopyTo(ctx Context) (*Array, error) {
	p := capi.Params{}
	p.SetInt("dev_type", int(ctx.Device))
	p.SetInt("dev_id", ctx.ID)
	return a.invoke("_copyto", nil, p)
}

// AsInContext returns the array itself when it already lives on ctx, and a
// copy on ctx otherwise.
func (a *Array) AsInContext(ctx Context) (*Array, error) {
	if a.ctx.Equal(ctx) {
		return a, nil
	}
	return a.CopyTo(ctx)
}

// Copy returns a deep copy on the same context.
func (a *Array) Copy() (*Array, error) {
	return a.CopyTo(a.ctx)
}

// CopyInto writes the receiver's data into dst, which must match in shape
// and dtype. The contexts may differ; the engine routes the transfer.
func (a *Array) CopyInto(dst *Array) error {
	if !a.shp.Equal(dst.shp) {
		return fmt.Errorf("copyinto: shape %v does not match destination %v", []int(a.shp), []int(dst.shp))
	}
	if a.dt != dst.dt {
		return fmt.Errorf("copyinto: dtype %s does not match destination %s", a.dt, dst.dt)
	}
	buf, err := a.Bytes()
	if err != nil {
		return err
	}
	err = dst.eng.ArrayCopyFromHost(dst.h, buf)
	runtime.KeepAlive(dst)
	return err
}
