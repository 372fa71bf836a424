package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"

	"github.com/lumen-ml/lumen/internal/capi"
)

// encodeElem renders one float64 value as dtype bytes, little-endian.
func encodeElem(dtype capi.DataType, v float64) []byte {
	buf := make([]byte, dtype.Size())
	switch dtype {
	case capi.Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case capi.Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	case capi.Int32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case capi.Int64:
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	case capi.Uint8:
		buf[0] = uint8(v)
	case capi.Bool:
		if v != 0 {
			buf[0] = 1
		}
	}
	return buf
}

// decodeElem reads one dtype element from bytes as float64.
func decodeElem(dtype capi.DataType, buf []byte) float64 {
	switch dtype {
	case capi.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case capi.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case capi.Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case capi.Int64:
		return float64(int64(binary.LittleEndian.Uint64(buf)))
	case capi.Uint8:
		return float64(buf[0])
	case capi.Bool:
		if buf[0] != 0 {
			return 1
		}
		return 0
	}
	return 0
}

// encodeSlice renders a host slice as raw little-endian bytes.
func encodeSlice[T Element](data []T) []byte {
	buf := make([]byte, 0, len(data)*dtypeOf[T]().Size())
	switch d := any(data).(type) {
	case []float32:
		for _, v := range d {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	case []float64:
		for _, v := range d {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	case []int32:
		for _, v := range d {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
	case []int64:
		for _, v := range d {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	case []uint8:
		buf = append(buf, d...)
	case []bool:
		for _, v := range d {
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

// Bytes copies the array's buffer to host memory.
func (a *Array) Bytes() ([]byte, error) {
	buf := make([]byte, a.ByteSize())
	if err := a.eng.ArrayCopyToHost(a.h, buf); err != nil {
		return nil, err
	}
	runtime.KeepAlive(a)
	return buf, nil
}

// Float64s copies the array to host memory, converting every element to
// float64 regardless of dtype.
func (a *Array) Float64s() ([]float64, error) {
	buf, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	size := a.dt.Size()
	out := make([]float64, a.NumElements())
	for i := range out {
		out[i] = decodeElem(a.dt, buf[i*size:])
	}
	return out, nil
}

// Float32s copies the array to host memory. The array must be float32.
func (a *Array) Float32s() ([]float32, error) {
	if a.dt != capi.Float32 {
		return nil, fmt.Errorf("float32s: array is %s", a.dt)
	}
	buf, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]float32, a.NumElements())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

// Int32s copies the array to host memory. The array must be int32.
func (a *Array) Int32s() ([]int32, error) {
	if a.dt != capi.Int32 {
		return nil, fmt.Errorf("int32s: array is %s", a.dt)
	}
	buf, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]int32, a.NumElements())
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

// Int64s copies the array to host memory. The array must be int64.
func (a *Array) Int64s() ([]int64, error) {
	if a.dt != capi.Int64 {
		return nil, fmt.Errorf("int64s: array is %s", a.dt)
	}
	buf, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]int64, a.NumElements())
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// At reads the element at the given multi-dimensional index.
func (a *Array) At(indices ...int) (float64, error) {
	off, err := a.offsetOf(indices)
	if err != nil {
		return 0, err
	}
	buf, err := a.Bytes()
	if err != nil {
		return 0, err
	}
	return decodeElem(a.dt, buf[off*a.dt.Size():]), nil
}

// Set writes the element at the given multi-dimensional index. The whole
// buffer round-trips through the host, so Set is for small arrays and tests.
func (a *Array) Set(value float64, indices ...int) error {
	off, err := a.offsetOf(indices)
	if err != nil {
		return err
	}
	buf, err := a.Bytes()
	if err != nil {
		return err
	}
	copy(buf[off*a.dt.Size():], encodeElem(a.dt, value))
	err = a.eng.ArrayCopyFromHost(a.h, buf)
	runtime.KeepAlive(a)
	return err
}

func (a *Array) offsetOf(indices []int) (int, error) {
	if len(indices) != len(a.shp) {
		return 0, fmt.Errorf("index: got %d indices for rank-%d array", len(indices), len(a.shp))
	}
	strides := a.shp.ComputeStrides()
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= a.shp[i] {
			return 0, fmt.Errorf("index: axis %d index %d out of range [0, %d)", i, idx, a.shp[i])
		}
		off += idx * strides[i]
	}
	return off, nil
}
