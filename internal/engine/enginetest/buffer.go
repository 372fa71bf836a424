package enginetest

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/capi"
)

// buffer is the reference engine's array storage: a host byte buffer plus
// the metadata a native array carries.
type buffer struct {
	shape []int
	dtype capi.DataType
	dev   capi.DeviceKind
	devID int
	data  []byte
}

func newBuffer(shape []int, dtype capi.DataType, dev capi.DeviceKind, devID int) *buffer {
	return &buffer{
		shape: append([]int(nil), shape...),
		dtype: dtype,
		dev:   dev,
		devID: devID,
		data:  make([]byte, numElements(shape)*dtype.Size()),
	}
}

func (b *buffer) numElements() int {
	return numElements(b.shape)
}

func (b *buffer) byteSize() int {
	return len(b.data)
}

// f64 decodes the buffer into float64 values for generic op evaluation.
func (b *buffer) f64() []float64 {
	n := b.numElements()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = b.f64At(i)
	}
	return out
}

func (b *buffer) f64At(i int) float64 {
	switch b.dtype {
	case capi.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b.data[i*4:])))
	case capi.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b.data[i*8:]))
	case capi.Int32:
		return float64(int32(binary.LittleEndian.Uint32(b.data[i*4:])))
	case capi.Int64:
		return float64(int64(binary.LittleEndian.Uint64(b.data[i*8:])))
	case capi.Uint8:
		return float64(b.data[i])
	case capi.Bool:
		if b.data[i] != 0 {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("unsupported dtype: %s", b.dtype))
	}
}

func (b *buffer) setF64(i int, v float64) {
	switch b.dtype {
	case capi.Float32:
		binary.LittleEndian.PutUint32(b.data[i*4:], math.Float32bits(float32(v)))
	case capi.Float64:
		binary.LittleEndian.PutUint64(b.data[i*8:], math.Float64bits(v))
	case capi.Int32:
		binary.LittleEndian.PutUint32(b.data[i*4:], uint32(int32(v)))
	case capi.Int64:
		binary.LittleEndian.PutUint64(b.data[i*8:], uint64(int64(v)))
	case capi.Uint8:
		b.data[i] = byte(v)
	case capi.Bool:
		if v != 0 {
			b.data[i] = 1
		} else {
			b.data[i] = 0
		}
	default:
		panic(fmt.Sprintf("unsupported dtype: %s", b.dtype))
	}
}

func (b *buffer) fill(src []float64) {
	for i, v := range src {
		b.setF64(i, v)
	}
}

func (b *buffer) clone() *buffer {
	out := newBuffer(b.shape, b.dtype, b.dev, b.devID)
	copy(out.data, b.data)
	return out
}

// Shape helpers.

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	if len(shape) == 0 {
		return strides
	}
	strides[len(shape)-1] = 1
	for i := len(shape) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// broadcastShapes applies NumPy-style broadcasting rules to two shapes.
func broadcastShapes(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		aDim, bDim := 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}
		switch {
		case aDim == bDim:
			out[n-1-i] = aDim
		case aDim == 1:
			out[n-1-i] = bDim
		case bDim == 1:
			out[n-1-i] = aDim
		default:
			return nil, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v", a, b)
		}
	}
	return out, nil
}

// broadcastIndex maps a flat index in outShape to a flat index in inShape.
func broadcastIndex(flat int, outShape, inShape []int) int {
	outStrides := computeStrides(outShape)
	indices := make([]int, len(outShape))
	rem := flat
	for i := range outShape {
		indices[i] = rem / outStrides[i]
		rem %= outStrides[i]
	}

	inStrides := computeStrides(inShape)
	offset := len(outShape) - len(inShape)
	idx := 0
	for i := range inShape {
		dimIdx := indices[offset+i]
		if inShape[i] == 1 {
			dimIdx = 0
		}
		idx += dimIdx * inStrides[i]
	}
	return idx
}
