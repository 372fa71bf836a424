package ndarray

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/capi"
	"github.com/lumen-ml/lumen/internal/engine/enginetest"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		n     int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3, 4}, 24},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.n {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.n)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestContext(t *testing.T) {
	if got := CPU().String(); got != "cpu(0)" {
		t.Errorf("CPU().String() = %q", got)
	}
	if got := GPU(2).String(); got != "gpu(2)" {
		t.Errorf("GPU(2).String() = %q", got)
	}
	if !CPU().Equal(CPU()) || CPU().Equal(GPU(0)) {
		t.Error("context equality broken")
	}
}

func TestCreation(t *testing.T) {
	e := enginetest.New()

	z, err := Zeros(e, Shape{2, 3}, capi.Float32, CPU())
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, z.Shape())
	assert.Equal(t, capi.Float32, z.DType())
	assert.Equal(t, CPU(), z.Context())
	vals, err := z.Float64s()
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), vals)

	o, err := Ones(e, Shape{3}, capi.Float64, CPU())
	require.NoError(t, err)
	vals, err = o.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, vals)

	f, err := Full(e, Shape{2}, capi.Int32, CPU(), 7)
	require.NoError(t, err)
	ints, err := f.Int32s()
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 7}, ints)

	s, err := Scalar(e, 2.5, capi.Float64, CPU())
	require.NoError(t, err)
	assert.Empty(t, s.Shape())
	assert.Equal(t, 1, s.NumElements())
	assert.Equal(t, 0, s.Len())
}

func TestCreationRejectsBadShape(t *testing.T) {
	e := enginetest.New()
	_, err := Zeros(e, Shape{2, -1}, capi.Float32, CPU())
	assert.Error(t, err)
}

func TestArange(t *testing.T) {
	e := enginetest.New()

	a, err := Arange(e, 0, 5, 1, capi.Float64, CPU())
	require.NoError(t, err)
	vals, err := a.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, vals)

	a, err = Arange(e, 1, 0, -0.25, capi.Float64, CPU())
	require.NoError(t, err)
	vals, err = a.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.75, 0.5, 0.25}, vals)

	_, err = Arange(e, 0, 5, 0, capi.Float64, CPU())
	assert.Error(t, err)
}

func TestFromSlice(t *testing.T) {
	e := enginetest.New()

	a, err := FromSlice(e, []float32{1, 2, 3, 4}, Shape{2, 2}, CPU())
	require.NoError(t, err)
	assert.Equal(t, capi.Float32, a.DType())
	f32, err := a.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, f32)

	b, err := FromSlice(e, []int64{5, 6}, Shape{2}, CPU())
	require.NoError(t, err)
	assert.Equal(t, capi.Int64, b.DType())
	i64, err := b.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, i64)

	_, err = FromSlice(e, []float32{1, 2, 3}, Shape{2, 2}, CPU())
	assert.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2, 3, 4}, Shape{2, 2}, CPU())
	require.NoError(t, err)
	b, err := FromSlice(e, []float64{5, 6, 7, 8}, Shape{2, 2}, CPU())
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	vals, err := sum.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 8, 10, 12}, vals)

	prod, err := a.Mul(b)
	require.NoError(t, err)
	vals, err = prod.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 12, 21, 32}, vals)

	scaled, err := a.MulScalar(10)
	require.NoError(t, err)
	vals, err = scaled.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40}, vals)

	flipped, err := a.RSubScalar(5)
	require.NoError(t, err)
	vals, err = flipped.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 3, 2, 1}, vals)

	neg, err := a.Neg()
	require.NoError(t, err)
	vals, err = neg.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -3, -4}, vals)
}

func TestDotAndReductions(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU())
	require.NoError(t, err)
	b, err := FromSlice(e, []float64{1, 0, 0, 1, 1, 1}, Shape{3, 2}, CPU())
	require.NoError(t, err)

	out, err := a.Dot(b)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, out.Shape())
	vals, err := out.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 10, 11}, vals)

	total, err := a.Sum(-1, false)
	require.NoError(t, err)
	assert.Empty(t, total.Shape())
	vals, err = total.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{21}, vals)

	rows, err := a.Mean(1, false)
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, rows.Shape())
	vals, err = rows.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, vals)

	am, err := a.Argmax(1)
	require.NoError(t, err)
	assert.Equal(t, capi.Int64, am.DType())
	vals, err = am.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, vals)
}

func TestManipulation(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU())
	require.NoError(t, err)

	r, err := a.Reshape(3, -1)
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, r.Shape())
	// The source keeps its shape; reshape returns a new handle.
	assert.Equal(t, Shape{2, 3}, a.Shape())

	tr, err := a.Transpose()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, tr.Shape())
	vals, err := tr.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, vals)

	ex, err := a.ExpandDims(0)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 2, 3}, ex.Shape())

	sq, err := ex.Squeeze(0)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, sq.Shape())

	sl, err := a.SliceRange(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 3}, sl.Shape())
	vals, err = sl.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, vals)

	cat, err := Concat(0, a, a)
	require.NoError(t, err)
	assert.Equal(t, Shape{4, 3}, cat.Shape())
}

func TestIndex(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, Shape{3, 2}, CPU())
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())

	row, err := a.Index(1)
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, row.Shape())
	vals, err := row.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, vals)

	v, err := FromSlice(e, []float64{7, 8, 9}, Shape{3}, CPU())
	require.NoError(t, err)
	el, err := v.Index(2)
	require.NoError(t, err)
	assert.Equal(t, Shape{1}, el.Shape())
}

func TestCastAndCopy(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1.9, -2.9}, Shape{2}, CPU())
	require.NoError(t, err)

	i, err := a.Cast(capi.Int32)
	require.NoError(t, err)
	assert.Equal(t, capi.Int32, i.DType())
	ints, err := i.Int32s()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2}, ints)

	moved, err := a.CopyTo(GPU(0))
	require.NoError(t, err)
	assert.Equal(t, GPU(0), moved.Context())
	vals, err := moved.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.9, -2.9}, vals)

	// AsInContext on the same device returns the receiver.
	same, err := a.AsInContext(CPU())
	require.NoError(t, err)
	assert.Same(t, a, same)

	other, err := a.AsInContext(GPU(1))
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, GPU(1), other.Context())
}

func TestCopyInto(t *testing.T) {
	e := enginetest.New()
	src, err := FromSlice(e, []float64{1, 2}, Shape{2}, CPU())
	require.NoError(t, err)
	dst, err := Zeros(e, Shape{2}, capi.Float64, CPU())
	require.NoError(t, err)

	require.NoError(t, src.CopyInto(dst))
	vals, err := dst.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vals)

	wrong, err := Zeros(e, Shape{3}, capi.Float64, CPU())
	require.NoError(t, err)
	assert.Error(t, src.CopyInto(wrong))

	typed, err := Zeros(e, Shape{2}, capi.Float32, CPU())
	require.NoError(t, err)
	assert.Error(t, src.CopyInto(typed))
}

func TestAtSet(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU())
	require.NoError(t, err)

	v, err := a.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	require.NoError(t, a.Set(42, 0, 1))
	v, err = a.At(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = a.At(2, 0)
	assert.Error(t, err)
	_, err = a.At(0)
	assert.Error(t, err)
}

// faultEngine fails array metadata queries on demand so handle-adoption
// error paths can be exercised.
type faultEngine struct {
	*enginetest.Engine
	failShape bool
}

func (f *faultEngine) ArrayShape(h capi.ArrayHandle) ([]int, error) {
	if f.failShape {
		return nil, &capi.Error{Op: "lumen_array_shape", Code: 1, Msg: "injected failure"}
	}
	return f.Engine.ArrayShape(h)
}

func TestAdoptionFailureFreesHandles(t *testing.T) {
	inner := enginetest.New()
	f := &faultEngine{Engine: inner}

	a, err := FromSlice(f, []float64{1, 2, 3}, Shape{3}, CPU())
	require.NoError(t, err)
	b, err := FromSlice(f, []float64{4, 5, 6}, Shape{3}, CPU())
	require.NoError(t, err)
	require.Equal(t, 2, inner.LiveArrays())

	// The op runs, but its output cannot be adopted; the fresh handle
	// must not leak.
	f.failShape = true
	_, err = Invoke(f, "add", []*Array{a, b}, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.LiveArrays())
	f.failShape = false

	// Same on the load path: every handle from the container is released
	// when adoption fails part-way.
	path := filepath.Join(t.TempDir(), "pair.lmnc")
	require.NoError(t, Save(path, map[string]*Array{"a": a, "b": b}))
	f.failShape = true
	_, err = Load(f, path)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.LiveArrays())
}

func TestCloseReleasesOnce(t *testing.T) {
	e := enginetest.New()
	a, err := Zeros(e, Shape{4}, capi.Float32, CPU())
	require.NoError(t, err)
	assert.Equal(t, 1, e.LiveArrays())

	require.NoError(t, a.Close())
	assert.Equal(t, 0, e.LiveArrays())
	assert.Equal(t, 1, e.FreeCount())

	// Second Close is a no-op, not a double free.
	require.NoError(t, a.Close())
	assert.Equal(t, 1, e.FreeCount())

	// The engine rejects use of the stale handle.
	_, err = a.Add(a)
	assert.ErrorIs(t, err, capi.ErrInvalidHandle)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := enginetest.New()
	path := filepath.Join(t.TempDir(), "params.lmnc")

	w, err := FromSlice(e, []float32{1, 2, 3, 4}, Shape{2, 2}, CPU())
	require.NoError(t, err)
	b, err := FromSlice(e, []float32{0.5}, Shape{1}, CPU())
	require.NoError(t, err)

	require.NoError(t, Save(path, map[string]*Array{"weight": w, "bias": b}))

	loaded, err := Load(e, path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	lw := loaded["weight"]
	require.NotNil(t, lw)
	assert.Equal(t, Shape{2, 2}, lw.Shape())
	assert.Equal(t, capi.Float32, lw.DType())
	f32, err := lw.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, f32)

	lb := loaded["bias"]
	require.NotNil(t, lb)
	f32, err = lb.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, f32)
}

func TestString(t *testing.T) {
	e := enginetest.New()
	a, err := FromSlice(e, []float64{1, 2}, Shape{2}, CPU())
	require.NoError(t, err)
	s := a.String()
	assert.Contains(t, s, "float64")
	assert.Contains(t, s, "cpu(0)")
}
