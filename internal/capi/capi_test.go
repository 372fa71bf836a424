package capi

import (
	"errors"
	"testing"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
		{Int32, 4},
		{Int64, 8},
		{Uint8, 1},
		{Bool, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestDataTypeStringRoundTrip(t *testing.T) {
	for _, dt := range []DataType{Float32, Float64, Int32, Int64, Uint8, Bool} {
		got, ok := DataTypeFromString(dt.String())
		if !ok || got != dt {
			t.Errorf("DataTypeFromString(%q) = %v, %v", dt.String(), got, ok)
		}
	}
	if _, ok := DataTypeFromString("float16"); ok {
		t.Error("DataTypeFromString accepted unknown name")
	}
}

func TestDeviceKindString(t *testing.T) {
	tests := []struct {
		kind DeviceKind
		str  string
	}{
		{DeviceCPU, "cpu"},
		{DeviceGPU, "gpu"},
		{DeviceCPUPinned, "cpu_pinned"},
		{DeviceKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.str {
			t.Errorf("DeviceKind(%d).String() = %q, want %q", tt.kind, got, tt.str)
		}
	}
}

func TestParamsSettersAndGetters(t *testing.T) {
	p := Params{}
	p.SetInt("axis", 2)
	p.SetFloat("scalar", 1.5)
	p.SetBool("keepdims", true)
	p.SetShape("shape", []int{2, 3, 4})

	if v, err := p.Int("axis", 0); err != nil || v != 2 {
		t.Errorf("Int(axis) = %d, %v", v, err)
	}
	if v, err := p.Float("scalar", 0); err != nil || v != 1.5 {
		t.Errorf("Float(scalar) = %v, %v", v, err)
	}
	if v, err := p.Bool("keepdims", false); err != nil || !v {
		t.Errorf("Bool(keepdims) = %v, %v", v, err)
	}
	shape, err := p.Shape("shape")
	if err != nil || len(shape) != 3 || shape[0] != 2 || shape[1] != 3 || shape[2] != 4 {
		t.Errorf("Shape(shape) = %v, %v", shape, err)
	}
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}
	if v, _ := p.Int("missing", 7); v != 7 {
		t.Errorf("Int default = %d, want 7", v)
	}
	if v, _ := p.Float("missing", 2.5); v != 2.5 {
		t.Errorf("Float default = %v, want 2.5", v)
	}
	if v, _ := p.Bool("missing", true); !v {
		t.Error("Bool default = false, want true")
	}
	if s, err := p.Shape("missing"); s != nil || err != nil {
		t.Errorf("Shape default = %v, %v", s, err)
	}
}

func TestParamsBadValues(t *testing.T) {
	p := Params{"axis": "two", "scalar": "x", "keepdims": "maybe", "shape": "1,x"}
	if _, err := p.Int("axis", 0); err == nil {
		t.Error("Int accepted non-numeric value")
	}
	if _, err := p.Float("scalar", 0); err == nil {
		t.Error("Float accepted non-numeric value")
	}
	if _, err := p.Bool("keepdims", false); err == nil {
		t.Error("Bool accepted non-boolean value")
	}
	if _, err := p.Shape("shape"); err == nil {
		t.Error("Shape accepted malformed encoding")
	}
}

func TestParamsKeysSorted(t *testing.T) {
	p := Params{"z": "1", "a": "2", "m": "3"}
	keys := p.Keys()
	want := []string{"a", "m", "z"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestParamsClone(t *testing.T) {
	p := Params{"a": "1"}
	c := p.Clone()
	c["a"] = "2"
	if p["a"] != "1" {
		t.Error("Clone shares storage with original")
	}
	if c := Params(nil).Clone(); c == nil {
		t.Error("Clone of nil should be an empty record")
	}
}

func TestShapeEncoding(t *testing.T) {
	tests := []struct {
		shape []int
		str   string
	}{
		{[]int{}, ""},
		{[]int{5}, "5"},
		{[]int{2, 3, 4}, "2,3,4"},
	}

	for _, tt := range tests {
		if got := FormatShape(tt.shape); got != tt.str {
			t.Errorf("FormatShape(%v) = %q, want %q", tt.shape, got, tt.str)
		}
		parsed, err := ParseShape(tt.str)
		if err != nil {
			t.Errorf("ParseShape(%q): %v", tt.str, err)
			continue
		}
		if len(parsed) != len(tt.shape) {
			t.Errorf("ParseShape(%q) = %v, want %v", tt.str, parsed, tt.shape)
		}
	}
}

func TestErrorRendering(t *testing.T) {
	err := &Error{Op: "lumen_ndarray_create", Code: 3, Msg: "out of memory"}
	want := "lumen: lumen_ndarray_create failed (status 3): out of memory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSentinelWrapping(t *testing.T) {
	wrapped := &Error{Op: "lumen_ndarray_free", Code: 2, Msg: "bad handle"}
	if errors.Is(wrapped, ErrNotLoaded) {
		t.Error("status error should not match ErrNotLoaded")
	}
}
