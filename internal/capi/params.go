package capi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is a keyword-argument call record for native op invocations.
// At the FFI boundary it is marshaled into parallel key/value C string
// arrays; the string encoding below matches what the engine parses.
type Params map[string]string

// Clone returns a copy of the record, or an empty record for nil.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the record's keys in sorted order, so marshaled calls are
// deterministic.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetInt stores an integer keyword argument.
func (p Params) SetInt(key string, v int) Params {
	p[key] = strconv.Itoa(v)
	return p
}

// SetFloat stores a floating-point keyword argument.
func (p Params) SetFloat(key string, v float64) Params {
	p[key] = strconv.FormatFloat(v, 'g', -1, 64)
	return p
}

// SetBool stores a boolean keyword argument.
func (p Params) SetBool(key string, v bool) Params {
	p[key] = strconv.FormatBool(v)
	return p
}

// SetShape stores a shape keyword argument in the engine's "d0,d1,..."
// encoding.
func (p Params) SetShape(key string, shape []int) Params {
	p[key] = FormatShape(shape)
	return p
}

// Int reads an integer keyword argument, returning def when absent.
func (p Params) Int(key string, def int) (int, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return v, nil
}

// Float reads a floating-point keyword argument, returning def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return v, nil
}

// Bool reads a boolean keyword argument, returning def when absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("param %q: %w", key, err)
	}
	return v, nil
}

// Shape reads a shape keyword argument. Absent keys return (nil, nil).
func (p Params) Shape(key string) ([]int, error) {
	s, ok := p[key]
	if !ok {
		return nil, nil
	}
	shape, err := ParseShape(s)
	if err != nil {
		return nil, fmt.Errorf("param %q: %w", key, err)
	}
	return shape, nil
}

// FormatShape encodes a shape as "d0,d1,...". A scalar shape encodes as "".
func FormatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// ParseShape decodes the FormatShape encoding.
func ParseShape(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	shape := make([]int, len(parts))
	for i, part := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid shape %q: %w", s, err)
		}
		shape[i] = d
	}
	return shape, nil
}
