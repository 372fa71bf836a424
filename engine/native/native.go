// Package native provides the public API for loading the Lumen native
// library.
//
// Example:
//
//	eng, err := native.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	x, _ := ndarray.Zeros(eng, ndarray.Shape{2, 3}, ndarray.Float32, ndarray.CPU())
package native

import (
	internalnative "github.com/lumen-ml/lumen/internal/engine/native"
)

// Engine is the production engine backed by liblumen.
type Engine = internalnative.Engine

// Load opens the native library and resolves its entry points. An empty
// path searches the standard library names; LUMEN_LIBRARY overrides the
// search.
func Load(path string) (*Engine, error) {
	return internalnative.Load(path)
}
