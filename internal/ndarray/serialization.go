package ndarray

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Save writes named arrays to path in the engine container format, sorted by
// name. All arrays must belong to the same engine.
func Save(path string, arrays map[string]*Array) error {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]*Array, len(names))
	for i, name := range names {
		list[i] = arrays[name]
	}
	return SaveList(path, names, list)
}

// SaveList writes arrays to path under the given names, in order.
func SaveList(path string, names []string, arrays []*Array) error {
	if len(names) != len(arrays) {
		return fmt.Errorf("save: %d names for %d arrays", len(names), len(arrays))
	}
	if len(arrays) == 0 {
		return fmt.Errorf("save: nothing to save")
	}
	eng := arrays[0].eng
	handles := make([]capi.ArrayHandle, len(arrays))
	for i, a := range arrays {
		if a.eng != eng {
			return fmt.Errorf("save: array %q belongs to a different engine", names[i])
		}
		handles[i] = a.h
	}
	err := eng.SaveArrays(path, names, handles)
	runtime.KeepAlive(arrays)
	return err
}

// Load reads a container file, returning the arrays keyed by name.
func Load(eng capi.Engine, path string) (map[string]*Array, error) {
	names, handles, err := eng.LoadArrays(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Array, len(names))
	for i, name := range names {
		a, err := wrap(eng, handles[i])
		if err != nil {
			// wrap freed handles[i]; release what was already adopted and
			// the handles not yet reached.
			for _, done := range out {
				_ = done.Close()
			}
			for _, h := range handles[i+1:] {
				_ = eng.ArrayFree(h)
			}
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}
