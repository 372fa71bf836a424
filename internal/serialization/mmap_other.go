//go:build !unix

package serialization

import (
	"io"
	"os"
)

// mmapFile falls back to reading the whole file on platforms without mmap
// support in this package.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmapFile(data []byte) error {
	return nil
}
