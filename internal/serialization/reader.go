package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Reader provides memory-mapped access to a .lmnc container.
// Only the header is parsed up front; array data is read on demand through
// the OS page cache.
type Reader struct {
	file       *os.File
	data       []byte // mmap'd region (read-only)
	size       int64
	header     Header
	flags      uint32
	dataOffset int64
	closed     bool
}

// Open memory-maps a .lmnc file and parses its header.
// Always call Close when done (use defer).
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &Reader{
		file: file,
		data: data,
		size: stat.Size(),
	}
	if err := r.parseHeader(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	if r.size < fixedPrefixSize {
		return fmt.Errorf("file too small: %d bytes", r.size)
	}
	if string(r.data[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(r.data[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(r.data[8:12])

	headerSize := binary.LittleEndian.Uint64(r.data[12:20])
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	headerEnd := int64(fixedPrefixSize) + int64(headerSize)
	if headerEnd > r.size {
		return fmt.Errorf("header extends beyond file: header_end=%d, file_size=%d", headerEnd, r.size)
	}
	if err := json.Unmarshal(r.data[fixedPrefixSize:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	r.dataOffset = align(headerEnd, HeaderAlignment)

	for _, m := range r.header.Arrays {
		if m.Offset < 0 || m.Size < 0 || r.dataOffset+m.Offset+m.Size > r.size {
			return fmt.Errorf("%w: array %q", ErrOutOfBounds, m.Name)
		}
	}
	return nil
}

// Close unmaps and closes the file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if closeErr := r.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// Names returns the array names in file order.
func (r *Reader) Names() []string {
	names := make([]string, len(r.header.Arrays))
	for i, m := range r.header.Arrays {
		names[i] = m.Name
	}
	return names
}

// Meta returns metadata for a named array.
func (r *Reader) Meta(name string) (*ArrayMeta, error) {
	for i := range r.header.Arrays {
		if r.header.Arrays[i].Name == name {
			return &r.header.Arrays[i], nil
		}
	}
	return nil, fmt.Errorf("array %q not found", name)
}

// Data returns a zero-copy slice of a named array's bytes.
// The slice is valid only while the reader is open and must not be written.
func (r *Reader) Data(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	meta, err := r.Meta(name)
	if err != nil {
		return nil, err
	}
	start := r.dataOffset + meta.Offset
	return r.data[start : start+meta.Size], nil
}

// DataCopy returns a mutable copy of a named array's bytes.
func (r *Reader) DataCopy(name string) ([]byte, error) {
	data, err := r.Data(name)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// VerifyChecksum recomputes the data-section checksum and compares it with
// the one stored in the header. Containers written without a checksum
// verify trivially.
func (r *Reader) VerifyChecksum() error {
	if r.closed {
		return ErrReaderClosed
	}
	if r.flags&FlagHasChecksum == 0 || r.header.Checksum == "" {
		return nil
	}
	hash := sha256.New()
	for _, m := range r.header.Arrays {
		start := r.dataOffset + m.Offset
		hash.Write(r.data[start : start+m.Size])
	}
	if hex.EncodeToString(hash.Sum(nil)) != r.header.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}
