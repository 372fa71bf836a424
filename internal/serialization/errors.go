package serialization

import "errors"

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrOutOfBounds        = errors.New("array extends beyond data section")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrReaderClosed       = errors.New("reader is closed")
)
