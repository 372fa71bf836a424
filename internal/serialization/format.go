package serialization

import (
	"time"

	"github.com/lumen-ml/lumen/internal/capi"
)

// Format constants.
const (
	MagicBytes      = "LMNC"
	FormatVersion   = 1
	HeaderAlignment = 64               // Array data aligned to 64 bytes
	MaxHeaderSize   = 64 * 1024 * 1024 // Sanity bound for the JSON header
	fixedPrefixSize = 4 + 4 + 4 + 8    // magic + version + flags + header size
)

// Flags for the .lmnc format.
const (
	FlagHasChecksum uint32 = 1 << 0 // bit 0: SHA-256 checksum of the data section present in header
)

// Header is the JSON header of a .lmnc file.
type Header struct {
	FormatVersion int         `json:"format_version"`
	CreatedBy     string      `json:"created_by"` // Engine or binding version string
	CreatedAt     time.Time   `json:"created_at"`
	Checksum      string      `json:"checksum,omitempty"` // Hex SHA-256 of the data section
	Arrays        []ArrayMeta `json:"arrays"`
}

// ArrayMeta describes one array in the container.
type ArrayMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Bytes
}

// DataType resolves the metadata's dtype string.
func (m *ArrayMeta) DataType() (capi.DataType, bool) {
	return capi.DataTypeFromString(m.DType)
}

// Entry is an array to be written to a container.
type Entry struct {
	Name  string
	DType capi.DataType
	Shape []int
	Data  []byte
}
