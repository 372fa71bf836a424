// Package serialization implements host-side reading and writing of the
// Lumen container format (.lmnc).
//
// The format is what lumen_ndarray_save produces: magic bytes, a JSON
// header describing the stored arrays, and a 64-byte-aligned data section.
// The binding normally saves and loads through the native entry points; this
// package exists for tooling (the CLI's inspect command) and for the
// in-process reference engine used in tests.
//
// Layout:
//
//	[0x00] magic "LMNC" (4 bytes)
//	[0x04] format version (uint32 LE)
//	[0x08] flags (uint32 LE)
//	[0x0C] header size (uint64 LE)
//	[0x14] JSON header (header size bytes)
//	[....] padding to 64-byte alignment
//	[....] array data section
package serialization
