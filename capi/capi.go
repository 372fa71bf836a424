// Package capi exposes the dispatch surface between the Go binding and the
// Lumen native engine: handle types, keyword-argument records, data types
// and the Engine interface.
//
// Most programs use the higher-level ndarray and symbol packages; capi is
// for code that needs to talk to an Engine directly.
package capi

import (
	internalcapi "github.com/lumen-ml/lumen/internal/capi"
)

// Engine is the call surface of the wrapped native library.
type Engine = internalcapi.Engine

// ArrayHandle identifies a native array.
type ArrayHandle = internalcapi.ArrayHandle

// SymbolHandle identifies a native computation-graph node.
type SymbolHandle = internalcapi.SymbolHandle

// ExecutorHandle identifies a native graph executor.
type ExecutorHandle = internalcapi.ExecutorHandle

// Params is a keyword-argument call record for native op invocations.
type Params = internalcapi.Params

// DataType represents runtime element type information for arrays.
type DataType = internalcapi.DataType

// Data type constants.
const (
	Float32 DataType = internalcapi.Float32
	Float64 DataType = internalcapi.Float64
	Int32   DataType = internalcapi.Int32
	Int64   DataType = internalcapi.Int64
	Uint8   DataType = internalcapi.Uint8
	Bool    DataType = internalcapi.Bool
)

// DeviceKind identifies a device class.
type DeviceKind = internalcapi.DeviceKind

// Device kinds known to the engine.
const (
	DeviceCPU       DeviceKind = internalcapi.DeviceCPU
	DeviceGPU       DeviceKind = internalcapi.DeviceGPU
	DeviceCPUPinned DeviceKind = internalcapi.DeviceCPUPinned
)

// DeviceInfo describes one device reported by the engine.
type DeviceInfo = internalcapi.DeviceInfo

// Error is a native status code translated into a Go error.
type Error = internalcapi.Error

// Sentinel errors shared across engine implementations.
var (
	ErrInvalidHandle = internalcapi.ErrInvalidHandle
	ErrNotLoaded     = internalcapi.ErrNotLoaded
)
