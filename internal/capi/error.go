package capi

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidHandle = errors.New("invalid or freed handle")
	ErrNotLoaded     = errors.New("native library not loaded")
)

// Error wraps a nonzero native status code together with the message the
// engine reported for it.
type Error struct {
	Op   string // Native entry point or operator name
	Code int    // Native status code
	Msg  string // Message from lumen_last_error_message
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("lumen: %s failed (status %d): %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("lumen: %s failed (status %d)", e.Op, e.Code)
}
