// Package native implements the capi.Engine dispatch surface on top of the
// Lumen shared library.
//
// The library is loaded at runtime with purego (no cgo): Load resolves the
// lumen_* symbol table once and every Engine method is a thin forwarding
// call. Status codes are translated into capi.Error values carrying the
// message from lumen_last_error.
package native
