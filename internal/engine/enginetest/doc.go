// Package enginetest provides an in-process reference implementation of the
// capi.Engine dispatch surface.
//
// The binding itself is pure glue: it marshals calls into whatever engine it
// is given. This package stands in for liblumen so the test suite can
// exercise the binding's semantics (handle lifetimes, keyword-record
// marshaling, shape propagation, save/load round-trips) against
// host-computed reference results without the native library installed.
//
// Operations are implemented naively for correctness, not speed. The
// executor's backward pass covers the differentiable core: element-wise
// arithmetic (with broadcasting), scalar shims, exp/log/sqrt, dot,
// full-range sum and mean, reshape and _copyto. Gradients of the remaining
// operators (axis-wise reductions, max/min/power, comparisons) return an
// error rather than a silently wrong value.
package enginetest
