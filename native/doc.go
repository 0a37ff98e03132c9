// Package native is the objc.Backend for the system Objective-C runtime.
//
// The runtime library is loaded with purego, without cgo. Identity
// functions (sel_registerName, objc_getClass, ...) and unchecked sends go
// through purego typed functions. Protected calls need the cgo shim in
// bridge.m, which runs the entry point through libffi inside an
// @try/@catch region; builds without cgo report no protected-call
// capability and checked sends fail with objc.ErrProtectionUnavailable.
//
// On darwin the shim is built whenever cgo is enabled. Elsewhere it needs
// the gnustep build tag and a libobjc2 with libffi.
package native
