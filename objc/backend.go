package objc

import (
	"github.com/chazu/objcsend/abi"
)

// Status is the result code of a protected call.
type Status int32

const (
	// StatusOK means the frame ran to completion and holds its result.
	StatusOK Status = 0
	// StatusCaught means an exception was intercepted; the exception slot
	// holds an owned (+1) reference and the frame result is unset.
	StatusCaught Status = 1
)

// Capabilities describe optional backend features.
type Capabilities uint32

const (
	// CapProtectedCalls is set when TryRunAndCatch can intercept
	// exceptions. Without it checked sends fail with
	// ErrProtectionUnavailable.
	CapProtectedCalls Capabilities = 1 << iota
)

// Has reports whether all of want are present.
func (c Capabilities) Has(want Capabilities) bool { return c&want == want }

// Backend is an Objective-C runtime. All addresses are raw pointers in
// the runtime's address space; 0 means absent.
type Backend interface {
	Arch() abi.Arch
	Family() abi.Family
	Capabilities() Capabilities

	// Identity.
	RegisterName(name string) uintptr
	SelName(sel uintptr) string
	GetClass(name string) uintptr
	ClassName(cls uintptr) string
	Superclass(cls uintptr) uintptr

	// CString copies the NUL-terminated string at p. It returns nil for
	// a null pointer.
	CString(p uintptr) []byte

	// Symbol resolves a dispatch entry point by name.
	Symbol(name string) (uintptr, error)

	// MsgLookup and MsgLookupSuper resolve the implementation of a
	// message on runtimes that dispatch dynamically. They return 0 when
	// nothing answers the selector.
	MsgLookup(recv, sel uintptr) uintptr
	MsgLookupSuper(sup *Superclass, sel uintptr) uintptr

	// Prepare checks that the backend can perform c and attaches any
	// state it needs with c.SetPrepared. It is called once per send,
	// before the frame is built.
	Prepare(c *Call) error

	// Invoke is the entry stub. It takes the call out of f, performs it
	// and completes f.
	Invoke(f *Frame)

	// TryRunAndCatch runs the entry stub for f exactly once inside a
	// region that intercepts Objective-C exceptions. On StatusCaught
	// the exception object is stored in *exc.
	TryRunAndCatch(f *Frame, exc *uintptr) Status
}
