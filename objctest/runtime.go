// Package objctest is an in-process Objective-C runtime for tests.
//
// Runtime implements objc.Backend without any native code. Classes and
// methods are Go values; objects, classes, selectors and C strings live
// at fake addresses. Exceptions are modelled with Go panics that only
// TryRunAndCatch recovers, so checked sends behave as they would against
// libobjc while unchecked sends of a raising method blow up the caller.
//
// The runtime checks every call against the dispatch rules of its
// architecture and fails Prepare when the marshalled entry point does
// not match the return type, the way a wrong entry point would corrupt
// a real stack.
package objctest

import (
	"fmt"
	"sync"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
)

// Dispatch records one call that reached the runtime.
type Dispatch struct {
	Symbol   string // entry point, or "imp" for a looked-up implementation
	Selector string
	Receiver uintptr
	Super    bool
}

// Runtime is a simulated Objective-C runtime.
type Runtime struct {
	*ObjectSpace
	Selectors *SelectorTable

	arch   abi.Arch
	family abi.Family
	caps   objc.Capabilities
	status objc.Status // forced helper status, 0 for none

	symbols  map[string]uintptr
	symNames map[uintptr]string

	impMu  sync.RWMutex
	imps   map[uintptr]*imp
	impFor map[impKey]uintptr

	logMu sync.Mutex
	log   []Dispatch

	NSObject    *Class
	NSString    *Class
	NSException *Class
}

type impKey struct {
	class     *Class
	selector  string
	classSide bool
}

type imp struct {
	fn       MethodFunc
	owner    *Class
	selector string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithArch sets the architecture whose dispatch rules are enforced.
func WithArch(a abi.Arch) Option {
	return func(r *Runtime) { r.arch = a }
}

// WithFamily selects Apple-style entry points or GNU-style dynamic
// lookup.
func WithFamily(f abi.Family) Option {
	return func(r *Runtime) { r.family = f }
}

// WithoutProtection removes CapProtectedCalls.
func WithoutProtection() Option {
	return func(r *Runtime) { r.caps &^= objc.CapProtectedCalls }
}

// WithHelperStatus makes TryRunAndCatch return s without running
// anything.
func WithHelperStatus(s objc.Status) Option {
	return func(r *Runtime) { r.status = s }
}

// New creates a runtime with NSObject, NSString and NSException
// registered. It defaults to the Apple family on arm64.
func New(opts ...Option) *Runtime {
	os := NewObjectSpace()
	r := &Runtime{
		ObjectSpace: os,
		Selectors:   NewSelectorTable(os.alloc),
		arch:        abi.ArchARM64,
		family:      abi.FamilyApple,
		caps:        objc.CapProtectedCalls,
		symbols:     make(map[string]uintptr),
		symNames:    make(map[uintptr]string),
		imps:        make(map[uintptr]*imp),
		impFor:      make(map[impKey]uintptr),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, sym := range entrySymbols(r.family, r.arch) {
		addr := os.alloc()
		r.symbols[sym] = addr
		r.symNames[addr] = sym
	}
	r.registerFoundation()
	return r
}

// entrySymbols lists the dispatch symbols libobjc exports for a family
// and architecture.
func entrySymbols(f abi.Family, arch abi.Arch) []string {
	if f == abi.FamilyGNU {
		return []string{abi.SymMsgLookup, abi.SymMsgLookupSuper}
	}
	syms := []string{abi.SymMsgSend, abi.SymMsgSendSuper}
	switch arch {
	case abi.ArchX86, abi.ArchAMD64:
		syms = append(syms, abi.SymMsgSendFpret, abi.SymMsgSendStret, abi.SymMsgSendSuperStret)
	case abi.ArchARM:
		syms = append(syms, abi.SymMsgSendStret, abi.SymMsgSendSuperStret)
	}
	return syms
}

// MustRegisterClass is RegisterClass that panics on error.
func (r *Runtime) MustRegisterClass(name, superclass string, methods *MethodTable) *Class {
	c, err := r.RegisterClass(name, superclass, methods)
	if err != nil {
		panic(err)
	}
	return c
}

// Dispatches returns the calls seen so far.
func (r *Runtime) Dispatches() []Dispatch {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return append([]Dispatch(nil), r.log...)
}

// LastDispatch returns the most recent call.
func (r *Runtime) LastDispatch() (Dispatch, bool) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	if len(r.log) == 0 {
		return Dispatch{}, false
	}
	return r.log[len(r.log)-1], true
}

func (r *Runtime) record(d Dispatch) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.log = append(r.log, d)
}

// RetainCount returns the reference count of a live object and whether
// it is still alive.
func (r *Runtime) RetainCount(addr uintptr) (int64, bool) {
	inst := r.GetInstance(addr)
	if inst == nil {
		return 0, false
	}
	return inst.RetainCount(), true
}

func (r *Runtime) String() string {
	return fmt.Sprintf("objctest.Runtime(%s/%s)", r.family, r.arch)
}
