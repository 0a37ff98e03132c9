//go:build darwin || linux || freebsd

package native

import (
	"runtime"

	"github.com/ebitengine/purego"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
)

var log = commonlog.GetLogger("objcsend.native")

// DefaultLibrary is the runtime library opened when none is configured.
func DefaultLibrary() string {
	if runtime.GOOS == "darwin" {
		return "/usr/lib/libobjc.A.dylib"
	}
	return "libobjc.so.4"
}

// Number of typed call stubs kept per runtime.
const typedCacheSize = 256

// Runtime is a loaded Objective-C runtime library.
type Runtime struct {
	path   string
	lib    uintptr
	arch   abi.Arch
	family abi.Family
	typed  *lru.Cache

	selRegisterName    func(string) uintptr
	selGetName         func(uintptr) string
	objcGetClass       func(string) uintptr
	classGetName       func(uintptr) string
	classGetSuperclass func(uintptr) uintptr
	objcMsgLookup      func(uintptr, uintptr) uintptr
	objcMsgLookupSuper func(*objc.Superclass, uintptr) uintptr
}

var _ objc.Backend = (*Runtime)(nil)

// Option configures Open.
type Option func(*Runtime)

// WithFamily overrides the runtime family, which otherwise follows the
// host operating system.
func WithFamily(f abi.Family) Option { return func(r *Runtime) { r.family = f } }

// WithArch overrides the architecture used for entry point selection.
func WithArch(a abi.Arch) Option { return func(r *Runtime) { r.arch = a } }

// Open loads the runtime library at path, or DefaultLibrary when path is
// empty, and binds its identity functions.
func Open(path string, opts ...Option) (r *Runtime, err error) {
	if path == "" {
		path = DefaultLibrary()
	}
	r = &Runtime{
		path:   path,
		arch:   abi.HostArch(),
		family: abi.HostFamily(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.typed, err = lru.New(typedCacheSize); err != nil {
		return nil, errors.Wrap(err, "typed call cache")
	}

	if r.lib, err = purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL); err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer func() {
		if err != nil {
			purego.Dlclose(r.lib)
		}
	}()

	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if v := recover(); v != nil {
			err = errors.Errorf("binding %s: %v", path, v)
		}
	}()
	purego.RegisterLibFunc(&r.selRegisterName, r.lib, "sel_registerName")
	purego.RegisterLibFunc(&r.selGetName, r.lib, "sel_getName")
	purego.RegisterLibFunc(&r.objcGetClass, r.lib, "objc_getClass")
	purego.RegisterLibFunc(&r.classGetName, r.lib, "class_getName")
	purego.RegisterLibFunc(&r.classGetSuperclass, r.lib, "class_getSuperclass")
	if r.family == abi.FamilyGNU {
		purego.RegisterLibFunc(&r.objcMsgLookup, r.lib, abi.SymMsgLookup)
		purego.RegisterLibFunc(&r.objcMsgLookupSuper, r.lib, abi.SymMsgLookupSuper)
	}

	log.Infof("loaded %s (%s, %s, protected calls: %t)", path, r.family, r.arch, protectedCalls)
	return r, nil
}

// Close unloads the library. Handles obtained from the runtime must not
// be used afterwards.
func (r *Runtime) Close() error {
	return errors.Wrapf(purego.Dlclose(r.lib), "closing %s", r.path)
}

// Path is the library the runtime was loaded from.
func (r *Runtime) Path() string { return r.path }

func (r *Runtime) Arch() abi.Arch     { return r.arch }
func (r *Runtime) Family() abi.Family { return r.family }

func (r *Runtime) Capabilities() objc.Capabilities {
	if protectedCalls {
		return objc.CapProtectedCalls
	}
	return 0
}

func (r *Runtime) RegisterName(name string) uintptr { return r.selRegisterName(name) }
func (r *Runtime) SelName(sel uintptr) string       { return r.selGetName(sel) }
func (r *Runtime) GetClass(name string) uintptr     { return r.objcGetClass(name) }
func (r *Runtime) ClassName(cls uintptr) string     { return r.classGetName(cls) }
func (r *Runtime) Superclass(cls uintptr) uintptr   { return r.classGetSuperclass(cls) }

func (r *Runtime) CString(p uintptr) []byte {
	if p == 0 {
		return nil
	}
	return cBytes(p)
}

func (r *Runtime) Symbol(name string) (uintptr, error) {
	p, err := purego.Dlsym(r.lib, name)
	if err != nil {
		return 0, errors.Wrapf(err, "%s in %s", name, r.path)
	}
	return p, nil
}

func (r *Runtime) MsgLookup(recv, sel uintptr) uintptr {
	if r.objcMsgLookup == nil {
		return 0
	}
	return r.objcMsgLookup(recv, sel)
}

func (r *Runtime) MsgLookupSuper(sup *objc.Superclass, sel uintptr) uintptr {
	if r.objcMsgLookupSuper == nil {
		return 0
	}
	s := r.objcMsgLookupSuper(sup, sel)
	runtime.KeepAlive(sup)
	return s
}
