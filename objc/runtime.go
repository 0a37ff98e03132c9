package objc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcsend/abi"
)

var log = commonlog.GetLogger("objcsend.objc")

// Runtime sends messages through a Backend. It is safe for concurrent
// use; its caches are shared by all goroutines.
type Runtime struct {
	b            Backend
	arch         abi.Arch
	family       abi.Family
	caps         Capabilities
	forceChecked bool
	observer     Observer
	log          commonlog.Logger

	selectors internTable
	classes   internTable
	entries   internTable

	forcedOnce sync.Once
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithForceChecked makes every send checked, including the Unchecked
// variants.
func WithForceChecked(on bool) Option {
	return func(rt *Runtime) { rt.forceChecked = on }
}

// WithObserver reports every completed send to o.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) { rt.observer = o }
}

// WithLogger replaces the package logger.
func WithLogger(l commonlog.Logger) Option {
	return func(rt *Runtime) { rt.log = l }
}

// New creates a runtime on top of b. It fails if b is an Apple-family
// runtime on an architecture without a dispatch rule.
func New(b Backend, opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		b:      b,
		arch:   b.Arch(),
		family: b.Family(),
		caps:   b.Capabilities(),
		log:    log,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.family == abi.FamilyApple && !abi.Supported(rt.arch) {
		return nil, fmt.Errorf("objc: %s runtime: %w: %s", rt.family, abi.ErrUnsupportedArch, rt.arch)
	}
	if debugChecked {
		rt.forceChecked = true
	}
	rt.log.Infof("runtime ready: family=%s arch=%s protected=%t force-checked=%t",
		rt.family, rt.arch, rt.caps.Has(CapProtectedCalls), rt.forceChecked)
	return rt, nil
}

// Backend returns the backend the runtime sends through.
func (rt *Runtime) Backend() Backend { return rt.b }

// Arch is the architecture whose dispatch rules the runtime follows.
func (rt *Runtime) Arch() abi.Arch { return rt.arch }

// Family is the runtime family.
func (rt *Runtime) Family() abi.Family { return rt.family }

// ForceChecked reports whether unchecked sends are upgraded.
func (rt *Runtime) ForceChecked() bool { return rt.forceChecked }

// Selector interns name. It reports false for the empty string and for
// names containing NUL, which cannot be registered.
func (rt *Runtime) Selector(name string) (Sel, bool) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return Sel{}, false
	}
	p, fresh := rt.selectors.get(name, rt.b.RegisterName)
	if fresh {
		rt.log.Debugf("selector %q -> %#x", name, p)
	}
	return SelFromPtr(p)
}

// MustSelector is Selector for names known to be valid.
func (rt *Runtime) MustSelector(name string) Sel {
	sel, ok := rt.Selector(name)
	if !ok {
		panic(fmt.Sprintf("objc: cannot register selector %q", name))
	}
	return sel
}

// Class looks up a class by name. Classes that do not exist are
// reported absent and not cached, so they are looked up again next time.
func (rt *Runtime) Class(name string) (Class, bool) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return Class{}, false
	}
	p, fresh := rt.classes.get(name, rt.b.GetClass)
	if fresh {
		rt.log.Debugf("class %s -> %#x", name, p)
	}
	return ClassFromPtr(p)
}

// MustClass is Class for classes known to exist.
func (rt *Runtime) MustClass(name string) Class {
	cls, ok := rt.Class(name)
	if !ok {
		panic(fmt.Sprintf("objc: class %s not found", name))
	}
	return cls
}

// SelName returns the registered name of sel.
func (rt *Runtime) SelName(sel Sel) string {
	if sel.IsNil() {
		return ""
	}
	return rt.b.SelName(sel.p)
}

// ClassName returns the name of cls.
func (rt *Runtime) ClassName(cls Class) string {
	if cls.IsNil() {
		return ""
	}
	return rt.b.ClassName(cls.p)
}

// Superclass returns the superclass of cls; root classes have none.
func (rt *Runtime) Superclass(cls Class) (Class, bool) {
	if cls.IsNil() {
		return Class{}, false
	}
	return ClassFromPtr(rt.b.Superclass(cls.p))
}

// entry resolves an entry point symbol through the cache.
func (rt *Runtime) entry(symbol string) (uintptr, error) {
	if p, ok := rt.entries.peek(symbol); ok {
		return p, nil
	}
	var lookupErr error
	p, fresh := rt.entries.get(symbol, func(name string) uintptr {
		p, err := rt.b.Symbol(name)
		if err != nil {
			lookupErr = err
			return 0
		}
		return p
	})
	if p == 0 {
		if lookupErr == nil {
			lookupErr = fmt.Errorf("symbol %s resolved to null", symbol)
		}
		return 0, fmt.Errorf("objc: resolving entry point: %w", lookupErr)
	}
	if fresh {
		rt.log.Debugf("entry %s -> %#x", symbol, p)
	}
	return p, nil
}

// StringValue renders an NSString-like object through its UTF8String
// method.
func (rt *Runtime) StringValue(obj Object) (string, error) {
	b, err := rt.utf8(obj, false)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// utf8 sends UTF8String to obj and copies the result.
func (rt *Runtime) utf8(obj Object, quiet bool) ([]byte, error) {
	sel, ok := rt.Selector("UTF8String")
	if !ok {
		return nil, ErrInvalidSelector
	}
	p, err := send[uintptr](rt, obj, Class{}, false, sel, nil, true, quiet)
	if err != nil {
		return nil, err
	}
	if p == 0 {
		return nil, fmt.Errorf("objc: UTF8String returned null")
	}
	return rt.b.CString(p), nil
}

func (rt *Runtime) noteForced() {
	rt.forcedOnce.Do(func() {
		rt.log.Warning("unchecked sends are running checked")
	})
}

func (rt *Runtime) observe(ev SendEvent, start time.Time) {
	if rt.observer == nil {
		return
	}
	ev.Elapsed = time.Since(start)
	rt.observer.ObserveSend(ev)
}
