package objctest

import (
	"fmt"
	"reflect"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
)

var _ objc.Backend = (*Runtime)(nil)

func (r *Runtime) Arch() abi.Arch                  { return r.arch }
func (r *Runtime) Family() abi.Family              { return r.family }
func (r *Runtime) Capabilities() objc.Capabilities { return r.caps }

func (r *Runtime) RegisterName(name string) uintptr { return r.Selectors.Intern(name) }
func (r *Runtime) SelName(sel uintptr) string       { return r.Selectors.Name(sel) }

func (r *Runtime) GetClass(name string) uintptr {
	if c := r.ObjectSpace.GetClass(name); c != nil {
		return c.Addr
	}
	return 0
}

func (r *Runtime) ClassName(cls uintptr) string {
	if c := r.ClassAt(cls); c != nil {
		return c.Name
	}
	return ""
}

func (r *Runtime) Superclass(cls uintptr) uintptr {
	if c := r.ClassAt(cls); c != nil && c.SuperclassP != nil {
		return c.SuperclassP.Addr
	}
	return 0
}

func (r *Runtime) CString(p uintptr) []byte {
	b, _ := r.cString(p)
	return b
}

func (r *Runtime) Symbol(name string) (uintptr, error) {
	if addr, ok := r.symbols[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("symbol %s not found in simulated %s runtime on %s", name, r.family, r.arch)
}

// MsgLookup hands out a stable fake IMP for each method it finds.
func (r *Runtime) MsgLookup(recv, sel uintptr) uintptr {
	return r.lookupIMP(recv, nil, sel)
}

func (r *Runtime) MsgLookupSuper(sup *objc.Superclass, sel uintptr) uintptr {
	start := r.ClassAt(sup.Class)
	if start == nil {
		return 0
	}
	return r.lookupIMP(sup.Receiver, start, sel)
}

func (r *Runtime) lookupIMP(recv uintptr, start *Class, sel uintptr) uintptr {
	selector := r.Selectors.Name(sel)
	fn, owner, classSide, err := r.resolve(recv, start, selector)
	if err != nil || fn == nil {
		return 0
	}
	key := impKey{class: owner, selector: selector, classSide: classSide}

	r.impMu.Lock()
	defer r.impMu.Unlock()
	if addr, ok := r.impFor[key]; ok {
		return addr
	}
	addr := r.alloc()
	r.impFor[key] = addr
	r.imps[addr] = &imp{fn: fn, owner: owner, selector: selector}
	return addr
}

func (r *Runtime) impAt(addr uintptr) *imp {
	r.impMu.RLock()
	defer r.impMu.RUnlock()
	return r.imps[addr]
}

// Prepare rejects calls a real runtime would mis-execute: unknown call
// addresses, an entry point that does not match the return type, and
// argument counts that do not match the selector.
func (r *Runtime) Prepare(c *objc.Call) error {
	selector := r.Selectors.Name(c.Sel())
	if selector == "" {
		return fmt.Errorf("unregistered selector %#x", c.Sel())
	}
	if want := arity(selector); want != len(c.Args()) {
		return fmt.Errorf("%s takes %d arguments, got %d", selector, want, len(c.Args()))
	}

	if im := r.impAt(c.Fn()); im != nil {
		if im.selector != selector {
			return fmt.Errorf("implementation of %s called for %s", im.selector, selector)
		}
		return nil
	}
	sym, ok := r.symNames[c.Fn()]
	if !ok {
		return fmt.Errorf("call to unknown address %#x", c.Fn())
	}
	want, err := abi.SelectFor(r.family, abi.ShapeOf(c.Return()), r.arch, c.Super() != nil)
	if err != nil {
		return err
	}
	if sym != want.Symbol {
		return fmt.Errorf("%s returns %s through %s, not %s", selector, c.Return(), want.Symbol, sym)
	}
	return nil
}

// Invoke is the entry stub.
func (r *Runtime) Invoke(f *objc.Frame) {
	c := f.Take()
	selector := r.Selectors.Name(c.Sel())

	args := make([]reflect.Value, len(c.Args()))
	for i, a := range c.Args() {
		args[i] = a.Value()
	}

	var out any
	if im := r.impAt(c.Fn()); im != nil {
		r.record(Dispatch{Symbol: "imp", Selector: selector, Receiver: c.Target(), Super: c.Super() != nil})
		out = im.fn(&Message{Runtime: r, Self: c.Target(), Selector: selector, Args: args, Class: im.owner})
	} else {
		var start *Class
		recv := c.Receiver()
		if sup := c.Super(); sup != nil {
			recv = sup.Receiver
			start = r.ClassAt(sup.Class)
		}
		r.record(Dispatch{Symbol: r.symNames[c.Fn()], Selector: selector, Receiver: recv, Super: c.Super() != nil})
		out = r.dispatch(recv, start, selector, args)
	}

	f.CompleteValue(toNative(out, f.ReturnType()))
}

// TryRunAndCatch recovers thrown exceptions and retains them, the way
// @catch followed by objc_retain does.
func (r *Runtime) TryRunAndCatch(f *objc.Frame, exc *uintptr) (status objc.Status) {
	if r.status != objc.StatusOK {
		return r.status
	}
	defer func() {
		if v := recover(); v != nil {
			obj, ok := Thrown(v)
			if !ok {
				panic(v)
			}
			if inst := r.GetInstance(obj); inst != nil {
				inst.refs.Add(1)
			}
			*exc = obj
			status = objc.StatusCaught
		}
	}()
	r.Invoke(f)
	return objc.StatusOK
}

type pointer interface{ Ptr() uintptr }

// toNative converts a method result to the sender's native return type.
func toNative(out any, t reflect.Type) reflect.Value {
	if t.Size() == 0 {
		return reflect.Value{}
	}
	if out == nil {
		return reflect.Zero(t)
	}
	if p, ok := out.(pointer); ok {
		out = p.Ptr()
	}
	v := reflect.ValueOf(out)
	if v.Type() == t {
		return v
	}
	if v.Kind() == reflect.Bool && t.Kind() != reflect.Bool {
		// BOOL is a signed char on some targets.
		n := 0
		if v.Bool() {
			n = 1
		}
		v = reflect.ValueOf(n)
	}
	if !v.Type().ConvertibleTo(t) {
		panic(fmt.Sprintf("objctest: method returned %s, sender expects %s", v.Type(), t))
	}
	return v.Convert(t)
}
