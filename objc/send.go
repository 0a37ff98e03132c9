package objc

import (
	"fmt"
	"reflect"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/objcsend/abi"
)

// Send sends sel to target with args and returns the result as R. The
// call runs protected: an Objective-C exception comes back as an
// *Exception.
//
// R and every argument must have a C layout: booleans, sized numbers,
// uintptr, unsafe.Pointer, the handle types, or structs of those. Use
// Void for methods that return nothing.
func Send[R any](rt *Runtime, target Target, sel Sel, args ...any) (R, error) {
	return send[R](rt, target, Class{}, false, sel, args, true, false)
}

// SendUnchecked is Send without exception protection. Only marshalling
// errors are reported. If the method raises, the behaviour is undefined.
func SendUnchecked[R any](rt *Runtime, target Target, sel Sel, args ...any) (R, error) {
	return send[R](rt, target, Class{}, false, sel, args, false, false)
}

// SendSuper sends sel to target, starting method lookup at super instead
// of target's own class. It runs protected like Send.
func SendSuper[R any](rt *Runtime, target Target, super Class, sel Sel, args ...any) (R, error) {
	return send[R](rt, target, super, true, sel, args, true, false)
}

// SendSuperUnchecked is SendSuper without exception protection.
func SendSuperUnchecked[R any](rt *Runtime, target Target, super Class, sel Sel, args ...any) (R, error) {
	return send[R](rt, target, super, true, sel, args, false, false)
}

// sendQuiet is a checked send that is not reported to the observer.
func sendQuiet[R any](rt *Runtime, target Target, sel Sel, args ...any) (R, error) {
	return send[R](rt, target, Class{}, false, sel, args, true, true)
}

func send[R any](rt *Runtime, target Target, super Class, isSuper bool, sel Sel, args []any, checked, quiet bool) (R, error) {
	var zero R
	start := time.Now()

	if !checked && (rt.forceChecked || debugChecked) {
		rt.noteForced()
		checked = true
	}

	ev := SendEvent{Checked: checked}
	finish := func(err error) error {
		if !quiet {
			ev.Err = err
			rt.observe(ev, start)
		}
		return err
	}

	if target == nil || target.IsNil() {
		return zero, finish(ErrNilTarget)
	}
	ev.Receiver = target.Ptr()
	if sel.IsNil() {
		return zero, finish(ErrInvalidSelector)
	}
	if !quiet {
		ev.Selector = rt.SelName(sel)
	}
	if isSuper && super.IsNil() {
		return zero, finish(fmt.Errorf("%w: super send without a class", ErrNilTarget))
	}

	c, err := buildCall[R](rt, target, super, isSuper, sel, args)
	if err != nil {
		return zero, finish(err)
	}
	ev.Entry = c.entry
	if c.super != nil {
		ev.SuperClass = c.super.Class
	}

	if err := rt.b.Prepare(c); err != nil {
		return zero, finish(fmt.Errorf("objc: preparing %s: %w", c.entry.Symbol, err))
	}

	f := newFrame(c)
	if checked {
		if err := rt.protect(f); err != nil {
			return zero, finish(err)
		}
	} else {
		rt.direct(f)
	}
	return unmarshal[R](f.result()), finish(nil)
}

// buildCall marshals a send into a Call: it checks the argument and
// return types, selects the entry point for R on the runtime's
// architecture and resolves the address to call.
func buildCall[R any](rt *Runtime, target Target, super Class, isSuper bool, sel Sel, args []any) (*Call, error) {
	ret, err := nativeType(reflect.TypeFor[R](), -1)
	if err != nil {
		return nil, err
	}
	margs, err := marshalArgs(args)
	if err != nil {
		return nil, err
	}

	entry, err := abi.SelectFor(rt.family, abi.ShapeOf(ret), rt.arch, isSuper)
	if err != nil {
		return nil, fmt.Errorf("objc: %w", err)
	}

	c := &Call{
		entry: entry,
		recv:  target.Ptr(),
		sel:   sel.p,
		args:  margs,
		ret:   ret,
	}
	if isSuper {
		c.super = &Superclass{Receiver: target.Ptr(), Class: super.p}
	}

	if entry.Convention == abi.DynamicLookup {
		// The implementation is called with the real receiver; only the
		// lookup sees the superclass descriptor.
		if c.super != nil {
			c.fn = rt.b.MsgLookupSuper(c.super, c.sel)
		} else {
			c.fn = rt.b.MsgLookup(c.recv, c.sel)
		}
		if c.fn == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoImplementation, rt.SelName(sel))
		}
	} else {
		if c.fn, err = rt.entry(entry.Symbol); err != nil {
			return nil, err
		}
	}

	if rt.log.AllowLevel(commonlog.Debug) {
		rt.log.Debugf("send %s via %s (%d args, returns %s)", rt.SelName(sel), entry, len(margs), ret)
	}
	return c, nil
}
