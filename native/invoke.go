//go:build darwin || linux || freebsd

package native

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/chazu/objcsend/objc"
)

var uintptrType = reflect.TypeFor[uintptr]()

// prepared is what Prepare attaches to a call. Either path may be nil;
// Prepare guarantees the one the call will take is not.
type prepared struct {
	typed reflect.Value
	sig   *ffiSig
}

type typedKey struct {
	fn  uintptr
	typ reflect.Type
}

// signature is the C prototype of the entry point for c:
// (receiver, selector, args...) -> return.
func signature(c *objc.Call) reflect.Type {
	in := make([]reflect.Type, 0, 2+len(c.Args()))
	in = append(in, uintptrType, uintptrType)
	for _, a := range c.Args() {
		in = append(in, a.Type())
	}
	var out []reflect.Type
	if c.Return().Size() != 0 {
		out = append(out, c.Return())
	}
	return reflect.FuncOf(in, out, false)
}

// typedFunc returns a purego function bound to c's entry point.
func (r *Runtime) typedFunc(c *objc.Call, ft reflect.Type) (fn reflect.Value, err error) {
	key := typedKey{c.Fn(), ft}
	if v, ok := r.typed.Get(key); ok {
		return v.(reflect.Value), nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%v", v)
		}
	}()
	ptr := reflect.New(ft)
	purego.RegisterFunc(ptr.Interface(), c.Fn())
	fn = ptr.Elem()
	r.typed.Add(key, fn)
	return fn, nil
}

// Prepare binds c to a typed purego function and, when protected calls
// are available, to a libffi signature. Protected builds require the
// libffi signature since any send may be checked; the typed function is
// then optional and unchecked sends fall back to libffi without it.
func (r *Runtime) Prepare(c *objc.Call) error {
	ft := signature(c)
	var p prepared
	typed, typedErr := r.typedFunc(c, ft)
	if typedErr == nil {
		p.typed = typed
	}
	sig, sigErr := prepareFFI(ft)
	if sigErr == nil {
		p.sig = sig
	}

	switch {
	case protectedCalls && sigErr != nil:
		return errors.Wrapf(sigErr, "%s", ft)
	case !protectedCalls && typedErr != nil:
		return errors.Wrapf(typedErr, "%s", ft)
	}
	if typedErr != nil {
		log.Debugf("no typed call for %s, using libffi: %v", ft, typedErr)
	}
	c.SetPrepared(&p)
	return nil
}

// Invoke performs an unprotected send.
func (r *Runtime) Invoke(f *objc.Frame) {
	c := f.Take()
	p := c.Prepared().(*prepared)
	if !p.typed.IsValid() {
		invokeFFI(f, c, p.sig)
		return
	}

	in := make([]reflect.Value, 0, 2+len(c.Args()))
	in = append(in, reflect.ValueOf(c.Receiver()), reflect.ValueOf(c.Sel()))
	for _, a := range c.Args() {
		in = append(in, a.Value())
	}
	out := p.typed.Call(in)
	// Receiver may point into c.Super().
	runtime.KeepAlive(c)

	if len(out) == 0 {
		f.CompleteValue(reflect.Value{})
		return
	}
	f.CompleteValue(out[0])
}
