package objc

import (
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"unicode/utf8"
)

const (
	notNSException     = "Objective-C threw an exception that was not of type NSException"
	propertiesFailed   = "<an error occurred while accessing the exception's properties>"
	errorInfoFailed    = "<failed to get error information>"
	classNameFailed    = "<failed to get class name>"
	releasedException  = "<released exception>"
	exceptionClassName = "NSException"
)

// Exception is an Objective-C exception caught by a checked send. It owns
// one reference to the exception object. Release gives the reference
// back; an Exception that is never released gives it back when it is
// garbage collected.
type Exception struct {
	rt       *Runtime
	obj      Object
	released atomic.Bool
	cleanup  runtime.Cleanup
}

type exceptionRef struct {
	rt  *Runtime
	obj Object
}

func newException(rt *Runtime, obj Object) *Exception {
	e := &Exception{rt: rt, obj: obj}
	e.cleanup = runtime.AddCleanup(e, releaseRef, exceptionRef{rt, obj})
	return e
}

func releaseRef(ref exceptionRef) {
	if err := ref.rt.release(ref.obj); err != nil {
		panic(fmt.Sprintf("objc: releasing exception %#x: %v", ref.obj.p, err))
	}
}

func (rt *Runtime) release(obj Object) error {
	sel, ok := rt.Selector("release")
	if !ok {
		return ErrInvalidSelector
	}
	_, err := sendQuiet[Void](rt, obj, sel)
	return err
}

// Object returns the exception object. It stays valid until Release, and
// only while the handle is reachable.
func (e *Exception) Object() Object { return e.obj }

// Clone returns a second handle to the same exception object, retaining
// it once. Both handles must be released. Cloning a released handle
// panics.
func (e *Exception) Clone() *Exception {
	if e.released.Load() {
		panic(fmt.Sprintf("objc: cloning released exception %#x", e.obj.p))
	}
	sel := e.rt.MustSelector("retain")
	obj, err := sendQuiet[Object](e.rt, e.obj, sel)
	runtime.KeepAlive(e)
	if err != nil || obj.IsNil() {
		panic(fmt.Sprintf("objc: retaining exception %#x: %v", e.obj.p, err))
	}
	return newException(e.rt, obj)
}

// Release gives up the handle's reference. Releasing a handle twice has
// no further effect.
func (e *Exception) Release() {
	if e.released.Swap(true) {
		return
	}
	e.cleanup.Stop()
	releaseRef(exceptionRef{e.rt, e.obj})
}

// Error describes the exception using its reason when it is an
// NSException.
func (e *Exception) Error() string {
	if e.released.Load() {
		return releasedException
	}
	msg := e.reason()
	runtime.KeepAlive(e)
	return msg
}

func (e *Exception) reason() string {
	if !e.isNSException() {
		return notNSException
	}
	reason, err := sendQuiet[Object](e.rt, e.obj, e.rt.MustSelector("reason"))
	if err != nil {
		discard(err)
		return propertiesFailed
	}
	return e.rt.describe(reason, errorInfoFailed)
}

// Name returns the name property of an NSException, or "" when the
// exception is not one or has been released.
func (e *Exception) Name() string {
	if e.released.Load() {
		return ""
	}
	name := e.name()
	runtime.KeepAlive(e)
	return name
}

func (e *Exception) name() string {
	if !e.isNSException() {
		return ""
	}
	name, err := sendQuiet[Object](e.rt, e.obj, e.rt.MustSelector("name"))
	if err != nil {
		discard(err)
		return ""
	}
	b, err := e.rt.utf8(name, true)
	if err != nil {
		discard(err)
		return ""
	}
	return string(b)
}

func (e *Exception) isNSException() bool {
	cls, ok := e.rt.Class(exceptionClassName)
	if !ok {
		return false
	}
	isKind, err := sendQuiet[bool](e.rt, e.obj, e.rt.MustSelector("isKindOfClass:"), cls)
	if err != nil {
		discard(err)
		return false
	}
	return isKind
}

// GoString renders the exception with its class name for %#v.
func (e *Exception) GoString() string {
	if e.released.Load() {
		return "objc.Exception(" + releasedException + ")"
	}
	s := "objc.Exception(" + e.className() + ")"
	runtime.KeepAlive(e)
	return s
}

func (e *Exception) className() string {
	name, err := sendQuiet[Object](e.rt, e.obj, e.rt.MustSelector("className"))
	if err != nil {
		discard(err)
		return classNameFailed
	}
	return e.rt.describe(name, errorInfoFailed)
}

// describe renders an NSString. Bytes that are not UTF-8 are quoted.
func (rt *Runtime) describe(str Object, fallback string) string {
	b, err := rt.utf8(str, true)
	if err != nil {
		discard(err)
		return fallback
	}
	if !utf8.Valid(b) {
		return strconv.Quote(string(b))
	}
	return string(b)
}

// discard releases an exception raised while describing another one.
func discard(err error) {
	if exc, ok := err.(*Exception); ok {
		exc.Release()
	}
}
