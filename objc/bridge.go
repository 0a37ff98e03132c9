package objc

import "fmt"

// protect runs f through the backend's protected-call helper. A nil
// error means f is done and its result may be read. An exception caught
// by the helper is returned as an *Exception that owns the reference the
// helper handed over.
func (rt *Runtime) protect(f *Frame) error {
	if !rt.caps.Has(CapProtectedCalls) {
		return ErrProtectionUnavailable
	}
	var exc uintptr
	switch st := rt.b.TryRunAndCatch(f, &exc); st {
	case StatusOK:
		if !f.Done() {
			panic("objc: protected call reported success without a result")
		}
		return nil
	case StatusCaught:
		obj, ok := ObjectFromPtr(exc)
		if !ok {
			panic("objc: protected call caught an exception but returned no object")
		}
		return newException(rt, obj)
	default:
		panic(fmt.Sprintf("objc: protected call returned unknown status %d", st))
	}
}

// direct runs f through the entry stub with no protection.
func (rt *Runtime) direct(f *Frame) {
	rt.b.Invoke(f)
	if !f.Done() {
		panic("objc: entry stub returned without completing its frame")
	}
}
