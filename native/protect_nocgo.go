//go:build (darwin || linux || freebsd) && !(cgo && (darwin || ((linux || freebsd) && gnustep)))

package native

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/chazu/objcsend/objc"
)

const protectedCalls = false

type ffiSig struct{}

var errNoFFI = errors.New("built without the libffi shim")

func prepareFFI(reflect.Type) (*ffiSig, error) { return nil, errNoFFI }

// TryRunAndCatch is never reached: the runtime does not advertise
// objc.CapProtectedCalls.
func (r *Runtime) TryRunAndCatch(*objc.Frame, *uintptr) objc.Status {
	panic("native: protected calls need cgo")
}

func invokeFFI(*objc.Frame, *objc.Call, *ffiSig) {
	panic("native: " + errNoFFI.Error())
}
