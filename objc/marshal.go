package objc

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/chazu/objcsend/abi"
)

// MaxArgs is the largest number of message arguments a send accepts,
// not counting the receiver and selector.
const MaxArgs = 26

var (
	ErrNilTarget             = errors.New("objc: message sent to nil target")
	ErrInvalidSelector       = errors.New("objc: invalid selector")
	ErrTooManyArgs           = fmt.Errorf("objc: more than %d message arguments", MaxArgs)
	ErrNoImplementation      = errors.New("objc: no implementation for selector")
	ErrProtectionUnavailable = errors.New("objc: backend cannot run protected calls")
)

// UnsupportedTypeError reports an argument or return type that cannot
// cross into Objective-C.
type UnsupportedTypeError struct {
	Type   reflect.Type // nil for an untyped nil argument
	Index  int          // argument index, or -1 for the return type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	what := "return type"
	if e.Index >= 0 {
		what = fmt.Sprintf("argument %d", e.Index)
	}
	name := "nil"
	if e.Type != nil {
		name = e.Type.String()
	}
	return fmt.Sprintf("objc: %s: unsupported type %s: %s", what, name, e.Reason)
}

// Arg is one marshalled argument. Handles are already lowered to
// uintptr.
type Arg struct {
	val reflect.Value
}

// Type is the native type of the argument.
func (a Arg) Type() reflect.Type { return a.val.Type() }

// Value is the native value of the argument.
func (a Arg) Value() reflect.Value { return a.val }

// Call describes one message send after marshalling. Only this package
// constructs calls, so a backend can trust that the entry point, the
// argument types and the return type agree with each other.
type Call struct {
	fn       uintptr
	entry    abi.Entry
	recv     uintptr
	super    *Superclass
	sel      uintptr
	args     []Arg
	ret      reflect.Type
	prepared any
}

// Fn is the address to call: an entry point such as objc_msgSend or, on
// dynamically dispatching runtimes, the looked-up implementation.
func (c *Call) Fn() uintptr { return c.fn }

// Entry is the selected entry point.
func (c *Call) Entry() abi.Entry { return c.entry }

// Receiver is the first native argument: the target, or for super sends
// through a static entry point the address of Super(). Backends that
// copy the call into native memory pass the address of their own copy
// of Super instead.
func (c *Call) Receiver() uintptr {
	if c.super != nil && c.entry.Convention != abi.DynamicLookup {
		return uintptr(unsafe.Pointer(c.super))
	}
	return c.recv
}

// Target is the object the message was sent to.
func (c *Call) Target() uintptr { return c.recv }

// Super is the dispatch start of a super send, or nil.
func (c *Call) Super() *Superclass { return c.super }

// Sel is the second native argument.
func (c *Call) Sel() uintptr { return c.sel }

// Args are the message arguments following the selector.
func (c *Call) Args() []Arg { return c.args }

// Return is the native return type. Zero-sized types mean void.
func (c *Call) Return() reflect.Type { return c.ret }

// Prepared returns what the backend attached in Prepare.
func (c *Call) Prepared() any { return c.prepared }

// SetPrepared attaches backend state to the call.
func (c *Call) SetPrepared(v any) { c.prepared = v }

// nativeType maps t to the type used in the native signature, or
// reports why t cannot be passed.
func nativeType(t reflect.Type, index int) (reflect.Type, error) {
	if t == nil {
		return nil, &UnsupportedTypeError{Index: index, Reason: "untyped nil"}
	}
	if isHandle(t) {
		return ptrType, nil
	}
	if t.Kind() == reflect.Struct && t.Size() == 0 {
		if index >= 0 {
			return nil, &UnsupportedTypeError{Type: t, Index: index, Reason: "empty struct argument"}
		}
		return t, nil
	}
	if reason := checkLayout(t); reason != "" {
		return nil, &UnsupportedTypeError{Type: t, Index: index, Reason: reason}
	}
	return t, nil
}

// checkLayout accepts scalars and structs made of scalars. Handles are
// one pointer wide, so they may appear inside structs too.
func checkLayout(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64, reflect.UnsafePointer:
		return ""
	case reflect.Struct:
		if isHandle(t) {
			return ""
		}
		for i := range t.NumField() {
			f := t.Field(i)
			if reason := checkLayout(f.Type); reason != "" {
				return fmt.Sprintf("field %s: %s", f.Name, reason)
			}
		}
		return ""
	}
	return fmt.Sprintf("%s values have no C layout", t.Kind())
}

func marshalArg(a any, index int) (Arg, error) {
	v := reflect.ValueOf(a)
	if !v.IsValid() {
		return Arg{}, &UnsupportedTypeError{Index: index, Reason: "untyped nil"}
	}
	if _, err := nativeType(v.Type(), index); err != nil {
		return Arg{}, err
	}
	if isHandle(v.Type()) {
		return Arg{val: reflect.ValueOf(a.(interface{ Ptr() uintptr }).Ptr())}, nil
	}
	return Arg{val: v}, nil
}

func marshalArgs(args []any) ([]Arg, error) {
	if len(args) > MaxArgs {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyArgs, len(args))
	}
	out := make([]Arg, len(args))
	for i, a := range args {
		arg, err := marshalArg(a, i)
		if err != nil {
			return nil, err
		}
		out[i] = arg
	}
	return out, nil
}

// unmarshal converts the native result v into R. Handle results are
// raised from uintptr; a zero address becomes the absent handle.
func unmarshal[R any](v reflect.Value) R {
	var out R
	switch p := any(&out).(type) {
	case *Object:
		*p = Object{uintptr(v.Uint())}
	case *Class:
		*p = Class{uintptr(v.Uint())}
	case *Sel:
		*p = Sel{uintptr(v.Uint())}
	case *Block:
		*p = Block{uintptr(v.Uint())}
	default:
		if v.Type().Size() != 0 {
			reflect.ValueOf(&out).Elem().Set(v)
		}
	}
	return out
}
