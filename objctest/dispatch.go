package objctest

import (
	"fmt"
	"reflect"
	"strings"
)

// Message is the context a method runs in.
type Message struct {
	Runtime  *Runtime
	Self     uintptr
	Selector string
	Args     []reflect.Value
	// Class is the class the method was found in.
	Class *Class
}

// Instance returns the receiving instance, or nil when the receiver is a
// class.
func (m *Message) Instance() *Instance {
	return m.Runtime.GetInstance(m.Self)
}

// Uint returns argument i as an unsigned integer (handles included).
func (m *Message) Uint(i int) uint64 {
	v := m.Args[i]
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	}
	return v.Uint()
}

// Int returns argument i as a signed integer.
func (m *Message) Int(i int) int64 {
	v := m.Args[i]
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	}
	return v.Int()
}

// Float returns argument i as a float64.
func (m *Message) Float(i int) float64 { return m.Args[i].Float() }

// Ptr returns argument i as an address.
func (m *Message) Ptr(i int) uintptr { return uintptr(m.Uint(i)) }

// Raise throws a new NSException with the given name and reason.
func (m *Message) Raise(name, reason string) {
	m.Runtime.Throw(m.Runtime.NewException(name, reason).Addr)
}

// thrown is the panic value carrying an Objective-C exception.
type thrown struct {
	obj uintptr
}

func (t thrown) String() string {
	return fmt.Sprintf("objective-c exception %#x", t.obj)
}

// Throw raises obj as an Objective-C exception. Only TryRunAndCatch
// catches it.
func (r *Runtime) Throw(obj uintptr) {
	panic(thrown{obj})
}

// Thrown reports whether v, a value recovered from a panic, is an
// Objective-C exception, and returns the exception object.
func Thrown(v any) (uintptr, bool) {
	t, ok := v.(thrown)
	return t.obj, ok
}

// resolve finds the method answering selector for the receiver at addr.
// A non-nil start begins the search there, as for super sends.
func (r *Runtime) resolve(addr uintptr, start *Class, selector string) (MethodFunc, *Class, bool, error) {
	if class := r.ClassAt(addr); class != nil {
		if start == nil {
			start = class
		}
		fn, owner := r.LookupMethod(start, selector, true)
		return fn, owner, true, nil
	}
	inst := r.GetInstance(addr)
	if inst == nil {
		return nil, nil, false, fmt.Errorf("message %s sent to deallocated object %#x", selector, addr)
	}
	if start == nil {
		start = inst.Class
	}
	fn, owner := r.LookupMethod(start, selector, false)
	return fn, owner, false, nil
}

// dispatch runs a method on the receiver at addr, raising the errors
// libobjc raises for unknown receivers and selectors.
func (r *Runtime) dispatch(addr uintptr, start *Class, selector string, args []reflect.Value) any {
	fn, owner, classSide, err := r.resolve(addr, start, selector)
	if err != nil {
		r.Throw(r.NewException("NSInvalidArgumentException", err.Error()).Addr)
	}
	if fn == nil {
		r.Throw(r.NewException("NSInvalidArgumentException", unrecognized(r, addr, selector, classSide)).Addr)
	}
	return fn(&Message{Runtime: r, Self: addr, Selector: selector, Args: args, Class: owner})
}

func unrecognized(r *Runtime, addr uintptr, selector string, classSide bool) string {
	if classSide {
		return fmt.Sprintf("+[%s %s]: unrecognized selector sent to class %#x", r.ClassAt(addr).Name, selector, addr)
	}
	name := "?"
	if inst := r.GetInstance(addr); inst != nil {
		name = inst.Class.Name
	}
	return fmt.Sprintf("-[%s %s]: unrecognized selector sent to instance %#x", name, selector, addr)
}

// arity is the number of arguments a selector takes.
func arity(selector string) int {
	return strings.Count(selector, ":")
}
