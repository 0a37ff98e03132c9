package objc

import (
	"fmt"
	"reflect"
)

// Object is a handle to an Objective-C object. The zero Object is the
// absent handle; handles obtained from constructors are never nil.
type Object struct{ p uintptr }

// Class is a handle to an Objective-C class.
type Class struct{ p uintptr }

// Sel is an interned selector.
type Sel struct{ p uintptr }

// Block is a handle to an Objective-C block object.
type Block struct{ p uintptr }

// Target is anything a message can be sent to: an Object, a Class or a
// Block.
type Target interface {
	Ptr() uintptr
	IsNil() bool
	target()
}

// ObjectFromPtr wraps p. It reports false for a null address.
func ObjectFromPtr(p uintptr) (Object, bool) { return Object{p}, p != 0 }

// ClassFromPtr wraps p. It reports false for a null address.
func ClassFromPtr(p uintptr) (Class, bool) { return Class{p}, p != 0 }

// SelFromPtr wraps p. It reports false for a null address.
func SelFromPtr(p uintptr) (Sel, bool) { return Sel{p}, p != 0 }

// BlockFromPtr wraps p. It reports false for a null address.
func BlockFromPtr(p uintptr) (Block, bool) { return Block{p}, p != 0 }

// MustObject is ObjectFromPtr for addresses known to be non-null.
func MustObject(p uintptr) Object {
	if p == 0 {
		panic("objc: null object pointer")
	}
	return Object{p}
}

func (o Object) Ptr() uintptr { return o.p }
func (c Class) Ptr() uintptr  { return c.p }
func (s Sel) Ptr() uintptr    { return s.p }
func (b Block) Ptr() uintptr  { return b.p }

func (o Object) IsNil() bool { return o.p == 0 }
func (c Class) IsNil() bool  { return c.p == 0 }
func (s Sel) IsNil() bool    { return s.p == 0 }
func (b Block) IsNil() bool  { return b.p == 0 }

func (Object) target() {}
func (Class) target()  {}
func (Block) target()  {}

// AsObject views a class as an object, for messages such as retain that
// are answered by both.
func (c Class) AsObject() Object { return Object{c.p} }

func (o Object) String() string { return fmt.Sprintf("Object(%#x)", o.p) }
func (c Class) String() string  { return fmt.Sprintf("Class(%#x)", c.p) }
func (s Sel) String() string    { return fmt.Sprintf("Sel(%#x)", s.p) }
func (b Block) String() string  { return fmt.Sprintf("Block(%#x)", b.p) }

// Superclass is the C layout of struct objc_super: the receiver of a
// super send and the class where method lookup begins.
type Superclass struct {
	Receiver uintptr
	Class    uintptr
}

// Void is the return type of methods that return nothing.
type Void = struct{}

var (
	objectType = reflect.TypeFor[Object]()
	classType  = reflect.TypeFor[Class]()
	selType    = reflect.TypeFor[Sel]()
	blockType  = reflect.TypeFor[Block]()
	ptrType    = reflect.TypeFor[uintptr]()
)

func isHandle(t reflect.Type) bool {
	switch t {
	case objectType, classType, selType, blockType:
		return true
	}
	return false
}
