package objctest

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MethodFunc implements a method. Its result is converted to the return
// type the sender asked for; return nil for void methods.
type MethodFunc func(m *Message) any

// MethodTable holds the instance and class methods of one class.
type MethodTable struct {
	InstanceMethods map[string]MethodFunc
	ClassMethods    map[string]MethodFunc
}

// NewMethodTable creates an empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{
		InstanceMethods: make(map[string]MethodFunc),
		ClassMethods:    make(map[string]MethodFunc),
	}
}

// AddInstanceMethod adds an instance method.
func (mt *MethodTable) AddInstanceMethod(selector string, impl MethodFunc) *MethodTable {
	mt.InstanceMethods[selector] = impl
	return mt
}

// AddClassMethod adds a class method.
func (mt *MethodTable) AddClassMethod(selector string, impl MethodFunc) *MethodTable {
	mt.ClassMethods[selector] = impl
	return mt
}

func (mt *MethodTable) lookup(selector string, classSide bool) MethodFunc {
	if mt == nil {
		return nil
	}
	if classSide {
		return mt.ClassMethods[selector]
	}
	return mt.InstanceMethods[selector]
}

// Class is a simulated class.
type Class struct {
	Name        string
	Addr        uintptr
	SuperclassP *Class
	Methods     *MethodTable
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.SuperclassP {
		if k == other {
			return true
		}
	}
	return false
}

// Instance is a simulated object.
type Instance struct {
	Addr  uintptr
	Class *Class
	refs  atomic.Int64

	mu   sync.RWMutex
	vars map[string]any
}

// Get returns an instance variable.
func (inst *Instance) Get(name string) any {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.vars[name]
}

// Set stores an instance variable.
func (inst *Instance) Set(name string, v any) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.vars[name] = v
}

// RetainCount is the current reference count.
func (inst *Instance) RetainCount() int64 { return inst.refs.Load() }

// ObjectSpace holds the classes and live instances of a simulated
// runtime. Every class, instance, selector and C string gets a distinct
// fake address from the same allocator.
type ObjectSpace struct {
	next atomic.Uintptr

	classMu     sync.RWMutex
	classes     map[string]*Class
	classByAddr map[uintptr]*Class

	instMu    sync.RWMutex
	instances map[uintptr]*Instance

	cstrMu   sync.RWMutex
	cstrings map[uintptr][]byte
}

const (
	addrBase = 0x10000
	addrStep = 0x10
)

// NewObjectSpace creates an empty object space.
func NewObjectSpace() *ObjectSpace {
	os := &ObjectSpace{
		classes:     make(map[string]*Class),
		classByAddr: make(map[uintptr]*Class),
		instances:   make(map[uintptr]*Instance),
		cstrings:    make(map[uintptr][]byte),
	}
	os.next.Store(addrBase)
	return os
}

// alloc hands out a fresh fake address.
func (os *ObjectSpace) alloc() uintptr {
	return os.next.Add(addrStep)
}

// RegisterClass registers a class. superclass may be empty for a root
// class; otherwise it must already be registered.
func (os *ObjectSpace) RegisterClass(name, superclass string, methods *MethodTable) (*Class, error) {
	os.classMu.Lock()
	defer os.classMu.Unlock()

	if _, exists := os.classes[name]; exists {
		return nil, fmt.Errorf("class %s already registered", name)
	}
	if methods == nil {
		methods = NewMethodTable()
	}
	class := &Class{
		Name:    name,
		Addr:    os.alloc(),
		Methods: methods,
	}
	if superclass != "" {
		super, ok := os.classes[superclass]
		if !ok {
			return nil, fmt.Errorf("unknown superclass %s of %s", superclass, name)
		}
		class.SuperclassP = super
	}
	os.classes[name] = class
	os.classByAddr[class.Addr] = class
	return class, nil
}

// GetClass retrieves a registered class by name.
func (os *ObjectSpace) GetClass(name string) *Class {
	os.classMu.RLock()
	defer os.classMu.RUnlock()
	return os.classes[name]
}

// ClassAt retrieves a registered class by address.
func (os *ObjectSpace) ClassAt(addr uintptr) *Class {
	os.classMu.RLock()
	defer os.classMu.RUnlock()
	return os.classByAddr[addr]
}

// NewInstance creates an instance of class with a retain count of
// refs. Use 1 for objects the caller owns and 0 for autoreleased
// results.
func (os *ObjectSpace) NewInstance(class *Class, refs int64) *Instance {
	inst := &Instance{
		Addr:  os.alloc(),
		Class: class,
		vars:  make(map[string]any),
	}
	inst.refs.Store(refs)

	os.instMu.Lock()
	defer os.instMu.Unlock()
	os.instances[inst.Addr] = inst
	return inst
}

// GetInstance retrieves a live instance by address.
func (os *ObjectSpace) GetInstance(addr uintptr) *Instance {
	os.instMu.RLock()
	defer os.instMu.RUnlock()
	return os.instances[addr]
}

// RemoveInstance deallocates an instance.
func (os *ObjectSpace) RemoveInstance(addr uintptr) {
	os.instMu.Lock()
	defer os.instMu.Unlock()
	delete(os.instances, addr)
}

// InstanceCount returns the number of live instances.
func (os *ObjectSpace) InstanceCount() int {
	os.instMu.RLock()
	defer os.instMu.RUnlock()
	return len(os.instances)
}

// LookupMethod finds a method, walking up the class hierarchy from
// start. Class-side lookups that find nothing fall back to the instance
// methods of the same chain, the way a root metaclass inherits from its
// root class.
func (os *ObjectSpace) LookupMethod(start *Class, selector string, classSide bool) (MethodFunc, *Class) {
	os.classMu.RLock()
	defer os.classMu.RUnlock()

	for class := start; class != nil; class = class.SuperclassP {
		if m := class.Methods.lookup(selector, classSide); m != nil {
			return m, class
		}
	}
	if classSide {
		for class := start; class != nil; class = class.SuperclassP {
			if m := class.Methods.lookup(selector, false); m != nil {
				return m, class
			}
		}
	}
	return nil, nil
}

// internCString stores b as a NUL-terminated C string and returns its
// address.
func (os *ObjectSpace) internCString(b []byte) uintptr {
	addr := os.alloc()
	os.cstrMu.Lock()
	defer os.cstrMu.Unlock()
	os.cstrings[addr] = append([]byte(nil), b...)
	return addr
}

// cString returns a copy of the C string at addr.
func (os *ObjectSpace) cString(addr uintptr) ([]byte, bool) {
	os.cstrMu.RLock()
	defer os.cstrMu.RUnlock()
	b, ok := os.cstrings[addr]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}
