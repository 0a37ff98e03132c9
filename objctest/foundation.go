package objctest

import (
	"fmt"
)

// Instance variable names used by the Foundation classes.
const (
	varBytes  = "bytes"
	varCStr   = "cstr"
	varName   = "name"
	varReason = "reason"
)

func (r *Runtime) registerFoundation() {
	object := NewMethodTable().
		AddClassMethod("alloc", func(m *Message) any {
			return r.NewInstance(r.ClassAt(m.Self), 1).Addr
		}).
		AddClassMethod("new", func(m *Message) any {
			return r.NewInstance(r.ClassAt(m.Self), 1).Addr
		}).
		AddInstanceMethod("init", func(m *Message) any {
			return m.Self
		}).
		AddInstanceMethod("retain", func(m *Message) any {
			if inst := m.Instance(); inst != nil {
				inst.refs.Add(1)
			}
			return m.Self
		}).
		AddInstanceMethod("release", func(m *Message) any {
			inst := m.Instance()
			if inst == nil {
				return nil
			}
			switch n := inst.refs.Add(-1); {
			case n == 0:
				r.RemoveInstance(inst.Addr)
			case n < 0:
				inst.refs.Add(1)
				m.Raise("NSInternalInconsistencyException",
					fmt.Sprintf("over-release of %s %#x", inst.Class.Name, inst.Addr))
			}
			return nil
		}).
		AddInstanceMethod("retainCount", func(m *Message) any {
			if inst := m.Instance(); inst != nil {
				return uint64(inst.RetainCount())
			}
			return ^uint64(0)
		}).
		AddInstanceMethod("class", func(m *Message) any {
			if inst := m.Instance(); inst != nil {
				return inst.Class.Addr
			}
			return m.Self
		}).
		AddInstanceMethod("className", func(m *Message) any {
			return r.NewString(r.classOf(m.Self).Name).Addr
		}).
		AddInstanceMethod("isKindOfClass:", func(m *Message) any {
			other := r.ClassAt(m.Ptr(0))
			return other != nil && r.classOf(m.Self).IsSubclassOf(other)
		}).
		AddInstanceMethod("respondsToSelector:", func(m *Message) any {
			fn, _, _, err := r.resolve(m.Self, nil, r.Selectors.Name(m.Ptr(0)))
			return err == nil && fn != nil
		})
	r.NSObject = r.MustRegisterClass("NSObject", "", object)

	str := NewMethodTable().
		AddInstanceMethod("UTF8String", func(m *Message) any {
			inst := m.Instance()
			if p, ok := inst.Get(varCStr).(uintptr); ok {
				return p
			}
			b, _ := inst.Get(varBytes).([]byte)
			p := r.internCString(b)
			inst.Set(varCStr, p)
			return p
		}).
		AddInstanceMethod("length", func(m *Message) any {
			b, _ := m.Instance().Get(varBytes).([]byte)
			return uint64(len(b))
		})
	r.NSString = r.MustRegisterClass("NSString", "NSObject", str)

	exc := NewMethodTable().
		AddClassMethod("exceptionWithName:reason:userInfo:", func(m *Message) any {
			inst := r.NewInstance(r.ClassAt(m.Self), 0)
			inst.Set(varName, m.Ptr(0))
			inst.Set(varReason, m.Ptr(1))
			return inst.Addr
		}).
		AddInstanceMethod("name", func(m *Message) any {
			p, _ := m.Instance().Get(varName).(uintptr)
			return p
		}).
		AddInstanceMethod("reason", func(m *Message) any {
			p, _ := m.Instance().Get(varReason).(uintptr)
			return p
		}).
		AddInstanceMethod("raise", func(m *Message) any {
			r.Throw(m.Self)
			return nil
		})
	r.NSException = r.MustRegisterClass("NSException", "NSObject", exc)
}

// classOf returns the class of an instance, or the class itself for a
// class receiver.
func (r *Runtime) classOf(addr uintptr) *Class {
	if inst := r.GetInstance(addr); inst != nil {
		return inst.Class
	}
	return r.ClassAt(addr)
}

// Alloc creates an owned instance (retain count 1) of class.
func (r *Runtime) Alloc(class *Class) *Instance {
	return r.NewInstance(class, 1)
}

// NewString creates an autoreleased NSString.
func (r *Runtime) NewString(s string) *Instance {
	return r.NewStringBytes([]byte(s))
}

// NewStringBytes creates an autoreleased NSString holding b verbatim,
// whether or not it is valid UTF-8.
func (r *Runtime) NewStringBytes(b []byte) *Instance {
	inst := r.NewInstance(r.NSString, 0)
	inst.Set(varBytes, append([]byte(nil), b...))
	return inst
}

// NewException creates an autoreleased NSException. It is not thrown.
func (r *Runtime) NewException(name, reason string) *Instance {
	inst := r.NewInstance(r.NSException, 0)
	inst.Set(varName, r.NewString(name).Addr)
	inst.Set(varReason, r.NewString(reason).Addr)
	return inst
}
