//go:build cgo && (darwin || ((linux || freebsd) && gnustep))

package native

/*
#cgo CFLAGS: -fobjc-exceptions
#cgo darwin LDFLAGS: -lobjc -lffi
#cgo gnustep CFLAGS: -fobjc-runtime=gnustep-2.0
#cgo gnustep pkg-config: libffi
#cgo gnustep LDFLAGS: -Wl,--no-as-needed -lobjc

#include <stdlib.h>
#include <string.h>
#include "bridge.h"
*/
import "C"

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
)

const protectedCalls = true

// ffiSig is a prepared libffi call interface. Signatures live in C
// memory for the life of the process.
type ffiSig struct {
	cif  *C.ffi_cif
	in   []reflect.Type
	ret  reflect.Type
	void bool
}

var (
	sigs    sync.Map // reflect.Type (func) -> *ffiSig
	structs sync.Map // reflect.Type (struct) -> *C.ffi_type
)

const ptrSize = C.size_t(unsafe.Sizeof(uintptr(0)))

func prepareFFI(ft reflect.Type) (*ffiSig, error) {
	if v, ok := sigs.Load(ft); ok {
		return v.(*ffiSig), nil
	}

	n := ft.NumIn()
	atypes := (**C.ffi_type)(C.calloc(C.size_t(n+1), ptrSize))
	types := unsafe.Slice(atypes, n+1)
	sig := &ffiSig{in: make([]reflect.Type, n)}
	for i := range n {
		t, err := ffiType(ft.In(i))
		if err != nil {
			C.free(unsafe.Pointer(atypes))
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		types[i] = t
		sig.in[i] = ft.In(i)
	}

	rtype := &C.ffi_type_void
	sig.void = true
	if ft.NumOut() == 1 {
		sig.ret = ft.Out(0)
		sig.void = false
		t, err := ffiType(sig.ret)
		if err != nil {
			C.free(unsafe.Pointer(atypes))
			return nil, fmt.Errorf("return: %w", err)
		}
		rtype = t
	}

	var status C.int
	sig.cif = C.objcsend_prepare(rtype, C.uint(n), atypes, &status)
	if sig.cif == nil {
		C.free(unsafe.Pointer(atypes))
		return nil, fmt.Errorf("ffi_prep_cif failed with status %d", int(status))
	}
	actual, _ := sigs.LoadOrStore(ft, sig)
	return actual.(*ffiSig), nil
}

func ffiType(t reflect.Type) (*C.ffi_type, error) {
	switch t.Kind() {
	case reflect.Bool, reflect.Uint8:
		return &C.ffi_type_uint8, nil
	case reflect.Int8:
		return &C.ffi_type_sint8, nil
	case reflect.Int16:
		return &C.ffi_type_sint16, nil
	case reflect.Uint16:
		return &C.ffi_type_uint16, nil
	case reflect.Int32:
		return &C.ffi_type_sint32, nil
	case reflect.Uint32:
		return &C.ffi_type_uint32, nil
	case reflect.Int64:
		return &C.ffi_type_sint64, nil
	case reflect.Uint64:
		return &C.ffi_type_uint64, nil
	case reflect.Int:
		if t.Size() == 8 {
			return &C.ffi_type_sint64, nil
		}
		return &C.ffi_type_sint32, nil
	case reflect.Uint, reflect.Uintptr:
		if t.Size() == 8 {
			return &C.ffi_type_uint64, nil
		}
		return &C.ffi_type_uint32, nil
	case reflect.Float32:
		return &C.ffi_type_float, nil
	case reflect.Float64:
		return &C.ffi_type_double, nil
	case reflect.UnsafePointer:
		return &C.ffi_type_pointer, nil
	case reflect.Struct:
		return structType(t)
	}
	return nil, fmt.Errorf("no libffi type for %s", t)
}

func structType(t reflect.Type) (*C.ffi_type, error) {
	if v, ok := structs.Load(t); ok {
		return v.(*C.ffi_type), nil
	}
	n := t.NumField()
	if n == 0 {
		return nil, fmt.Errorf("empty struct %s", t)
	}
	mem := (**C.ffi_type)(C.calloc(C.size_t(n+1), ptrSize))
	elems := unsafe.Slice(mem, n+1)
	for i := range n {
		e, err := ffiType(t.Field(i).Type)
		if err != nil {
			C.free(unsafe.Pointer(mem))
			return nil, fmt.Errorf("%s.%s: %w", t, t.Field(i).Name, err)
		}
		elems[i] = e
	}
	st := C.objcsend_struct(mem)
	if st == nil {
		C.free(unsafe.Pointer(mem))
		return nil, fmt.Errorf("allocating libffi type for %s", t)
	}
	actual, _ := structs.LoadOrStore(t, st)
	return actual.(*C.ffi_type), nil
}

// cframe owns the C memory of one call.
type cframe struct {
	f     *C.objcsend_frame
	blobs []unsafe.Pointer
	size  uintptr
}

func (cf *cframe) alloc(size uintptr) unsafe.Pointer {
	if size < 8 {
		size = 8
	}
	p := C.calloc(1, C.size_t(size))
	cf.blobs = append(cf.blobs, p)
	return p
}

func (cf *cframe) free() {
	for _, p := range cf.blobs {
		C.free(p)
	}
	C.free(unsafe.Pointer(cf.f))
}

// store copies v into C memory and returns its address.
func (cf *cframe) store(v reflect.Value) unsafe.Pointer {
	dst := cf.alloc(v.Type().Size())
	tmp := reflect.New(v.Type())
	tmp.Elem().Set(v)
	if size := v.Type().Size(); size != 0 {
		C.memcpy(dst, tmp.UnsafePointer(), C.size_t(size))
	}
	return dst
}

// newCFrame copies c into C memory. Super sends through a static entry
// point get their own copy of the objc_super record.
func newCFrame(c *objc.Call, sig *ffiSig) *cframe {
	cf := &cframe{f: (*C.objcsend_frame)(C.calloc(1, C.sizeof_objcsend_frame))}
	cf.f.fn = cPointer(c.Fn())
	cf.f.cif = sig.cif

	n := 2 + len(c.Args())
	avalues := cf.alloc(uintptr(n) * uintptr(ptrSize))
	values := unsafe.Slice((*unsafe.Pointer)(avalues), n)

	recv := c.Receiver()
	if sup := c.Super(); sup != nil && c.Entry().Convention != abi.DynamicLookup {
		recv = uintptr(cf.store(reflect.ValueOf(*sup)))
	}
	values[0] = cf.store(reflect.ValueOf(recv))
	values[1] = cf.store(reflect.ValueOf(c.Sel()))
	for i, a := range c.Args() {
		values[2+i] = cf.store(a.Value())
	}
	cf.f.avalues = (*unsafe.Pointer)(avalues)

	if !sig.void {
		cf.size = sig.ret.Size()
		// libffi widens small integral results to a full register.
		cf.f.rvalue = cf.alloc(max(cf.size, 16))
	}
	return cf
}

func (cf *cframe) result() []byte {
	if cf.size == 0 {
		return nil
	}
	return C.GoBytes(cf.f.rvalue, C.int(cf.size))
}

func (r *Runtime) TryRunAndCatch(f *objc.Frame, exc *uintptr) objc.Status {
	c := f.Take()
	p := c.Prepared().(*prepared)
	cf := newCFrame(c, p.sig)
	defer cf.free()

	status := objc.Status(C.objcsend_run(cf.f))
	switch status {
	case objc.StatusOK:
		if cf.f.done == 0 {
			panic("native: protected call returned without running")
		}
		f.CompleteBytes(cf.result())
	case objc.StatusCaught:
		*exc = uintptr(cf.f.error)
	}
	return status
}

func invokeFFI(f *objc.Frame, c *objc.Call, sig *ffiSig) {
	cf := newCFrame(c, sig)
	defer cf.free()
	C.objcsend_call(cf.f)
	f.CompleteBytes(cf.result())
}
