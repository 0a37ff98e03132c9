package objc

import (
	"fmt"
	"reflect"
	"unsafe"
)

type frameState uint8

const (
	framePending frameState = iota // holds a call nobody has taken
	frameRunning                   // call taken, no result yet
	frameDone                      // result written
)

func (s frameState) String() string {
	switch s {
	case framePending:
		return "pending"
	case frameRunning:
		return "running"
	case frameDone:
		return "done"
	}
	return fmt.Sprintf("frameState(%d)", uint8(s))
}

// Frame carries one call across the native boundary. It starts pending,
// holding the call; the entry stub takes the call out, performs it and
// completes the frame with the result. The sender reads the result back
// once the frame is done. A frame is used by one goroutine at a time and
// only once.
type Frame struct {
	state frameState
	call  *Call
	ret   reflect.Value // addressable storage of the native return type
}

func newFrame(c *Call) *Frame {
	return &Frame{
		state: framePending,
		call:  c,
		ret:   reflect.New(c.ret).Elem(),
	}
}

func (f *Frame) violation(op string) {
	panic(fmt.Sprintf("objc: frame %s in state %s", op, f.state))
}

// Take moves the pending call out of the frame. It panics if the call was
// already taken.
func (f *Frame) Take() *Call {
	if f.state != framePending {
		f.violation("taken")
	}
	c := f.call
	f.call = nil
	f.state = frameRunning
	return c
}

// ReturnType is the native return type the frame expects.
func (f *Frame) ReturnType() reflect.Type { return f.ret.Type() }

// CompleteValue stores the result of the taken call. v must be
// assignable to the native return type; for void returns v is ignored.
func (f *Frame) CompleteValue(v reflect.Value) {
	if f.state != frameRunning {
		f.violation("completed")
	}
	if f.ret.Type().Size() != 0 {
		f.ret.Set(v)
	}
	f.state = frameDone
}

// CompleteBytes stores a result produced in native memory. b must hold
// exactly the bytes of the native return type.
func (f *Frame) CompleteBytes(b []byte) {
	if f.state != frameRunning {
		f.violation("completed")
	}
	size := int(f.ret.Type().Size())
	if len(b) != size {
		panic(fmt.Sprintf("objc: frame completed with %d bytes, want %d", len(b), size))
	}
	if size != 0 {
		copy(unsafe.Slice((*byte)(f.ret.Addr().UnsafePointer()), size), b)
	}
	f.state = frameDone
}

// Done reports whether the frame holds a result.
func (f *Frame) Done() bool { return f.state == frameDone }

// result returns the stored result. Reading before completion is a
// contract violation.
func (f *Frame) result() reflect.Value {
	if f.state != frameDone {
		f.violation("read")
	}
	return f.ret
}
