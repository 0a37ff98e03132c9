//go:build darwin || linux || freebsd

package native

import (
	"unsafe"
)

// cBytes copies the NUL-terminated string at p, which the runtime owns.
func cBytes(p uintptr) []byte {
	base := *(*unsafe.Pointer)(unsafe.Pointer(&p))
	n := 0
	for *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(base), n))
	return out
}

// cPointer views a foreign address as an unsafe.Pointer.
func cPointer(p uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&p))
}
