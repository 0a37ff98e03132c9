package abi

import (
	"errors"
	"fmt"
)

// Entry point symbols. These names are the contract with libobjc and
// must match exactly.
const (
	SymMsgSend           = "objc_msgSend"
	SymMsgSendFpret      = "objc_msgSend_fpret"
	SymMsgSendStret      = "objc_msgSend_stret"
	SymMsgSendSuper      = "objc_msgSendSuper"
	SymMsgSendSuperStret = "objc_msgSendSuper_stret"
	SymMsgLookup         = "objc_msg_lookup"
	SymMsgLookupSuper    = "objc_msg_lookup_super"
)

// ErrUnsupportedArch is returned for architectures with no known
// dispatch rule.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Convention says how the selected entry point returns its value.
type Convention uint8

const (
	RegisterReturn      Convention = iota // value comes back in general registers
	FloatRegisterReturn                   // value comes back on the FP stack/registers (x86 fpret)
	MemoryReturn                          // caller passes a hidden pointer to the result (stret)
	DynamicLookup                         // the runtime hands back the implementation to call
)

func (c Convention) String() string {
	switch c {
	case RegisterReturn:
		return "register"
	case FloatRegisterReturn:
		return "float-register"
	case MemoryReturn:
		return "memory"
	case DynamicLookup:
		return "dynamic"
	}
	return fmt.Sprintf("Convention(%d)", uint8(c))
}

// Entry is a selected dispatch entry point.
type Entry struct {
	Symbol     string
	Convention Convention
}

// InRegisters reports whether the return value travels in registers.
// Dynamic lookups resolve this at call time and report true; the
// implementation's own C signature decides.
func (e Entry) InRegisters() bool {
	return e.Convention != MemoryReturn
}

func (e Entry) String() string {
	return e.Symbol + "/" + e.Convention.String()
}

// x86 returns these sizes in eax:edx.
func x86RegisterSize(size uintptr) bool {
	switch size {
	case 0, 1, 2, 4, 8:
		return true
	}
	return false
}

// stret reports whether shape s is returned through memory on arch.
func stret(s Shape, arch Arch) (bool, error) {
	switch arch {
	case ArchX86:
		return !x86RegisterSize(s.Size), nil
	case ArchAMD64:
		// Anything larger than two eightbytes.
		return s.Size > 16, nil
	case ArchARM:
		// Everything above one word except double-word fundamentals.
		return s.Size > 4 && !s.Wide, nil
	case ArchARM64:
		// No stret on arm64: x8 carries the result pointer transparently.
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
}

// Select picks the Apple entry point for a plain message send.
func Select(s Shape, arch Arch) (Entry, error) {
	if arch == ArchX86 && s.Float {
		return Entry{SymMsgSendFpret, FloatRegisterReturn}, nil
	}
	mem, err := stret(s, arch)
	if err != nil {
		return Entry{}, err
	}
	if mem {
		return Entry{SymMsgSendStret, MemoryReturn}, nil
	}
	return Entry{SymMsgSend, RegisterReturn}, nil
}

// SelectSuper picks the Apple entry point for a super send. There is no
// fpret variant; floats go by size like everything else.
func SelectSuper(s Shape, arch Arch) (Entry, error) {
	mem, err := stret(s, arch)
	if err != nil {
		return Entry{}, err
	}
	if mem {
		return Entry{SymMsgSendSuperStret, MemoryReturn}, nil
	}
	return Entry{SymMsgSendSuper, RegisterReturn}, nil
}

// SelectFor dispatches on the runtime family. The GNU family always
// uses dynamic lookup, independent of arch and shape.
func SelectFor(f Family, s Shape, arch Arch, super bool) (Entry, error) {
	switch f {
	case FamilyApple:
		if super {
			return SelectSuper(s, arch)
		}
		return Select(s, arch)
	case FamilyGNU:
		if super {
			return Entry{SymMsgLookupSuper, DynamicLookup}, nil
		}
		return Entry{SymMsgLookup, DynamicLookup}, nil
	}
	return Entry{}, fmt.Errorf("unknown runtime family %s", f)
}

// Supported reports whether arch has a selection rule.
func Supported(arch Arch) bool {
	_, err := stret(Shape{}, arch)
	return err == nil
}
