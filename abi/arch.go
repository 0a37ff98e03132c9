// Package abi decides which Objective-C dispatch entry point a message
// send must go through.
//
// The choice depends on the target architecture, the runtime family and
// the shape of the value the method returns. Calling the wrong entry
// point corrupts the stack, so selection refuses to guess: architectures
// without a known rule are rejected with ErrUnsupportedArch.
package abi

import (
	"fmt"
	"runtime"
	"strings"
)

// Arch identifies a target architecture.
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchX86          // 32-bit x86
	ArchAMD64        // 64-bit x86
	ArchARM          // 32-bit ARM
	ArchARM64        // 64-bit ARM
)

var archNames = map[Arch]string{
	ArchUnknown: "unknown",
	ArchX86:     "386",
	ArchAMD64:   "amd64",
	ArchARM:     "arm",
	ArchARM64:   "arm64",
}

func (a Arch) String() string {
	if name, ok := archNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Arch(%d)", uint8(a))
}

// ParseArch maps a GOARCH-style name to an Arch. A few common aliases
// (x86_64, aarch64, i386) are accepted. Unrecognised names map to
// ArchUnknown.
func ParseArch(name string) Arch {
	switch strings.ToLower(name) {
	case "386", "x86", "i386", "i686":
		return ArchX86
	case "amd64", "x86_64", "x64":
		return ArchAMD64
	case "arm", "armv7":
		return ArchARM
	case "arm64", "aarch64":
		return ArchARM64
	}
	return ArchUnknown
}

// HostArch returns the architecture the program was compiled for.
func HostArch() Arch {
	return ParseArch(runtime.GOARCH)
}

// Family identifies the Objective-C runtime flavour.
type Family uint8

const (
	// FamilyApple is Apple's libobjc: static entry point selection.
	FamilyApple Family = iota
	// FamilyGNU is the GNU/GNUstep runtime: objc_msg_lookup resolves the
	// implementation per call.
	FamilyGNU
)

func (f Family) String() string {
	switch f {
	case FamilyApple:
		return "apple"
	case FamilyGNU:
		return "gnu"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// ParseFamily parses "apple" or "gnu" (also "gnustep").
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(name) {
	case "apple", "darwin":
		return FamilyApple, nil
	case "gnu", "gnustep":
		return FamilyGNU, nil
	}
	return 0, fmt.Errorf("unknown runtime family %q", name)
}

// HostFamily returns the runtime family native to the host OS.
func HostFamily() Family {
	switch runtime.GOOS {
	case "darwin", "ios":
		return FamilyApple
	}
	return FamilyGNU
}
