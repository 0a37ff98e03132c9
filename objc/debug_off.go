//go:build !objcdebug

package objc

// debugChecked forces checked sends in objcdebug builds.
const debugChecked = false
