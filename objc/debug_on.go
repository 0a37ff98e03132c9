//go:build objcdebug

package objc

const debugChecked = true
