// Package objc sends Objective-C messages from Go.
//
// A Runtime wraps a Backend (the real libobjc in package native, or the
// simulated runtime in package objctest) and caches selectors, classes
// and dispatch entry points. Messages are sent with the generic Send
// functions, which marshal their arguments, pick the entry point that
// matches the return type on the runtime's architecture (see package
// abi) and perform the call:
//
//	sel := rt.MustSelector("count")
//	n, err := objc.Send[uint64](rt, array, sel)
//
// Send and SendSuper run the call inside a protected native region. An
// Objective-C exception raised by the method is caught there, before it
// can unwind through any Go frame, and comes back as an *Exception
// error. SendUnchecked and SendSuperUnchecked skip the protection; an
// exception raised through them is undefined behaviour. Building with
// the objcdebug tag, or constructing the Runtime WithForceChecked,
// turns every unchecked send into a checked one.
package objc
