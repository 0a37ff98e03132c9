package objc_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
	"github.com/chazu/objcsend/objctest"
)

type rect struct {
	X, Y, W, H float64
}

type span struct {
	Location, Length uint64
}

// newRuntime builds a simulated runtime with a Calculator class and an
// objc.Runtime on top of it.
func newRuntime(t *testing.T, opts ...objctest.Option) (*objctest.Runtime, *objc.Runtime, objc.Object) {
	t.Helper()
	fake := objctest.New(opts...)

	methods := objctest.NewMethodTable().
		AddInstanceMethod("add:to:", func(m *objctest.Message) any {
			return m.Int(0) + m.Int(1)
		}).
		AddInstanceMethod("isPositive:", func(m *objctest.Message) any {
			return m.Int(0) > 0
		}).
		AddInstanceMethod("half:", func(m *objctest.Message) any {
			return m.Float(0) / 2
		}).
		AddInstanceMethod("frame", func(m *objctest.Message) any {
			return rect{X: 1, Y: 2, W: 30, H: 40}
		}).
		AddInstanceMethod("range", func(m *objctest.Message) any {
			return span{Location: 3, Length: 4}
		}).
		AddInstanceMethod("title", func(m *objctest.Message) any {
			return fake.NewString("calculator").Addr
		}).
		AddInstanceMethod("nothing", func(m *objctest.Message) any {
			return nil
		}).
		AddInstanceMethod("objectAtIndex:", func(m *objctest.Message) any {
			m.Raise("NSRangeException", fmt.Sprintf("index %d beyond bounds for empty array", m.Uint(0)))
			return nil
		})
	fake.MustRegisterClass("Calculator", "NSObject", methods)

	rt, err := objc.New(fake)
	if err != nil {
		t.Fatalf("objc.New: %v", err)
	}
	calc, ok := objc.ObjectFromPtr(fake.Alloc(fake.ObjectSpace.GetClass("Calculator")).Addr)
	if !ok {
		t.Fatal("allocated a null calculator")
	}
	return fake, rt, calc
}

func TestSendReturnsValues(t *testing.T) {
	_, rt, calc := newRuntime(t)

	sum, err := objc.Send[int64](rt, calc, rt.MustSelector("add:to:"), int64(2), int64(3))
	if err != nil {
		t.Fatalf("add:to: %v", err)
	}
	if sum != 5 {
		t.Errorf("add:to: = %d, want 5", sum)
	}

	pos, err := objc.Send[bool](rt, calc, rt.MustSelector("isPositive:"), int32(-4))
	if err != nil || pos {
		t.Errorf("isPositive: = %v, %v; want false, nil", pos, err)
	}

	half, err := objc.Send[float64](rt, calc, rt.MustSelector("half:"), 5.0)
	if err != nil || half != 2.5 {
		t.Errorf("half: = %v, %v; want 2.5, nil", half, err)
	}

	frame, err := objc.Send[rect](rt, calc, rt.MustSelector("frame"))
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if diff := cmp.Diff(rect{1, 2, 30, 40}, frame); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	if _, err := objc.Send[objc.Void](rt, calc, rt.MustSelector("nothing")); err != nil {
		t.Errorf("nothing: %v", err)
	}

	title, err := objc.Send[objc.Object](rt, calc, rt.MustSelector("title"))
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	s, err := rt.StringValue(title)
	if err != nil || s != "calculator" {
		t.Errorf("StringValue(title) = %q, %v", s, err)
	}
}

func TestSendClassMembership(t *testing.T) {
	_, rt, calc := newRuntime(t)
	sel := rt.MustSelector("isKindOfClass:")

	for name, want := range map[string]bool{
		"NSObject":    true,
		"Calculator":  true,
		"NSException": false,
	} {
		got, err := objc.Send[bool](rt, calc, sel, rt.MustClass(name))
		if err != nil {
			t.Fatalf("isKindOfClass: %s: %v", name, err)
		}
		if got != want {
			t.Errorf("isKindOfClass: %s = %v, want %v", name, got, want)
		}
	}
}

func TestSendToClass(t *testing.T) {
	fake, rt, _ := newRuntime(t)
	obj, err := objc.Send[objc.Object](rt, rt.MustClass("Calculator"), rt.MustSelector("new"))
	if err != nil {
		t.Fatalf("+new: %v", err)
	}
	if n, ok := fake.RetainCount(obj.Ptr()); !ok || n != 1 {
		t.Errorf("new object retain count = %d, %v; want 1", n, ok)
	}
	name, err := objc.Send[objc.Object](rt, obj, rt.MustSelector("className"))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := rt.StringValue(name); s != "Calculator" {
		t.Errorf("className = %q", s)
	}
}

func TestCheckedSendCatchesException(t *testing.T) {
	fake, rt, calc := newRuntime(t)

	_, err := objc.Send[objc.Object](rt, calc, rt.MustSelector("objectAtIndex:"), uint64(3))
	var exc *objc.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v, want *objc.Exception", err)
	}
	defer exc.Release()

	if got, want := exc.Error(), "index 3 beyond bounds for empty array"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := exc.Name(); got != "NSRangeException" {
		t.Errorf("Name() = %q", got)
	}
	if got := fmt.Sprintf("%#v", exc); got != "objc.Exception(NSException)" {
		t.Errorf("%%#v = %q", got)
	}
	if n, ok := fake.RetainCount(exc.Object().Ptr()); !ok || n != 1 {
		t.Errorf("retain count after catch = %d (alive %v), want 1", n, ok)
	}
}

func TestExceptionCloneRelease(t *testing.T) {
	fake, rt, calc := newRuntime(t)

	_, err := objc.Send[objc.Void](rt, calc, rt.MustSelector("objectAtIndex:"), uint64(0))
	var exc *objc.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v", err)
	}
	addr := exc.Object().Ptr()
	count := func() int64 {
		t.Helper()
		n, ok := fake.RetainCount(addr)
		if !ok {
			t.Fatal("exception deallocated early")
		}
		return n
	}

	const clones = 3
	var handles []*objc.Exception
	for range clones {
		handles = append(handles, exc.Clone())
	}
	if got := count(); got != 1+clones {
		t.Errorf("after %d clones retain count = %d, want %d", clones, got, 1+clones)
	}
	for _, h := range handles {
		if h.Object() != exc.Object() {
			t.Errorf("clone wraps %v, want %v", h.Object(), exc.Object())
		}
		h.Release()
		h.Release() // no-op
	}
	if got := count(); got != 1 {
		t.Errorf("after releasing clones retain count = %d, want 1", got)
	}

	exc.Release()
	if _, ok := fake.RetainCount(addr); ok {
		t.Error("exception still alive after final release")
	}
	exc.Release()
}

func TestUncheckedSendDoesNotCatch(t *testing.T) {
	_, rt, calc := newRuntime(t)
	defer func() {
		v := recover()
		if _, ok := objctest.Thrown(v); !ok {
			t.Fatalf("recovered %v, want a thrown Objective-C exception", v)
		}
	}()
	objc.SendUnchecked[objc.Void](rt, calc, rt.MustSelector("objectAtIndex:"), uint64(1))
	t.Fatal("unchecked send of a raising method returned")
}

func TestUncheckedSendReturnsValue(t *testing.T) {
	_, rt, calc := newRuntime(t)
	sum, err := objc.SendUnchecked[int32](rt, calc, rt.MustSelector("add:to:"), int32(40), int32(2))
	if err != nil || sum != 42 {
		t.Errorf("add:to: = %d, %v", sum, err)
	}
}

func TestForceChecked(t *testing.T) {
	fake := objctest.New()
	rt, err := objc.New(fake, objc.WithForceChecked(true))
	if err != nil {
		t.Fatal(err)
	}
	exc := fake.NewException("NSGenericException", "boom")
	_, err = objc.SendUnchecked[objc.Void](rt, objc.MustObject(exc.Addr), rt.MustSelector("raise"))
	var caught *objc.Exception
	if !errors.As(err, &caught) {
		t.Fatalf("forced unchecked send: err = %v, want *objc.Exception", err)
	}
	defer caught.Release()
	if caught.Error() != "boom" {
		t.Errorf("Error() = %q", caught.Error())
	}
	if !rt.ForceChecked() {
		t.Error("ForceChecked() = false")
	}
}

func TestUnrecognizedSelector(t *testing.T) {
	_, rt, calc := newRuntime(t)
	_, err := objc.Send[objc.Void](rt, calc, rt.MustSelector("bogus"))
	var exc *objc.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v", err)
	}
	defer exc.Release()
	if !strings.HasPrefix(exc.Error(), "-[Calculator bogus]: unrecognized selector") {
		t.Errorf("Error() = %q", exc.Error())
	}
	if exc.Name() != "NSInvalidArgumentException" {
		t.Errorf("Name() = %q", exc.Name())
	}
}

func TestSendErrors(t *testing.T) {
	_, rt, calc := newRuntime(t)
	sel := rt.MustSelector("add:to:")

	if _, err := objc.Send[int64](rt, objc.Object{}, sel, 1, 2); !errors.Is(err, objc.ErrNilTarget) {
		t.Errorf("absent target: err = %v", err)
	}
	if _, err := objc.Send[int64](rt, nil, sel, 1, 2); !errors.Is(err, objc.ErrNilTarget) {
		t.Errorf("nil target: err = %v", err)
	}
	if _, err := objc.Send[int64](rt, calc, objc.Sel{}, 1, 2); !errors.Is(err, objc.ErrInvalidSelector) {
		t.Errorf("absent selector: err = %v", err)
	}
	if _, err := objc.SendSuper[int64](rt, calc, objc.Class{}, sel, 1, 2); !errors.Is(err, objc.ErrNilTarget) {
		t.Errorf("absent super class: err = %v", err)
	}

	var ute *objc.UnsupportedTypeError
	if _, err := objc.Send[string](rt, calc, sel, 1, 2); !errors.As(err, &ute) || ute.Index != -1 {
		t.Errorf("string return: err = %v", err)
	}
	if _, err := objc.Send[int64](rt, calc, sel, "1", 2); !errors.As(err, &ute) || ute.Index != 0 {
		t.Errorf("string argument: err = %v", err)
	}

	args := make([]any, objc.MaxArgs+1)
	if _, err := objc.Send[int64](rt, calc, sel, args...); !errors.Is(err, objc.ErrTooManyArgs) {
		t.Errorf("too many args: err = %v", err)
	}

	_, err := objc.Send[int64](rt, calc, sel, int64(1))
	if err == nil || !strings.Contains(err.Error(), "add:to: takes 2 arguments, got 1") {
		t.Errorf("arity mismatch: err = %v", err)
	}
}

func TestEntryPointByArch(t *testing.T) {
	tests := []struct {
		arch  abi.Arch
		send  func(*objc.Runtime, objc.Object) error
		entry string
	}{
		{abi.ArchAMD64, sendFrame, abi.SymMsgSendStret},
		{abi.ArchARM64, sendFrame, abi.SymMsgSend},
		{abi.ArchAMD64, sendRange, abi.SymMsgSend},
		{abi.ArchARM, sendRange, abi.SymMsgSendStret},
		{abi.ArchX86, sendHalf, abi.SymMsgSendFpret},
		{abi.ArchAMD64, sendHalf, abi.SymMsgSend},
		{abi.ArchX86, sendFrame, abi.SymMsgSendStret},
	}
	for _, tt := range tests {
		fake, rt, calc := newRuntime(t, objctest.WithArch(tt.arch))
		if err := tt.send(rt, calc); err != nil {
			t.Errorf("%s: %v", tt.arch, err)
			continue
		}
		d, _ := fake.LastDispatch()
		if d.Symbol != tt.entry {
			t.Errorf("%s: dispatched through %s, want %s", tt.arch, d.Symbol, tt.entry)
		}
	}
}

func sendFrame(rt *objc.Runtime, obj objc.Object) error {
	r, err := objc.Send[rect](rt, obj, rt.MustSelector("frame"))
	if err == nil && r.W != 30 {
		err = fmt.Errorf("frame = %+v", r)
	}
	return err
}

func sendRange(rt *objc.Runtime, obj objc.Object) error {
	r, err := objc.Send[span](rt, obj, rt.MustSelector("range"))
	if err == nil && r != (span{3, 4}) {
		err = fmt.Errorf("range = %+v", r)
	}
	return err
}

func sendHalf(rt *objc.Runtime, obj objc.Object) error {
	h, err := objc.Send[float64](rt, obj, rt.MustSelector("half:"), 3.0)
	if err == nil && h != 1.5 {
		err = fmt.Errorf("half: = %v", h)
	}
	return err
}

func registerShapes(fake *objctest.Runtime) {
	fake.MustRegisterClass("Shape", "NSObject", objctest.NewMethodTable().
		AddInstanceMethod("sides", func(m *objctest.Message) any { return uint32(0) }).
		AddInstanceMethod("bounds", func(m *objctest.Message) any { return rect{W: 1, H: 1} }))
	fake.MustRegisterClass("Square", "Shape", objctest.NewMethodTable().
		AddInstanceMethod("sides", func(m *objctest.Message) any { return uint32(4) }).
		AddInstanceMethod("bounds", func(m *objctest.Message) any { return rect{W: 2, H: 2} }))
}

func TestSendSuper(t *testing.T) {
	for _, arch := range []abi.Arch{abi.ArchARM64, abi.ArchAMD64} {
		fake := objctest.New(objctest.WithArch(arch))
		registerShapes(fake)
		rt, err := objc.New(fake)
		if err != nil {
			t.Fatal(err)
		}
		sq := objc.MustObject(fake.Alloc(fake.ObjectSpace.GetClass("Square")).Addr)
		shape := rt.MustClass("Shape")

		sides, err := objc.Send[uint32](rt, sq, rt.MustSelector("sides"))
		if err != nil || sides != 4 {
			t.Errorf("%s: sides = %d, %v; want 4", arch, sides, err)
		}
		sides, err = objc.SendSuper[uint32](rt, sq, shape, rt.MustSelector("sides"))
		if err != nil || sides != 0 {
			t.Errorf("%s: super sides = %d, %v; want 0", arch, sides, err)
		}
		d, _ := fake.LastDispatch()
		want := objctest.Dispatch{Symbol: abi.SymMsgSendSuper, Selector: "sides", Receiver: sq.Ptr(), Super: true}
		if diff := cmp.Diff(want, d); diff != "" {
			t.Errorf("%s: super dispatch mismatch (-want +got):\n%s", arch, diff)
		}

		b, err := objc.SendSuperUnchecked[rect](rt, sq, shape, rt.MustSelector("bounds"))
		if err != nil || b.W != 1 {
			t.Errorf("%s: super bounds = %+v, %v", arch, b, err)
		}
		wantEntry := abi.SymMsgSendSuper
		if arch == abi.ArchAMD64 {
			wantEntry = abi.SymMsgSendSuperStret
		}
		if d, _ := fake.LastDispatch(); d.Symbol != wantEntry {
			t.Errorf("%s: super bounds through %s, want %s", arch, d.Symbol, wantEntry)
		}
	}
}

func TestGNUDynamicLookup(t *testing.T) {
	fake, rt, calc := newRuntime(t, objctest.WithFamily(abi.FamilyGNU), objctest.WithArch(abi.ArchUnknown))
	registerShapes(fake)

	frame, err := objc.Send[rect](rt, calc, rt.MustSelector("frame"))
	if err != nil || frame.H != 40 {
		t.Fatalf("frame = %+v, %v", frame, err)
	}
	if d, _ := fake.LastDispatch(); d.Symbol != "imp" {
		t.Errorf("dispatched through %q, want a looked-up implementation", d.Symbol)
	}

	sq := objc.MustObject(fake.Alloc(fake.ObjectSpace.GetClass("Square")).Addr)
	sides, err := objc.SendSuper[uint32](rt, sq, rt.MustClass("Shape"), rt.MustSelector("sides"))
	if err != nil || sides != 0 {
		t.Errorf("super sides = %d, %v", sides, err)
	}
	if d, _ := fake.LastDispatch(); !d.Super || d.Receiver != sq.Ptr() {
		t.Errorf("super dispatch = %+v", d)
	}

	if _, err := objc.Send[objc.Void](rt, calc, rt.MustSelector("bogus")); !errors.Is(err, objc.ErrNoImplementation) {
		t.Errorf("missing method: err = %v", err)
	}
}

func TestUnknownHelperStatusPanics(t *testing.T) {
	_, rt, calc := newRuntime(t, objctest.WithHelperStatus(7))
	defer func() {
		v := recover()
		if s, ok := v.(string); !ok || !strings.Contains(s, "unknown status 7") {
			t.Fatalf("recovered %v", v)
		}
	}()
	objc.Send[int64](rt, calc, rt.MustSelector("add:to:"), int64(1), int64(2))
	t.Fatal("send returned")
}

func TestProtectionUnavailable(t *testing.T) {
	_, rt, calc := newRuntime(t, objctest.WithoutProtection())
	sel := rt.MustSelector("add:to:")
	if _, err := objc.Send[int64](rt, calc, sel, int64(1), int64(2)); !errors.Is(err, objc.ErrProtectionUnavailable) {
		t.Errorf("checked send: err = %v", err)
	}
	if n, err := objc.SendUnchecked[int64](rt, calc, sel, int64(1), int64(2)); err != nil || n != 3 {
		t.Errorf("unchecked send = %d, %v", n, err)
	}
}

func TestNewRejectsUnsupportedArch(t *testing.T) {
	_, err := objc.New(objctest.New(objctest.WithArch(abi.ArchUnknown)))
	if !errors.Is(err, abi.ErrUnsupportedArch) {
		t.Errorf("Apple family on unknown arch: err = %v", err)
	}
	if _, err := objc.New(objctest.New(objctest.WithArch(abi.ArchUnknown), objctest.WithFamily(abi.FamilyGNU))); err != nil {
		t.Errorf("GNU family on unknown arch: %v", err)
	}
}

func TestSelectorInterning(t *testing.T) {
	fake, rt, _ := newRuntime(t)

	const n = 32
	sels := make([]objc.Sel, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			sel, ok := rt.Selector("countByEnumeratingWithState:objects:count:")
			if !ok {
				return errors.New("selector not registered")
			}
			sels[i] = sel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, sel := range sels {
		if sel != sels[0] {
			t.Fatalf("goroutine %d got %v, goroutine 0 got %v", i, sel, sels[0])
		}
	}

	// Two spellings of the same call site.
	a := rt.MustSelector("count")
	name := strings.Join([]string{"co", "unt"}, "")
	b, _ := rt.Selector(name)
	if a != b {
		t.Errorf("count interned twice: %v != %v", a, b)
	}
	if got := rt.SelName(a); got != "count" {
		t.Errorf("SelName = %q", got)
	}
	if got := fake.Selectors.Name(a.Ptr()); got != "count" {
		t.Errorf("runtime knows selector as %q", got)
	}

	for _, bad := range []string{"", "co\x00unt"} {
		if _, ok := rt.Selector(bad); ok {
			t.Errorf("Selector(%q) succeeded", bad)
		}
	}
}

func TestClassLookup(t *testing.T) {
	fake, rt, _ := newRuntime(t)

	if _, ok := rt.Class("Widget"); ok {
		t.Fatal("Widget found before registration")
	}
	fake.MustRegisterClass("Widget", "NSObject", nil)
	w, ok := rt.Class("Widget")
	if !ok {
		t.Fatal("Widget not found after registration")
	}
	if got := rt.ClassName(w); got != "Widget" {
		t.Errorf("ClassName = %q", got)
	}
	super, ok := rt.Superclass(w)
	if !ok || super != rt.MustClass("NSObject") {
		t.Errorf("Superclass = %v, %v", super, ok)
	}
	if _, ok := rt.Superclass(super); ok {
		t.Error("NSObject has a superclass")
	}
	if again, _ := rt.Class("Widget"); again != w {
		t.Errorf("class lookup changed: %v != %v", again, w)
	}
}

func TestObserver(t *testing.T) {
	fake := objctest.New()
	var mu sync.Mutex
	var events []objc.SendEvent
	rt, err := objc.New(fake, objc.WithObserver(objc.ObserverFunc(func(ev objc.SendEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})))
	if err != nil {
		t.Fatal(err)
	}

	exc := objc.MustObject(fake.NewException("NSGenericException", "observed").Addr)
	_, err = objc.Send[objc.Void](rt, exc, rt.MustSelector("raise"))
	var caught *objc.Exception
	if !errors.As(err, &caught) {
		t.Fatalf("err = %v", err)
	}
	_ = caught.Error()
	_ = caught.GoString()
	caught.Release()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("observed %d sends, want 1 (internal sends must not be observed): %+v", len(events), events)
	}
	ev := events[0]
	if ev.Selector != "raise" || !ev.Checked || ev.Err == nil || ev.Entry.Symbol != abi.SymMsgSend {
		t.Errorf("event = %+v", ev)
	}
	if ev.Receiver != exc.Ptr() {
		t.Errorf("event receiver = %#x, want %#x", ev.Receiver, exc.Ptr())
	}
}

func TestConcurrentSends(t *testing.T) {
	_, rt, calc := newRuntime(t)
	var g errgroup.Group
	for i := range 50 {
		g.Go(func() error {
			sum, err := objc.Send[int64](rt, calc, rt.MustSelector("add:to:"), int64(i), int64(i))
			if err != nil {
				return err
			}
			if sum != int64(2*i) {
				return fmt.Errorf("add:to: %d %d = %d", i, i, sum)
			}
			_, err = objc.Send[objc.Void](rt, calc, rt.MustSelector("objectAtIndex:"), uint64(i))
			var exc *objc.Exception
			if !errors.As(err, &exc) {
				return fmt.Errorf("objectAtIndex: err = %v", err)
			}
			defer exc.Release()
			if want := fmt.Sprintf("index %d beyond bounds for empty array", i); exc.Error() != want {
				return fmt.Errorf("Error() = %q, want %q", exc.Error(), want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
