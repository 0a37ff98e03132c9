package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chazu/objcsend/abi"
	"github.com/chazu/objcsend/objc"
	"github.com/chazu/objcsend/objctest"
	"github.com/chazu/objcsend/trace"
)

func newTestRuntime(t *testing.T) (*objctest.Runtime, *objc.Runtime) {
	t.Helper()
	fake := objctest.New()
	fake.MustRegisterClass("Greeter", "NSObject", objctest.NewMethodTable().
		AddInstanceMethod("greeting", func(m *objctest.Message) any {
			return fake.NewString("hello").Addr
		}).
		AddInstanceMethod("scale:by:", func(m *objctest.Message) any {
			return float32(m.Float(0) * float64(m.Int(1)))
		}).
		AddInstanceMethod("fail", func(m *objctest.Message) any {
			m.Raise("NSInternalInconsistencyException", "greeter broke")
			return nil
		}))
	fake.MustRegisterClass("LoudGreeter", "Greeter", objctest.NewMethodTable().
		AddInstanceMethod("greeting", func(m *objctest.Message) any {
			return fake.NewString("HELLO").Addr
		}))
	rt, err := objc.New(fake)
	if err != nil {
		t.Fatal(err)
	}
	return fake, rt
}

func TestParseArg(t *testing.T) {
	_, rt := newTestRuntime(t)

	tests := []struct {
		in   string
		want any
	}{
		{"bool:true", true},
		{"i8:-3", int8(-3)},
		{"i16:0x10", int16(16)},
		{"i32:-7", int32(-7)},
		{"i64:9000000000", int64(9000000000)},
		{"int:5", 5},
		{"u8:255", uint8(255)},
		{"u16:7", uint16(7)},
		{"u32:7", uint32(7)},
		{"u64:7", uint64(7)},
		{"uint:7", uint(7)},
		{"ptr:0x1000", uintptr(0x1000)},
		{"f32:1.5", float32(1.5)},
		{"f64:-0.25", -0.25},
		{"sel:count", rt.MustSelector("count")},
		{"class:NSObject", rt.MustClass("NSObject")},
		{"id:0x20", objc.MustObject(0x20)},
		{"id:nil", objc.Object{}},
	}
	for _, tt := range tests {
		got, err := parseArg(rt, tt.in)
		if err != nil {
			t.Errorf("parseArg(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseArg(%q) = %#v (%T), want %#v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}

	bad := []string{"5", "i8:300", "u8:-1", "f64:x", "class:Nope", "sel:", "id:zz", "blob:1"}
	for _, in := range bad {
		if _, err := parseArg(rt, in); err == nil {
			t.Errorf("parseArg(%q) succeeded", in)
		}
	}
}

func TestParseReceiver(t *testing.T) {
	_, rt := newTestRuntime(t)
	if got, err := parseReceiver(rt, "Greeter"); err != nil || got != rt.MustClass("Greeter") {
		t.Errorf("class receiver = %v, %v", got, err)
	}
	if got, err := parseReceiver(rt, "0x10040"); err != nil || got != objc.MustObject(0x10040) {
		t.Errorf("address receiver = %v, %v", got, err)
	}
	for _, in := range []string{"Missing", "0x0", "0xzz"} {
		if _, err := parseReceiver(rt, in); err == nil {
			t.Errorf("parseReceiver(%q) succeeded", in)
		}
	}
}

func TestSend(t *testing.T) {
	fake, rt := newTestRuntime(t)
	loud := fake.Alloc(fake.ObjectSpace.GetClass("LoudGreeter"))
	addr := fmt.Sprintf("%#x", loud.Addr)

	tests := []struct {
		name     string
		receiver string
		selector string
		args     []string
		ret      string
		super    string
		want     string
	}{
		{"string", addr, "greeting", nil, "string", "", "HELLO"},
		{"super", addr, "greeting", nil, "string", "Greeter", "hello"},
		{"float", addr, "scale:by:", []string{"f64:1.25", "i64:4"}, "f32", "", "5"},
		{"class", addr, "class", nil, "class", "", fmt.Sprintf("%s LoudGreeter", rt.MustClass("LoudGreeter"))},
		{"bool", addr, "isKindOfClass:", []string{"class:Greeter"}, "bool", "", "true"},
		{"void", addr, "retain", nil, "void", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := send(rt, tt.receiver, tt.selector, tt.args, tt.ret, tt.super, true)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendErrors(t *testing.T) {
	fake, rt := newTestRuntime(t)
	addr := fmt.Sprintf("%#x", fake.Alloc(fake.ObjectSpace.GetClass("Greeter")).Addr)

	_, err := send(rt, addr, "fail", nil, "void", "", true)
	var exc *objc.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("fail: err = %v", err)
	}
	if exc.Error() != "greeter broke" {
		t.Errorf("exception = %q", exc.Error())
	}
	exc.Release()

	if _, err := send(rt, addr, "greeting", nil, "struct", "", true); err == nil || !strings.Contains(err.Error(), "unknown return type") {
		t.Errorf("bad -ret: err = %v", err)
	}
	if _, err := send(rt, addr, "greeting", nil, "id", "Nope", true); err == nil {
		t.Error("unknown -super class accepted")
	}
}

func TestParseSizes(t *testing.T) {
	got, err := parseSizes("0, 8,17")
	if err != nil || len(got) != 3 || got[2] != 17 {
		t.Errorf("parseSizes = %v, %v", got, err)
	}
	if joinSizes(abi.DefaultSizes) != "0,1,2,4,8,16,17,32" {
		t.Errorf("joinSizes = %q", joinSizes(abi.DefaultSizes))
	}
	for _, in := range []string{"", "8,x", "-1"} {
		if _, err := parseSizes(in); err == nil {
			t.Errorf("parseSizes(%q) succeeded", in)
		}
	}
}

func TestWriteTable(t *testing.T) {
	rows, err := abi.Table(abi.FamilyApple, abi.ArchAMD64, []uintptr{17})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	writeTable(&buf, abi.FamilyApple, abi.ArchAMD64, rows)
	out := buf.String()
	for _, want := range []string{"apple runtime on amd64", "17/aggregate", abi.SymMsgSendStret, abi.SymMsgSendSuperStret} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRecords(t *testing.T) {
	var buf bytes.Buffer
	writeRecords(&buf, []trace.Record{
		{Time: time.Unix(0, 0).UTC(), Selector: "raise", Receiver: 0x40, Symbol: abi.SymMsgSend,
			Checked: true, Error: "boom", Exception: true},
		{Time: time.Unix(0, 0).UTC(), Selector: "init", Receiver: 0x50, SuperClass: 0x60, Symbol: abi.SymMsgSendSuper},
	})
	out := buf.String()
	for _, want := range []string{"exception: boom", "0x50 (super 0x60)", "objc_msgSendSuper"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
