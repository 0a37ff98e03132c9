package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/objcsend/objc"
)

// parseAddress parses a 0x-prefixed or decimal address.
func parseAddress(s string) (uintptr, error) {
	if s == "nil" || s == "0" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	if uint64(uintptr(v)) != v {
		return 0, fmt.Errorf("address %q does not fit a pointer", s)
	}
	return uintptr(v), nil
}

// parseReceiver resolves a class name or an object address.
func parseReceiver(rt *objc.Runtime, s string) (objc.Target, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		p, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		obj, ok := objc.ObjectFromPtr(p)
		if !ok {
			return nil, fmt.Errorf("receiver %q is nil", s)
		}
		return obj, nil
	}
	cls, ok := rt.Class(s)
	if !ok {
		return nil, fmt.Errorf("no class named %q", s)
	}
	return cls, nil
}

// parseArg parses a kind:value message argument.
func parseArg(rt *objc.Runtime, s string) (any, error) {
	kind, val, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("argument %q: want kind:value", s)
	}
	v, err := parseValue(rt, kind, val)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", s, err)
	}
	return v, nil
}

func parseValue(rt *objc.Runtime, kind, val string) (any, error) {
	switch kind {
	case "bool":
		return strconv.ParseBool(val)
	case "i8":
		v, err := strconv.ParseInt(val, 0, 8)
		return int8(v), err
	case "i16":
		v, err := strconv.ParseInt(val, 0, 16)
		return int16(v), err
	case "i32":
		v, err := strconv.ParseInt(val, 0, 32)
		return int32(v), err
	case "i64":
		return strconv.ParseInt(val, 0, 64)
	case "int":
		v, err := strconv.ParseInt(val, 0, strconv.IntSize)
		return int(v), err
	case "u8":
		v, err := strconv.ParseUint(val, 0, 8)
		return uint8(v), err
	case "u16":
		v, err := strconv.ParseUint(val, 0, 16)
		return uint16(v), err
	case "u32":
		v, err := strconv.ParseUint(val, 0, 32)
		return uint32(v), err
	case "u64":
		return strconv.ParseUint(val, 0, 64)
	case "uint":
		v, err := strconv.ParseUint(val, 0, strconv.IntSize)
		return uint(v), err
	case "ptr":
		return parseAddress(val)
	case "f32":
		v, err := strconv.ParseFloat(val, 32)
		return float32(v), err
	case "f64":
		return strconv.ParseFloat(val, 64)
	case "sel":
		sel, ok := rt.Selector(val)
		if !ok {
			return nil, fmt.Errorf("invalid selector %q", val)
		}
		return sel, nil
	case "class":
		cls, ok := rt.Class(val)
		if !ok {
			return nil, fmt.Errorf("no class named %q", val)
		}
		return cls, nil
	case "id":
		p, err := parseAddress(val)
		if err != nil {
			return nil, err
		}
		obj, _ := objc.ObjectFromPtr(p)
		return obj, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// returnKinds lists the -ret values.
var returnKinds = []string{"void", "bool", "i32", "i64", "u32", "u64", "f32", "f64", "id", "class", "sel", "string"}

// sendFunc performs one send with R as the return type.
type sendFunc func(rt *objc.Runtime, target objc.Target, sel objc.Sel, args []any) (string, error)

func sender[R any](format func(*objc.Runtime, R) (string, error), super objc.Class, checked bool) sendFunc {
	return func(rt *objc.Runtime, target objc.Target, sel objc.Sel, args []any) (string, error) {
		var (
			v   R
			err error
		)
		switch {
		case !super.IsNil() && checked:
			v, err = objc.SendSuper[R](rt, target, super, sel, args...)
		case !super.IsNil():
			v, err = objc.SendSuperUnchecked[R](rt, target, super, sel, args...)
		case checked:
			v, err = objc.Send[R](rt, target, sel, args...)
		default:
			v, err = objc.SendUnchecked[R](rt, target, sel, args...)
		}
		if err != nil {
			return "", err
		}
		return format(rt, v)
	}
}

func sprint[R any](_ *objc.Runtime, v R) (string, error) { return fmt.Sprint(v), nil }

func formatF32(_ *objc.Runtime, v float32) (string, error) {
	return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
}

func formatF64(_ *objc.Runtime, v float64) (string, error) {
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

// newSender returns the send function for a -ret kind.
func newSender(kind string, super objc.Class, checked bool) (sendFunc, error) {
	switch kind {
	case "void":
		return sender(func(*objc.Runtime, objc.Void) (string, error) { return "", nil }, super, checked), nil
	case "bool":
		return sender(sprint[bool], super, checked), nil
	case "i32":
		return sender(sprint[int32], super, checked), nil
	case "i64":
		return sender(sprint[int64], super, checked), nil
	case "u32":
		return sender(sprint[uint32], super, checked), nil
	case "u64":
		return sender(sprint[uint64], super, checked), nil
	case "f32":
		return sender(formatF32, super, checked), nil
	case "f64":
		return sender(formatF64, super, checked), nil
	case "id":
		return sender(sprint[objc.Object], super, checked), nil
	case "class":
		return sender(func(rt *objc.Runtime, c objc.Class) (string, error) {
			if c.IsNil() {
				return "nil", nil
			}
			return fmt.Sprintf("%s %s", c, rt.ClassName(c)), nil
		}, super, checked), nil
	case "sel":
		return sender(func(rt *objc.Runtime, s objc.Sel) (string, error) {
			if s.IsNil() {
				return "nil", nil
			}
			return rt.SelName(s), nil
		}, super, checked), nil
	case "string":
		return sender(func(rt *objc.Runtime, o objc.Object) (string, error) {
			if o.IsNil() {
				return "nil", nil
			}
			return rt.StringValue(o)
		}, super, checked), nil
	}
	return nil, fmt.Errorf("unknown return type %q (want one of %s)", kind, strings.Join(returnKinds, ", "))
}
