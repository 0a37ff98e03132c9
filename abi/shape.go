package abi

import (
	"fmt"
	"reflect"
)

// Shape is the classification of a return type used for entry point
// selection.
type Shape struct {
	Size  uintptr // size in bytes
	Float bool    // float32 or float64 scalar
	Wide  bool    // 8-byte integer or float64 scalar
}

// ShapeOf classifies t. Structs, arrays and other aggregates are never
// Float or Wide, whatever their size. Sizes are those of the build host,
// so int, uint, uintptr and pointers are Wide exactly when the host word
// is 8 bytes, whatever arch the shape is later selected for.
func ShapeOf(t reflect.Type) Shape {
	s := Shape{Size: t.Size()}
	switch t.Kind() {
	case reflect.Float32:
		s.Float = true
	case reflect.Float64:
		s.Float = true
		s.Wide = true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64,
		reflect.Uintptr, reflect.Pointer, reflect.UnsafePointer:
		s.Wide = s.Size == 8
	}
	return s
}

// ShapeFor is ShapeOf for a type parameter.
func ShapeFor[T any]() Shape {
	return ShapeOf(reflect.TypeFor[T]())
}

func (s Shape) String() string {
	kind := "aggregate"
	switch {
	case s.Float:
		kind = "float"
	case s.Wide:
		kind = "wide"
	}
	return fmt.Sprintf("%d/%s", s.Size, kind)
}
