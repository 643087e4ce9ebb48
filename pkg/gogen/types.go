package gogen

import (
	"fmt"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

func intGoType(t ctypes.Tint) string {
	bits := t.Size.Bytes() * 8
	if t.Sign == ctypes.Signed {
		return fmt.Sprintf("int%d", bits)
	}
	return fmt.Sprintf("uint%d", bits)
}

// goType maps a resolved type to Go.
func (e *emitter) goType(t ctypes.Type) string {
	switch tt := t.(type) {
	case ctypes.Tbool:
		return "bool"
	case ctypes.Tint:
		return intGoType(tt)
	case ctypes.Tfloat:
		if tt.Size == ctypes.F32 {
			return "float32"
		}
		return "float64"
	case ctypes.Tpointer:
		return e.pointerTo(tt.Elem)
	case ctypes.Treference:
		return e.pointerTo(tt.Elem)
	case ctypes.Trvalue:
		return e.pointerTo(tt.Elem)
	case ctypes.Tarray:
		n := tt.Size
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("[%d]%s", n, e.goType(tt.Elem))
	case ctypes.Tnamed:
		return typeName(tt.Name)
	case ctypes.Topaque:
		return typeName(tt.Name)
	case ctypes.Tfunction:
		return e.unsafePointer()
	}
	return "struct{}"
}

// pointerTo is the Go type of a pointer or reference to elem. Pointers to
// void, functions and interfaces are unsafe.Pointer.
func (e *emitter) pointerTo(elem ctypes.Type) string {
	switch el := e.m.Underlying(elem).(type) {
	case nil, ctypes.Tvoid, ctypes.Tfunction:
		return e.unsafePointer()
	case ctypes.Tnamed:
		if d, ok := e.m.Type(el.Name); ok {
			if _, isIface := d.(*sema.Interface); isIface {
				return e.unsafePointer()
			}
		}
	}
	return "*" + e.goType(elem)
}

func (e *emitter) unsafePointer() string {
	e.imports[importUnsafe] = true
	return "unsafe.Pointer"
}

// ffiType is the libffi type descriptor of a value of type t.
func (e *emitter) ffiType(t ctypes.Type) string {
	e.imports[importFFI] = true
	switch tt := e.m.Underlying(t).(type) {
	case nil, ctypes.Tvoid:
		return "&ffi.TypeVoid"
	case ctypes.Tbool:
		return "&ffi.TypeUint8"
	case ctypes.Tint:
		return ffiIntType(tt)
	case ctypes.Tfloat:
		if tt.Size == ctypes.F32 {
			return "&ffi.TypeFloat"
		}
		return "&ffi.TypeDouble"
	case ctypes.Tnamed:
		d, _ := e.m.Type(tt.Name)
		switch dd := d.(type) {
		case *sema.Enum:
			return ffiIntType(dd.Underlying)
		case *sema.Record, *sema.Opaque:
			return "&FFIType" + typeName(tt.Name)
		}
	case ctypes.Topaque:
		return "&FFIType" + typeName(tt.Name)
	}
	return "&ffi.TypePointer"
}

func ffiIntType(t ctypes.Tint) string {
	bits := t.Size.Bytes() * 8
	if t.Sign == ctypes.Signed {
		return fmt.Sprintf("&ffi.TypeSint%d", bits)
	}
	return fmt.Sprintf("&ffi.TypeUint%d", bits)
}

// narrowResult reports a return type that libffi widens to a full
// register, which the wrapper reads through ffi.Arg.
func (e *emitter) narrowResult(t ctypes.Type) bool {
	switch tt := e.m.Underlying(t).(type) {
	case ctypes.Tbool:
		return true
	case ctypes.Tint:
		return tt.Size.Bytes() < 8
	case ctypes.Tnamed:
		if en, ok := e.enumOf(tt.Name); ok {
			return en.Underlying.Size.Bytes() < 8
		}
	}
	return false
}

func (e *emitter) enumOf(q ctypes.QName) (*sema.Enum, bool) {
	d, ok := e.m.Type(q)
	if !ok {
		return nil, false
	}
	en, ok := d.(*sema.Enum)
	return en, ok
}

func isVoid(t ctypes.Type) bool {
	_, ok := t.(ctypes.Tvoid)
	return t == nil || ok
}

// byValueRecords returns the records and sized opaques passed by value in
// some function signature, including the records they contain.
func byValueRecords(m *sema.Model) map[string]bool {
	out := make(map[string]bool)
	var visit func(t ctypes.Type, depth int)
	visit = func(t ctypes.Type, depth int) {
		if depth > 64 {
			return
		}
		var name ctypes.QName
		switch tt := m.Underlying(t).(type) {
		case ctypes.Tarray:
			visit(tt.Elem, depth+1)
			return
		case ctypes.Tnamed:
			name = tt.Name
		case ctypes.Topaque:
			name = tt.Name
		default:
			return
		}
		if out[name.Key()] {
			return
		}
		d, ok := m.Type(name)
		if !ok {
			return
		}
		switch dd := d.(type) {
		case *sema.Record:
			out[name.Key()] = true
			for _, f := range dd.Flat {
				visit(f.Type, depth+1)
			}
		case *sema.Opaque:
			out[name.Key()] = true
		}
	}
	for _, fn := range m.Functions {
		visit(fn.Type.Return, 0)
		for _, p := range fn.Type.Params {
			visit(p, 0)
		}
	}
	return out
}
