// Package ctypes defines the C++ type references used by the binding generator.
package ctypes

import (
	"fmt"
	"strings"
)

// Type is a reference to a C++ type as written in a declaration. The
// implementations are plain values and compare with Equal.
type Type interface {
	implType()
	String() string
}

type Signedness int

const (
	Signed Signedness = iota
	Unsigned
)

func (s Signedness) String() string {
	if s == Signed {
		return "signed"
	}
	return "unsigned"
}

// IntSize is the width of an integer type.
type IntSize int

const (
	I8 IntSize = iota
	I16
	I32
	I64
)

func (s IntSize) String() string {
	names := []string{"i8", "i16", "i32", "i64"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// Bytes returns the storage size.
func (s IntSize) Bytes() int64 {
	return []int64{1, 2, 4, 8}[s]
}

type FloatSize int

const (
	F32 FloatSize = iota
	F64
)

func (s FloatSize) String() string {
	if s == F32 {
		return "f32"
	}
	return "f64"
}

type Tvoid struct{}

// Tint is an integer of known width. Spelling keeps the source name
// (e.g. "unsigned long") for dumps; it does not take part in equality.
type Tint struct {
	Size     IntSize
	Sign     Signedness
	Spelling string
}

type Tbool struct{}

// Tfloat is float or double. long double is read as double.
type Tfloat struct {
	Size FloatSize
}

type Tpointer struct {
	Elem  Type
	Const bool // pointee is const
}

// Treference is T& or const T&. It is bound as a pointer.
type Treference struct {
	Elem  Type
	Const bool
}

// Trvalue is T&&.
type Trvalue struct {
	Elem Type
}

type Tarray struct {
	Elem Type
	Size int64 // -1 when unknown
	// SizeExpr is the extent as written when it is not a plain literal.
	SizeExpr string
}

// Tfunction only appears behind a pointer.
type Tfunction struct {
	Params []Type
	Return Type
	VarArg bool
}

// Tnamed is a reference to a user-declared type by name.
type Tnamed struct {
	Name QName
	// Scope is the namespace/record path the reference was written in, for lookup.
	Scope []string
}

// Topaque stands in for a type whose internals must not be exposed: blocklisted
// declarations, conflicts and forward declarations that are never completed.
type Topaque struct {
	Name  QName
	Size  int64 // 0 when the layout is unknown
	Align int64
}

// Sized reports whether the opaque type can be embedded by value.
func (t Topaque) Sized() bool { return t.Size > 0 }

func (Tvoid) implType()      {}
func (Tint) implType()       {}
func (Tbool) implType()      {}
func (Tfloat) implType()     {}
func (Tpointer) implType()   {}
func (Treference) implType() {}
func (Trvalue) implType()    {}
func (Tarray) implType()     {}
func (Tfunction) implType()  {}
func (Tnamed) implType()     {}
func (Topaque) implType()    {}

func (Tvoid) String() string { return "void" }
func (Tbool) String() string { return "bool" }

func (t Tint) String() string {
	if t.Spelling != "" {
		return t.Spelling
	}
	return fmt.Sprintf("%s %s", t.Sign, t.Size)
}

func (t Tfloat) String() string {
	if t.Size == F32 {
		return "float"
	}
	return "double"
}

func constPrefix(c bool) string {
	if c {
		return "const "
	}
	return ""
}

func (t Tpointer) String() string {
	return constPrefix(t.Const) + elemString(t.Elem) + " *"
}

func (t Treference) String() string {
	return constPrefix(t.Const) + elemString(t.Elem) + " &"
}

func (t Trvalue) String() string {
	return elemString(t.Elem) + " &&"
}

func (t Tarray) String() string {
	switch {
	case t.SizeExpr != "":
		return fmt.Sprintf("%s[%s]", elemString(t.Elem), t.SizeExpr)
	case t.Size < 0:
		return elemString(t.Elem) + "[]"
	}
	return fmt.Sprintf("%s[%d]", elemString(t.Elem), t.Size)
}

func (t Tfunction) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = elemString(p)
	}
	if t.VarArg {
		params = append(params, "...")
	}
	return fmt.Sprintf("%s(%s)", elemString(t.Return), strings.Join(params, ", "))
}

func (t Tnamed) String() string { return t.Name.String() }

func (t Topaque) String() string { return "opaque " + t.Name.String() }

func elemString(t Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

// Equal compares types structurally. Integer spellings and array extent
// expressions are ignored.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch ta := a.(type) {
	case Tvoid:
		_, ok := b.(Tvoid)
		return ok
	case Tbool:
		_, ok := b.(Tbool)
		return ok
	case Tint:
		tb, ok := b.(Tint)
		return ok && ta.Size == tb.Size && ta.Sign == tb.Sign
	case Tfloat:
		tb, ok := b.(Tfloat)
		return ok && ta.Size == tb.Size
	case Tpointer:
		tb, ok := b.(Tpointer)
		return ok && ta.Const == tb.Const && Equal(ta.Elem, tb.Elem)
	case Treference:
		tb, ok := b.(Treference)
		return ok && ta.Const == tb.Const && Equal(ta.Elem, tb.Elem)
	case Trvalue:
		tb, ok := b.(Trvalue)
		return ok && Equal(ta.Elem, tb.Elem)
	case Tarray:
		tb, ok := b.(Tarray)
		return ok && ta.Size == tb.Size && Equal(ta.Elem, tb.Elem)
	case Tnamed:
		tb, ok := b.(Tnamed)
		return ok && ta.Name.Equal(tb.Name)
	case Topaque:
		tb, ok := b.(Topaque)
		return ok && ta.Name.Equal(tb.Name)
	case Tfunction:
		tb, ok := b.(Tfunction)
		if !ok || ta.VarArg != tb.VarArg || len(ta.Params) != len(tb.Params) {
			return false
		}
		if !Equal(ta.Return, tb.Return) {
			return false
		}
		for i, p := range ta.Params {
			if !Equal(p, tb.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Map rebuilds t bottom-up, replacing every node for which fn returns a non-nil type.
func Map(t Type, fn func(Type) Type) Type {
	if t == nil {
		return nil
	}
	switch tt := t.(type) {
	case Tpointer:
		tt.Elem = Map(tt.Elem, fn)
		t = tt
	case Treference:
		tt.Elem = Map(tt.Elem, fn)
		t = tt
	case Trvalue:
		tt.Elem = Map(tt.Elem, fn)
		t = tt
	case Tarray:
		tt.Elem = Map(tt.Elem, fn)
		t = tt
	case Tfunction:
		params := make([]Type, len(tt.Params))
		for i, p := range tt.Params {
			params[i] = Map(p, fn)
		}
		tt.Params = params
		tt.Return = Map(tt.Return, fn)
		t = tt
	}
	if r := fn(t); r != nil {
		return r
	}
	return t
}

// Walk calls fn for t and every type nested inside it. byValue is false once
// the walk has passed through a pointer, reference or function type.
func Walk(t Type, fn func(t Type, byValue bool)) {
	walk(t, true, fn)
}

func walk(t Type, byValue bool, fn func(Type, bool)) {
	if t == nil {
		return
	}
	fn(t, byValue)
	switch tt := t.(type) {
	case Tpointer:
		walk(tt.Elem, false, fn)
	case Treference:
		walk(tt.Elem, false, fn)
	case Trvalue:
		walk(tt.Elem, false, fn)
	case Tarray:
		walk(tt.Elem, byValue, fn)
	case Tfunction:
		for _, p := range tt.Params {
			walk(p, false, fn)
		}
		walk(tt.Return, false, fn)
	}
}
