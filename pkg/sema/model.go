// Package sema builds the frozen semantic model from parsed units: it resolves
// names and types, evaluates constants, flattens class hierarchies into
// concrete layouts and classifies function-like macros.
package sema

import (
	"sort"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// Unit is one parsed input.
type Unit struct {
	Name    string
	Program *cabs.Program
	// Macros are the unit's live macros in definition order.
	Macros []*cpp.Macro
}

// Options configures the target ABI and linkage policy.
type Options struct {
	// LongBits is the width of long; 32 (LLP64) when zero.
	LongBits int
	// PointerBits is the width of pointers; 64 when zero.
	PointerBits int
	// AssumeCLinkage binds functions declared without extern "C".
	AssumeCLinkage bool
}

func (o Options) longBits() int {
	if o.LongBits == 0 {
		return 32
	}
	return o.LongBits
}

// PointerBytes is the pointer width in bytes.
func (o Options) PointerBytes() int64 {
	if o.PointerBits == 0 {
		return 8
	}
	return int64(o.PointerBits / 8)
}

// Origin places a declaration in the output: its unit, its position in the
// unit's declaration order, and its source position.
type Origin struct {
	Unit  int
	Index int
	Pos   diag.Pos
}

// Decl is a named type declaration of the model.
type Decl interface {
	DeclName() ctypes.QName
	DeclOrigin() Origin
}

// Field is a stored field. In a flattened layout, Via lists the data bases
// it was inherited through, outermost first.
type Field struct {
	Name   string // unique within the layout
	Source string // name as declared
	Type   ctypes.Type
	Via    []ctypes.QName
	Offset int64
	Size   int64
}

// Method is a member function signature.
type Method struct {
	Name   string
	Type   ctypes.Tfunction
	Params []string
	Const  bool
}

// Record is a struct, class or union with a concrete layout.
type Record struct {
	Name ctypes.QName
	Origin
	Kind       cabs.RecordKind
	DataBases  []ctypes.QName
	Interfaces []ctypes.QName
	// Implemented lists every interface the record implements: its own
	// interface bases, their ancestors and those of its data bases.
	Implemented []ctypes.QName
	Fields      []Field // own fields
	Flat        []Field // flattened layout
	// Capabilities are the method signatures of every interface the record
	// implements, directly or through its bases.
	Capabilities []Method
	// Implements are the declared methods that implement capabilities or
	// are virtual.
	Implements []Method
	Size       int64
	Align      int64
	// Deps are the records this one contains by value, through a data base
	// or a field.
	Deps []ctypes.QName
}

// Interface is a pure-abstract class: a capability set without storage.
type Interface struct {
	Name ctypes.QName
	Origin
	Bases        []ctypes.QName
	Methods      []Method // declared here
	Capabilities []Method // declared here or inherited
}

// Enumerator is one enum value, registered under Name.
type Enumerator struct {
	Name  ctypes.QName
	Value literal.Value
	Radix literal.Radix
}

// Enum is a plain or scoped enumeration. A plain enum with no name only
// contributes its enumerators.
type Enum struct {
	Name ctypes.QName
	Origin
	Scoped     bool
	Underlying ctypes.Tint
	Values     []Enumerator
}

// Typedef is a type alias.
type Typedef struct {
	Name ctypes.QName
	Origin
	Type ctypes.Type
}

// OpaqueReason says why a type is only known by name.
type OpaqueReason int

const (
	OpaqueOrphan OpaqueReason = iota
	OpaqueForward
	OpaqueConflict
	OpaqueUnsupported
	OpaqueBlocklisted
)

func (r OpaqueReason) String() string {
	return [...]string{"orphan", "forward", "conflict", "unsupported", "blocklisted"}[r]
}

// Opaque is a placeholder for a type whose structure is not emitted. Size is
// zero when the layout is unknown.
type Opaque struct {
	Name ctypes.QName
	Origin
	Size   int64
	Align  int64
	Reason OpaqueReason
}

// Function is a foreign function.
type Function struct {
	Name ctypes.QName
	Origin
	// GoName is the wrapper name, unique across the model.
	GoName string
	// Symbol is the linker name.
	Symbol  string
	Type    ctypes.Tfunction
	Params  []string
	ExternC bool
}

// Constant is a resolved object-like macro or namespace constant.
type Constant struct {
	Name ctypes.QName
	Origin
	Kind  macro.ItemKind
	Value literal.Value
	Radix literal.Radix
}

// MacroFunc is an emittable function-like macro.
type MacroFunc struct {
	macro.Function
	Origin
	// Owner and FieldName identify the field a mutator updates.
	Owner     ctypes.QName
	FieldName string
	FieldType ctypes.Type
	// Consts maps the constants a pure body references to their keys.
	Consts map[string]string
	// Casts maps the named types a pure body casts to.
	Casts map[string]macro.IntType
}

func (r *Record) DeclName() ctypes.QName    { return r.Name }
func (i *Interface) DeclName() ctypes.QName { return i.Name }
func (e *Enum) DeclName() ctypes.QName      { return e.Name }
func (t *Typedef) DeclName() ctypes.QName   { return t.Name }
func (o *Opaque) DeclName() ctypes.QName    { return o.Name }

func (r *Record) DeclOrigin() Origin    { return r.Origin }
func (i *Interface) DeclOrigin() Origin { return i.Origin }
func (e *Enum) DeclOrigin() Origin      { return e.Origin }
func (t *Typedef) DeclOrigin() Origin   { return t.Origin }
func (o *Opaque) DeclOrigin() Origin    { return o.Origin }

// Model is the frozen semantic model. It is not modified after Build
// returns; passes that change it return a new Model.
type Model struct {
	Options    Options
	Units      []string
	Records    []*Record
	Interfaces []*Interface
	Enums      []*Enum
	Typedefs   []*Typedef
	Opaques    []*Opaque
	Functions  []*Function
	Constants  []*Constant
	MacroFuncs []*MacroFunc

	Diagnostics []diag.Diagnostic

	types  map[string]Decl
	consts map[string]*Constant
}

// Index rebuilds the lookup tables after the declaration lists change. Build
// and the passes that derive models call it before returning.
func (m *Model) Index() {
	m.types = make(map[string]Decl)
	for _, r := range m.Records {
		m.types[r.Name.Key()] = r
	}
	for _, i := range m.Interfaces {
		m.types[i.Name.Key()] = i
	}
	for _, e := range m.Enums {
		if e.Name.Name != "" {
			m.types[e.Name.Key()] = e
		}
	}
	for _, t := range m.Typedefs {
		m.types[t.Name.Key()] = t
	}
	for _, o := range m.Opaques {
		m.types[o.Name.Key()] = o
	}
	m.consts = make(map[string]*Constant)
	for _, c := range m.Constants {
		m.consts[c.Name.Key()] = c
	}
}

// Type returns the declaration of a named type.
func (m *Model) Type(name ctypes.QName) (Decl, bool) {
	d, ok := m.types[name.Key()]
	return d, ok
}

// Record returns the record named name.
func (m *Model) Record(name ctypes.QName) (*Record, bool) {
	r, ok := m.types[name.Key()].(*Record)
	return r, ok
}

// Constant returns the constant with the given key.
func (m *Model) Constant(key string) (*Constant, bool) {
	c, ok := m.consts[key]
	return c, ok
}

// Underlying follows typedefs from t to a non-typedef type.
func (m *Model) Underlying(t ctypes.Type) ctypes.Type {
	for i := 0; i < 64; i++ {
		n, ok := t.(ctypes.Tnamed)
		if !ok {
			return t
		}
		td, ok := m.types[n.Name.Key()].(*Typedef)
		if !ok {
			return t
		}
		t = td.Type
	}
	return t
}

// Before orders origins by unit, then declaration order, then position.
func (o Origin) Before(p Origin) bool {
	if o.Unit != p.Unit {
		return o.Unit < p.Unit
	}
	if o.Index != p.Index {
		return o.Index < p.Index
	}
	if o.Pos.Line != p.Pos.Line {
		return o.Pos.Line < p.Pos.Line
	}
	return o.Pos.Col < p.Pos.Col
}

// Sort puts every type declaration list in origin order.
func (m *Model) Sort() {
	sort.SliceStable(m.Records, func(i, j int) bool { return m.Records[i].Origin.Before(m.Records[j].Origin) })
	sort.SliceStable(m.Interfaces, func(i, j int) bool { return m.Interfaces[i].Origin.Before(m.Interfaces[j].Origin) })
	sort.SliceStable(m.Enums, func(i, j int) bool { return m.Enums[i].Origin.Before(m.Enums[j].Origin) })
	sort.SliceStable(m.Typedefs, func(i, j int) bool { return m.Typedefs[i].Origin.Before(m.Typedefs[j].Origin) })
	sort.SliceStable(m.Opaques, func(i, j int) bool { return m.Opaques[i].Origin.Before(m.Opaques[j].Origin) })
}

// Clone returns a copy of m whose declaration lists can be changed
// independently. Declarations themselves are shared.
func (m *Model) Clone() *Model {
	c := &Model{
		Options:     m.Options,
		Units:       m.Units,
		Records:     append([]*Record(nil), m.Records...),
		Interfaces:  append([]*Interface(nil), m.Interfaces...),
		Enums:       append([]*Enum(nil), m.Enums...),
		Typedefs:    append([]*Typedef(nil), m.Typedefs...),
		Opaques:     append([]*Opaque(nil), m.Opaques...),
		Functions:   append([]*Function(nil), m.Functions...),
		Constants:   append([]*Constant(nil), m.Constants...),
		MacroFuncs:  append([]*MacroFunc(nil), m.MacroFuncs...),
		Diagnostics: append([]diag.Diagnostic(nil), m.Diagnostics...),
	}
	c.Index()
	return c
}
