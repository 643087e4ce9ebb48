// Package cabs defines the untyped syntax model of C/C++ declarations: what
// the parser saw, before any name is resolved.
package cabs

import (
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

// Node is the base interface for all syntax nodes
type Node interface {
	implCabsNode()
}

// TypeExpr is the interface for type expressions as written
type TypeExpr interface {
	Node
	implTypeExpr()
}

// Definition is the interface for declarations
type Definition interface {
	Node
	implDefinition()
	DefName() string
	DefPos() diag.Pos
}

// BaseType is a fundamental type (Words holds its keywords in source order,
// e.g. "unsigned", "long") or a possibly qualified type name.
type BaseType struct {
	Words    []string
	Name     string // "ns::T"; a leading "::" marks a global name
	Tag      string // struct, class, union or enum when written elaborated
	Const    bool
	Volatile bool
}

// PointerType is T*. Const qualifies the pointer itself (T* const).
type PointerType struct {
	Elem  TypeExpr
	Const bool
}

// ReferenceType is T& or T&&.
type ReferenceType struct {
	Elem   TypeExpr
	Rvalue bool
}

// ArrayType is T[Size]. Size is the extent expression as written; empty
// when omitted.
type ArrayType struct {
	Elem TypeExpr
	Size string
}

// FuncType is a function type: a prototype, or the pointee of a function pointer.
type FuncType struct {
	Return   TypeExpr
	Params   []Param
	Variadic bool
	Const    bool // const member function
}

// Param is a function parameter. Name is empty for unnamed parameters.
type Param struct {
	Name string
	Type TypeExpr
}

// RecordKind distinguishes struct, class, union and __interface.
type RecordKind int

const (
	KindStruct RecordKind = iota
	KindClass
	KindUnion
	KindInterface
)

func (k RecordKind) String() string {
	return [...]string{"struct", "class", "union", "__interface"}[k]
}

// Access is a member access specifier.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	return [...]string{"public", "protected", "private"}[a]
}

// Base is one entry of a record's base list.
type Base struct {
	Name    string
	Access  Access
	Virtual bool
}

// Field is a non-static data member.
type Field struct {
	Name   string
	Type   TypeExpr
	Access Access
	Pos    diag.Pos
}

// Method is a member function declaration.
type Method struct {
	Name    string
	Type    FuncType
	Virtual bool
	Pure    bool // = 0
	Static  bool
	Access  Access
	Pos     diag.Pos
}

// Record is a struct, class, union or __interface.
type Record struct {
	Kind    RecordKind
	Name    string
	Bases   []Base
	Fields  []Field
	Methods []Method
	// Nested holds member typedefs, records, enums and static constants.
	Nested []Definition
	// Forward is set for "struct X;".
	Forward bool
	// VirtualDtor is set when a virtual destructor is declared.
	VirtualDtor bool
	// NonTrivial is set when a constructor or destructor is declared.
	NonTrivial bool
	// Unsupported, when set, names the construct that keeps the record from
	// being modeled (bitfields, for example).
	Unsupported string
	Pos         diag.Pos
}

// Enumerator is one enum member. Value is the initializer as written.
type Enumerator struct {
	Name  string
	Value string
	Pos   diag.Pos
}

// Enum is a plain or scoped enumeration.
type Enum struct {
	Name       string
	Scoped     bool
	Underlying TypeExpr // nil when not written
	Values     []Enumerator
	Forward    bool
	Pos        diag.Pos
}

// Typedef is "typedef T Name;" or "using Name = T;".
type Typedef struct {
	Name  string
	Type  TypeExpr
	Using bool
	Pos   diag.Pos
}

// Function is a free function prototype.
type Function struct {
	Name    string
	Type    FuncType
	ExternC bool
	Pos     diag.Pos
}

// Var is a namespace-scope or static member constant with an initializer.
type Var struct {
	Name      string
	Type      TypeExpr
	Init      string
	Constexpr bool
	Pos       diag.Pos
}

// Namespace is a namespace block. Path has several segments for "namespace A::B {".
type Namespace struct {
	Path []string
	Defs []Definition
	Pos  diag.Pos
}

// Program is one parsed unit.
type Program struct {
	File        string
	Definitions []Definition
}

// Marker methods for interface implementation
func (BaseType) implCabsNode() {}
func (BaseType) implTypeExpr() {}

func (PointerType) implCabsNode() {}
func (PointerType) implTypeExpr() {}

func (ReferenceType) implCabsNode() {}
func (ReferenceType) implTypeExpr() {}

func (ArrayType) implCabsNode() {}
func (ArrayType) implTypeExpr() {}

func (FuncType) implCabsNode() {}
func (FuncType) implTypeExpr() {}

func (Record) implCabsNode()   {}
func (Record) implDefinition() {}

func (Enum) implCabsNode()   {}
func (Enum) implDefinition() {}

func (Typedef) implCabsNode()   {}
func (Typedef) implDefinition() {}

func (Function) implCabsNode()   {}
func (Function) implDefinition() {}

func (Var) implCabsNode()   {}
func (Var) implDefinition() {}

func (Namespace) implCabsNode()   {}
func (Namespace) implDefinition() {}

func (d Record) DefName() string    { return d.Name }
func (d Enum) DefName() string      { return d.Name }
func (d Typedef) DefName() string   { return d.Name }
func (d Function) DefName() string  { return d.Name }
func (d Var) DefName() string       { return d.Name }
func (d Namespace) DefName() string { return joinPath(d.Path) }

func (d Record) DefPos() diag.Pos    { return d.Pos }
func (d Enum) DefPos() diag.Pos      { return d.Pos }
func (d Typedef) DefPos() diag.Pos   { return d.Pos }
func (d Function) DefPos() diag.Pos  { return d.Pos }
func (d Var) DefPos() diag.Pos       { return d.Pos }
func (d Namespace) DefPos() diag.Pos { return d.Pos }

func joinPath(path []string) string {
	return strings.Join(path, "::")
}
