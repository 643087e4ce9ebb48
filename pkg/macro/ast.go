package macro

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// Expr is a node of a macro or initializer expression.
type Expr interface {
	implExpr()
	String() string
}

// IntLit is an integer or character literal.
type IntLit struct {
	Text  string
	Value literal.Value
	Radix literal.Radix
}

// Ident is a reference to a named constant, possibly qualified (A::B).
type Ident struct {
	Name string
}

// Param is a reference to a function-like macro parameter.
type Param struct {
	Name  string
	Index int
}

// Unary is -x, +x or ~x.
type Unary struct {
	Op string
	X  Expr
}

// Binary is an arithmetic or bitwise operation.
type Binary struct {
	Op   string
	X, Y Expr
}

// Cast is (type)x. Exactly one of Builtin and TypeName is set.
type Cast struct {
	Builtin  *IntType
	TypeName string // a typedef or other named type, resolved at evaluation
	X        Expr
}

// Call is an invocation of a function-like macro.
type Call struct {
	Name string
	Args []Expr
}

// IncDec is ++x, --x, x++ or x--.
type IncDec struct {
	Op   string // "++" or "--"
	Post bool
	X    Expr
}

// Member is x->f or x.f.
type Member struct {
	X     Expr
	Field string
	Arrow bool
}

// Deref is *x.
type Deref struct {
	X Expr
}

func (IntLit) implExpr() {}
func (Ident) implExpr()  {}
func (Param) implExpr()  {}
func (Unary) implExpr()  {}
func (Binary) implExpr() {}
func (Cast) implExpr()   {}
func (Call) implExpr()   {}
func (IncDec) implExpr() {}
func (Member) implExpr() {}
func (Deref) implExpr()  {}

func (e IntLit) String() string { return e.Text }
func (e Ident) String() string  { return e.Name }
func (e Param) String() string  { return e.Name }
func (e Unary) String() string  { return e.Op + e.X.String() }
func (e Binary) String() string { return fmt.Sprintf("(%s %s %s)", e.X, e.Op, e.Y) }
func (e Deref) String() string  { return "*" + e.X.String() }

func (e Cast) String() string {
	name := e.TypeName
	if e.Builtin != nil {
		name = e.Builtin.GoType()
	}
	return fmt.Sprintf("(%s)%s", name, e.X)
}

func (e Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

func (e IncDec) String() string {
	if e.Post {
		return e.X.String() + e.Op
	}
	return e.Op + e.X.String()
}

func (e Member) String() string {
	if e.Arrow {
		return e.X.String() + "->" + e.Field
	}
	return e.X.String() + "." + e.Field
}

// Idents returns the names of the constants e refers to, in order of first use.
func Idents(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	Inspect(e, func(n Expr) {
		if id, ok := n.(Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	})
	return out
}

// Inspect calls fn for e and every node below it, parents first.
func Inspect(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case Unary:
		Inspect(n.X, fn)
	case Binary:
		Inspect(n.X, fn)
		Inspect(n.Y, fn)
	case Cast:
		Inspect(n.X, fn)
	case Call:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case IncDec:
		Inspect(n.X, fn)
	case Member:
		Inspect(n.X, fn)
	case Deref:
		Inspect(n.X, fn)
	}
}
