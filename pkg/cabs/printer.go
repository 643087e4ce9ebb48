// Package cabs provides syntax model printing functionality
package cabs

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs the syntax model as normalized C++ declarations
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new syntax model printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintProgram prints a complete unit
func (p *Printer) PrintProgram(prog *Program) {
	for _, def := range prog.Definitions {
		p.printDefinition(def)
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

func (p *Printer) line(format string, args ...any) {
	p.writeIndent()
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

func (p *Printer) printDefinition(def Definition) {
	switch d := def.(type) {
	case Namespace:
		p.printNamespace(d)
	case Record:
		p.printRecord(d)
	case Enum:
		p.printEnum(d)
	case Typedef:
		if d.Using {
			p.line("using %s = %s;", d.Name, TypeString(d.Type))
		} else {
			p.line("typedef %s;", Declare(d.Type, d.Name))
		}
	case Function:
		prefix := ""
		if d.ExternC {
			prefix = `extern "C" `
		}
		p.line("%s%s;", prefix, Declare(d.Type, d.Name))
	case Var:
		prefix := ""
		if d.Constexpr {
			prefix = "constexpr "
		}
		p.line("%s%s = %s;", prefix, Declare(d.Type, d.Name), d.Init)
	default:
		p.line("/* unknown definition %T */", def)
	}
}

func (p *Printer) printNamespace(ns Namespace) {
	p.line("namespace %s {", strings.Join(ns.Path, "::"))
	p.indent++
	for _, def := range ns.Defs {
		p.printDefinition(def)
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printRecord(r Record) {
	if r.Forward {
		p.line("%s %s;", r.Kind, r.Name)
		return
	}
	head := fmt.Sprintf("%s %s", r.Kind, r.Name)
	if len(r.Bases) > 0 {
		bases := make([]string, len(r.Bases))
		for i, b := range r.Bases {
			bases[i] = b.Access.String() + " " + b.Name
			if b.Virtual {
				bases[i] = "virtual " + bases[i]
			}
		}
		head += " : " + strings.Join(bases, ", ")
	}
	if r.Unsupported != "" {
		p.line("%s { /* unsupported: %s */ };", head, r.Unsupported)
		return
	}
	p.line("%s {", head)
	p.indent++
	for _, def := range r.Nested {
		p.printDefinition(def)
	}
	for _, f := range r.Fields {
		p.line("%s;", Declare(f.Type, f.Name))
	}
	if r.VirtualDtor {
		p.line("virtual ~%s();", r.Name)
	}
	for _, m := range r.Methods {
		prefix, suffix := "", ""
		if m.Static {
			prefix = "static "
		}
		if m.Virtual {
			prefix = "virtual "
		}
		if m.Pure {
			suffix = " = 0"
		}
		p.line("%s%s%s;", prefix, Declare(m.Type, m.Name), suffix)
	}
	p.indent--
	p.line("};")
}

func (p *Printer) printEnum(e Enum) {
	head := "enum"
	if e.Scoped {
		head += " class"
	}
	if e.Name != "" {
		head += " " + e.Name
	}
	if e.Underlying != nil {
		head += " : " + TypeString(e.Underlying)
	}
	if e.Forward {
		p.line("%s;", head)
		return
	}
	p.line("%s {", head)
	p.indent++
	for _, v := range e.Values {
		if v.Value != "" {
			p.line("%s = %s,", v.Name, v.Value)
		} else {
			p.line("%s,", v.Name)
		}
	}
	p.indent--
	p.line("};")
}

// TypeString renders a type with no declarator name.
func TypeString(t TypeExpr) string {
	return strings.TrimSpace(Declare(t, ""))
}

// Declare renders t declaring name, in C declarator syntax.
func Declare(t TypeExpr, name string) string {
	switch tt := t.(type) {
	case BaseType:
		var parts []string
		if tt.Const {
			parts = append(parts, "const")
		}
		if tt.Volatile {
			parts = append(parts, "volatile")
		}
		if tt.Tag != "" {
			parts = append(parts, tt.Tag)
		}
		if tt.Name != "" {
			parts = append(parts, tt.Name)
		} else {
			parts = append(parts, tt.Words...)
		}
		if name != "" {
			parts = append(parts, name)
		}
		return strings.Join(parts, " ")
	case PointerType:
		inner := "*"
		if tt.Const {
			inner += "const "
		}
		return Declare(tt.Elem, wrapDeclarator(tt.Elem, inner+name))
	case ReferenceType:
		inner := "&"
		if tt.Rvalue {
			inner = "&&"
		}
		return Declare(tt.Elem, wrapDeclarator(tt.Elem, inner+name))
	case ArrayType:
		return Declare(tt.Elem, name+"["+tt.Size+"]")
	case FuncType:
		params := make([]string, 0, len(tt.Params)+1)
		for _, prm := range tt.Params {
			params = append(params, Declare(prm.Type, prm.Name))
		}
		if tt.Variadic {
			params = append(params, "...")
		}
		suffix := ""
		if tt.Const {
			suffix = " const"
		}
		return Declare(tt.Return, name+"("+strings.Join(params, ", ")+")"+suffix)
	}
	return fmt.Sprintf("/* %T */ %s", t, name)
}

// wrapDeclarator parenthesizes a pointer or reference declarator whose
// element is an array or function, as in int (*p)[4].
func wrapDeclarator(elem TypeExpr, decl string) string {
	switch elem.(type) {
	case ArrayType, FuncType:
		return "(" + decl + ")"
	}
	return decl
}
