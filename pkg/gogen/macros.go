package gogen

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

const constraintName = "bindgenInteger"

// macroFuncs writes pure macros as generic functions over the integer types
// and mutators as functions updating a field through a pointer. The
// constraint is declared once, in the first unit that needs it.
func (e *emitter) macroFuncs() {
	if e.ownsConstraint() {
		e.printf("// %s is the type set of the generic macro functions.\n", constraintName)
		e.printf("type %s interface {\n", constraintName)
		e.printf("\t~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr\n")
		e.printf("}\n\n")
	}
	for _, mf := range e.m.MacroFuncs {
		if !e.mine(mf.Origin) {
			continue
		}
		switch mf.Kind {
		case macro.FuncPure:
			e.pureMacro(mf)
		case macro.FuncMutator:
			e.mutatorMacro(mf)
		}
	}
}

func (e *emitter) ownsConstraint() bool {
	first := -1
	for _, mf := range e.m.MacroFuncs {
		if mf.Kind == macro.FuncPure && (first < 0 || mf.Origin.Unit < first) {
			first = mf.Origin.Unit
		}
	}
	return first == e.unit
}

// macroBody translates a pure macro body into a Go expression of type T.
// Literals become T conversions; constants and literals too large for
// every integer type are first copied into locals.
type macroBody struct {
	mf     *sema.MacroFunc
	params map[string]bool
	locals []string
	named  map[string]string
}

func (b *macroBody) local(init string) string {
	if name, ok := b.named[init]; ok {
		return name
	}
	var name string
	for n := len(b.locals); ; n++ {
		name = fmt.Sprintf("v%d", n)
		if !b.params[name] {
			break
		}
	}
	b.named[init] = name
	b.locals = append(b.locals, fmt.Sprintf("%s := %s", name, init))
	return name
}

func (b *macroBody) expr(x macro.Expr) string {
	switch n := x.(type) {
	case macro.IntLit:
		lit := literal.Format(n.Value, n.Radix)
		if !n.Value.Negative() && n.Value.Bits <= 127 {
			return "T(" + lit + ")"
		}
		return "T(" + b.local(n.Value.GoType()+"("+lit+")") + ")"
	case macro.Ident:
		key, ok := b.mf.Consts[n.Name]
		if !ok {
			key = n.Name
		}
		return "T(" + b.local(constName(key)) + ")"
	case macro.Param:
		return ident(n.Name)
	case macro.Unary:
		switch n.Op {
		case "-":
			return "(-" + b.expr(n.X) + ")"
		case "~":
			return "(^" + b.expr(n.X) + ")"
		}
		return b.expr(n.X)
	case macro.Binary:
		return "(" + b.expr(n.X) + " " + n.Op + " " + b.expr(n.Y) + ")"
	case macro.Cast:
		t := n.Builtin
		if t == nil {
			if ct, ok := b.mf.Casts[n.TypeName]; ok {
				t = &ct
			}
		}
		if t == nil {
			return b.expr(n.X)
		}
		return "T(" + t.GoType() + "(" + b.expr(n.X) + "))"
	case macro.Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = b.expr(a)
		}
		return ident(n.Name) + "[T](" + strings.Join(args, ", ") + ")"
	}
	return "T(0)"
}

func (e *emitter) pureMacro(mf *sema.MacroFunc) {
	b := &macroBody{mf: mf, params: make(map[string]bool), named: make(map[string]string)}
	params := make([]string, len(mf.Params))
	for i, p := range mf.Params {
		params[i] = ident(p) + " T"
		b.params[ident(p)] = true
	}
	body := b.expr(mf.Body)

	e.printf("// %s is the function-like macro %s.\n", ident(mf.Name), mf.Name)
	e.printf("func %s[T %s](%s) T {\n", ident(mf.Name), constraintName, strings.Join(params, ", "))
	for _, l := range b.locals {
		e.printf("\t%s\n", l)
	}
	e.printf("\treturn %s\n}\n\n", body)
}

func (e *emitter) mutatorMacro(mf *sema.MacroFunc) {
	rec, ok := e.m.Record(mf.Owner)
	if !ok {
		return
	}
	names := e.fieldNames(rec)
	field := ""
	for i, f := range rec.Flat {
		if f.Name == mf.FieldName {
			field = names[i]
			break
		}
	}
	if field == "" {
		return
	}
	param := ident(mf.Param)
	target := param + "." + field
	if rec.Kind == cabs.KindUnion {
		target = "(*" + param + "." + field + "())"
	}
	local := "before"
	if param == local {
		local = "prev"
	}
	ft := e.goType(mf.FieldType)

	e.printf("// %s applies %s to the %s field of %s.\n", ident(mf.Name), mf.Op, mf.FieldName, mf.Owner)
	e.printf("func %s(%s *%s) %s {\n", ident(mf.Name), param, typeName(mf.Owner), ft)
	if mf.Post {
		e.printf("\t%s := %s\n", local, target)
		e.printf("\t%s%s\n", target, mf.Op)
		e.printf("\treturn %s\n}\n\n", local)
		return
	}
	e.printf("\t%s%s\n", target, mf.Op)
	e.printf("\treturn %s\n}\n\n", target)
}
