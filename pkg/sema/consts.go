package sema

import (
	"errors"
	"fmt"
	"sort"

	"fortio.org/safecast"
	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

const maxTypedefDepth = 32

func (b *builder) addItem(item macro.Item, unit int) {
	key := item.Name.Key()
	if _, ok := b.itemUnit[key]; !ok {
		b.itemUnit[key] = unit
	}
	b.items = append(b.items, item)
}

// solveConstants evaluates object-like macros, enumerators and constant
// variables together, so each may refer to the others.
func (b *builder) solveConstants() {
	opts := b.parseOptions()
	for ui, u := range b.units {
		funcs := macro.FunctionTable(u.Macros, b.diags)
		for _, m := range u.Macros {
			if m.Predefined || m.Kind != cpp.MacroObject {
				continue
			}
			if item, ok := macro.ObjectItem(m, funcs, opts); ok {
				b.addItem(item, ui)
			}
		}
	}
	for _, p := range b.enums {
		b.enumItems(p)
	}
	for _, p := range b.vars {
		b.varItem(p)
	}
	b.solution = macro.Solve(b.items, castResolver{b})
	b.reportItems()
}

func (b *builder) enumItems(p pending) {
	e := p.def.(cabs.Enum)
	scope := p.scope
	if e.Scoped {
		scope = within(p.scope, e.Name)
	}
	typ := b.enumItemType(e, p.scope)
	one := macro.IntLit{Text: "1", Value: literal.Int32(1), Radix: literal.Decimal}
	opts := b.parseOptions()

	var prev string
	for _, ev := range e.Values {
		name := ctypes.Qualify(scope, ev.Name)
		item := macro.Item{Name: name, Kind: macro.ItemEnumerator, Scope: scope, Type: typ, Pos: ev.Pos}
		switch {
		case ev.Value != "":
			item.Expr, item.Err = macro.ParseString(ev.Value, opts)
		case prev == "":
			item.Expr = macro.IntLit{Text: "0", Value: literal.Int32(0), Radix: literal.Decimal}
		default:
			item.Expr = macro.Binary{Op: "+", X: macro.Ident{Name: "::" + prev}, Y: one}
		}
		prev = name.Key()
		b.addItem(item, p.origin.Unit)
	}
}

// enumItemType is the type enumerator values are converted to. A plain enum
// without a fixed type keeps the natural type of each value.
func (b *builder) enumItemType(e cabs.Enum, scope []string) *macro.IntType {
	if e.Underlying != nil {
		if t, ok := b.castTypeExpr(e.Underlying, scope, 0); ok {
			return &t
		}
		b.diags.Report(diag.UnsupportedDeclaration, e.Pos, e.Name,
			"enum %s has non-integer underlying type %s; using int", e.Name, cabs.TypeString(e.Underlying))
	}
	if e.Scoped || e.Underlying != nil {
		t := macro.Int32
		return &t
	}
	return nil
}

func (b *builder) varItem(p pending) {
	v := p.def.(cabs.Var)
	name := ctypes.Qualify(p.scope, v.Name)
	t, ok := b.castTypeExpr(v.Type, p.scope, 0)
	if !ok {
		b.diags.Report(diag.UnsupportedDeclaration, v.Pos, name.Key(),
			"constant %s has non-integer type %s", name, cabs.TypeString(v.Type))
		return
	}
	item := macro.Item{Name: name, Kind: macro.ItemVar, Scope: p.scope, Type: &t, Pos: v.Pos}
	item.Expr, item.Err = macro.ParseString(v.Init, b.parseOptions())
	b.addItem(item, p.origin.Unit)
}

func (b *builder) reportItems() {
	seen := make(map[string]bool, len(b.items))
	for _, it := range b.items {
		key := it.Name.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		res := b.solution[key]
		for _, c := range res.DroppedCasts {
			b.diags.Report(diag.CastDropped, it.Pos, key, "cast to unknown type %s dropped from %s", c, key)
		}
		if res.Err != nil {
			code := diag.UnsupportedDeclaration
			if it.Kind == macro.ItemMacro {
				code = diag.UnsupportedMacroBody
			}
			if errors.Is(res.Err, literal.ErrMalformed) {
				code = diag.MalformedLiteral
			}
			b.diags.Report(code, it.Pos, key, "%s %s: %v", it.Kind, key, res.Err)
			continue
		}
		if it.Kind == macro.ItemEnumerator {
			continue
		}
		b.model.Constants = append(b.model.Constants, &Constant{
			Name:   it.Name,
			Origin: Origin{Unit: b.itemUnit[key], Pos: it.Pos},
			Kind:   it.Kind,
			Value:  res.Value,
			Radix:  res.Radix,
		})
	}
	sort.SliceStable(b.model.Constants, func(i, j int) bool {
		return b.model.Constants[i].Origin.Before(b.model.Constants[j].Origin)
	})
}

type castResolver struct{ b *builder }

func (c castResolver) IntType(name string, scope []string) (macro.IntType, bool) {
	return c.b.castType(name, scope, 0)
}

// castType resolves a type name to an integer type through typedefs and
// enums. Names that are not integers, or not known, report false.
func (b *builder) castType(name string, scope []string, depth int) (macro.IntType, bool) {
	if depth > maxTypedefDepth {
		return macro.IntType{}, false
	}
	sym, ok := b.tab.lookup(name, scope)
	if !ok {
		if t, ok := primitiveType(name, b.opts); ok {
			if ti, ok := t.(ctypes.Tint); ok {
				return intType(ti), true
			}
		}
		return macro.IntType{}, false
	}
	if sym.conflict {
		return macro.IntType{}, false
	}
	switch d := sym.def.(type) {
	case cabs.Typedef:
		return b.castTypeExpr(d.Type, sym.scope, depth+1)
	case cabs.Enum:
		if d.Underlying != nil {
			return b.castTypeExpr(d.Underlying, sym.scope, depth+1)
		}
		return macro.Int32, true
	}
	return macro.IntType{}, false
}

func (b *builder) castTypeExpr(te cabs.TypeExpr, scope []string, depth int) (macro.IntType, bool) {
	bt, ok := te.(cabs.BaseType)
	if !ok {
		return macro.IntType{}, false
	}
	if bt.Name == "" {
		ti, ok := fundamental(bt.Words, b.opts.longBits()).(ctypes.Tint)
		if !ok {
			return macro.IntType{}, false
		}
		return intType(ti), true
	}
	return b.castType(bt.Name, scope, depth)
}

// solvedEnv evaluates expressions against the solved constants.
type solvedEnv struct {
	b     *builder
	scope []string
}

func (e solvedEnv) Value(name string) (literal.Value, literal.Radix, error) {
	for _, key := range macro.Candidates(name, e.scope) {
		if res, ok := e.b.solution[key]; ok {
			if res.Err != nil {
				return literal.Value{}, literal.Decimal, fmt.Errorf("%s is not a constant", name)
			}
			return res.Value, res.Radix, nil
		}
	}
	return literal.Value{}, literal.Decimal, fmt.Errorf("unknown constant %s", name)
}

func (e solvedEnv) CastType(name string) (macro.IntType, bool) {
	return e.b.castType(name, e.scope, 0)
}

// constExpr evaluates a constant expression written in scope.
func (b *builder) constExpr(text string, scope []string) (literal.Value, error) {
	expr, err := macro.ParseString(text, b.parseOptions())
	if err != nil {
		return literal.Value{}, err
	}
	ev, err := macro.Eval(expr, solvedEnv{b: b, scope: scope})
	if err != nil {
		return literal.Value{}, err
	}
	return ev.Value, nil
}

// arraySize evaluates an array extent; it is -1 when the extent is omitted
// or is not a non-negative constant.
func (b *builder) arraySize(text string, scope []string) int64 {
	if text == "" {
		return -1
	}
	v, err := b.constExpr(text, scope)
	if err != nil || v.Negative() {
		return -1
	}
	n, err := safecast.Conv[int64](v.Bits)
	if err != nil {
		return -1
	}
	return n
}
