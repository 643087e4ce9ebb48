package sema

import (
	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// resolveType resolves a written type from scope. Unknown names become
// orphan opaques first seen at at.
func (b *builder) resolveType(te cabs.TypeExpr, scope []string, at Origin) ctypes.Type {
	switch t := te.(type) {
	case cabs.BaseType:
		if t.Name == "" {
			return fundamental(t.Words, b.opts.longBits())
		}
		return b.resolveName(t, scope, at)
	case cabs.PointerType:
		return ctypes.Tpointer{Elem: b.resolveType(t.Elem, scope, at), Const: isConst(t.Elem)}
	case cabs.ReferenceType:
		elem := b.resolveType(t.Elem, scope, at)
		if t.Rvalue {
			return ctypes.Trvalue{Elem: elem}
		}
		return ctypes.Treference{Elem: elem, Const: isConst(t.Elem)}
	case cabs.ArrayType:
		arr := ctypes.Tarray{Elem: b.resolveType(t.Elem, scope, at), Size: b.arraySize(t.Size, scope)}
		if arr.Size < 0 && t.Size != "" {
			arr.SizeExpr = t.Size
		}
		return arr
	case cabs.FuncType:
		return b.resolveFunc(t, scope, at)
	}
	return ctypes.Tvoid{}
}

// isConst reports whether a written type is const-qualified at its top level.
func isConst(te cabs.TypeExpr) bool {
	switch t := te.(type) {
	case cabs.BaseType:
		return t.Const
	case cabs.PointerType:
		return t.Const
	case cabs.ArrayType:
		return isConst(t.Elem)
	}
	return false
}

func (b *builder) resolveName(t cabs.BaseType, scope []string, at Origin) ctypes.Type {
	if sym, ok := b.tab.lookup(t.Name, scope); ok {
		return ctypes.Tnamed{Name: sym.name}
	}
	if t.Tag == "" {
		if p, ok := primitiveType(t.Name, b.opts); ok {
			return p
		}
	}
	return b.orphan(t.Name, at)
}

// orphan models a type that is never declared as an unsized opaque. The
// placeholder is declared where the name is first used.
func (b *builder) orphan(name string, at Origin) ctypes.Type {
	q := ctypes.ParseQName(name)
	if !b.orphans[q.Key()] {
		b.orphans[q.Key()] = true
		b.model.Opaques = append(b.model.Opaques, &Opaque{Name: q, Origin: at, Reason: OpaqueOrphan})
		b.diags.Report(diag.UnresolvedType, at.Pos, q.Key(), "unresolved type %s is modeled as an opaque placeholder", q)
	}
	return ctypes.Topaque{Name: q}
}

// resolveFunc resolves a function type. Array and function parameters
// decay to pointers.
func (b *builder) resolveFunc(ft cabs.FuncType, scope []string, at Origin) ctypes.Tfunction {
	fn := ctypes.Tfunction{Return: b.resolveType(ft.Return, scope, at), VarArg: ft.Variadic}
	for _, p := range ft.Params {
		pt := b.resolveType(p.Type, scope, at)
		switch t := pt.(type) {
		case ctypes.Tarray:
			arr := p.Type.(cabs.ArrayType)
			pt = ctypes.Tpointer{Elem: t.Elem, Const: isConst(arr.Elem)}
		case ctypes.Tfunction:
			pt = ctypes.Tpointer{Elem: t}
		}
		fn.Params = append(fn.Params, pt)
	}
	return fn
}

// typedefTarget resolves the target of a typedef symbol once. A typedef
// that reaches itself resolves to an orphan.
func (b *builder) typedefTarget(sym *symbol) ctypes.Type {
	key := sym.name.Key()
	if t, ok := b.typedefs[key]; ok {
		return t
	}
	if b.resolving[key] {
		return b.orphan(key, sym.origin)
	}
	b.resolving[key] = true
	t := b.resolveType(sym.def.(cabs.Typedef).Type, sym.scope, sym.origin)
	delete(b.resolving, key)
	b.typedefs[key] = t
	return t
}

// underlying follows typedef names to the type they stand for.
func (b *builder) underlying(t ctypes.Type) ctypes.Type {
	for i := 0; i < maxTypedefDepth; i++ {
		n, ok := t.(ctypes.Tnamed)
		if !ok {
			return t
		}
		sym, ok := b.tab.syms[n.Name.Key()]
		if !ok || sym.kind != symTypedef || sym.conflict {
			return t
		}
		t = b.typedefTarget(sym)
	}
	return t
}

// buildTypes turns every type symbol into its model declaration, in
// declaration order.
func (b *builder) buildTypes() {
	b.buildEnums()
	for _, sym := range b.tab.order {
		switch {
		case sym.conflict:
			b.model.Opaques = append(b.model.Opaques, &Opaque{Name: sym.name, Origin: sym.origin, Reason: OpaqueConflict})
		case sym.forward:
			b.model.Opaques = append(b.model.Opaques, &Opaque{Name: sym.name, Origin: sym.origin, Reason: OpaqueForward})
		case sym.kind == symTypedef:
			b.model.Typedefs = append(b.model.Typedefs, &Typedef{Name: sym.name, Origin: sym.origin, Type: b.typedefTarget(sym)})
		case sym.kind == symRecord:
			b.buildRecord(sym)
		}
	}
}

func (b *builder) buildEnums() {
	emitted := make(map[string]bool)
	for _, p := range b.enums {
		e := p.def.(cabs.Enum)
		name := ctypes.Qualify(p.scope, e.Name)
		if e.Name != "" {
			sym := b.tab.syms[name.Key()]
			if sym.conflict || emitted[name.Key()] {
				continue
			}
			emitted[name.Key()] = true
			// the definition that owns the slot, when redefined identically
			p.origin = sym.origin
		}
		enum := &Enum{Name: name, Origin: p.origin, Scoped: e.Scoped}
		scope := p.scope
		if e.Scoped {
			scope = within(p.scope, e.Name)
		}
		for _, ev := range e.Values {
			key := ctypes.Qualify(scope, ev.Name).Key()
			res := b.solution[key]
			if res == nil || res.Err != nil || emitted[key] {
				continue
			}
			emitted[key] = true
			enum.Values = append(enum.Values, Enumerator{Name: ctypes.Qualify(scope, ev.Name), Value: res.Value, Radix: res.Radix})
		}
		enum.Underlying = b.enumUnderlying(e, p.scope, enum.Values)
		for i := range enum.Values {
			v := &enum.Values[i]
			v.Value = v.Value.Convert(literal.Width(enum.Underlying.Size.Bytes()*8), enum.Underlying.Sign == ctypes.Signed)
		}
		if e.Name == "" && len(enum.Values) == 0 {
			continue
		}
		b.model.Enums = append(b.model.Enums, enum)
		if e.Name != "" {
			b.enumDecls[name.Key()] = enum
		}
	}
}

// enumUnderlying is the written underlying type, or for a plain enum the
// narrowest of int, unsigned int, long long and unsigned long long that
// holds every value.
func (b *builder) enumUnderlying(e cabs.Enum, scope []string, values []Enumerator) ctypes.Tint {
	if e.Underlying != nil {
		if t, ok := b.castTypeExpr(e.Underlying, scope, 0); ok {
			ti := tintOf(t)
			ti.Spelling = cabs.TypeString(e.Underlying)
			return ti
		}
		return tintOf(macro.Int32)
	}
	if e.Scoped {
		return tintOf(macro.Int32)
	}
	for _, t := range []macro.IntType{macro.Int32, macro.Uint32, macro.Int64} {
		fits := true
		for _, v := range values {
			if !literal.Fits(v.Value.Big(), t.Width, t.Signed) {
				fits = false
				break
			}
		}
		if fits {
			return tintOf(t)
		}
	}
	return tintOf(macro.Uint64)
}
