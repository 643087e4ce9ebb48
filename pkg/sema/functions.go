package sema

import (
	"fmt"
	"sort"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// buildFunctions resolves the free functions that can be called through
// the C ABI. Redeclarations with the same signature are merged; overloads
// that map to the same Go name are numbered in declaration order.
func (b *builder) buildFunctions() {
	names := make(map[string]int)
	var seen []*Function
	for _, p := range b.funcs {
		d := p.def.(cabs.Function)
		name := ctypes.Qualify(p.scope, d.Name)
		if !d.ExternC && !b.opts.AssumeCLinkage {
			b.diags.Report(diag.LinkageSkipped, d.Pos, name.Key(),
				"function %s has C++ linkage; enable assume_c_linkage to bind it", name)
			continue
		}
		ft := b.resolveFunc(d.Type, p.scope, p.origin)
		if ft.VarArg {
			b.diags.Report(diag.UnsupportedDeclaration, d.Pos, name.Key(), "function %s is variadic", name)
			continue
		}
		if err := b.checkSignature(ft); err != nil {
			b.diags.Report(diag.IncompleteType, d.Pos, name.Key(), "function %s: %v", name, err)
			continue
		}
		if redeclared(seen, name, ft) {
			continue
		}
		fn := &Function{
			Name:    name,
			Origin:  p.origin,
			GoName:  name.CamelName(),
			Symbol:  d.Name,
			Type:    ft,
			ExternC: d.ExternC,
		}
		for _, param := range d.Type.Params {
			fn.Params = append(fn.Params, param.Name)
		}
		if n := names[fn.GoName]; n > 0 {
			names[fn.GoName] = n + 1
			fn.GoName = fmt.Sprintf("%s_%d", fn.GoName, n)
		} else {
			names[fn.GoName] = 1
		}
		seen = append(seen, fn)
		b.model.Functions = append(b.model.Functions, fn)
	}
}

func redeclared(fns []*Function, name ctypes.QName, ft ctypes.Tfunction) bool {
	for _, fn := range fns {
		if fn.Name.Equal(name) && ctypes.Equal(fn.Type, ft) {
			return true
		}
	}
	return false
}

// checkSignature rejects parameters and results that cannot be passed by
// value because they have no layout.
func (b *builder) checkSignature(ft ctypes.Tfunction) error {
	types := append([]ctypes.Type{ft.Return}, ft.Params...)
	for _, t := range types {
		t = b.underlying(t)
		switch tt := t.(type) {
		case ctypes.Tvoid:
			continue
		case ctypes.Topaque:
			return fmt.Errorf("%s is passed by value but is incomplete", tt.Name)
		case ctypes.Tnamed:
			if _, ok := b.enumDecls[tt.Name.Key()]; ok {
				continue
			}
			st := b.records[tt.Name.Key()]
			if st == nil || st.rec == nil {
				return fmt.Errorf("%s is passed by value but has no layout", tt.Name)
			}
		}
	}
	return nil
}

// buildMacroFuncs classifies the function-like macros of every unit and
// binds mutators to the record owning their field.
func (b *builder) buildMacroFuncs() {
	opts := b.parseOptions()
	var funcs []macro.Function
	var units []int
	for ui, u := range b.units {
		for _, m := range u.Macros {
			if m.Predefined || m.Kind != cpp.MacroFunction {
				continue
			}
			funcs = append(funcs, macro.Classify(m, opts))
			units = append(units, ui)
		}
	}
	macro.CheckCalls(funcs)

	emitted := make(map[string]bool)
	for i, f := range funcs {
		if emitted[f.Name] {
			continue
		}
		emitted[f.Name] = true
		mf := &MacroFunc{Function: f, Origin: Origin{Unit: units[i], Pos: f.Pos}}
		var reason string
		switch f.Kind {
		case macro.FuncPure:
			reason = b.bindPure(mf)
		case macro.FuncMutator:
			reason = b.bindMutator(mf)
		default:
			reason = f.Reason
		}
		if reason != "" {
			b.diags.Report(diag.UnsupportedMacroBody, f.Pos, f.Name, "macro %s: %s", f.Name, reason)
			continue
		}
		b.model.MacroFuncs = append(b.model.MacroFuncs, mf)
	}
	sort.SliceStable(b.model.MacroFuncs, func(i, j int) bool {
		return b.model.MacroFuncs[i].Origin.Before(b.model.MacroFuncs[j].Origin)
	})
}

// bindPure resolves the constants and cast types a pure body refers to.
func (b *builder) bindPure(mf *MacroFunc) string {
	mf.Consts = make(map[string]string)
	mf.Casts = make(map[string]macro.IntType)
	var reason string
	macro.Inspect(mf.Body, func(e macro.Expr) {
		if reason != "" {
			return
		}
		switch n := e.(type) {
		case macro.Ident:
			key, ok := b.constKey(n.Name)
			if !ok {
				reason = "refers to " + n.Name + ", which is not a supported constant"
				return
			}
			mf.Consts[n.Name] = key
		case macro.Cast:
			if n.TypeName == "" {
				return
			}
			if t, ok := b.castType(n.TypeName, nil, 0); ok {
				mf.Casts[n.TypeName] = t
				return
			}
			b.diags.Report(diag.CastDropped, mf.Function.Pos, mf.Name, "cast to unknown type %s dropped from %s", n.TypeName, mf.Name)
		}
	})
	return reason
}

func (b *builder) constKey(name string) (string, bool) {
	for _, key := range macro.Candidates(name, nil) {
		if res, ok := b.solution[key]; ok && res.Err == nil {
			return key, true
		}
	}
	return "", false
}

// bindMutator finds the record whose layout holds the updated field. When
// several do, the one declaring the field itself is chosen.
func (b *builder) bindMutator(mf *MacroFunc) string {
	var owners, declaring []*Record
	var fields []Field
	for _, rec := range b.model.Records {
		for _, f := range rec.Flat {
			if f.Name != mf.Field {
				continue
			}
			owners = append(owners, rec)
			if len(f.Via) == 0 {
				declaring = append(declaring, rec)
				fields = append(fields, f)
			}
		}
	}
	switch {
	case len(owners) == 0:
		return "no record has a field " + mf.Field
	case len(declaring) != 1:
		return fmt.Sprintf("field %s is declared by %d records", mf.Field, len(declaring))
	}
	f := fields[0]
	if _, ok := b.underlying(f.Type).(ctypes.Tint); !ok {
		return fmt.Sprintf("field %s of %s is not an integer", f.Name, declaring[0].Name)
	}
	mf.Owner, mf.FieldName, mf.FieldType = declaring[0].Name, f.Name, f.Type
	return ""
}
