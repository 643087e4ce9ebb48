package sema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

type layoutState int

const (
	stateVisiting layoutState = iota + 1
	stateDone
	stateFailed
)

type recordState struct {
	state layoutState
	rec   *Record
}

// excludeError keeps a record out of the model; code is the diagnostic
// reported for it.
type excludeError struct {
	code diag.Code
	msg  string
}

func (e *excludeError) Error() string { return e.msg }

func unsupportedf(format string, args ...any) error {
	return &excludeError{code: diag.UnsupportedDeclaration, msg: fmt.Sprintf(format, args...)}
}

func incompletef(format string, args ...any) error {
	return &excludeError{code: diag.IncompleteType, msg: fmt.Sprintf(format, args...)}
}

// depError reports that a type contained by value could not be laid out.
type depError struct {
	dep ctypes.QName
}

func (e *depError) Error() string { return e.dep.String() + " cannot be laid out" }

var errCycle = errors.New("layout cycle")

func (b *builder) buildRecord(sym *symbol) {
	if b.isInterface(sym, 0) {
		b.completeInterface(sym)
		return
	}
	_, _ = b.complete(sym)
}

// complete lays out a record and everything it contains by value. A record
// that cannot be laid out is replaced by an unsized opaque.
func (b *builder) complete(sym *symbol) (*Record, error) {
	key := sym.name.Key()
	if st, ok := b.records[key]; ok {
		switch st.state {
		case stateDone:
			return st.rec, nil
		case stateVisiting:
			b.markCycle(key)
			return nil, errCycle
		default:
			return nil, &depError{dep: sym.name}
		}
	}
	st := &recordState{state: stateVisiting}
	b.records[key] = st
	b.stack = append(b.stack, key)
	rec, err := b.layoutRecord(sym)
	b.stack = b.stack[:len(b.stack)-1]
	if err != nil {
		st.state = stateFailed
		b.exclude(sym, err)
		return nil, err
	}
	st.state, st.rec = stateDone, rec
	b.model.Records = append(b.model.Records, rec)
	return rec, nil
}

// markCycle records the path of the cycle closed by reaching key again.
func (b *builder) markCycle(key string) {
	start := len(b.stack) - 1
	for start > 0 && b.stack[start] != key {
		start--
	}
	members := b.stack[start:]
	path := strings.Join(append(append([]string(nil), members...), key), " -> ")
	for _, m := range members {
		if b.cycles[m] == "" {
			b.cycles[m] = path
		}
	}
}

// depFailed is the error of a record whose by-value dependency failed.
func (b *builder) depFailed(self, dep ctypes.QName) error {
	if path := b.cycles[self.Key()]; path != "" {
		return &excludeError{code: diag.LayoutCycle, msg: fmt.Sprintf("%s is part of a layout cycle: %s", self, path)}
	}
	return incompletef("%s contains %s by value, which cannot be laid out", self, dep)
}

func (b *builder) exclude(sym *symbol, err error) {
	code := diag.IncompleteType
	var ee *excludeError
	if errors.As(err, &ee) {
		code = ee.code
	}
	b.diags.Report(code, sym.origin.Pos, sym.name.Key(), "%v", err)
	b.model.Opaques = append(b.model.Opaques, &Opaque{Name: sym.name, Origin: sym.origin, Reason: OpaqueUnsupported})
}

// baseSymbol finds the record a base-specifier names, through typedefs.
func (b *builder) baseSymbol(name string, scope []string) (*symbol, bool) {
	for i := 0; i < maxTypedefDepth; i++ {
		sym, ok := b.tab.lookup(name, scope)
		if !ok || sym.conflict {
			return nil, false
		}
		if sym.kind == symRecord {
			return sym, true
		}
		td, ok := sym.def.(cabs.Typedef)
		if !ok {
			return nil, false
		}
		bt, ok := td.Type.(cabs.BaseType)
		if !ok || bt.Name == "" {
			return nil, false
		}
		name, scope = bt.Name, sym.scope
	}
	return nil, false
}

// isInterface reports whether a record is a pure capability set: an
// __interface, or a class without fields whose methods are all pure virtual
// and whose bases are interfaces too.
func (b *builder) isInterface(sym *symbol, depth int) bool {
	if sym.kind != symRecord || sym.forward || sym.conflict || depth > maxTypedefDepth {
		return false
	}
	def := sym.def.(cabs.Record)
	if def.Unsupported != "" || def.Kind == cabs.KindUnion {
		return false
	}
	if def.Kind == cabs.KindInterface {
		return true
	}
	if len(def.Fields) > 0 || len(def.Methods) == 0 {
		return false
	}
	for _, m := range def.Methods {
		if !m.Pure {
			return false
		}
	}
	for _, base := range def.Bases {
		bsym, ok := b.baseSymbol(base.Name, sym.scope)
		if !ok || !b.isInterface(bsym, depth+1) {
			return false
		}
	}
	return true
}

func (b *builder) completeInterface(sym *symbol) *Interface {
	key := sym.name.Key()
	if iface, ok := b.interfaces[key]; ok {
		return iface
	}
	def := sym.def.(cabs.Record)
	iface := &Interface{Name: sym.name, Origin: sym.origin}
	b.interfaces[key] = iface
	for _, base := range def.Bases {
		bsym, ok := b.baseSymbol(base.Name, sym.scope)
		if !ok {
			continue
		}
		bi := b.completeInterface(bsym)
		iface.Bases = append(iface.Bases, bsym.name)
		iface.Capabilities = mergeMethods(iface.Capabilities, bi.Capabilities)
	}
	for _, m := range def.Methods {
		if !m.Static {
			iface.Methods = append(iface.Methods, b.method(m, sym))
		}
	}
	iface.Capabilities = mergeMethods(iface.Capabilities, iface.Methods)
	b.model.Interfaces = append(b.model.Interfaces, iface)
	return iface
}

func (b *builder) method(m cabs.Method, owner *symbol) Method {
	out := Method{Name: m.Name, Type: b.resolveFunc(m.Type, owner.inner(), owner.origin), Const: m.Type.Const}
	for _, p := range m.Type.Params {
		out.Params = append(out.Params, p.Name)
	}
	return out
}

func sameMethod(x, y Method) bool {
	return x.Name == y.Name && x.Const == y.Const && ctypes.Equal(x.Type, y.Type)
}

func hasMethod(ms []Method, m Method) bool {
	for _, x := range ms {
		if sameMethod(x, m) {
			return true
		}
	}
	return false
}

// mergeMethods appends the methods of add that dst does not have yet.
func mergeMethods(dst, add []Method) []Method {
	for _, m := range add {
		if !hasMethod(dst, m) {
			dst = append(dst, m)
		}
	}
	return dst
}

// Signature renders a method for diagnostics.
func (m Method) Signature() string {
	params := make([]string, len(m.Type.Params))
	for i, p := range m.Type.Params {
		params[i] = p.String()
	}
	s := fmt.Sprintf("%s %s(%s)", m.Type.Return, m.Name, strings.Join(params, ", "))
	if m.Const {
		s += " const"
	}
	return s
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// layoutRecord flattens a record's data bases and fields and computes its
// layout. Data bases are laid out as whole subobjects, in order, before the
// record's own fields; a base without fields takes no space.
func (b *builder) layoutRecord(sym *symbol) (*Record, error) {
	def := sym.def.(cabs.Record)
	name := sym.name
	if def.Unsupported != "" {
		return nil, unsupportedf("record %s is not modeled: %s", name, def.Unsupported)
	}
	rec := &Record{Name: name, Origin: sym.origin, Kind: def.Kind}
	var off, align int64 = 0, 1
	deps := make(map[string]bool)
	addDep := func(q ctypes.QName) {
		if !deps[q.Key()] {
			deps[q.Key()] = true
			rec.Deps = append(rec.Deps, q)
		}
	}

	for _, bs := range def.Bases {
		bsym, ok := b.baseSymbol(bs.Name, sym.scope)
		if !ok || bsym.forward {
			return nil, incompletef("base %s of %s is not a complete type", bs.Name, name)
		}
		if b.isInterface(bsym, 0) {
			rec.Interfaces = append(rec.Interfaces, bsym.name)
			continue
		}
		base, err := b.complete(bsym)
		if err != nil {
			return nil, b.depFailed(name, bsym.name)
		}
		rec.DataBases = append(rec.DataBases, bsym.name)
		addDep(bsym.name)
		if len(base.Flat) == 0 {
			continue
		}
		start := alignUp(off, base.Align)
		for _, f := range base.Flat {
			f.Via = append([]ctypes.QName{bsym.name}, f.Via...)
			f.Offset += start
			rec.Flat = append(rec.Flat, f)
		}
		off = start + base.Size
		align = max(align, base.Align)
	}

	for _, f := range def.Fields {
		t := b.resolveType(f.Type, sym.inner(), sym.origin)
		if def.Kind == cabs.KindUnion {
			if n, ok := b.nonTrivial(t); ok {
				return nil, unsupportedf("union %s has member %s of non-trivial type %s", name, f.Name, n)
			}
		}
		var fieldDeps []ctypes.QName
		size, a, err := b.sizeAlign(t, &fieldDeps)
		if err != nil {
			var de *depError
			switch {
			case errors.Is(err, errCycle):
				return nil, b.depFailed(name, name)
			case errors.As(err, &de):
				return nil, b.depFailed(name, de.dep)
			}
			return nil, incompletef("field %s of %s: %v", f.Name, name, err)
		}
		for _, d := range fieldDeps {
			addDep(d)
		}
		field := Field{Name: f.Name, Source: f.Name, Type: t, Size: size}
		if def.Kind == cabs.KindUnion {
			off = max(off, size)
		} else {
			field.Offset = alignUp(off, a)
			off = field.Offset + size
		}
		align = max(align, a)
		rec.Fields = append(rec.Fields, field)
		rec.Flat = append(rec.Flat, field)
	}
	UniqueNames(rec.Flat)

	rec.Align = align
	rec.Size = alignUp(off, align)
	if rec.Size == 0 {
		rec.Size = 1
	}
	b.capabilities(rec, def, sym)
	return rec, nil
}

// UniqueNames suffixes colliding flattened field names with _1, _2, ...
// in layout order.
func UniqueNames(fields []Field) {
	used := make(map[string]bool, len(fields))
	for i := range fields {
		name := fields[i].Name
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", fields[i].Name, n)
		}
		used[name] = true
		fields[i].Name = name
	}
}

// nonTrivial reports a record type held by value that declares a
// constructor, a destructor or virtual methods.
func (b *builder) nonTrivial(t ctypes.Type) (ctypes.QName, bool) {
	for {
		arr, ok := t.(ctypes.Tarray)
		if !ok {
			break
		}
		t = arr.Elem
	}
	n, ok := b.underlying(t).(ctypes.Tnamed)
	if !ok {
		return ctypes.QName{}, false
	}
	sym, ok := b.tab.syms[n.Name.Key()]
	if !ok || sym.kind != symRecord || sym.forward || sym.conflict {
		return ctypes.QName{}, false
	}
	def := sym.def.(cabs.Record)
	if def.NonTrivial || def.VirtualDtor {
		return n.Name, true
	}
	for _, m := range def.Methods {
		if m.Virtual {
			return n.Name, true
		}
	}
	return ctypes.QName{}, false
}

// sizeAlign computes the size and alignment of t held by value, laying out
// the records it contains. deps receives those records.
func (b *builder) sizeAlign(t ctypes.Type, deps *[]ctypes.QName) (int64, int64, error) {
	switch tt := t.(type) {
	case ctypes.Tint:
		n := tt.Size.Bytes()
		return n, n, nil
	case ctypes.Tbool:
		return 1, 1, nil
	case ctypes.Tfloat:
		if tt.Size == ctypes.F32 {
			return 4, 4, nil
		}
		return 8, 8, nil
	case ctypes.Tpointer, ctypes.Treference, ctypes.Trvalue:
		p := b.opts.PointerBytes()
		return p, p, nil
	case ctypes.Tarray:
		if tt.Size < 0 {
			return 0, 0, fmt.Errorf("array extent of %s is not a constant", tt)
		}
		size, align, err := b.sizeAlign(tt.Elem, deps)
		return size * tt.Size, align, err
	case ctypes.Topaque:
		if tt.Sized() {
			return tt.Size, tt.Align, nil
		}
		return 0, 0, fmt.Errorf("%s is incomplete", tt.Name)
	case ctypes.Tnamed:
		return b.namedSizeAlign(tt.Name, deps)
	}
	return 0, 0, fmt.Errorf("%s cannot be held by value", t)
}

func (b *builder) namedSizeAlign(name ctypes.QName, deps *[]ctypes.QName) (int64, int64, error) {
	sym, ok := b.tab.syms[name.Key()]
	switch {
	case !ok:
		return 0, 0, fmt.Errorf("%s is not declared", name)
	case sym.conflict:
		return 0, 0, fmt.Errorf("%s has conflicting definitions", name)
	case sym.forward:
		return 0, 0, fmt.Errorf("%s is declared but never defined", name)
	}
	switch sym.kind {
	case symTypedef:
		return b.sizeAlign(b.typedefTarget(sym), deps)
	case symEnum:
		e, ok := b.enumDecls[name.Key()]
		if !ok {
			return 4, 4, nil
		}
		n := e.Underlying.Size.Bytes()
		return n, n, nil
	}
	if b.isInterface(sym, 0) {
		return 0, 0, fmt.Errorf("interface %s cannot be held by value", name)
	}
	rec, err := b.complete(sym)
	if err != nil {
		if errors.Is(err, errCycle) {
			return 0, 0, err
		}
		return 0, 0, &depError{dep: name}
	}
	*deps = append(*deps, name)
	return rec.Size, rec.Align, nil
}

// capabilities collects the interface methods a record must provide and the
// methods that provide them, and warns about capabilities left without an
// implementation.
func (b *builder) capabilities(rec *Record, def cabs.Record, sym *symbol) {
	for _, q := range rec.DataBases {
		if st := b.records[q.Key()]; st != nil && st.rec != nil {
			rec.Capabilities = mergeMethods(rec.Capabilities, st.rec.Capabilities)
			rec.Implements = mergeMethods(rec.Implements, st.rec.Implements)
		}
	}
	for _, q := range rec.Interfaces {
		iface := b.completeInterface(b.tab.syms[q.Key()])
		rec.Capabilities = mergeMethods(rec.Capabilities, iface.Capabilities)
		rec.Implemented = b.interfaceClosure(q, rec.Implemented)
	}
	for _, q := range rec.DataBases {
		if st := b.records[q.Key()]; st != nil && st.rec != nil {
			for _, i := range st.rec.Implemented {
				rec.Implemented = b.interfaceClosure(i, rec.Implemented)
			}
		}
	}
	for _, m := range def.Methods {
		if m.Static || m.Pure {
			continue
		}
		own := b.method(m, sym)
		if m.Virtual || hasMethod(rec.Capabilities, own) {
			rec.Implements = mergeMethods(rec.Implements, []Method{own})
		}
	}
	for _, c := range rec.Capabilities {
		if !hasMethod(rec.Implements, c) {
			b.diags.Report(diag.IncompleteInterface, sym.origin.Pos, rec.Name.Key(),
				"%s does not implement %s", rec.Name, c.Signature())
		}
	}
}

// interfaceClosure appends q and the interfaces it derives from to out,
// skipping names already present.
func (b *builder) interfaceClosure(q ctypes.QName, out []ctypes.QName) []ctypes.QName {
	for _, have := range out {
		if have.Key() == q.Key() {
			return out
		}
	}
	out = append(out, q)
	if iface := b.interfaces[q.Key()]; iface != nil {
		for _, base := range iface.Bases {
			out = b.interfaceClosure(base, out)
		}
	}
	return out
}
