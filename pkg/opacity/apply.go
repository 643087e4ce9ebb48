// Package opacity hides blocklisted types behind opaque placeholders and
// narrows a model to the declarations a configuration asks for.
package opacity

import (
	"sort"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

const maxDepth = 64

type hidden struct {
	name  ctypes.QName
	size  int64
	align int64
}

type rewriter struct {
	in      *sema.Model
	out     *sema.Model
	blocked map[string]*hidden
	diags   *diag.Bag
}

// Apply returns a copy of m in which every blocklisted type is opaque. The
// bodies of blocklisted records and enums are replaced by placeholders of
// the same size, references to them become opaque types, and flattened
// fields inherited through a blocklisted base collapse into one field.
// Names that m does not declare are ignored.
func Apply(m *sema.Model, blocklist []ctypes.QName) *sema.Model {
	r := &rewriter{in: m, out: m.Clone(), blocked: make(map[string]*hidden), diags: diag.NewBag()}
	for _, q := range blocklist {
		if _, ok := m.Type(q); !ok {
			continue
		}
		key := q.Key()
		if _, dup := r.blocked[key]; dup {
			continue
		}
		size, align := r.sizeAlign(ctypes.Tnamed{Name: q}, 0)
		r.blocked[key] = &hidden{name: q, size: size, align: align}
	}
	if len(r.blocked) == 0 {
		return r.out
	}

	r.hideDecls()
	r.rewriteTypedefs()
	r.rewriteInterfaces()
	r.rewriteRecords()
	r.rewriteFunctions()
	r.rewriteMacros()

	r.out.Diagnostics = append(r.out.Diagnostics, r.diags.Items()...)
	sort.SliceStable(r.out.Opaques, func(i, j int) bool {
		return r.out.Opaques[i].Origin.Before(r.out.Opaques[j].Origin)
	})
	r.out.Index()
	return r.out
}

func (r *rewriter) isBlocked(q ctypes.QName) bool {
	_, ok := r.blocked[q.Key()]
	return ok
}

// hideDecls replaces each blocklisted declaration with a placeholder.
func (r *rewriter) hideDecls() {
	out := r.out
	var opaques []*sema.Opaque
	place := func(name ctypes.QName, origin sema.Origin, what string) {
		h := r.blocked[name.Key()]
		opaques = append(opaques, &sema.Opaque{
			Name: name, Origin: origin, Size: h.size, Align: h.align, Reason: sema.OpaqueBlocklisted,
		})
		r.diags.Report(diag.BlocklistRewrite, origin.Pos, name.Key(),
			"%s %s is blocklisted and emitted as an opaque placeholder", what, name)
	}

	out.Records = keep(out.Records, func(rec *sema.Record) bool {
		if r.isBlocked(rec.Name) {
			place(rec.Name, rec.Origin, rec.Kind.String())
			return false
		}
		return true
	})
	out.Interfaces = keep(out.Interfaces, func(i *sema.Interface) bool {
		if r.isBlocked(i.Name) {
			place(i.Name, i.Origin, "interface")
			return false
		}
		return true
	})
	out.Enums = keep(out.Enums, func(e *sema.Enum) bool {
		if r.isBlocked(e.Name) {
			place(e.Name, e.Origin, "enum")
			return false
		}
		return true
	})
	out.Typedefs = keep(out.Typedefs, func(t *sema.Typedef) bool {
		if r.isBlocked(t.Name) {
			place(t.Name, t.Origin, "typedef")
			return false
		}
		return true
	})
	out.Opaques = keep(out.Opaques, func(o *sema.Opaque) bool {
		if r.isBlocked(o.Name) {
			place(o.Name, o.Origin, "type")
			return false
		}
		return true
	})
	out.Opaques = append(out.Opaques, opaques...)
}

func keep[T any](xs []T, pred func(T) bool) []T {
	var out []T
	for _, x := range xs {
		if pred(x) {
			out = append(out, x)
		}
	}
	return out
}

// opaque rewrites every reference to a blocklisted type inside t. It
// reports whether anything changed.
func (r *rewriter) opaque(t ctypes.Type) (ctypes.Type, bool) {
	changed := false
	out := ctypes.Map(t, func(n ctypes.Type) ctypes.Type {
		var name ctypes.QName
		switch tt := n.(type) {
		case ctypes.Tnamed:
			name = tt.Name
		case ctypes.Topaque:
			name = tt.Name
		default:
			return nil
		}
		h, ok := r.blocked[name.Key()]
		if !ok {
			return nil
		}
		changed = true
		return ctypes.Topaque{Name: h.name, Size: h.size, Align: h.align}
	})
	return out, changed
}

func (r *rewriter) report(subject ctypes.QName, origin sema.Origin, what string, t ctypes.Type) {
	r.diags.Report(diag.BlocklistRewrite, origin.Pos, subject.Key(),
		"%s now refers to opaque type %s", what, t)
}

func (r *rewriter) rewriteTypedefs() {
	for i, td := range r.out.Typedefs {
		t, changed := r.opaque(td.Type)
		if !changed {
			continue
		}
		nt := *td
		nt.Type = t
		r.out.Typedefs[i] = &nt
		r.report(td.Name, td.Origin, "typedef "+td.Name.String(), t)
	}
}

func (r *rewriter) rewriteInterfaces() {
	for i, iface := range r.out.Interfaces {
		ni := *iface
		ni.Bases = keep(iface.Bases, func(q ctypes.QName) bool { return !r.isBlocked(q) })
		changed := len(ni.Bases) != len(iface.Bases)
		var c bool
		if ni.Methods, c = r.methods(iface.Methods, iface.Name, iface.Origin); c {
			changed = true
		}
		if ni.Capabilities, c = r.methods(iface.Capabilities, iface.Name, iface.Origin); c {
			changed = true
		}
		if changed {
			r.out.Interfaces[i] = &ni
		}
	}
}

func (r *rewriter) methods(ms []sema.Method, owner ctypes.QName, origin sema.Origin) ([]sema.Method, bool) {
	out := make([]sema.Method, len(ms))
	rewritten := false
	for i, m := range ms {
		out[i] = m
		t, changed := r.opaque(m.Type)
		if !changed {
			continue
		}
		rewritten = true
		out[i].Type = t.(ctypes.Tfunction)
		r.report(owner, origin, "method "+owner.String()+"::"+m.Name, t)
	}
	return out, rewritten
}

func (r *rewriter) rewriteRecords() {
	for i, rec := range r.out.Records {
		nr := *rec
		changed := false
		nr.Interfaces = keep(rec.Interfaces, func(q ctypes.QName) bool { return !r.isBlocked(q) })
		nr.Implemented = keep(rec.Implemented, func(q ctypes.QName) bool { return !r.isBlocked(q) })
		if len(nr.Interfaces) != len(rec.Interfaces) || len(nr.Implemented) != len(rec.Implemented) {
			changed = true
		}
		nr.Fields = make([]sema.Field, len(rec.Fields))
		for j, f := range rec.Fields {
			nr.Fields[j] = f
			if t, c := r.opaque(f.Type); c {
				nr.Fields[j].Type = t
				changed = true
			}
		}
		flat, c := r.flatten(rec)
		if c {
			nr.Flat = flat
			changed = true
		}
		var mc bool
		if nr.Implements, mc = r.methods(rec.Implements, rec.Name, rec.Origin); mc {
			changed = true
		}
		if changed {
			r.out.Records[i] = &nr
		}
	}
}

// flatten rewrites the flattened layout of rec. Consecutive fields that
// came through the same blocklisted base become one opaque field at the
// base's offset.
func (r *rewriter) flatten(rec *sema.Record) ([]sema.Field, bool) {
	var out []sema.Field
	changed := false
	for i := 0; i < len(rec.Flat); i++ {
		f := rec.Flat[i]
		cut := r.blockedVia(f.Via)
		if cut < 0 {
			if t, c := r.opaque(f.Type); c {
				f.Type = t
				changed = true
				r.report(rec.Name, rec.Origin, "field "+rec.Name.String()+"."+f.Name, t)
			}
			out = append(out, f)
			continue
		}
		base := f.Via[cut]
		chain := f.Via[:cut+1]
		for i+1 < len(rec.Flat) && sameChain(rec.Flat[i+1].Via, chain) {
			i++
		}
		h := r.blocked[base.Key()]
		t := ctypes.Topaque{Name: h.name, Size: h.size, Align: h.align}
		out = append(out, sema.Field{
			Name:   base.GoName(),
			Source: base.Name,
			Type:   t,
			Via:    append([]ctypes.QName(nil), f.Via[:cut]...),
			Offset: f.Offset,
			Size:   h.size,
		})
		changed = true
		r.diags.Report(diag.BlocklistRewrite, rec.Origin.Pos, rec.Name.Key(),
			"fields of %s inherited through %s collapse into one opaque field", rec.Name, base)
	}
	if !changed {
		return rec.Flat, false
	}
	sema.UniqueNames(out)
	return out, true
}

// blockedVia is the index of the outermost blocklisted base in via, or -1.
func (r *rewriter) blockedVia(via []ctypes.QName) int {
	for i, q := range via {
		if r.isBlocked(q) {
			return i
		}
	}
	return -1
}

func sameChain(via, chain []ctypes.QName) bool {
	if len(via) < len(chain) {
		return false
	}
	for i := range chain {
		if !via[i].Equal(chain[i]) {
			return false
		}
	}
	return true
}

func (r *rewriter) rewriteFunctions() {
	for i, fn := range r.out.Functions {
		t, changed := r.opaque(fn.Type)
		if !changed {
			continue
		}
		nf := *fn
		nf.Type = t.(ctypes.Tfunction)
		r.out.Functions[i] = &nf
		r.report(fn.Name, fn.Origin, "function "+fn.Name.String(), t)
	}
}

// rewriteMacros drops mutators whose record is now opaque.
func (r *rewriter) rewriteMacros() {
	r.out.MacroFuncs = keep(r.out.MacroFuncs, func(mf *sema.MacroFunc) bool {
		if mf.Kind != macro.FuncMutator || !r.isBlocked(mf.Owner) {
			return true
		}
		r.diags.Report(diag.BlocklistRewrite, mf.Function.Pos, mf.Name,
			"macro %s updates a field of blocklisted %s and is not emitted", mf.Name, mf.Owner)
		return false
	})
}

// sizeAlign is the size and alignment of t in the input model; both are
// zero when t has no known layout.
func (r *rewriter) sizeAlign(t ctypes.Type, depth int) (int64, int64) {
	if depth > maxDepth {
		return 0, 0
	}
	switch tt := t.(type) {
	case ctypes.Tbool:
		return 1, 1
	case ctypes.Tint:
		n := tt.Size.Bytes()
		return n, n
	case ctypes.Tfloat:
		if tt.Size == ctypes.F32 {
			return 4, 4
		}
		return 8, 8
	case ctypes.Tpointer, ctypes.Treference, ctypes.Trvalue:
		p := r.in.Options.PointerBytes()
		return p, p
	case ctypes.Tarray:
		size, align := r.sizeAlign(tt.Elem, depth+1)
		if tt.Size < 0 {
			return 0, 0
		}
		return size * tt.Size, align
	case ctypes.Topaque:
		return tt.Size, tt.Align
	case ctypes.Tnamed:
		d, ok := r.in.Type(tt.Name)
		if !ok {
			return 0, 0
		}
		switch dd := d.(type) {
		case *sema.Record:
			return dd.Size, dd.Align
		case *sema.Enum:
			n := dd.Underlying.Size.Bytes()
			return n, n
		case *sema.Typedef:
			return r.sizeAlign(dd.Type, depth+1)
		case *sema.Opaque:
			return dd.Size, dd.Align
		}
	}
	return 0, 0
}
