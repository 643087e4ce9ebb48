package gogen

import (
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

// constants writes the unit's constants in source order, one block per
// namespace in order of first appearance.
func (e *emitter) constants() {
	var order []string
	groups := make(map[string][]*sema.Constant)
	for _, c := range e.m.Constants {
		if !e.mine(c.Origin) {
			continue
		}
		ns := strings.Join(c.Name.Path, "::")
		if _, ok := groups[ns]; !ok {
			order = append(order, ns)
		}
		groups[ns] = append(groups[ns], c)
	}
	for _, ns := range order {
		if ns != "" {
			e.printf("// namespace %s\n", ns)
		}
		e.printf("const (\n")
		for _, c := range groups[ns] {
			e.printf("\t%s %s = %s\n", typeName(c.Name), c.Value.GoType(), literal.Format(c.Value, c.Radix))
		}
		e.printf(")\n\n")
	}
}

func (e *emitter) typedefs() {
	for _, td := range e.m.Typedefs {
		if !e.mine(td.Origin) {
			continue
		}
		name := typeName(td.Name)
		switch t := td.Type.(type) {
		case ctypes.Tnamed, ctypes.Topaque:
			target := e.goType(t)
			if target == name {
				continue
			}
			if e.isLayoutType(t) {
				e.printf("type %s %s\n\n", name, target)
				continue
			}
			e.printf("type %s = %s\n\n", name, target)
		default:
			if _, ok := e.m.Underlying(t).(ctypes.Tfunction); ok {
				e.printf("type %s = %s\n\n", name, e.unsafePointer())
				continue
			}
			e.printf("type %s = %s\n\n", name, e.goType(t))
		}
	}
}

// isLayoutType reports a record or opaque placeholder.
func (e *emitter) isLayoutType(t ctypes.Type) bool {
	var q ctypes.QName
	switch tt := t.(type) {
	case ctypes.Tnamed:
		q = tt.Name
	case ctypes.Topaque:
		return true
	default:
		return false
	}
	d, ok := e.m.Type(q)
	if !ok {
		return false
	}
	switch d.(type) {
	case *sema.Record, *sema.Opaque:
		return true
	}
	return false
}

// enums writes a Go type per named enum. Plain enumerators are untyped
// constants; scoped enumerators are typed and carry the enum's prefix.
func (e *emitter) enums() {
	for _, en := range e.m.Enums {
		if !e.mine(en.Origin) {
			continue
		}
		named := en.Name.Name != ""
		if named {
			kind := "enum"
			if en.Scoped {
				kind = "enum class"
			}
			e.printf("// %s is %s %s.\n", typeName(en.Name), kind, en.Name)
			e.printf("type %s %s\n\n", typeName(en.Name), intGoType(en.Underlying))
		}
		if len(en.Values) == 0 {
			continue
		}
		e.printf("const (\n")
		for _, v := range en.Values {
			lit := literal.Format(v.Value, v.Radix)
			if en.Scoped && named {
				e.printf("\t%s %s = %s\n", typeName(v.Name), typeName(en.Name), lit)
			} else {
				e.printf("\t%s = %s\n", typeName(v.Name), lit)
			}
		}
		e.printf(")\n\n")
	}
}

// interfaces writes each capability set as a Go interface.
func (e *emitter) interfaces() {
	for _, iface := range e.m.Interfaces {
		if !e.mine(iface.Origin) {
			continue
		}
		name := typeName(iface.Name)
		e.printf("// %s is the capability set of %s.\n", name, iface.Name)
		e.printf("type %s interface {\n", name)
		methods := make([]string, len(iface.Capabilities))
		for i, m := range iface.Capabilities {
			methods[i] = exportName(m.Name)
		}
		methods = uniqueNames(methods)
		for i, m := range iface.Capabilities {
			e.printf("\t%s%s\n", methods[i], e.signature(m.Type, m.Params))
		}
		e.printf("}\n\n")
	}
}

// signature writes "(params) result" for a method or wrapper.
func (e *emitter) signature(ft ctypes.Tfunction, names []string) string {
	params := paramNames(names, len(ft.Params))
	parts := make([]string, len(ft.Params))
	for i, p := range ft.Params {
		parts[i] = params[i] + " " + e.goType(p)
	}
	s := "(" + strings.Join(parts, ", ") + ")"
	if !isVoid(ft.Return) {
		s += " " + e.goType(ft.Return)
	}
	return s
}

// paramNames names n parameters: written names where present, p<i>
// otherwise, never colliding with each other or the wrapper's locals.
func paramNames(names []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		switch name {
		case "", "_":
			name = "p" + strconv.Itoa(i)
		case "result", "err", "lib", "old":
			name += "_"
		}
		out[i] = ident(name)
	}
	return uniqueNames(out)
}

// opaques writes a placeholder per opaque type: storage of the hidden size
// and alignment, or a zero-size struct when the layout is unknown.
func (e *emitter) opaques() {
	for _, o := range e.m.Opaques {
		if !e.mine(o.Origin) {
			continue
		}
		name := typeName(o.Name)
		e.printf("// %s is an opaque placeholder for %s (%s).\n", name, o.Name, o.Reason)
		e.printf("type %s struct{ %s }\n\n", name, storage(o.Size, o.Align))
		if e.byValue[o.Name.Key()] && o.Size > 0 {
			elem, n := storageUnit(o.Size, o.Align)
			e.printf("var FFIType%s = ffi.NewType(%s)\n\n", name, strings.TrimSuffix(strings.Repeat("&ffi.Type"+exportName(elem)+", ", mustInt(n)), ", "))
			e.imports[importFFI] = true
		}
	}
}

// storageUnit is the unsigned integer type matching align and how many of
// them fill size.
func storageUnit(size, align int64) (string, int64) {
	switch {
	case align >= 8 && size%8 == 0:
		return "uint64", size / 8
	case align >= 4 && size%4 == 0:
		return "uint32", size / 4
	case align >= 2 && size%2 == 0:
		return "uint16", size / 2
	}
	return "uint8", size
}

func storage(size, align int64) string {
	if size <= 0 {
		return "_ [0]byte"
	}
	elem, n := storageUnit(size, align)
	return "_ [" + strconv.FormatInt(n, 10) + "]" + elem
}

func mustInt(n int64) int {
	v, err := safecast.Conv[int](n)
	if err != nil {
		return 0
	}
	return v
}

// fieldNames returns the exported Go names of a record's flattened fields.
func (e *emitter) fieldNames(r *sema.Record) []string {
	key := r.Name.Key()
	if names, ok := e.fields[key]; ok {
		return names
	}
	names := make([]string, len(r.Flat))
	for i, f := range r.Flat {
		names[i] = exportName(f.Name)
	}
	names = uniqueNames(names)
	e.fields[key] = names
	return names
}

// records writes the unit's records, dependencies first.
func (e *emitter) records() {
	for _, r := range e.recordOrder() {
		switch r.Kind {
		case cabs.KindUnion:
			e.union(r)
		default:
			e.record(r)
		}
		if e.byValue[r.Name.Key()] {
			e.ffiRecordType(r)
		}
	}
}

func (e *emitter) recordHeader(r *sema.Record) {
	name := typeName(r.Name)
	e.printf("// %s is %s %s.\n", name, r.Kind, r.Name)
	e.printf("// size %d, align %d\n", r.Size, r.Align)
	if len(r.Implemented) > 0 {
		var ifs []string
		for _, q := range r.Implemented {
			ifs = append(ifs, q.String())
		}
		e.printf("// %s implements %s.\n", name, strings.Join(ifs, ", "))
	}
}

// record writes a struct whose Go layout matches the C layout. Padding
// the Go compiler would not insert is written as blank byte arrays.
func (e *emitter) record(r *sema.Record) {
	e.recordHeader(r)
	e.printf("type %s struct {\n", typeName(r.Name))
	names := e.fieldNames(r)
	var off, align int64 = 0, 1
	for i, f := range r.Flat {
		fa := e.alignOf(f.Type)
		natural := alignUp(off, fa)
		if f.Offset > natural {
			e.printf("\t_ [%d]byte\n", f.Offset-off)
		}
		comment := ""
		if len(f.Via) > 0 {
			var via []string
			for _, q := range f.Via {
				via = append(via, q.String())
			}
			comment = " // from " + strings.Join(via, ", ")
		}
		e.printf("\t%s %s%s\n", names[i], e.goType(f.Type), comment)
		off = f.Offset + f.Size
		align = max(align, fa)
	}
	if r.Size > alignUp(off, align) {
		e.printf("\t_ [%d]byte\n", r.Size-off)
	}
	e.printf("}\n\n")
}

// union writes storage of the union's size with one accessor per member.
func (e *emitter) union(r *sema.Record) {
	e.recordHeader(r)
	name := typeName(r.Name)
	e.printf("type %s struct{ %s }\n\n", name, storage(r.Size, r.Align))
	names := e.fieldNames(r)
	for i, f := range r.Flat {
		t := e.goType(f.Type)
		e.printf("// %s returns the %s member.\n", names[i], f.Name)
		e.printf("func (u *%s) %s() *%s { return (*%s)(%s(u)) }\n\n", name, names[i], t, t, e.unsafePointer())
	}
}

func (e *emitter) ffiRecordType(r *sema.Record) {
	name := typeName(r.Name)
	e.imports[importFFI] = true
	if r.Kind == cabs.KindUnion || len(r.Flat) == 0 {
		elem, n := storageUnit(r.Size, r.Align)
		e.printf("var FFIType%s = ffi.NewType(%s)\n\n", name, strings.TrimSuffix(strings.Repeat("&ffi.Type"+exportName(elem)+", ", mustInt(n)), ", "))
		return
	}
	e.printf("var FFIType%s = ffi.NewType(\n", name)
	for _, f := range r.Flat {
		for _, elem := range e.ffiElems(f.Type) {
			e.printf("\t%s,\n", elem)
		}
	}
	e.printf(")\n\n")
}

// ffiElems lists the libffi elements describing a field. libffi has no
// array type, so an array repeats its element.
func (e *emitter) ffiElems(t ctypes.Type) []string {
	arr, ok := e.m.Underlying(t).(ctypes.Tarray)
	if !ok {
		return []string{e.ffiType(t)}
	}
	elem := e.ffiElems(arr.Elem)
	var out []string
	for range mustInt(arr.Size) {
		out = append(out, elem...)
	}
	return out
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// alignOf is the Go alignment of the type goType emits for t.
func (e *emitter) alignOf(t ctypes.Type) int64 {
	switch tt := t.(type) {
	case ctypes.Tbool:
		return 1
	case ctypes.Tint:
		return tt.Size.Bytes()
	case ctypes.Tfloat:
		if tt.Size == ctypes.F32 {
			return 4
		}
		return 8
	case ctypes.Tpointer, ctypes.Treference, ctypes.Trvalue, ctypes.Tfunction:
		return e.m.Options.PointerBytes()
	case ctypes.Tarray:
		return e.alignOf(tt.Elem)
	case ctypes.Topaque:
		_, a := storageAlign(tt.Size, tt.Align)
		return a
	case ctypes.Tnamed:
		d, ok := e.m.Type(tt.Name)
		if !ok {
			return 1
		}
		switch dd := d.(type) {
		case *sema.Record:
			if dd.Kind == cabs.KindUnion {
				_, a := storageAlign(dd.Size, dd.Align)
				return a
			}
			var a int64 = 1
			for _, f := range dd.Flat {
				a = max(a, e.alignOf(f.Type))
			}
			return a
		case *sema.Enum:
			return dd.Underlying.Size.Bytes()
		case *sema.Typedef:
			return e.alignOf(dd.Type)
		case *sema.Opaque:
			_, a := storageAlign(dd.Size, dd.Align)
			return a
		}
	}
	return 1
}

func storageAlign(size, align int64) (string, int64) {
	if size <= 0 {
		return "byte", 1
	}
	elem, _ := storageUnit(size, align)
	return elem, map[string]int64{"uint64": 8, "uint32": 4, "uint16": 2, "uint8": 1}[elem]
}

// recordOrder sorts the unit's records so every record follows the records
// it contains by value. Ties go to the namespace seen first, then to source
// order.
func (e *emitter) recordOrder() []*sema.Record {
	var recs []*sema.Record
	index := make(map[string]int)
	nsRank := make(map[string]int)
	for _, r := range e.m.Records {
		if !e.mine(r.Origin) {
			continue
		}
		index[r.Name.Key()] = len(recs)
		recs = append(recs, r)
		ns := strings.Join(r.Name.Path, "::")
		if _, ok := nsRank[ns]; !ok {
			nsRank[ns] = len(nsRank)
		}
	}
	indeg := make([]int, len(recs))
	edges := make([][]int, len(recs))
	for i, r := range recs {
		for _, dep := range r.Deps {
			if j, ok := index[dep.Key()]; ok && j != i {
				edges[j] = append(edges[j], i)
				indeg[i]++
			}
		}
	}
	less := func(a, b int) bool {
		ra, rb := nsRank[strings.Join(recs[a].Name.Path, "::")], nsRank[strings.Join(recs[b].Name.Path, "::")]
		if ra != rb {
			return ra < rb
		}
		return recs[a].Origin.Before(recs[b].Origin)
	}

	done := make([]bool, len(recs))
	out := make([]*sema.Record, 0, len(recs))
	for len(out) < len(recs) {
		next := -1
		for i := range recs {
			if done[i] || indeg[i] > 0 {
				continue
			}
			if next < 0 || less(i, next) {
				next = i
			}
		}
		if next < 0 {
			// A cycle cannot be laid out; emit the rest in source order.
			for i := range recs {
				if !done[i] {
					out = append(out, recs[i])
				}
			}
			break
		}
		done[next] = true
		out = append(out, recs[next])
		for _, j := range edges[next] {
			indeg[j]--
		}
	}
	return out
}
