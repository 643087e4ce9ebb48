package sema

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// Dump writes a listing of the model: one declaration per line, members
// indented below it.
func (m *Model) Dump(w io.Writer) {
	for _, c := range m.Constants {
		fmt.Fprintf(w, "const %s %s = %s\n", c.Name, c.Value.GoType(), literal.Format(c.Value, c.Radix))
	}
	for _, t := range m.Typedefs {
		fmt.Fprintf(w, "typedef %s = %s\n", t.Name, t.Type)
	}
	for _, e := range m.Enums {
		kw, name := "enum", e.Name.String()
		if e.Scoped {
			kw = "enum class"
		}
		if e.Name.Name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(w, "%s %s : %s\n", kw, name, e.Underlying)
		for _, v := range e.Values {
			fmt.Fprintf(w, "  %s = %s\n", v.Name, literal.Format(v.Value, v.Radix))
		}
	}
	for _, i := range m.Interfaces {
		fmt.Fprintf(w, "interface %s%s\n", i.Name, names(" : ", i.Bases))
		for _, c := range i.Capabilities {
			fmt.Fprintf(w, "  %s\n", c.Signature())
		}
	}
	for _, r := range m.Records {
		fmt.Fprintf(w, "%s %s size %d align %d%s%s\n", r.Kind, r.Name, r.Size, r.Align,
			names(" bases ", r.DataBases), names(" implements ", r.Implemented))
		for _, f := range r.Flat {
			fmt.Fprintf(w, "  %s %s @%d%s\n", f.Name, f.Type, f.Offset, names(" via ", f.Via))
		}
	}
	for _, o := range m.Opaques {
		fmt.Fprintf(w, "opaque %s %s", o.Name, o.Reason)
		if o.Size > 0 {
			fmt.Fprintf(w, " size %d align %d", o.Size, o.Align)
		}
		fmt.Fprintln(w)
	}
	for _, f := range m.Functions {
		fmt.Fprintf(w, "func %s %s symbol %s\n", f.GoName, f.Type, f.Symbol)
	}
	for _, mf := range m.MacroFuncs {
		if mf.Kind == macro.FuncMutator {
			fmt.Fprintf(w, "macro %s mutates %s.%s with %s\n", mf.Name, mf.Owner, mf.FieldName, mf.Op)
			continue
		}
		fmt.Fprintf(w, "macro %s(%s) = %s\n", mf.Name, strings.Join(mf.Params, ", "), mf.Body)
	}
}

func names(prefix string, qs []ctypes.QName) string {
	if len(qs) == 0 {
		return ""
	}
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return prefix + strings.Join(parts, ", ")
}
