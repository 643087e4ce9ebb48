package opacity

import (
	"fmt"
	"regexp"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

// Lists holds name patterns per kind of declaration. A pattern matches the
// whole qualified name, as in ns::Widget or ns::.*.
type Lists struct {
	Types     []string `toml:"types" yaml:"types"`
	Functions []string `toml:"functions" yaml:"functions"`
	Macros    []string `toml:"macros" yaml:"macros"`
	Variables []string `toml:"variables" yaml:"variables"`
}

// Empty reports whether no pattern is set.
func (l Lists) Empty() bool {
	return len(l.Types)+len(l.Functions)+len(l.Macros)+len(l.Variables) == 0
}

type matcher []*regexp.Regexp

func compile(patterns []string) (matcher, error) {
	var m matcher
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		m = append(m, re)
	}
	return m, nil
}

func (m matcher) match(q ctypes.QName) bool {
	key := q.Key()
	for _, re := range m {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

type compiled struct {
	types, functions, macros, variables matcher
}

func (l Lists) compile() (compiled, error) {
	var c compiled
	var err error
	if c.types, err = compile(l.Types); err != nil {
		return c, err
	}
	if c.functions, err = compile(l.Functions); err != nil {
		return c, err
	}
	if c.macros, err = compile(l.Macros); err != nil {
		return c, err
	}
	if c.variables, err = compile(l.Variables); err != nil {
		return c, err
	}
	return c, nil
}

// Match returns the declared type names that match any of patterns, in
// declaration order.
func Match(m *sema.Model, patterns []string) ([]ctypes.QName, error) {
	re, err := compile(patterns)
	if err != nil {
		return nil, err
	}
	var out []ctypes.QName
	for _, d := range decls(m) {
		if re.match(d.DeclName()) {
			out = append(out, d.DeclName())
		}
	}
	return out, nil
}

func decls(m *sema.Model) []sema.Decl {
	var out []sema.Decl
	for _, r := range m.Records {
		out = append(out, r)
	}
	for _, i := range m.Interfaces {
		out = append(out, i)
	}
	for _, e := range m.Enums {
		if e.Name.Name != "" {
			out = append(out, e)
		}
	}
	for _, t := range m.Typedefs {
		out = append(out, t)
	}
	for _, o := range m.Opaques {
		out = append(out, o)
	}
	return out
}

// Filter returns a copy of m narrowed by allow and deny. When allow is
// empty every declaration is a root; otherwise the roots are the
// declarations it matches. Each root pulls in the types it refers to,
// transitively. Functions, macros and variables matched by deny are
// dropped afterwards; types referenced by kept declarations are never
// dropped.
func Filter(m *sema.Model, allow, deny Lists) (*sema.Model, error) {
	a, err := allow.compile()
	if err != nil {
		return nil, err
	}
	d, err := deny.compile()
	if err != nil {
		return nil, err
	}
	all := allow.Empty()
	f := &filter{m: m, types: make(map[string]bool)}
	out := m.Clone()

	out.Functions = keep(m.Functions, func(fn *sema.Function) bool {
		if (!all && !a.functions.match(fn.Name)) || d.functions.match(fn.Name) {
			return false
		}
		f.use(fn.Type, 0)
		return true
	})
	usedConsts := make(map[string]bool)
	out.MacroFuncs = keep(m.MacroFuncs, func(mf *sema.MacroFunc) bool {
		name := ctypes.QName{Name: mf.Name}
		if (!all && !a.macros.match(name)) || d.macros.match(name) {
			return false
		}
		if mf.Kind == macro.FuncMutator {
			f.useName(mf.Owner, 0)
			f.use(mf.FieldType, 0)
		}
		for _, key := range mf.Consts {
			usedConsts[key] = true
		}
		return true
	})
	out.Constants = keep(m.Constants, func(c *sema.Constant) bool {
		list, denied := a.variables, d.variables
		if c.Kind == macro.ItemMacro {
			list, denied = a.macros, d.macros
		}
		if denied.match(c.Name) {
			return false
		}
		return all || list.match(c.Name) || usedConsts[c.Name.Key()]
	})
	for _, decl := range decls(m) {
		if all || a.types.match(decl.DeclName()) {
			f.useName(decl.DeclName(), 0)
		}
	}
	if !all {
		for _, e := range m.Enums {
			if e.Name.Name == "" && f.anonymousEnumUsed(e, a) {
				f.types[enumKey(e)] = true
			}
		}
	}

	out.Records = keep(m.Records, func(r *sema.Record) bool { return f.types[r.Name.Key()] })
	out.Interfaces = keep(m.Interfaces, func(i *sema.Interface) bool { return f.types[i.Name.Key()] })
	out.Enums = keep(m.Enums, func(e *sema.Enum) bool { return all || f.types[enumKey(e)] })
	out.Typedefs = keep(m.Typedefs, func(t *sema.Typedef) bool { return f.types[t.Name.Key()] })
	out.Opaques = keep(m.Opaques, func(o *sema.Opaque) bool { return f.types[o.Name.Key()] })
	out.Index()
	return out, nil
}

type filter struct {
	m     *sema.Model
	types map[string]bool
}

// enumKey identifies an enum; anonymous enums are keyed by their first
// enumerator.
func enumKey(e *sema.Enum) string {
	if e.Name.Name != "" || len(e.Values) == 0 {
		return e.Name.Key()
	}
	return "enum " + e.Values[0].Name.Key()
}

// anonymousEnumUsed reports whether an anonymous enum has an enumerator
// the variable or type allowlists select.
func (f *filter) anonymousEnumUsed(e *sema.Enum, a compiled) bool {
	for _, v := range e.Values {
		if a.variables.match(v.Name) || a.types.match(v.Name) {
			return true
		}
	}
	return false
}

func (f *filter) use(t ctypes.Type, depth int) {
	ctypes.Walk(t, func(n ctypes.Type, _ bool) {
		switch tt := n.(type) {
		case ctypes.Tnamed:
			f.useName(tt.Name, depth+1)
		case ctypes.Topaque:
			f.useName(tt.Name, depth+1)
		}
	})
}

func (f *filter) useName(q ctypes.QName, depth int) {
	key := q.Key()
	if f.types[key] || depth > maxDepth {
		return
	}
	d, ok := f.m.Type(q)
	if !ok {
		return
	}
	f.types[key] = true
	switch dd := d.(type) {
	case *sema.Record:
		for _, b := range dd.DataBases {
			f.useName(b, depth+1)
		}
		for _, i := range dd.Interfaces {
			f.useName(i, depth+1)
		}
		for _, fld := range dd.Flat {
			f.use(fld.Type, depth)
		}
		for _, m := range dd.Implements {
			f.use(m.Type, depth)
		}
	case *sema.Interface:
		for _, b := range dd.Bases {
			f.useName(b, depth+1)
		}
		for _, m := range dd.Capabilities {
			f.use(m.Type, depth)
		}
	case *sema.Typedef:
		f.use(dd.Type, depth)
	}
}
