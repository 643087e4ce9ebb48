package macro

import (
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

// FuncKind is the classification of a function-like macro.
type FuncKind int

const (
	FuncUnsupported FuncKind = iota
	FuncPure
	FuncMutator
)

func (k FuncKind) String() string {
	switch k {
	case FuncPure:
		return "pure"
	case FuncMutator:
		return "mutator"
	}
	return "unsupported"
}

// Function is a classified function-like macro.
type Function struct {
	Name   string
	Params []string
	Kind   FuncKind
	// Body is the parsed replacement of a pure macro.
	Body Expr

	// Mutator form: Param's Field is incremented or decremented.
	Param string
	Field string
	Op    string // "++" or "--"
	Post  bool

	// Reason explains an unsupported macro.
	Reason string
	Pos    diag.Pos
}

// Classify decides how a function-like macro can be emitted.
func Classify(m *cpp.Macro, opts ParseOptions) Function {
	f := Function{Name: m.Name, Params: m.Params, Pos: m.Loc.Pos()}
	fail := func(reason string) Function {
		f.Kind = FuncUnsupported
		f.Reason = reason
		return f
	}
	if m.IsVariadic {
		return fail("variadic macro")
	}
	if len(m.Replacement) == 0 {
		return fail("empty body")
	}
	opts.Params = m.Params
	body, err := Parse(m.Replacement, opts)
	if err != nil {
		return fail(err.Error())
	}

	if param, field, op, post, ok := mutatorForm(body); ok {
		f.Kind = FuncMutator
		f.Param, f.Field, f.Op, f.Post = param, field, op, post
		return f
	}

	var reason string
	Inspect(body, func(e Expr) {
		if reason != "" {
			return
		}
		switch e.(type) {
		case IncDec:
			reason = "increment or decrement outside a field update"
		case Member:
			reason = "member access"
		case Deref:
			reason = "dereference"
		}
	})
	if reason != "" {
		return fail(reason)
	}
	f.Kind = FuncPure
	f.Body = body
	return f
}

// mutatorForm matches p->f++, ++p->f, (*p).f-- and their parenthesized forms.
func mutatorForm(e Expr) (param, field, op string, post, ok bool) {
	inc, isInc := e.(IncDec)
	if !isInc {
		return "", "", "", false, false
	}
	mem, isMem := inc.X.(Member)
	if !isMem {
		return "", "", "", false, false
	}
	var base Expr
	if mem.Arrow {
		base = mem.X
	} else if d, isDeref := mem.X.(Deref); isDeref {
		base = d.X
	} else {
		return "", "", "", false, false
	}
	p, isParam := base.(Param)
	if !isParam {
		return "", "", "", false, false
	}
	return p.Name, mem.Field, inc.Op, inc.Post, true
}

// CheckCalls demotes pure functions that call an unknown, unsupported or
// mutator macro, or call one with the wrong number of arguments. Calls to
// names in funcs are allowed only to pure functions; the check repeats until
// nothing changes.
func CheckCalls(funcs []Function) {
	index := make(map[string]int, len(funcs))
	for i, f := range funcs {
		index[f.Name] = i
	}
	for changed := true; changed; {
		changed = false
		for i := range funcs {
			f := &funcs[i]
			if f.Kind != FuncPure {
				continue
			}
			var reason string
			Inspect(f.Body, func(e Expr) {
				call, ok := e.(Call)
				if !ok || reason != "" {
					return
				}
				j, known := index[call.Name]
				switch {
				case !known:
					reason = "call to unknown macro " + call.Name
				case funcs[j].Kind != FuncPure:
					reason = "call to " + funcs[j].Kind.String() + " macro " + call.Name
				case len(funcs[j].Params) != len(call.Args):
					reason = "wrong number of arguments to " + call.Name
				}
			})
			if reason != "" {
				f.Kind = FuncUnsupported
				f.Reason = reason
				f.Body = nil
				changed = true
			}
		}
	}
}

// ObjectItem builds the solver item for an object-like macro. Calls to
// function-like macros in funcs are expanded first; references to other
// object-like macros stay names. ok is false for an empty body, which is not
// a constant at all.
func ObjectItem(m *cpp.Macro, funcs *cpp.MacroTable, opts ParseOptions) (item Item, ok bool) {
	if len(m.Replacement) == 0 {
		return Item{}, false
	}
	item = Item{
		Name: ctypes.QName{Name: m.Name},
		Kind: ItemMacro,
		Pos:  m.Loc.Pos(),
	}
	tokens := m.Replacement
	if funcs != nil {
		expanded, err := cpp.NewExpander(funcs).Expand(tokens)
		if err != nil {
			item.Err = unsupported("%v", err)
			return item, true
		}
		tokens = expanded
	}
	opts.Params = nil
	expr, err := Parse(tokens, opts)
	if err != nil {
		item.Err = err
		return item, true
	}
	item.Expr = expr
	return item, true
}

// FunctionTable returns a macro table holding only the function-like macros
// of ms. A macro the table rejects is left out and reported to diags when
// diags is not nil.
func FunctionTable(ms []*cpp.Macro, diags *diag.Bag) *cpp.MacroTable {
	mt := cpp.NewMacroTable()
	mt.Undefine("__cplusplus")
	for _, m := range ms {
		if m.Kind != cpp.MacroFunction {
			continue
		}
		err := mt.DefineFunction(m.Name, m.Params, m.IsVariadic, m.Replacement, m.Loc)
		if err != nil && diags != nil {
			diags.Report(diag.UnsupportedMacroBody, m.Loc.Pos(), m.Name, "%v", err)
		}
	}
	return mt
}
