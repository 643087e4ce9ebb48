package macro

import (
	"errors"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// ItemKind tells what declared a named constant.
type ItemKind int

const (
	ItemMacro ItemKind = iota
	ItemEnumerator
	ItemVar
)

func (k ItemKind) String() string {
	switch k {
	case ItemEnumerator:
		return "enumerator"
	case ItemVar:
		return "variable"
	}
	return "macro"
}

// Item is one named constant taking part in resolution.
type Item struct {
	Name ctypes.QName
	Kind ItemKind
	// Scope is where names in Expr are looked up, innermost last.
	Scope []string
	Expr  Expr
	// Type, when set, is the type the value is converted to (an enum's
	// underlying type or a variable's declared type).
	Type *IntType
	Pos  diag.Pos
	// Err, when set, is why Expr could not be built; the item resolves to it.
	Err error
}

// Resolution is the outcome for one item.
type Resolution struct {
	Value        literal.Value
	Radix        literal.Radix
	DroppedCasts []string
	// Err is non-nil when the item could not be resolved: an
	// *UnsupportedError, or a literal error matching literal.ErrMalformed.
	Err error
}

// TypeResolver resolves named types used in casts, looked up from a scope.
type TypeResolver interface {
	IntType(name string, scope []string) (IntType, bool)
}

// Solution maps QName keys to resolutions.
type Solution map[string]*Resolution

// Solve resolves all items to a fixed point. An item referring to a pending
// item waits for it; when a round makes no progress, every item still
// pending becomes unsupported.
func Solve(items []Item, types TypeResolver) Solution {
	sol := make(Solution, len(items))
	byKey := make(map[string]*Item, len(items))
	pending := make([]*Item, 0, len(items))
	for i := range items {
		key := items[i].Name.Key()
		if _, dup := byKey[key]; !dup {
			byKey[key] = &items[i]
			pending = append(pending, &items[i])
		}
	}

	waiting := make(map[*Item]string)
	for len(pending) > 0 {
		progress := false
		next := pending[:0]
		for _, it := range pending {
			if it.Err != nil {
				sol[it.Name.Key()] = &Resolution{Err: it.Err}
				progress = true
				continue
			}
			env := &solveEnv{sol: sol, items: byKey, scope: it.Scope, types: types}
			ev, err := Eval(it.Expr, env)
			var pe *PendingError
			if errors.As(err, &pe) {
				waiting[it] = pe.Name
				next = append(next, it)
				continue
			}
			progress = true
			res := &Resolution{Value: ev.Value, Radix: ev.Radix, DroppedCasts: ev.DroppedCasts, Err: err}
			if err == nil && it.Type != nil {
				res.Value = res.Value.Convert(it.Type.Width, it.Type.Signed)
			}
			sol[it.Name.Key()] = res
		}
		pending = next
		if !progress {
			break
		}
	}
	for _, it := range pending {
		sol[it.Name.Key()] = &Resolution{Err: unsupported("cyclic or unresolved reference: %s", waiting[it])}
	}
	return sol
}

type solveEnv struct {
	sol   Solution
	items map[string]*Item
	scope []string
	types TypeResolver
}

// Candidates returns the keys a name may refer to from scope, innermost first.
func Candidates(name string, scope []string) []string {
	if strings.HasPrefix(name, "::") {
		return []string{strings.TrimPrefix(name, "::")}
	}
	out := make([]string, 0, len(scope)+1)
	for i := len(scope); i >= 0; i-- {
		if i == 0 {
			out = append(out, name)
			continue
		}
		out = append(out, strings.Join(scope[:i], "::")+"::"+name)
	}
	return out
}

func (e *solveEnv) Value(name string) (literal.Value, literal.Radix, error) {
	for _, key := range Candidates(name, e.scope) {
		if _, ok := e.items[key]; !ok {
			continue
		}
		res, done := e.sol[key]
		if !done {
			return literal.Value{}, literal.Decimal, &PendingError{Name: name}
		}
		if res.Err != nil {
			return literal.Value{}, literal.Decimal, unsupported("depends on unsupported %s", name)
		}
		return res.Value, res.Radix, nil
	}
	return literal.Value{}, literal.Decimal, &PendingError{Name: name}
}

func (e *solveEnv) CastType(name string) (IntType, bool) {
	if e.types == nil {
		return IntType{}, false
	}
	return e.types.IntType(name, e.scope)
}
