package sema

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

type symKind int

const (
	symRecord symKind = iota
	symEnum
	symTypedef
)

func (k symKind) String() string {
	return [...]string{"record", "enum", "typedef"}[k]
}

// symbol is a named type declaration. After merging, def is the definition
// that owns the emission slot.
type symbol struct {
	name ctypes.QName
	kind symKind
	def  cabs.Definition
	// scope is the scope the declaration appears in.
	scope    []string
	origin   Origin
	forward  bool
	conflict bool
}

// inner is the scope opened by the declaration itself.
func (s *symbol) inner() []string {
	return s.name.Scope()
}

// symtab maps qualified names to type declarations. It is filled with add
// and then frozen; lookups on a frozen table never write, so concurrent
// readers need no locking.
type symtab struct {
	syms   map[string]*symbol
	order  []*symbol
	leaves map[string]bool
	frozen bool
	diags  *diag.Bag
}

func newSymtab(diags *diag.Bag) *symtab {
	return &symtab{syms: make(map[string]*symbol), leaves: make(map[string]bool), diags: diags}
}

// add registers sym, merging it with an earlier declaration of the same name.
func (t *symtab) add(sym *symbol) {
	if t.frozen {
		panic("sema: add on frozen symbol table")
	}
	key := sym.name.Key()
	t.leaves[sym.name.Name] = true
	prev, ok := t.syms[key]
	if !ok {
		t.syms[key] = sym
		t.order = append(t.order, sym)
		return
	}
	switch {
	case prev.conflict, sym.forward:
	case prev.forward:
		if prev.kind != sym.kind {
			t.conflict(prev, sym)
			return
		}
		prev.def, prev.scope, prev.origin, prev.forward = sym.def, sym.scope, sym.origin, false
	case prev.kind == sym.kind && shape(prev.def) == shape(sym.def):
	default:
		t.conflict(prev, sym)
	}
}

func (t *symtab) conflict(prev, sym *symbol) {
	prev.conflict = true
	t.diags.Report(diag.DuplicateDefinitionConflict, sym.origin.Pos, prev.name.Key(),
		"%s %s conflicts with the definition at %s", sym.kind, prev.name, prev.origin.Pos)
}

func (t *symtab) freeze() {
	t.frozen = true
}

// lookup resolves name from scope, innermost scope first.
func (t *symtab) lookup(name string, scope []string) (*symbol, bool) {
	for _, key := range macro.Candidates(name, scope) {
		if s, ok := t.syms[key]; ok {
			return s, true
		}
	}
	return nil, false
}

// isTypeName reports whether name could name a declared type from some scope.
func (t *symtab) isTypeName(name string) bool {
	if _, ok := t.lookup(name, nil); ok {
		return true
	}
	return t.leaves[ctypes.ParseQName(name).Name]
}

// shape is the canonical text of a definition, used to recognise identical
// redefinitions.
func shape(def cabs.Definition) string {
	var b strings.Builder
	p := cabs.NewPrinter(&b)
	p.PrintProgram(&cabs.Program{Definitions: []cabs.Definition{def}})
	return b.String()
}

func (s *symbol) String() string {
	return fmt.Sprintf("%s %s", s.kind, s.name)
}
