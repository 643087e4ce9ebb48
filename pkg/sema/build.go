package sema

import (
	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// pending is a declaration waiting for the symbol table to be frozen.
type pending struct {
	def    cabs.Definition
	scope  []string
	origin Origin
}

type builder struct {
	opts  Options
	units []Unit
	diags *diag.Bag
	tab   *symtab
	model *Model
	seq   []int

	enums []pending
	funcs []pending
	vars  []pending

	items    []macro.Item
	itemUnit map[string]int
	solution macro.Solution

	typedefs  map[string]ctypes.Type
	resolving map[string]bool
	orphans   map[string]bool

	enumDecls  map[string]*Enum
	records    map[string]*recordState
	interfaces map[string]*Interface
	stack      []string
	cycles     map[string]string
}

// Build resolves the units into a frozen model. Declarations keep the order
// of the units and, within a unit, their source order.
func Build(units []Unit, opts Options) *Model {
	b := &builder{
		opts:       opts,
		units:      units,
		diags:      diag.NewBag(),
		seq:        make([]int, len(units)),
		itemUnit:   make(map[string]int),
		typedefs:   make(map[string]ctypes.Type),
		resolving:  make(map[string]bool),
		orphans:    make(map[string]bool),
		enumDecls:  make(map[string]*Enum),
		records:    make(map[string]*recordState),
		cycles:     make(map[string]string),
		interfaces: make(map[string]*Interface),
		model:      &Model{Options: opts},
	}
	b.tab = newSymtab(b.diags)
	for i, u := range units {
		b.model.Units = append(b.model.Units, u.Name)
		if u.Program != nil {
			b.collect(i, u.Program.Definitions, nil)
		}
	}
	b.tab.freeze()

	b.solveConstants()
	b.buildTypes()
	b.buildFunctions()
	b.buildMacroFuncs()

	b.model.Diagnostics = b.diags.Items()
	b.model.Sort()
	b.model.Index()
	return b.model
}

func (b *builder) origin(unit int, pos diag.Pos) Origin {
	o := Origin{Unit: unit, Index: b.seq[unit], Pos: pos}
	b.seq[unit]++
	return o
}

// within returns scope extended by names, without sharing storage.
func within(scope []string, names ...string) []string {
	out := make([]string, 0, len(scope)+len(names))
	return append(append(out, scope...), names...)
}

func (b *builder) collect(unit int, defs []cabs.Definition, scope []string) {
	for _, def := range defs {
		o := b.origin(unit, def.DefPos())
		switch d := def.(type) {
		case cabs.Namespace:
			b.collect(unit, d.Defs, within(scope, d.Path...))
		case cabs.Record:
			name := ctypes.Qualify(scope, d.Name)
			b.tab.add(&symbol{name: name, kind: symRecord, def: d, scope: scope, origin: o, forward: d.Forward})
			b.collect(unit, d.Nested, name.Scope())
		case cabs.Enum:
			if d.Name != "" {
				b.tab.add(&symbol{name: ctypes.Qualify(scope, d.Name), kind: symEnum, def: d, scope: scope, origin: o, forward: d.Forward})
			}
			if !d.Forward {
				b.enums = append(b.enums, pending{def: d, scope: scope, origin: o})
			}
		case cabs.Typedef:
			b.tab.add(&symbol{name: ctypes.Qualify(scope, d.Name), kind: symTypedef, def: d, scope: scope, origin: o})
		case cabs.Function:
			b.funcs = append(b.funcs, pending{def: d, scope: scope, origin: o})
		case cabs.Var:
			b.vars = append(b.vars, pending{def: d, scope: scope, origin: o})
		}
	}
}

func (b *builder) parseOptions() macro.ParseOptions {
	return macro.ParseOptions{
		IsType: func(name string) bool {
			if b.tab.isTypeName(name) {
				return true
			}
			_, ok := primitiveType(name, b.opts)
			return ok
		},
		LongBits: b.opts.longBits(),
	}
}
