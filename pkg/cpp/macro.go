package cpp

import (
	"fmt"
	"sort"
	"strings"
)

// MacroKind distinguishes object-like from function-like macros.
type MacroKind int

const (
	MacroObject MacroKind = iota
	MacroFunction
)

func (k MacroKind) String() string {
	if k == MacroFunction {
		return "function"
	}
	return "object"
}

// Macro is a captured #define.
type Macro struct {
	Name        string
	Kind        MacroKind
	Params      []string
	IsVariadic  bool
	Replacement []Token // leading and trailing whitespace removed
	Loc         SourceLoc
	// Predefined marks built-in and command-line macros; they are never emitted.
	Predefined bool
	seq        int
}

// Body returns the replacement list as text.
func (m *Macro) Body() string {
	return strings.TrimSpace(TokensToString(m.Replacement))
}

// MacroTable holds the macros visible at the current point of a unit.
type MacroTable struct {
	macros map[string]*Macro
	seq    int
}

// CPlusPlusVersion is the value of the predefined __cplusplus macro.
const CPlusPlusVersion = "201703L"

// NewMacroTable returns a table holding the predefined macros.
func NewMacroTable() *MacroTable {
	mt := &MacroTable{macros: make(map[string]*Macro)}
	mt.predefine("__cplusplus", CPlusPlusVersion)
	return mt
}

func (mt *MacroTable) predefine(name, value string) {
	m := &Macro{
		Name:        name,
		Kind:        MacroObject,
		Replacement: significant(Tokenize(value, "<built-in>")),
		Loc:         SourceLoc{File: "<built-in>"},
		Predefined:  true,
	}
	mt.add(m)
}

func (mt *MacroTable) add(m *Macro) {
	mt.seq++
	m.seq = mt.seq
	mt.macros[m.Name] = m
}

func checkMacroName(name string) error {
	if !IsIdentifier(name) {
		return fmt.Errorf("invalid macro name %q", name)
	}
	if name == "defined" {
		return fmt.Errorf("\"defined\" cannot be used as a macro name")
	}
	return nil
}

// DefineObject defines an object-like macro. A later definition replaces an earlier one.
func (mt *MacroTable) DefineObject(name string, body []Token, loc SourceLoc) error {
	if err := checkMacroName(name); err != nil {
		return err
	}
	mt.add(&Macro{Name: name, Kind: MacroObject, Replacement: trimWhitespace(body), Loc: loc})
	return nil
}

// DefineFunction defines a function-like macro.
func (mt *MacroTable) DefineFunction(name string, params []string, variadic bool, body []Token, loc SourceLoc) error {
	if err := checkMacroName(name); err != nil {
		return err
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !IsIdentifier(p) {
			return fmt.Errorf("macro %s: invalid parameter %q", name, p)
		}
		if seen[p] {
			return fmt.Errorf("macro %s: duplicate parameter %q", name, p)
		}
		seen[p] = true
	}
	mt.add(&Macro{
		Name:        name,
		Kind:        MacroFunction,
		Params:      append([]string(nil), params...),
		IsVariadic:  variadic,
		Replacement: trimWhitespace(body),
		Loc:         loc,
	})
	return nil
}

// DefineSimple defines an object-like macro from text. Whitespace tokens are dropped.
func (mt *MacroTable) DefineSimple(name, value string, loc SourceLoc) error {
	return mt.DefineObject(name, significant(Tokenize(value, loc.File)), loc)
}

// DefineFromDirective defines the macro described by a parsed #define.
func (mt *MacroTable) DefineFromDirective(dir *Directive) error {
	if dir.IsFunctionLike {
		return mt.DefineFunction(dir.Identifier, dir.Params, dir.IsVariadic, dir.Replacement, dir.Loc)
	}
	return mt.DefineObject(dir.Identifier, dir.Replacement, dir.Loc)
}

// Undefine removes a macro. Undefining an unknown name is not an error.
func (mt *MacroTable) Undefine(name string) {
	delete(mt.macros, name)
}

// Lookup returns the macro or nil.
func (mt *MacroTable) Lookup(name string) *Macro {
	return mt.macros[name]
}

// IsDefined reports whether name is currently defined.
func (mt *MacroTable) IsDefined(name string) bool {
	_, ok := mt.macros[name]
	return ok
}

// Live returns the non-predefined macros that are still defined, ordered by
// source location and then by definition order.
func (mt *MacroTable) Live() []*Macro {
	var out []*Macro
	for _, m := range mt.macros {
		if !m.Predefined {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Loc, out[j].Loc
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// ApplyCmdlineDefines handles -D and -U options. A define is NAME or NAME=VALUE;
// a bare NAME is defined as 1, as compilers do.
func (mt *MacroTable) ApplyCmdlineDefines(defines, undefines []string) error {
	loc := SourceLoc{File: "<command-line>"}
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			value = "1"
		}
		if err := mt.DefineSimple(name, value, loc); err != nil {
			return fmt.Errorf("-D%s: %w", d, err)
		}
		mt.macros[name].Predefined = true
	}
	for _, u := range undefines {
		mt.Undefine(u)
	}
	return nil
}

// Tokenize returns the tokens of text up to, not including, TokEOF.
func Tokenize(text, file string) []Token {
	lex := NewLexer(text, file)
	var out []Token
	for {
		tok := lex.NextToken()
		if tok.Type == TokEOF {
			return out
		}
		out = append(out, tok)
	}
}

func significant(tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		if t.Type != TokSpace && t.Type != TokNewline {
			out = append(out, t)
		}
	}
	return out
}
