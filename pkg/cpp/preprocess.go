// preprocess.go implements the per-unit preprocessor driver.
package cpp

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

// PreprocessorOptions configures the preprocessor.
type PreprocessorOptions struct {
	Defines   []string // -D definitions
	Undefines []string // -U undefinitions
}

// Result is the output of preprocessing one unit.
type Result struct {
	// Text is the declaration text with macros expanded. Directive lines and
	// lines in inactive regions are blank, so line numbers match the input.
	Text string
	// Macros are the macros defined in this unit and still live at its end,
	// in source order.
	Macros      []*Macro
	Includes    []Include
	Diagnostics []diag.Diagnostic
}

// Preprocessor is the main driver for preprocessing a unit.
type Preprocessor struct {
	macros      *MacroTable
	conditional *ConditionalProcessor
	expander    *Expander

	filename string
	out      strings.Builder
	outLine  int
	includes []Include
	diags    *diag.Bag
}

// NewPreprocessor creates a new preprocessor instance.
func NewPreprocessor(opts PreprocessorOptions) (*Preprocessor, error) {
	macros := NewMacroTable()
	if err := macros.ApplyCmdlineDefines(opts.Defines, opts.Undefines); err != nil {
		return nil, err
	}
	return &Preprocessor{
		macros:      macros,
		conditional: NewConditionalProcessor(macros),
		expander:    NewExpander(macros),
		diags:       diag.NewBag(),
	}, nil
}

// Preprocess runs a fresh preprocessor over one unit.
func Preprocess(source, filename string, opts PreprocessorOptions) (*Result, error) {
	p, err := NewPreprocessor(opts)
	if err != nil {
		return nil, err
	}
	return p.Process(source, filename), nil
}

// Process preprocesses a unit. Problems are reported as PreprocessorError
// diagnostics; the result is always usable.
func (p *Preprocessor) Process(source, filename string) *Result {
	p.filename = filename
	p.outLine = 1

	lex := NewLexer(source, filename)
	var line []Token // current logical line, without its newline
	var chunk []Token // consecutive active text lines awaiting expansion

	for {
		tok := lex.NextToken()
		if tok.Type != TokNewline && tok.Type != TokEOF {
			line = append(line, tok)
			continue
		}

		if isDirective(line) {
			p.flushChunk(chunk)
			chunk = nil
			p.processDirective(line)
			if tok.Type == TokNewline {
				p.padTo(tok.Loc.Line + 1)
			}
		} else if p.conditional.IsActive() {
			chunk = append(chunk, line...)
			if tok.Type == TokNewline {
				chunk = append(chunk, tok)
			}
		} else if tok.Type == TokNewline {
			p.padTo(tok.Loc.Line + 1)
		}
		line = nil

		if tok.Type == TokEOF {
			break
		}
	}
	p.flushChunk(chunk)

	if err := p.conditional.CheckBalanced(); err != nil {
		p.report(SourceLoc{File: filename}, "%v", err)
	}
	for _, d := range lex.Diagnostics() {
		p.diags.Add(d)
	}

	var macros []*Macro
	for _, m := range p.macros.Live() {
		if m.Loc.File == filename {
			macros = append(macros, m)
		}
	}
	return &Result{
		Text:        p.out.String(),
		Macros:      macros,
		Includes:    p.includes,
		Diagnostics: p.diags.Items(),
	}
}

// Macros returns the macro table for inspection.
func (p *Preprocessor) Macros() *MacroTable {
	return p.macros
}

func isDirective(line []Token) bool {
	for _, tok := range line {
		if tok.Type != TokSpace {
			return tok.Type == TokDirective
		}
	}
	return false
}

func (p *Preprocessor) report(loc SourceLoc, format string, args ...any) {
	p.diags.Report(diag.PreprocessorError, loc.Pos(), "", format, args...)
}

// padTo writes blank lines until the output is positioned at line n.
func (p *Preprocessor) padTo(n int) {
	for p.outLine < n {
		p.out.WriteByte('\n')
		p.outLine++
	}
}

// flushChunk expands a run of active text lines and writes it out.
func (p *Preprocessor) flushChunk(chunk []Token) {
	if len(chunk) == 0 {
		return
	}
	p.padTo(chunk[0].Loc.Line)
	chunk = restoreLineBreaks(chunk)

	expanded, err := p.expander.Expand(chunk)
	if err != nil {
		p.report(chunk[0].Loc, "%v", err)
		expanded = chunk
	}
	for _, tok := range expanded {
		p.out.WriteString(tok.Text)
		if tok.Type == TokNewline {
			p.outLine++
		}
	}
}

// restoreLineBreaks adds the newlines that comments and line continuations
// swallowed, so that every token stays on its source line.
func restoreLineBreaks(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, tok)
		if tok.Type == TokNewline || i+1 >= len(tokens) {
			continue
		}
		for l := tok.Loc.Line; l < tokens[i+1].Loc.Line; l++ {
			out = append(out, Token{Type: TokNewline, Text: "\n", Loc: SourceLoc{File: tok.Loc.File, Line: l}})
		}
	}
	return out
}

// processDirective handles one directive line. Conditionals are tracked even
// in inactive regions; everything else only in active ones.
func (p *Preprocessor) processDirective(line []Token) {
	i := 0
	for line[i].Type != TokDirective {
		i++
	}
	loc := line[i].Loc
	active := p.conditional.IsActive()

	dir, err := ParseDirectiveFromTokens(line[i+1:], loc)
	if err != nil {
		if active {
			p.report(loc, "%v", err)
		}
		return
	}

	switch dir.Type {
	case DIR_IF:
		err = p.conditional.ProcessIf(dir.Expression, loc)
	case DIR_IFDEF:
		err = p.conditional.ProcessIfdef(dir.Identifier, loc)
	case DIR_IFNDEF:
		err = p.conditional.ProcessIfndef(dir.Identifier, loc)
	case DIR_ELIF:
		err = p.conditional.ProcessElif(dir.Expression)
	case DIR_ELSE:
		err = p.conditional.ProcessElse()
	case DIR_ENDIF:
		err = p.conditional.ProcessEndif()
	default:
		if active {
			err = p.processActiveDirective(dir)
		}
	}
	if err != nil {
		p.report(loc, "%v", err)
	}
}

func (p *Preprocessor) processActiveDirective(dir *Directive) error {
	switch dir.Type {
	case DIR_DEFINE:
		return p.macros.DefineFromDirective(dir)
	case DIR_UNDEF:
		p.macros.Undefine(dir.Identifier)
	case DIR_INCLUDE:
		return p.recordInclude(dir)
	case DIR_ERROR:
		return fmt.Errorf("#error %s", dir.Message)
	case DIR_WARNING:
		return fmt.Errorf("#warning %s", dir.Message)
	case DIR_LINE, DIR_LINEMARKER, DIR_PRAGMA, DIR_EMPTY:
		// No effect on declarations.
	}
	return nil
}

func (p *Preprocessor) recordInclude(dir *Directive) error {
	headerName := dir.HeaderName
	if headerName == "" {
		expanded, err := p.expander.Expand(dir.Expression)
		if err != nil {
			return fmt.Errorf("expanding #include: %w", err)
		}
		headerName = strings.TrimSpace(TokensToString(expanded))
	}
	name, kind, err := ParseHeaderName(headerName)
	if err != nil {
		return err
	}
	p.includes = append(p.includes, Include{Name: name, Kind: kind, Loc: dir.Loc})
	return nil
}
