// Package parser implements a recursive descent parser for C/C++ declarations.
// It reads preprocessed header text and builds the untyped cabs model,
// reporting constructs it does not model and resynchronizing after them.
package parser

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
)

// Parser parses declarations into a cabs model
type Parser struct {
	l         *lexer.Lexer
	file      string
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
	diags     *diag.Bag
}

// context describes where a declaration appears.
type context struct {
	externC bool
	// record is the name of the enclosing record, empty at namespace scope.
	record string
}

// New creates a new Parser for the given lexer. file names the unit in
// diagnostics.
func New(l *lexer.Lexer, file string) *Parser {
	p := &Parser{
		l:     l,
		file:  file,
		diags: diag.NewBag(),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

// Diagnostics returns an UnsupportedDeclaration for every construct that was
// skipped, plus lexer errors.
func (p *Parser) Diagnostics() []diag.Diagnostic {
	return p.diags.Items()
}

func (p *Parser) pos() diag.Pos {
	return p.posOf(p.curToken)
}

func (p *Parser) posOf(tok lexer.Token) diag.Pos {
	return diag.Pos{File: p.file, Line: tok.Line, Col: tok.Column}
}

// addError records an unsupported construct at the current token.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.curToken, "", msg)
}

func (p *Parser) addErrorAt(tok lexer.Token, subject, msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		tok.Line, tok.Column, msg))
	p.diags.Report(diag.UnsupportedDeclaration, p.posOf(tok), subject, "%s", msg)
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, describe(p.curToken)))
	return false
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenIdent, lexer.TokenNumber:
		return fmt.Sprintf("%q", tok.Literal)
	case lexer.TokenString:
		return "string literal"
	}
	return tok.Type.String()
}

// ParseProgram parses every declaration of the unit.
func (p *Parser) ParseProgram() *cabs.Program {
	prog := &cabs.Program{File: p.file}
	for !p.curTokenIs(lexer.TokenEOF) {
		prog.Definitions = append(prog.Definitions, p.parseDefinitions(context{})...)
		if p.curTokenIs(lexer.TokenRBrace) {
			p.addError("unmatched '}'")
			p.nextToken()
		}
	}
	for _, msg := range p.l.Errors() {
		p.errors = append(p.errors, msg)
		p.diags.Report(diag.UnsupportedDeclaration, diag.Pos{File: p.file}, "", "%s", msg)
	}
	return prog
}

// ParseDefinition parses one declaration; it is a convenience for tests and
// returns nil when the declaration produced no definition.
func (p *Parser) ParseDefinition() cabs.Definition {
	defs := p.parseDefinition(context{})
	if len(defs) == 0 {
		return nil
	}
	return defs[0]
}

// parseDefinitions parses declarations up to a closing brace or EOF.
func (p *Parser) parseDefinitions(ctx context) []cabs.Definition {
	var defs []cabs.Definition
	for !p.curTokenIs(lexer.TokenEOF) && !p.curTokenIs(lexer.TokenRBrace) {
		defs = append(defs, p.parseDefinition(ctx)...)
	}
	return defs
}

func (p *Parser) parseDefinition(ctx context) []cabs.Definition {
	switch p.curToken.Type {
	case lexer.TokenSemicolon:
		p.nextToken()
		return nil
	case lexer.TokenNamespace:
		return p.parseNamespace(ctx)
	case lexer.TokenInline:
		if p.peekTokenIs(lexer.TokenNamespace) {
			p.nextToken()
			return p.parseNamespace(ctx)
		}
	case lexer.TokenExtern:
		if p.peekTokenIs(lexer.TokenString) {
			return p.parseLinkage(ctx)
		}
	case lexer.TokenTemplate:
		p.addError("template declaration")
		p.skipDeclaration()
		return nil
	case lexer.TokenUsing:
		return p.parseUsing()
	case lexer.TokenStaticAssert:
		p.skipDeclaration()
		return nil
	case lexer.TokenTypedef:
		return p.parseTypedef(ctx)
	case lexer.TokenHash:
		p.addError("stray '#' in declaration text")
		p.skipDeclaration()
		return nil
	}
	return p.parseDeclaration(ctx)
}

func (p *Parser) parseNamespace(ctx context) []cabs.Definition {
	pos := p.pos()
	start := p.curToken
	p.nextToken() // consume 'namespace'
	p.skipAttributes()

	var path []string
	for p.curTokenIs(lexer.TokenIdent) {
		path = append(path, p.curToken.Literal)
		p.nextToken()
		if !p.curTokenIs(lexer.TokenScope) {
			break
		}
		p.nextToken()
	}

	switch {
	case p.curTokenIs(lexer.TokenAssign):
		p.addErrorAt(start, strings.Join(path, "::"), "namespace alias")
		p.skipDeclaration()
		return nil
	case len(path) == 0 && p.curTokenIs(lexer.TokenLBrace):
		p.addErrorAt(start, "", "anonymous namespace")
		p.skipDeclaration()
		return nil
	case !p.curTokenIs(lexer.TokenLBrace):
		p.addError(fmt.Sprintf("expected '{' after namespace, got %s", describe(p.curToken)))
		p.skipDeclaration()
		return nil
	}
	p.nextToken() // consume '{'
	defs := p.parseDefinitions(ctx)
	p.expect(lexer.TokenRBrace)
	return []cabs.Definition{cabs.Namespace{Path: path, Defs: defs, Pos: pos}}
}

// parseLinkage handles extern "C" and extern "C++", both as a prefix and as a block.
func (p *Parser) parseLinkage(ctx context) []cabs.Definition {
	p.nextToken() // consume 'extern'
	lang := p.curToken.Literal
	if lang != "C" && lang != "C++" {
		p.addError(fmt.Sprintf("unknown linkage %q", lang))
	}
	p.nextToken()
	ctx.externC = lang == "C"

	if !p.curTokenIs(lexer.TokenLBrace) {
		return p.parseDefinition(ctx)
	}
	p.nextToken() // consume '{'
	defs := p.parseDefinitions(ctx)
	p.expect(lexer.TokenRBrace)
	return defs
}

// parseUsing handles "using X = T;". Using-directives and using-declarations
// do not declare anything bindable and are skipped.
func (p *Parser) parseUsing() []cabs.Definition {
	pos := p.pos()
	p.nextToken() // consume 'using'
	if !p.curTokenIs(lexer.TokenIdent) || !p.peekTokenIs(lexer.TokenAssign) {
		p.skipDeclaration()
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	p.nextToken() // consume '='

	spec, ok := p.parseDeclSpecifiers(context{})
	if !ok {
		p.skipDeclaration()
		return nil
	}
	defs := spec.definitions("anon_" + name)
	d, ok := p.parseDeclarator()
	if !ok || d.name != "" {
		if ok {
			p.addError("unexpected name in alias declaration")
		}
		p.skipDeclaration()
		return defs
	}
	if !p.expect(lexer.TokenSemicolon) {
		p.skipDeclaration()
	}
	return append(defs, cabs.Typedef{Name: name, Type: d.wrap(spec.base), Using: true, Pos: pos})
}

func (p *Parser) parseTypedef(ctx context) []cabs.Definition {
	p.nextToken() // consume 'typedef'
	spec, ok := p.parseDeclSpecifiers(ctx)
	if !ok {
		p.skipDeclaration()
		return nil
	}

	var defs []cabs.Definition
	first := true
	for {
		pos := p.pos()
		d, ok := p.parseDeclarator()
		if ok && d.name == "" {
			p.addError("typedef without a name")
			ok = false
		}
		if !ok {
			p.skipDeclaration()
			if first {
				return spec.definitions("")
			}
			return defs
		}
		if first {
			first = false
			// typedef struct { ... } Name; names the record itself.
			if spec.anonymous() && d.plain() {
				defs = append(defs, spec.definitions(d.name)...)
			} else {
				defs = append(defs, spec.definitions("anon_"+d.name)...)
			}
		}
		t := d.wrap(spec.base)
		// typedef struct X X; adds nothing in C++.
		if bt, isBase := t.(cabs.BaseType); !isBase || bt.Name != d.name || bt.Const || bt.Volatile {
			defs = append(defs, cabs.Typedef{Name: d.name, Type: t, Pos: pos})
		}
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.expect(lexer.TokenSemicolon) {
		p.skipDeclaration()
	}
	return defs
}

// nextDeclarator consumes a ',' between declarators.
func (p *Parser) nextDeclarator() bool {
	if p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		return true
	}
	return false
}

// parseDeclaration parses a namespace-scope declaration: record and enum
// definitions, function prototypes and constants.
func (p *Parser) parseDeclaration(ctx context) []cabs.Definition {
	start := p.curToken
	spec, ok := p.parseDeclSpecifiers(ctx)
	if !ok {
		p.skipDeclaration()
		return nil
	}

	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		if _, isRecord := spec.def.(cabs.Record); isRecord && spec.anonymous() {
			p.addErrorAt(start, "", "anonymous record without a declarator")
			return nil
		}
		if spec.def != nil {
			return []cabs.Definition{spec.def}
		}
		if fwd := spec.forward(p.posOf(start)); fwd != nil {
			return []cabs.Definition{fwd}
		}
		return nil
	}
	if !spec.hasType {
		p.addError(fmt.Sprintf("expected declaration, got %s", describe(p.curToken)))
		p.skipDeclaration()
		return nil
	}

	var defs []cabs.Definition
	if spec.def != nil {
		if spec.anonymous() {
			p.addErrorAt(start, "", "variable of anonymous record type")
			p.skipDeclaration()
			return nil
		}
		defs = append(defs, spec.def)
	}

	for {
		tok := p.curToken
		d, ok := p.parseDeclarator()
		if !ok {
			p.skipDeclaration()
			return defs
		}
		if d.operator {
			p.skipDeclaration()
			return defs
		}
		if d.name == "" {
			p.addError(fmt.Sprintf("expected declarator, got %s", describe(p.curToken)))
			p.skipDeclaration()
			return defs
		}
		t := d.wrap(spec.base)
		if fn, isFunc := t.(cabs.FuncType); isFunc {
			p.skipFunctionTail()
			if p.curTokenIs(lexer.TokenLBrace) {
				// Inline definitions are not exported symbols.
				p.skipBalanced()
				return defs
			}
			if strings.Contains(d.name, "::") {
				p.addErrorAt(tok, d.name, "out-of-line member declaration")
			} else {
				defs = append(defs, cabs.Function{Name: d.name, Type: fn, ExternC: ctx.externC, Pos: p.posOf(tok)})
			}
		} else {
			init := p.parseInitializer()
			switch {
			case init != "" && (spec.constexpr || isConstType(t)):
				defs = append(defs, cabs.Var{Name: d.name, Type: t, Init: init, Constexpr: spec.constexpr, Pos: p.posOf(tok)})
			case init == "" && (spec.constexpr || isConstType(t)) && !spec.extern:
				p.addErrorAt(tok, d.name, "constant "+d.name+" without initializer")
			default:
				p.addErrorAt(tok, d.name, "variable "+d.name)
			}
		}
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.expect(lexer.TokenSemicolon) {
		p.skipDeclaration()
	}
	return defs
}

func isConstType(t cabs.TypeExpr) bool {
	switch tt := t.(type) {
	case cabs.BaseType:
		return tt.Const
	case cabs.PointerType:
		return tt.Const
	case cabs.ArrayType:
		return isConstType(tt.Elem)
	}
	return false
}

// parseInitializer reads "= expr" or "{expr}" and returns the expression text.
func (p *Parser) parseInitializer() string {
	switch {
	case p.curTokenIs(lexer.TokenAssign):
		p.nextToken()
		if p.curTokenIs(lexer.TokenLBrace) {
			return p.braceInit()
		}
		return p.collectExpr(lexer.TokenComma, lexer.TokenSemicolon)
	case p.curTokenIs(lexer.TokenLBrace):
		return p.braceInit()
	}
	return ""
}

func (p *Parser) braceInit() string {
	p.nextToken() // consume '{'
	text := p.collectExpr(lexer.TokenRBrace)
	p.expect(lexer.TokenRBrace)
	return text
}

// collectExpr returns the text of the tokens before the first stop token at
// nesting depth zero. Tokens are joined with single spaces. A ';' ends the
// expression at any depth.
func (p *Parser) collectExpr(stops ...lexer.TokenType) string {
	var parts []string
	depth := 0
	for !p.curTokenIs(lexer.TokenEOF) && !p.curTokenIs(lexer.TokenSemicolon) {
		if depth == 0 {
			for _, s := range stops {
				if p.curTokenIs(s) {
					return strings.Join(parts, " ")
				}
			}
		}
		switch p.curToken.Type {
		case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenLBrace:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket, lexer.TokenRBrace:
			if depth == 0 {
				return strings.Join(parts, " ")
			}
			depth--
		}
		parts = append(parts, tokenText(p.curToken))
		p.nextToken()
	}
	return strings.Join(parts, " ")
}

func tokenText(tok lexer.Token) string {
	if tok.Type == lexer.TokenString {
		return `"` + tok.Literal + `"`
	}
	return tok.Literal
}

// skipDeclaration resynchronizes after an unsupported construct: it skips to
// the next ';', or past a balanced {...} block and an optional ';'. It stops
// before a '}' that closes the enclosing scope. Open parentheses and brackets
// do not hide a ';' or a brace, so an unbalanced '(' cannot swallow the
// declarations that follow.
func (p *Parser) skipDeclaration() {
	for !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenSemicolon:
			p.nextToken()
			return
		case lexer.TokenLBrace:
			p.skipBalanced()
			if p.curTokenIs(lexer.TokenSemicolon) {
				p.nextToken()
			}
			return
		case lexer.TokenRBrace:
			return
		}
		p.nextToken()
	}
}

// skipBalanced skips from an opening bracket to just past its match. An
// unclosed '(' or '[' stops before the next ';' or brace.
func (p *Parser) skipBalanced() {
	open := p.curToken.Type
	var closing lexer.TokenType
	switch open {
	case lexer.TokenLParen:
		closing = lexer.TokenRParen
	case lexer.TokenLBracket:
		closing = lexer.TokenRBracket
	case lexer.TokenLBrace:
		closing = lexer.TokenRBrace
	default:
		return
	}
	depth := 0
	for !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		case lexer.TokenSemicolon, lexer.TokenLBrace, lexer.TokenRBrace:
			if open != lexer.TokenLBrace {
				return
			}
		}
		p.nextToken()
	}
}
