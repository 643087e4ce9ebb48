package parser

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
)

var recordKinds = map[lexer.TokenType]cabs.RecordKind{
	lexer.TokenStruct:    cabs.KindStruct,
	lexer.TokenClass:     cabs.KindClass,
	lexer.TokenUnion:     cabs.KindUnion,
	lexer.TokenInterface: cabs.KindInterface,
}

// parseRecordSpec parses a class-specifier or an elaborated record name.
func (p *Parser) parseRecordSpec(s *declSpec) bool {
	tok := p.curToken
	kind := recordKinds[tok.Type]
	p.nextToken()
	p.skipAttributes()

	name := ""
	if p.curTokenIs(lexer.TokenIdent) || p.curTokenIs(lexer.TokenScope) {
		var ok bool
		if name, ok = p.parseQualifiedName(); !ok {
			return false
		}
	}
	if p.curTokenIs(lexer.TokenLt) {
		p.addErrorAt(tok, name, "template specialization "+name)
		return false
	}
	if p.curTokenIs(lexer.TokenIdent) && p.curToken.Literal == "final" {
		p.nextToken()
	}

	s.base.Tag = kind.String()
	s.base.Name = name
	s.hasType = true
	s.kind = kind
	if !p.curTokenIs(lexer.TokenColon) && !p.curTokenIs(lexer.TokenLBrace) {
		if name == "" {
			p.addErrorAt(tok, "", "anonymous "+kind.String()+" without a body")
			return false
		}
		s.elaborated = true
		return true
	}
	if isQualified(name) {
		p.addErrorAt(tok, name, "qualified record definition "+name)
		return false
	}

	rec := cabs.Record{Kind: kind, Name: name, Pos: p.posOf(tok)}
	if p.curTokenIs(lexer.TokenColon) && !p.parseBases(&rec) {
		return false
	}
	if !p.parseRecordBody(&rec) {
		return false
	}
	s.def = rec
	return true
}

func isQualified(name string) bool {
	return strings.Contains(name, "::")
}

func defaultAccess(kind cabs.RecordKind) cabs.Access {
	if kind == cabs.KindClass {
		return cabs.AccessPrivate
	}
	return cabs.AccessPublic
}

func (p *Parser) parseBases(rec *cabs.Record) bool {
	p.nextToken() // consume ':'
	for {
		b := cabs.Base{Access: defaultAccess(rec.Kind)}
	specifiers:
		for {
			switch p.curToken.Type {
			case lexer.TokenPublic:
				b.Access = cabs.AccessPublic
			case lexer.TokenProtected:
				b.Access = cabs.AccessProtected
			case lexer.TokenPrivate:
				b.Access = cabs.AccessPrivate
			case lexer.TokenVirtual:
				b.Virtual = true
			default:
				break specifiers
			}
			p.nextToken()
		}
		p.skipAttributes()
		start := p.curToken
		name, ok := p.parseQualifiedName()
		if !ok {
			return false
		}
		if p.curTokenIs(lexer.TokenLt) {
			p.addErrorAt(start, rec.Name, "template base class "+name)
			return false
		}
		b.Name = name
		rec.Bases = append(rec.Bases, b)
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.curTokenIs(lexer.TokenLBrace) {
		p.addError(fmt.Sprintf("expected '{' after base list, got %s", describe(p.curToken)))
		return false
	}
	return true
}

// parseRecordBody parses the member list. A member that cannot be modeled
// marks the whole record unsupported; parsing continues past it.
func (p *Parser) parseRecordBody(rec *cabs.Record) bool {
	p.nextToken() // consume '{'
	access := defaultAccess(rec.Kind)
	anon := 0
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenPublic, lexer.TokenProtected, lexer.TokenPrivate:
			if p.peekTokenIs(lexer.TokenColon) {
				switch p.curToken.Type {
				case lexer.TokenPublic:
					access = cabs.AccessPublic
				case lexer.TokenProtected:
					access = cabs.AccessProtected
				default:
					access = cabs.AccessPrivate
				}
				p.nextToken()
				p.nextToken()
				continue
			}
		case lexer.TokenSemicolon:
			p.nextToken()
			continue
		case lexer.TokenTemplate:
			p.addError("member template")
			p.skipDeclaration()
			continue
		case lexer.TokenFriend, lexer.TokenStaticAssert:
			p.skipDeclaration()
			continue
		case lexer.TokenUsing:
			rec.Nested = append(rec.Nested, p.parseUsing()...)
			continue
		case lexer.TokenTypedef:
			rec.Nested = append(rec.Nested, p.parseTypedef(context{record: rec.Name})...)
			continue
		}
		if reason := p.parseMember(rec, access, &anon); reason != "" {
			if rec.Unsupported == "" {
				rec.Unsupported = reason
			}
			p.skipDeclaration()
		}
	}
	return p.expect(lexer.TokenRBrace)
}

// parseMember parses one member declaration, including its ';'. It returns
// a non-empty reason when the member cannot be modeled.
func (p *Parser) parseMember(rec *cabs.Record, access cabs.Access, anon *int) string {
	start := p.curToken
	spec, ok := p.parseDeclSpecifiers(context{record: rec.Name})
	if !ok {
		return "unsupported member"
	}

	if p.curTokenIs(lexer.TokenTilde) {
		rec.NonTrivial = true
		if spec.virtual {
			rec.VirtualDtor = true
		}
		p.skipMemberFunction()
		return ""
	}
	if !spec.hasType {
		switch {
		case p.curTokenIs(lexer.TokenIdent) && p.curToken.Literal == rec.Name && p.peekTokenIs(lexer.TokenLParen):
			rec.NonTrivial = true
			p.skipMemberFunction()
			return ""
		case p.curTokenIs(lexer.TokenOperator):
			p.skipMemberFunction()
			return ""
		}
		p.addError(fmt.Sprintf("expected member declaration, got %s", describe(p.curToken)))
		return "unrecognized member"
	}

	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		switch {
		case spec.def != nil && spec.anonymous():
			if _, isEnum := spec.def.(cabs.Enum); isEnum {
				rec.Nested = append(rec.Nested, spec.def)
				return ""
			}
			name := fmt.Sprintf("anon%d", *anon)
			*anon++
			spec.nameAnonymous(name)
			rec.Nested = append(rec.Nested, spec.def)
			rec.Fields = append(rec.Fields, cabs.Field{Name: name, Type: spec.base, Access: access, Pos: p.posOf(start)})
		case spec.def != nil:
			rec.Nested = append(rec.Nested, spec.def)
		default:
			if fwd := spec.forward(p.posOf(start)); fwd != nil {
				rec.Nested = append(rec.Nested, fwd)
			}
		}
		return ""
	}
	if spec.def != nil && !spec.anonymous() {
		rec.Nested = append(rec.Nested, spec.def)
	}

	first := true
	for {
		tok := p.curToken
		d, ok := p.parseDeclarator()
		if !ok {
			return "unsupported member declarator"
		}
		if d.operator {
			p.skipMemberFunction()
			return ""
		}
		if d.name == "" {
			p.addError(fmt.Sprintf("expected member name, got %s", describe(p.curToken)))
			return "unnamed member"
		}
		if first && spec.anonymous() {
			spec.nameAnonymous("anon_" + d.name)
			rec.Nested = append(rec.Nested, spec.def)
		}
		first = false

		pos := p.posOf(tok)
		t := d.wrap(spec.base)
		if fn, isFunc := t.(cabs.FuncType); isFunc {
			pure := p.skipFunctionTail()
			rec.Methods = append(rec.Methods, cabs.Method{
				Name:    d.name,
				Type:    fn,
				Virtual: spec.virtual || pure,
				Pure:    pure,
				Static:  spec.static,
				Access:  access,
				Pos:     pos,
			})
			if p.curTokenIs(lexer.TokenLBrace) {
				p.skipBalanced()
				return ""
			}
		} else if spec.static {
			init := p.parseInitializer()
			if init != "" && (spec.constexpr || isConstType(t)) {
				rec.Nested = append(rec.Nested, cabs.Var{Name: d.name, Type: t, Init: init, Constexpr: spec.constexpr, Pos: pos})
			}
		} else {
			if p.curTokenIs(lexer.TokenColon) {
				p.addErrorAt(tok, d.name, "bitfield "+d.name)
				return "bitfield"
			}
			p.parseInitializer()
			rec.Fields = append(rec.Fields, cabs.Field{Name: d.name, Type: t, Access: access, Pos: pos})
		}
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.expect(lexer.TokenSemicolon) {
		return "malformed member"
	}
	return ""
}

// skipMemberFunction skips a constructor, destructor or operator declaration
// through its ';' or body. Braces after an identifier belong to a
// member initializer, as in X() : a{1} {}.
func (p *Parser) skipMemberFunction() {
	depth := 0
	var prev lexer.Token
	for !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenSemicolon:
			if depth == 0 {
				p.nextToken()
				return
			}
		case lexer.TokenLParen, lexer.TokenLBracket:
			depth++
		case lexer.TokenRParen, lexer.TokenRBracket:
			depth--
		case lexer.TokenLBrace:
			if depth == 0 {
				body := prev.Type != lexer.TokenIdent || prev.Literal == "override" || prev.Literal == "final"
				p.skipBalanced()
				if body {
					return
				}
				prev = lexer.Token{Type: lexer.TokenRBrace}
				continue
			}
			depth++
		case lexer.TokenRBrace:
			if depth == 0 {
				return
			}
			depth--
		}
		prev = p.curToken
		p.nextToken()
	}
}

// parseEnumSpec parses an enum-specifier, an opaque enum declaration or an
// elaborated enum name.
func (p *Parser) parseEnumSpec(s *declSpec) bool {
	tok := p.curToken
	p.nextToken() // consume 'enum'
	scoped := false
	if p.curTokenIs(lexer.TokenClass) || p.curTokenIs(lexer.TokenStruct) {
		scoped = true
		p.nextToken()
	}
	p.skipAttributes()

	name := ""
	if p.curTokenIs(lexer.TokenIdent) || p.curTokenIs(lexer.TokenScope) {
		var ok bool
		if name, ok = p.parseQualifiedName(); !ok {
			return false
		}
	}
	var underlying cabs.TypeExpr
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		us, ok := p.parseDeclSpecifiers(context{})
		if !ok {
			return false
		}
		if !us.hasType || us.def != nil {
			p.addErrorAt(tok, name, "invalid enum base type")
			return false
		}
		underlying = us.base
	}

	s.base.Tag = "enum"
	s.base.Name = name
	s.hasType = true
	if !p.curTokenIs(lexer.TokenLBrace) {
		switch {
		case name == "":
			p.addErrorAt(tok, "", "anonymous enum without a body")
			return false
		case scoped || underlying != nil:
			s.def = cabs.Enum{Name: name, Scoped: scoped, Underlying: underlying, Forward: true, Pos: p.posOf(tok)}
		default:
			s.elaborated = true
		}
		return true
	}
	if isQualified(name) {
		p.addErrorAt(tok, name, "qualified enum definition "+name)
		return false
	}

	e := cabs.Enum{Name: name, Scoped: scoped, Underlying: underlying, Pos: p.posOf(tok)}
	p.nextToken() // consume '{'
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		if !p.curTokenIs(lexer.TokenIdent) {
			p.addError(fmt.Sprintf("expected enumerator, got %s", describe(p.curToken)))
			return false
		}
		ev := cabs.Enumerator{Name: p.curToken.Literal, Pos: p.pos()}
		p.nextToken()
		p.skipAttributes()
		if p.curTokenIs(lexer.TokenAssign) {
			p.nextToken()
			ev.Value = p.collectExpr(lexer.TokenComma, lexer.TokenRBrace)
		}
		e.Values = append(e.Values, ev)
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.expect(lexer.TokenRBrace) {
		return false
	}
	s.def = e
	return true
}
