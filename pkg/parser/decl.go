package parser

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
)

// ignoredIdents are vendor words that may appear among specifiers or
// declarators and do not change the declared type.
var ignoredIdents = map[string]bool{
	"__cdecl":           true,
	"_cdecl":            true,
	"__stdcall":         true,
	"_stdcall":          true,
	"__fastcall":        true,
	"__thiscall":        true,
	"__vectorcall":      true,
	"__clrcall":         true,
	"__ptr32":           true,
	"__ptr64":           true,
	"__sptr":            true,
	"__uptr":            true,
	"__unaligned":       true,
	"__restrict":        true,
	"__restrict__":      true,
	"restrict":          true,
	"__w64":             true,
	"__extension__":     true,
	"WINAPI":            true,
	"APIENTRY":          true,
	"CALLBACK":          true,
	"STDMETHODCALLTYPE": true,
}

// declSpec is the specifier part of a declaration.
type declSpec struct {
	base    cabs.BaseType
	hasType bool
	// def is a record or enum defined by the specifiers, as in struct S { ... } s;
	def cabs.Definition
	// elaborated is set for "struct S" or "enum E" without a body.
	elaborated bool
	kind       cabs.RecordKind

	static    bool
	extern    bool
	inline    bool
	constexpr bool
	virtual   bool
	explicit  bool
	friend    bool
}

func (s *declSpec) anonymous() bool {
	return s.def != nil && s.def.DefName() == ""
}

// nameAnonymous gives an anonymous record or enum its synthesized name.
func (s *declSpec) nameAnonymous(name string) {
	switch d := s.def.(type) {
	case cabs.Record:
		d.Name = name
		s.def = d
	case cabs.Enum:
		d.Name = name
		s.def = d
	}
	s.base.Name = name
}

// definitions returns the record or enum the specifiers define. An anonymous
// one takes name; an anonymous record given no name is dropped.
func (s *declSpec) definitions(name string) []cabs.Definition {
	if s.def == nil {
		return nil
	}
	if s.anonymous() && name != "" {
		s.nameAnonymous(name)
	}
	// Anonymous enums still declare their enumerators.
	if _, isRecord := s.def.(cabs.Record); isRecord && s.anonymous() {
		return nil
	}
	return []cabs.Definition{s.def}
}

// forward returns the forward declaration made by "struct S;".
func (s *declSpec) forward(pos diag.Pos) cabs.Definition {
	if !s.elaborated || s.base.Tag == "enum" {
		return nil
	}
	return cabs.Record{Kind: s.kind, Name: s.base.Name, Forward: true, Pos: pos}
}

// skipAttributes skips __declspec(...), __attribute__((...)), alignas(...),
// [[...]] and the words in ignoredIdents.
func (p *Parser) skipAttributes() {
	for {
		switch {
		case p.curTokenIs(lexer.TokenDeclspec), p.curTokenIs(lexer.TokenAttribute), p.curTokenIs(lexer.TokenAlignas):
			p.nextToken()
			if p.curTokenIs(lexer.TokenLParen) {
				p.skipBalanced()
			}
		case p.curTokenIs(lexer.TokenLBracket) && p.peekTokenIs(lexer.TokenLBracket):
			p.skipBalanced()
		case p.curTokenIs(lexer.TokenIdent) && ignoredIdents[p.curToken.Literal]:
			p.nextToken()
		default:
			return
		}
	}
}

// parseDeclSpecifiers reads storage classes, cv-qualifiers, function
// specifiers and the type specifier. It stops at the first token that can
// only start a declarator. A constructor name at record scope is left for
// the caller.
func (p *Parser) parseDeclSpecifiers(ctx context) (declSpec, bool) {
	var s declSpec
	for {
		p.skipAttributes()
		tok := p.curToken
		switch tok.Type {
		case lexer.TokenConst:
			s.base.Const = true
		case lexer.TokenVolatile:
			s.base.Volatile = true
		case lexer.TokenStatic:
			s.static = true
		case lexer.TokenExtern:
			s.extern = true
		case lexer.TokenInline:
			s.inline = true
		case lexer.TokenConstexpr:
			s.constexpr = true
		case lexer.TokenVirtual:
			s.virtual = true
		case lexer.TokenExplicit:
			s.explicit = true
		case lexer.TokenFriend:
			s.friend = true
		case lexer.TokenMutable, lexer.TokenTypename:
		case lexer.TokenStruct, lexer.TokenClass, lexer.TokenUnion, lexer.TokenInterface:
			if s.hasType {
				return s, true
			}
			if !p.parseRecordSpec(&s) {
				return s, false
			}
			continue
		case lexer.TokenEnum:
			if s.hasType {
				return s, true
			}
			if !p.parseEnumSpec(&s) {
				return s, false
			}
			continue
		case lexer.TokenAuto, lexer.TokenDecltype:
			p.addError("deduced type")
			return s, false
		case lexer.TokenIdent, lexer.TokenScope:
			if s.hasType {
				return s, true
			}
			if tok.Type == lexer.TokenIdent && tok.Literal == ctx.record && p.peekTokenIs(lexer.TokenLParen) {
				return s, true
			}
			name, ok := p.parseQualifiedName()
			if !ok {
				return s, false
			}
			if p.curTokenIs(lexer.TokenLt) {
				p.addErrorAt(tok, name, "template type "+name)
				return s, false
			}
			s.base.Name = name
			s.hasType = true
			continue
		default:
			if !tok.Type.IsFundamental() || s.base.Name != "" {
				return s, true
			}
			s.base.Words = append(s.base.Words, tok.Type.String())
			s.hasType = true
		}
		p.nextToken()
	}
}

// parseQualifiedName reads an optionally qualified identifier. A leading
// "::" is kept.
func (p *Parser) parseQualifiedName() (string, bool) {
	var b strings.Builder
	if p.curTokenIs(lexer.TokenScope) {
		b.WriteString("::")
		p.nextToken()
	}
	for {
		if !p.curTokenIs(lexer.TokenIdent) {
			p.addError(fmt.Sprintf("expected name, got %s", describe(p.curToken)))
			return "", false
		}
		b.WriteString(p.curToken.Literal)
		p.nextToken()
		if !p.curTokenIs(lexer.TokenScope) || !p.peekTokenIs(lexer.TokenIdent) {
			return b.String(), true
		}
		b.WriteString("::")
		p.nextToken()
	}
}

// declarator is a parsed declarator: the declared name, if any, and a
// function that builds the declared type from the specifier type.
type declarator struct {
	name     string
	operator bool
	simple   bool
	wrap     func(cabs.TypeExpr) cabs.TypeExpr
}

// plain reports whether the declarator is just a name.
func (d declarator) plain() bool {
	return d.simple
}

type wrapFunc = func(cabs.TypeExpr) cabs.TypeExpr

// parseDeclarator parses pointer operators, the declarator id and the array
// and function suffixes. Pointer operators bind first, then suffixes from
// the outside in, then any parenthesized inner declarator.
func (p *Parser) parseDeclarator() (declarator, bool) {
	var ptrs []wrapFunc
	for {
		p.skipAttributes()
		switch {
		case p.curTokenIs(lexer.TokenStar):
			p.nextToken()
			isConst := false
			for p.curTokenIs(lexer.TokenConst) || p.curTokenIs(lexer.TokenVolatile) ||
				(p.curTokenIs(lexer.TokenIdent) && ignoredIdents[p.curToken.Literal]) {
				if p.curTokenIs(lexer.TokenConst) {
					isConst = true
				}
				p.nextToken()
			}
			ptrs = append(ptrs, func(t cabs.TypeExpr) cabs.TypeExpr {
				return cabs.PointerType{Elem: t, Const: isConst}
			})
			continue
		case p.curTokenIs(lexer.TokenAmpersand), p.curTokenIs(lexer.TokenAnd):
			rvalue := p.curTokenIs(lexer.TokenAnd)
			p.nextToken()
			ptrs = append(ptrs, func(t cabs.TypeExpr) cabs.TypeExpr {
				return cabs.ReferenceType{Elem: t, Rvalue: rvalue}
			})
			continue
		case p.curTokenIs(lexer.TokenCaret):
			p.addError("block pointer")
			return declarator{}, false
		}
		break
	}

	d := declarator{wrap: func(t cabs.TypeExpr) cabs.TypeExpr { return t }}
	var inner *declarator
	switch {
	case p.curTokenIs(lexer.TokenLParen) && p.startsNestedDeclarator():
		p.nextToken() // consume '('
		in, ok := p.parseDeclarator()
		if !ok {
			return declarator{}, false
		}
		if !p.expect(lexer.TokenRParen) {
			return declarator{}, false
		}
		inner = &in
		d.name = in.name
		d.operator = in.operator
	case p.curTokenIs(lexer.TokenOperator):
		p.skipOperatorName()
		d.name = "operator"
		d.operator = true
	case p.curTokenIs(lexer.TokenTilde) && p.peekTokenIs(lexer.TokenIdent):
		p.nextToken()
		d.name = "~" + p.curToken.Literal
		p.nextToken()
	case p.curTokenIs(lexer.TokenIdent), p.curTokenIs(lexer.TokenScope):
		name, ok := p.parseQualifiedName()
		if !ok {
			return declarator{}, false
		}
		if p.curTokenIs(lexer.TokenLt) {
			p.addError("template-id " + name)
			return declarator{}, false
		}
		if p.curTokenIs(lexer.TokenScope) && p.peekTokenIs(lexer.TokenOperator) {
			p.nextToken()
			p.skipOperatorName()
			name += "::operator"
			d.operator = true
		}
		d.name = name
	}
	p.skipAttributes()

	var suffixes []wrapFunc
	for {
		switch {
		case p.curTokenIs(lexer.TokenLBracket):
			p.nextToken()
			size := p.collectExpr(lexer.TokenRBracket)
			if !p.expect(lexer.TokenRBracket) {
				return declarator{}, false
			}
			suffixes = append(suffixes, func(t cabs.TypeExpr) cabs.TypeExpr {
				return cabs.ArrayType{Elem: t, Size: size}
			})
			continue
		case p.curTokenIs(lexer.TokenLParen):
			params, variadic, ok := p.parseParams()
			if !ok {
				return declarator{}, false
			}
			isConst := p.skipFunctionQualifiers()
			suffixes = append(suffixes, func(t cabs.TypeExpr) cabs.TypeExpr {
				return cabs.FuncType{Return: t, Params: params, Variadic: variadic, Const: isConst}
			})
			continue
		}
		break
	}

	d.simple = inner == nil && len(ptrs) == 0 && len(suffixes) == 0
	d.wrap = func(t cabs.TypeExpr) cabs.TypeExpr {
		for _, w := range ptrs {
			t = w(t)
		}
		for i := len(suffixes) - 1; i >= 0; i-- {
			t = suffixes[i](t)
		}
		if inner != nil {
			t = inner.wrap(t)
		}
		return t
	}
	return d, true
}

// startsNestedDeclarator reports whether the '(' at the current token opens
// a parenthesized declarator, as in void (*fp)(int), rather than a
// parameter list.
func (p *Parser) startsNestedDeclarator() bool {
	switch p.peekToken.Type {
	case lexer.TokenStar, lexer.TokenAmpersand, lexer.TokenAnd, lexer.TokenCaret:
		return true
	case lexer.TokenIdent:
		return ignoredIdents[p.peekToken.Literal]
	}
	return false
}

// skipOperatorName consumes "operator" and the operator or conversion type
// that follows, stopping before the parameter list.
func (p *Parser) skipOperatorName() {
	p.nextToken() // consume 'operator'
	if p.curTokenIs(lexer.TokenLParen) && p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		p.nextToken()
		return
	}
	for !p.curTokenIs(lexer.TokenLParen) && !p.curTokenIs(lexer.TokenSemicolon) && !p.curTokenIs(lexer.TokenEOF) {
		p.nextToken()
	}
}

// parseParams parses a parenthesized parameter list.
func (p *Parser) parseParams() ([]cabs.Param, bool, bool) {
	p.nextToken() // consume '('
	if p.curTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return nil, false, true
	}
	if p.curTokenIs(lexer.TokenVoid) && p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		p.nextToken()
		return nil, false, true
	}

	var params []cabs.Param
	variadic := false
	for {
		if p.curTokenIs(lexer.TokenEllipsis) {
			variadic = true
			p.nextToken()
			break
		}
		start := p.curToken
		spec, ok := p.parseDeclSpecifiers(context{})
		if !ok {
			return nil, false, false
		}
		if !spec.hasType {
			p.addError(fmt.Sprintf("expected parameter type, got %s", describe(p.curToken)))
			return nil, false, false
		}
		if spec.def != nil {
			p.addErrorAt(start, "", "type defined in a parameter list")
			return nil, false, false
		}
		d, ok := p.parseDeclarator()
		if !ok {
			return nil, false, false
		}
		params = append(params, cabs.Param{Name: d.name, Type: d.wrap(spec.base)})
		if p.curTokenIs(lexer.TokenAssign) {
			p.nextToken()
			p.collectExpr(lexer.TokenComma, lexer.TokenRParen)
		}
		if p.curTokenIs(lexer.TokenEllipsis) {
			variadic = true
			p.nextToken()
			break
		}
		if !p.nextDeclarator() {
			break
		}
	}
	if !p.expect(lexer.TokenRParen) {
		return nil, false, false
	}
	return params, variadic, true
}

// skipFunctionQualifiers consumes cv- and ref-qualifiers and exception
// specifications after a parameter list. It reports whether const was seen.
func (p *Parser) skipFunctionQualifiers() bool {
	isConst := false
	for {
		p.skipAttributes()
		switch {
		case p.curTokenIs(lexer.TokenConst):
			isConst = true
			p.nextToken()
		case p.curTokenIs(lexer.TokenVolatile):
			p.nextToken()
		case p.curTokenIs(lexer.TokenAmpersand) || p.curTokenIs(lexer.TokenAnd):
			// Ref-qualifiers only follow a parameter list before ';', '{', '=' or a specifier.
			switch p.peekToken.Type {
			case lexer.TokenSemicolon, lexer.TokenLBrace, lexer.TokenAssign, lexer.TokenIdent, lexer.TokenNoexcept, lexer.TokenRParen:
				p.nextToken()
			default:
				return isConst
			}
		case p.curTokenIs(lexer.TokenNoexcept), p.curTokenIs(lexer.TokenThrow):
			p.nextToken()
			if p.curTokenIs(lexer.TokenLParen) {
				p.skipBalanced()
			}
		default:
			return isConst
		}
	}
}

// skipFunctionTail consumes virt-specifiers and a trailing "= 0",
// "= default" or "= delete". It reports whether the function is pure.
func (p *Parser) skipFunctionTail() bool {
	pure := false
	for {
		p.skipAttributes()
		switch {
		case p.curTokenIs(lexer.TokenIdent) && (p.curToken.Literal == "override" || p.curToken.Literal == "final"):
			p.nextToken()
		case p.curTokenIs(lexer.TokenAssign):
			p.nextToken()
			switch {
			case p.curTokenIs(lexer.TokenNumber) && p.curToken.Literal == "0":
				pure = true
				p.nextToken()
			case p.curTokenIs(lexer.TokenDefault), p.curTokenIs(lexer.TokenDelete):
				p.nextToken()
			}
		default:
			return pure
		}
	}
}
