package macro

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

// ParseOptions configures Parse.
type ParseOptions struct {
	// Params are the parameters of a function-like macro.
	Params []string
	// IsType reports whether an identifier names a type, which makes
	// "(NAME) - x" a cast instead of a subtraction.
	IsType func(name string) bool
	// LongBits is the width of long; 32 when zero.
	LongBits int
}

// Parse parses an expression from preprocessing tokens. Whitespace tokens are
// ignored. Constructs outside the supported grammar yield an UnsupportedError;
// malformed numbers yield a literal error matching literal.ErrMalformed.
func Parse(tokens []cpp.Token, opts ParseOptions) (Expr, error) {
	p := &parser{opts: opts}
	for _, t := range tokens {
		if t.Type == cpp.TokSpace || t.Type == cpp.TokNewline {
			continue
		}
		if p.isPunct(t, "#") || p.isPunct(t, "##") {
			return nil, unsupported("stringification or token pasting")
		}
		p.tokens = append(p.tokens, t)
	}
	if len(p.tokens) == 0 {
		return nil, unsupported("empty expression")
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.unexpected()
	}
	return e, nil
}

// ParseString tokenizes and parses text.
func ParseString(text string, opts ParseOptions) (Expr, error) {
	return Parse(cpp.Tokenize(text, "<expr>"), opts)
}

type parser struct {
	tokens []cpp.Token
	pos    int
	opts   ParseOptions
}

func (p *parser) peek() cpp.Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) cpp.Token {
	if p.pos+n >= len(p.tokens) {
		return cpp.Token{Type: cpp.TokEOF}
	}
	return p.tokens[p.pos+n]
}

func (p *parser) isPunct(tok cpp.Token, text string) bool {
	return (tok.Type == cpp.TokPunct || tok.Type == cpp.TokDirective || tok.Type == cpp.TokPaste) && tok.Text == text
}

func (p *parser) match(text string) bool {
	if p.isPunct(p.peek(), text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.match(text) {
		return p.unexpected()
	}
	return nil
}

func (p *parser) unexpected() error {
	tok := p.peek()
	if tok.Type == cpp.TokEOF {
		return unsupported("incomplete expression")
	}
	return unsupported("unexpected %q", tok.Text)
}

var assignmentOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"<<=": true, ">>=": true, "&=": true, "^=": true, "|=": true,
}

// binaryLevels lists binary operators from loosest to tightest binding.
// Levels marked unsupported are recognised only to report them.
var binaryLevels = []struct {
	ops         []string
	unsupported string
}{
	{[]string{"||"}, "logical operator"},
	{[]string{"&&"}, "logical operator"},
	{[]string{"|"}, ""},
	{[]string{"^"}, ""},
	{[]string{"&"}, ""},
	{[]string{"==", "!="}, "comparison"},
	{[]string{"<=", ">=", "<", ">"}, "comparison"},
	{[]string{"<<", ">>"}, ""},
	{[]string{"+", "-"}, ""},
	{[]string{"*", "/", "%"}, ""},
}

func (p *parser) parseExpr() (Expr, error) {
	e, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	switch tok := p.peek(); {
	case p.isPunct(tok, "?"):
		return nil, unsupported("conditional operator")
	case p.isPunct(tok, ","):
		return nil, unsupported("comma operator")
	case tok.Type == cpp.TokPunct && assignmentOps[tok.Text]:
		return nil, unsupported("assignment")
	}
	return e, nil
}

func (p *parser) parseBinary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op := ""
		for _, candidate := range binaryLevels[level].ops {
			if p.match(candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			return left, nil
		}
		if reason := binaryLevels[level].unsupported; reason != "" {
			return nil, unsupported("%s %s", reason, op)
		}
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, X: left, Y: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.Type == cpp.TokIdent && (tok.Text == "sizeof" || tok.Text == "alignof" || tok.Text == "_Alignof") {
		return nil, unsupported("%s", tok.Text)
	}
	if tok.Type != cpp.TokPunct {
		return p.parsePostfix()
	}
	switch tok.Text {
	case "-", "+", "~":
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: tok.Text, X: x}, nil
	case "++", "--":
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return IncDec{Op: tok.Text, X: x}, nil
	case "*":
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Deref{X: x}, nil
	case "!":
		return nil, unsupported("logical operator !")
	case "&":
		return nil, unsupported("address-of operator")
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match("->"), p.match("."):
			arrow := p.isPunct(p.tokens[p.pos-1], "->")
			field := p.peek()
			if field.Type != cpp.TokIdent {
				return nil, p.unexpected()
			}
			p.pos++
			e = Member{X: e, Field: field.Text, Arrow: arrow}
		case p.isPunct(p.peek(), "++"), p.isPunct(p.peek(), "--"):
			op := p.peek().Text
			p.pos++
			e = IncDec{Op: op, Post: true, X: e}
		case p.isPunct(p.peek(), "("):
			id, ok := e.(Ident)
			if !ok {
				return nil, unsupported("call through an expression")
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = Call{Name: id.Name, Args: args}
		case p.isPunct(p.peek(), "["):
			return nil, unsupported("subscript")
		default:
			return e, nil
		}
	}
}

func (p *parser) parseArgs() ([]Expr, error) {
	p.pos++ // (
	var args []Expr
	if p.match(")") {
		return args, nil
	}
	for {
		a, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.match(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) paramIndex(name string) int {
	for i, param := range p.opts.Params {
		if param == name {
			return i
		}
	}
	return -1
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case cpp.TokNumber:
		p.pos++
		lit, err := literal.Parse(tok.Text)
		if err != nil {
			return nil, err
		}
		return IntLit{Text: tok.Text, Value: lit.Value, Radix: lit.Radix}, nil
	case cpp.TokChar:
		p.pos++
		v, err := literal.ParseChar(tok.Text)
		if err != nil {
			return nil, err
		}
		return IntLit{Text: tok.Text, Value: v, Radix: literal.Decimal}, nil
	case cpp.TokString:
		return nil, unsupported("string literal in body")
	case cpp.TokDirective, cpp.TokPaste:
		return nil, unsupported("stringification or token pasting")
	case cpp.TokIdent:
		if tok.Text == "true" || tok.Text == "false" {
			return nil, unsupported("boolean literal")
		}
		if i := p.paramIndex(tok.Text); i >= 0 {
			p.pos++
			return Param{Name: tok.Text, Index: i}, nil
		}
		return Ident{Name: p.parseQualified()}, nil
	case cpp.TokPunct:
		switch tok.Text {
		case "::":
			return Ident{Name: p.parseQualified()}, nil
		case "(":
			if cast, ok, err := p.tryCast(); ok || err != nil {
				return cast, err
			}
			p.pos++
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "#", "##":
			return nil, unsupported("stringification or token pasting")
		}
	}
	return nil, p.unexpected()
}

// parseQualified reads NAME, A::B::NAME or ::NAME. A leading :: is kept so
// lookups can tell a global reference apart.
func (p *parser) parseQualified() string {
	var parts []string
	global := p.match("::")
	for {
		tok := p.peek()
		if tok.Type != cpp.TokIdent {
			break
		}
		parts = append(parts, tok.Text)
		p.pos++
		if !p.isPunct(p.peek(), "::") || p.peekAt(1).Type != cpp.TokIdent {
			break
		}
		p.pos++
	}
	name := strings.Join(parts, "::")
	if global {
		return "::" + name
	}
	return name
}

var builtinTypeWords = map[string]bool{
	"signed": true, "unsigned": true, "char": true, "short": true, "int": true, "long": true,
	"__int8": true, "__int16": true, "__int32": true, "__int64": true,
	"const": true, "volatile": true,
}

// tryCast parses "(type) operand" at a '('. ok is false when the parenthesis
// opens an ordinary subexpression; the position is then unchanged.
func (p *parser) tryCast() (Expr, bool, error) {
	start := p.pos
	first := p.peekAt(1)
	if first.Type != cpp.TokIdent {
		return nil, false, nil
	}

	var cast Cast
	if builtinTypeWords[first.Text] {
		p.pos++
		var words []string
		for p.peek().Type == cpp.TokIdent && builtinTypeWords[p.peek().Text] {
			words = append(words, p.peek().Text)
			p.pos++
		}
		t, err := builtinType(words, p.opts.LongBits)
		if err != nil {
			return nil, true, err
		}
		cast.Builtin = &t
		if p.isPunct(p.peek(), "*") {
			return nil, true, unsupported("pointer cast")
		}
	} else {
		if p.paramIndex(first.Text) >= 0 {
			return nil, false, nil
		}
		p.pos++
		name := p.parseQualified()
		known := p.opts.IsType != nil && p.opts.IsType(name)
		switch {
		case known && p.isPunct(p.peek(), "*"):
			return nil, true, unsupported("pointer cast")
		case p.isPunct(p.peek(), ")") && (known || startsOperand(p.peekAt(1))):
			cast.TypeName = name
		default:
			p.pos = start
			return nil, false, nil
		}
	}

	if err := p.expect(")"); err != nil {
		return nil, true, err
	}
	x, err := p.parseUnary()
	if err != nil {
		return nil, true, err
	}
	cast.X = x
	return cast, true, nil
}

// startsOperand reports whether tok can only begin an operand, never continue
// an expression as a binary operator.
func startsOperand(tok cpp.Token) bool {
	switch tok.Type {
	case cpp.TokNumber, cpp.TokChar, cpp.TokIdent:
		return true
	case cpp.TokPunct:
		return tok.Text == "(" || tok.Text == "~"
	}
	return false
}

// builtinType maps a sequence of integer type keywords to a fixed-width type.
func builtinType(words []string, longBits int) (IntType, error) {
	if longBits == 0 {
		longBits = 32
	}
	signed := true
	width := 0
	longs := 0
	for _, w := range words {
		switch w {
		case "unsigned":
			signed = false
		case "signed", "const", "volatile":
		case "char", "__int8":
			width = 8
		case "short", "__int16":
			width = 16
		case "__int32":
			width = 32
		case "__int64":
			width = 64
		case "long":
			longs++
		case "int":
			if width == 0 {
				width = 32
			}
		}
	}
	switch {
	case longs >= 2:
		width = 64
	case longs == 1 && (width == 0 || width == 32):
		width = longBits
	case width == 0:
		width = 32
	}
	if width != 8 && width != 16 && width != 32 && width != 64 {
		return IntType{}, fmt.Errorf("unsupported integer width %d", width)
	}
	return IntType{Width: literal.Width(width), Signed: signed}, nil
}
