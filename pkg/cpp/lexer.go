// Package cpp implements the preprocessing stage of the binding generator:
// tokenizing, directive handling, macro capture and expansion.
package cpp

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

// TokenType classifies a preprocessing token.
type TokenType uint8

const (
	TokEOF TokenType = iota
	TokIdent
	TokNumber
	TokChar
	TokString
	TokPunct
	TokDirective   // # first on a line
	TokPaste       // ##
	TokNewline     // ends a directive
	TokSpace       // whitespace and comments
	TokPlaceholder // empty macro argument during pasting
)

var tokenTypeNames = [...]string{
	TokEOF:         "eof",
	TokIdent:       "ident",
	TokNumber:      "number",
	TokChar:        "char",
	TokString:      "string",
	TokPunct:       "punct",
	TokDirective:   "directive",
	TokPaste:       "paste",
	TokNewline:     "newline",
	TokSpace:       "space",
	TokPlaceholder: "placeholder",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// SourceLoc is a position in a header. Line and Column are 1-based.
type SourceLoc struct {
	File   string
	Line   int
	Column int
}

// Pos converts the location to a diagnostic position.
func (loc SourceLoc) Pos() diag.Pos {
	return diag.Pos{File: loc.File, Line: loc.Line, Col: loc.Column}
}

// Token is a preprocessing token.
type Token struct {
	Type TokenType
	Text string
	Loc  SourceLoc
}

// encodingPrefixes mark wide and unicode literals such as L"x" and u8'c'.
var encodingPrefixes = []string{"u8", "u", "U", "L"}

// punctuators are the multi-byte punctuators, longest first.
var punctuators = []string{
	"<<=", ">>=", "...", "->*",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "::", ".*",
}

// Lexer splits a header into preprocessing tokens. Backslash-newline splices
// are removed and comments become a single space.
type Lexer struct {
	src   string
	file  string
	off   int
	line  int
	col   int
	bol   bool
	diags diag.Bag
}

// NewLexer returns a lexer over src. A leading byte order mark is dropped.
func NewLexer(src, file string) *Lexer {
	return &Lexer{
		src:  strings.TrimPrefix(src, "\ufeff"),
		file: file,
		line: 1,
		col:  1,
		bol:  true,
	}
}

// Diagnostics returns the problems found so far, such as unterminated
// literals and comments.
func (l *Lexer) Diagnostics() []diag.Diagnostic {
	return l.diags.Items()
}

// NextToken scans the next token. At the end of input it returns TokEOF
// on every call.
func (l *Lexer) NextToken() Token {
	l.splice()
	loc := l.loc()
	if l.eof() {
		return Token{Type: TokEOF, Loc: loc}
	}

	c := l.at(0)
	switch {
	case c == '\n':
		l.next()
		l.bol = true
		return Token{Type: TokNewline, Text: "\n", Loc: loc}
	case isSpace(c):
		start := l.off
		for !l.eof() && isSpace(l.at(0)) {
			l.next()
		}
		return Token{Type: TokSpace, Text: l.src[start:l.off], Loc: loc}
	case c == '/' && l.at(1) == '/':
		for !l.eof() && l.at(0) != '\n' {
			l.next()
		}
		return Token{Type: TokSpace, Text: " ", Loc: loc}
	case c == '/' && l.at(1) == '*':
		l.skip(2)
		end := strings.Index(l.src[l.off:], "*/")
		if end < 0 {
			l.errorf(loc, "unterminated block comment")
			end = len(l.src) - l.off
		} else {
			end += 2
		}
		l.skip(end)
		return Token{Type: TokSpace, Text: " ", Loc: loc}
	case c == '#':
		return l.hash(loc)
	}

	l.bol = false
	switch {
	case c == '"' || c == '\'':
		return l.quoted(loc, l.off)
	case isDigit(c) || c == '.' && isDigit(l.at(1)):
		return l.number(loc)
	case isIdentStart(c):
		return l.ident(loc)
	}
	return l.punct(loc)
}

func (l *Lexer) errorf(loc SourceLoc, format string, args ...any) {
	l.diags.Report(diag.PreprocessorError, loc.Pos(), "", format, args...)
}

func (l *Lexer) loc() SourceLoc {
	return SourceLoc{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) eof() bool {
	return l.off >= len(l.src)
}

// at returns the byte i positions ahead, or 0 past the end.
func (l *Lexer) at(i int) byte {
	if l.off+i >= len(l.src) {
		return 0
	}
	return l.src[l.off+i]
}

func (l *Lexer) next() {
	if l.eof() {
		return
	}
	if l.src[l.off] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.off++
}

func (l *Lexer) skip(n int) {
	for range n {
		l.next()
	}
}

// splice drops backslash-newline pairs, accepting CRLF line ends.
func (l *Lexer) splice() {
	for l.at(0) == '\\' {
		n := 0
		switch {
		case l.at(1) == '\n':
			n = 2
		case l.at(1) == '\r' && l.at(2) == '\n':
			n = 3
		default:
			return
		}
		l.off += n
		l.line++
		l.col = 1
	}
}

func (l *Lexer) hash(loc SourceLoc) Token {
	directive := l.bol
	l.bol = false
	if l.at(1) == '#' {
		l.skip(2)
		return Token{Type: TokPaste, Text: "##", Loc: loc}
	}
	l.next()
	if directive {
		return Token{Type: TokDirective, Text: "#", Loc: loc}
	}
	return Token{Type: TokPunct, Text: "#", Loc: loc}
}

// quoted scans a string literal or character constant whose opening quote
// is at the current offset. start includes any encoding prefix.
func (l *Lexer) quoted(loc SourceLoc, start int) Token {
	quote := l.at(0)
	typ, what := TokString, "string literal"
	if quote == '\'' {
		typ, what = TokChar, "character constant"
	}
	l.next()
	for {
		c := l.at(0)
		if l.eof() || c == '\n' {
			l.errorf(loc, "unterminated %s", what)
			break
		}
		if c == '\\' && l.off+1 < len(l.src) {
			l.skip(2)
			continue
		}
		l.next()
		if c == quote {
			break
		}
	}
	return Token{Type: typ, Text: l.src[start:l.off], Loc: loc}
}

// number scans a pp-number, which also covers suffixes, exponent signs and
// digit separators like 1'000.
func (l *Lexer) number(loc SourceLoc) Token {
	start := l.off
	for !l.eof() {
		c := l.at(0)
		switch {
		case (c == 'e' || c == 'E' || c == 'p' || c == 'P') && (l.at(1) == '+' || l.at(1) == '-'):
			l.skip(2)
		case c == '\'' && isIdentContinue(l.at(1)):
			l.next()
		case isIdentContinue(c) || c == '.':
			l.next()
		default:
			return Token{Type: TokNumber, Text: l.src[start:l.off], Loc: loc}
		}
	}
	return Token{Type: TokNumber, Text: l.src[start:], Loc: loc}
}

func (l *Lexer) ident(loc SourceLoc) Token {
	rest := l.src[l.off:]
	for _, p := range encodingPrefixes {
		if len(rest) > len(p) && strings.HasPrefix(rest, p) && (rest[len(p)] == '"' || rest[len(p)] == '\'') {
			start := l.off
			l.skip(len(p))
			return l.quoted(loc, start)
		}
	}

	var sb strings.Builder
	for {
		l.splice()
		if l.eof() || !isIdentContinue(l.at(0)) {
			break
		}
		sb.WriteByte(l.at(0))
		l.next()
	}
	return Token{Type: TokIdent, Text: sb.String(), Loc: loc}
}

func (l *Lexer) punct(loc SourceLoc) Token {
	rest := l.src[l.off:]
	for _, p := range punctuators {
		if strings.HasPrefix(rest, p) {
			l.skip(len(p))
			return Token{Type: TokPunct, Text: p, Loc: loc}
		}
	}
	_, size := utf8.DecodeRuneInString(rest)
	l.skip(size)
	return Token{Type: TokPunct, Text: rest[:size], Loc: loc}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// TokensToString joins token texts back into source text.
func TokensToString(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// IsIdentifier reports whether s is a valid macro or parameter name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
