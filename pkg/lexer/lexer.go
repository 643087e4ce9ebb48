// Package lexer tokenizes preprocessed C/C++ declaration text.
package lexer

import (
	"fmt"
)

// Lexer tokenizes C/C++ source code
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
	errors  []string
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Errors returns problems found while scanning, such as unterminated literals.
func (l *Lexer) Errors() []string {
	return l.errors
}

func (l *Lexer) addError(line, col int, msg string) {
	l.errors = append(l.errors, fmt.Sprintf("line %d, col %d: %s", line, col, msg))
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekCharAt(n int) byte {
	if l.readPos+n >= len(l.input) {
		return 0
	}
	return l.input[l.readPos+n]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		if l.pos < len(l.input) {
			tok = l.newToken(TokenIllegal, l.ch)
			break
		}
		tok.Type = TokenEOF
		tok.Literal = ""
		return tok
	case '+':
		tok = l.either('+', TokenIncrement, '=', TokenPlusAssign, TokenPlus)
	case '-':
		if l.peekChar() == '>' {
			tok = l.twoCharToken(TokenArrow)
		} else {
			tok = l.either('-', TokenDecrement, '=', TokenMinusAssign, TokenMinus)
		}
	case '*':
		tok = l.either('=', TokenStarAssign, 0, 0, TokenStar)
	case '/':
		tok = l.either('=', TokenSlashAssign, 0, 0, TokenSlash)
	case '%':
		tok = l.either('=', TokenPercentAssign, 0, 0, TokenPercent)
	case '=':
		tok = l.either('=', TokenEq, 0, 0, TokenAssign)
	case '!':
		tok = l.either('=', TokenNe, 0, 0, TokenNot)
	case '<':
		if l.peekChar() == '<' && l.peekCharAt(1) == '=' {
			tok = l.threeCharToken(TokenShlAssign)
		} else {
			tok = l.either('<', TokenShl, '=', TokenLe, TokenLt)
		}
	case '>':
		if l.peekChar() == '>' && l.peekCharAt(1) == '=' {
			tok = l.threeCharToken(TokenShrAssign)
		} else {
			tok = l.either('>', TokenShr, '=', TokenGe, TokenGt)
		}
	case '&':
		tok = l.either('&', TokenAnd, '=', TokenAndAssign, TokenAmpersand)
	case '|':
		tok = l.either('|', TokenOr, '=', TokenOrAssign, TokenPipe)
	case '^':
		tok = l.either('=', TokenXorAssign, 0, 0, TokenCaret)
	case '~':
		tok = l.newToken(TokenTilde, l.ch)
	case '?':
		tok = l.newToken(TokenQuestion, l.ch)
	case ':':
		tok = l.either(':', TokenScope, 0, 0, TokenColon)
	case '#':
		tok = l.newToken(TokenHash, l.ch)
	case '(':
		tok = l.newToken(TokenLParen, l.ch)
	case ')':
		tok = l.newToken(TokenRParen, l.ch)
	case '{':
		tok = l.newToken(TokenLBrace, l.ch)
	case '}':
		tok = l.newToken(TokenRBrace, l.ch)
	case '[':
		tok = l.newToken(TokenLBracket, l.ch)
	case ']':
		tok = l.newToken(TokenRBracket, l.ch)
	case ';':
		tok = l.newToken(TokenSemicolon, l.ch)
	case ',':
		tok = l.newToken(TokenComma, l.ch)
	case '.':
		if l.peekChar() == '.' && l.peekCharAt(1) == '.' {
			tok = l.threeCharToken(TokenEllipsis)
		} else if isDigit(l.peekChar()) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		} else {
			tok = l.newToken(TokenDot, l.ch)
		}
	case '"':
		tok.Type = TokenString
		tok.Literal = l.readQuoted('"', tok.Line, tok.Column)
		return tok
	case '\'':
		tok.Type = TokenChar
		tok.Literal = "'" + l.readQuoted('\'', tok.Line, tok.Column) + "'"
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			if isEncodingPrefix(tok.Literal) && (l.ch == '"' || l.ch == '\'') {
				return l.prefixedLiteral(tok)
			}
			tok.Type = LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Type = TokenNumber
			tok.Literal = l.readNumber()
			return tok
		} else {
			tok = l.newToken(TokenIllegal, l.ch)
		}
	}

	l.readChar()
	return tok
}

// either returns the two-character token when the next byte is a or b, and
// the single-character token otherwise. The returned token's last byte is
// still current; NextToken consumes it.
func (l *Lexer) either(a byte, ta TokenType, b byte, tb TokenType, single TokenType) Token {
	switch next := l.peekChar(); {
	case next == a && a != 0:
		return l.twoCharToken(ta)
	case next == b && b != 0:
		return l.twoCharToken(tb)
	}
	return l.newToken(single, l.ch)
}

func (l *Lexer) twoCharToken(t TokenType) Token {
	tok := Token{Type: t, Line: l.line, Column: l.column}
	start := l.pos
	l.readChar()
	tok.Literal = l.input[start : l.pos+1]
	return tok
}

func (l *Lexer) threeCharToken(t TokenType) Token {
	tok := Token{Type: t, Line: l.line, Column: l.column}
	start := l.pos
	l.readChar()
	l.readChar()
	tok.Literal = l.input[start : l.pos+1]
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, ch byte) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v':
			l.readChar()
		case l.ch == '\\' && (l.peekChar() == '\n' || l.peekChar() == '\r'):
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			// Single-line comment
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			// Multi-line comment
			line, col := l.line, l.column
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.ch == 0 && l.pos >= len(l.input) {
					l.addError(line, col, "unterminated comment")
					return
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					break
				}
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readNumber scans a preprocessing number: digits, letters, dots, digit
// separators and exponent signs.
func (l *Lexer) readNumber() string {
	pos := l.pos
	for {
		switch {
		case isDigit(l.ch) || isLetter(l.ch) || l.ch == '.':
			prev := l.ch
			l.readChar()
			if (prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P') && (l.ch == '+' || l.ch == '-') {
				l.readChar()
			}
		case l.ch == '\'' && (isDigit(l.peekChar()) || isLetter(l.peekChar())):
			l.readChar()
		default:
			return l.input[pos:l.pos]
		}
	}
}

// readQuoted reads a string or character literal body, leaving escapes as
// written, and consumes the closing quote.
func (l *Lexer) readQuoted(quote byte, line, col int) string {
	l.readChar() // consume opening quote
	pos := l.pos
	for l.ch != quote {
		if (l.ch == 0 && l.pos >= len(l.input)) || l.ch == '\n' {
			l.addError(line, col, fmt.Sprintf("unterminated %s literal", quoteKind(quote)))
			return l.input[pos:l.pos]
		}
		if l.ch == '\\' {
			l.readChar() // skip escape char
		}
		l.readChar()
	}
	str := l.input[pos:l.pos]
	l.readChar() // consume closing quote
	return str
}

func quoteKind(q byte) string {
	if q == '\'' {
		return "character"
	}
	return "string"
}

func (l *Lexer) prefixedLiteral(tok Token) Token {
	if l.ch == '"' {
		tok.Type = TokenString
		tok.Literal = l.readQuoted('"', tok.Line, tok.Column)
		return tok
	}
	tok.Type = TokenChar
	tok.Literal = "'" + l.readQuoted('\'', tok.Line, tok.Column) + "'"
	return tok
}

func isEncodingPrefix(s string) bool {
	switch s {
	case "L", "u", "U", "u8":
		return true
	}
	return false
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// All returns every token up to and including EOF.
func (l *Lexer) All() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}
