package cpp

import (
	"strings"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

func TestTokenTypeString(t *testing.T) {
	tests := []struct {
		tt   TokenType
		want string
	}{
		{TokEOF, "eof"},
		{TokIdent, "ident"},
		{TokDirective, "directive"},
		{TokPaste, "paste"},
		{TokPlaceholder, "placeholder"},
		{TokenType(200), "TokenType(200)"},
	}
	for _, tc := range tests {
		if got := tc.tt.String(); got != tc.want {
			t.Errorf("TokenType(%d).String() = %q, want %q", tc.tt, got, tc.want)
		}
	}
}

// drain scans all of l's input, dropping the final TokEOF.
func drain(l *Lexer) []Token {
	var out []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokEOF {
			return out
		}
		out = append(out, tok)
	}
}

func significantTexts(input string) []string {
	var out []string
	for _, tok := range significant(Tokenize(input, "test.h")) {
		out = append(out, tok.Text)
	}
	return out
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"0x1F", "0x1F"},
		{"123ULL", "123ULL"},
		{"1'000'000", "1'000'000"},
		{"0x4'0000'0000ULL", "0x4'0000'0000ULL"},
		{"0xffff'ffff'ffff'ffffLL", "0xffff'ffff'ffff'ffffLL"},
		{"1E-5", "1E-5"},
		{"0b1010", "0b1010"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := significantTexts(tc.input)
			if len(got) != 1 || got[0] != tc.want {
				t.Errorf("tokens = %q, want [%q]", got, tc.want)
			}
		})
	}
}

func TestLexerSeparatorIsNotCharConstant(t *testing.T) {
	got := significantTexts("x = 1'0 + 'a';")
	want := []string{"x", "=", "1'0", "+", "'a'", ";"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestLexerCppPunctuators(t *testing.T) {
	got := significantTexts("N1::N2::d1 a->*b && c ...")
	want := []string{"N1", "::", "N2", "::", "d1", "a", "->*", "b", "&&", "c", "..."}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestLexerDirectiveMarker(t *testing.T) {
	l := NewLexer("  #define X 1\na # b", "test.h")
	toks := significant(drain(l))
	if toks[0].Type != TokDirective {
		t.Errorf("first # = %v, want directive", toks[0].Type)
	}
	for _, tok := range toks[4:] {
		if tok.Text == "#" && tok.Type != TokPunct {
			t.Errorf("mid-line # = %v, want punct", tok.Type)
		}
	}
}

func TestLexerCommentsAndContinuations(t *testing.T) {
	l := NewLexer("a /* one\ntwo */ b \\\nc // tail\nd", "test.h")
	var idents []Token
	for _, tok := range drain(l) {
		if tok.Type == TokIdent {
			idents = append(idents, tok)
		}
	}
	wantLines := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
	if len(idents) != 4 {
		t.Fatalf("got %d identifiers, want 4", len(idents))
	}
	for _, tok := range idents {
		if tok.Loc.Line != wantLines[tok.Text] {
			t.Errorf("%s at line %d, want %d", tok.Text, tok.Loc.Line, wantLines[tok.Text])
		}
	}
	if len(l.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", l.Diagnostics())
	}
}

func TestLexerCRLFContinuation(t *testing.T) {
	got := significantTexts("#define A 1 \\\r\n + 2\r\n")
	if strings.Join(got, " ") != "# define A 1 + 2" {
		t.Errorf("tokens = %q", got)
	}
}

func TestLexerReportsUnterminated(t *testing.T) {
	tests := []struct {
		input string
		want  string
		col   int
	}{
		{"int a; /* never closed", "unterminated block comment", 8},
		{"const char* s = \"abc\n;", "unterminated string literal", 17},
		{"char c = 'a\n;", "unterminated character constant", 10},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			l := NewLexer(tc.input, "test.h")
			drain(l)
			ds := l.Diagnostics()
			if len(ds) != 1 || !strings.Contains(ds[0].Message, tc.want) {
				t.Fatalf("Diagnostics() = %v, want one containing %q", ds, tc.want)
			}
			if ds[0].Code != diag.PreprocessorError {
				t.Errorf("code = %v, want PreprocessorError", ds[0].Code)
			}
			if want := (diag.Pos{File: "test.h", Line: 1, Col: tc.col}); ds[0].Pos != want {
				t.Errorf("pos = %v, want %v", ds[0].Pos, want)
			}
		})
	}
}

func TestLexerEncodingPrefixes(t *testing.T) {
	toks := significant(Tokenize(`L"wide" u8"utf" U'c' u L`, "test.h"))
	want := []struct {
		typ  TokenType
		text string
	}{
		{TokString, `L"wide"`},
		{TokString, `u8"utf"`},
		{TokChar, `U'c'`},
		{TokIdent, "u"},
		{TokIdent, "L"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(toks), toks, len(want))
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Text != w.text {
			t.Errorf("token %d = %v %q, want %v %q", i, toks[i].Type, toks[i].Text, w.typ, w.text)
		}
	}
}

func TestLexerByteOrderMark(t *testing.T) {
	toks := Tokenize("\ufeff#define X 1\n", "test.h")
	if toks[0].Type != TokDirective || toks[0].Loc.Column != 1 {
		t.Errorf("first token = %v at col %d, want directive at col 1", toks[0].Type, toks[0].Loc.Column)
	}
}

func TestTokensToStringRoundTrip(t *testing.T) {
	input := "struct Foo { int x; };\n"
	if got := TokensToString(Tokenize(input, "test.h")); got != input {
		t.Errorf("TokensToString = %q, want %q", got, input)
	}
}

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"FOO", true},
		{"_x1", true},
		{"1x", false},
		{"", false},
		{"a-b", false},
	}
	for _, tc := range tests {
		if got := IsIdentifier(tc.s); got != tc.want {
			t.Errorf("IsIdentifier(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}
