package cpp

import (
	"testing"
)

func parseDirective(t *testing.T, line string) *Directive {
	t.Helper()
	toks := Tokenize(line, "test.h")
	i := 0
	for toks[i].Type != TokDirective {
		i++
	}
	dir, err := ParseDirectiveFromTokens(toks[i+1:], toks[i].Loc)
	if err != nil {
		t.Fatalf("ParseDirectiveFromTokens(%q) error: %v", line, err)
	}
	return dir
}

func TestParseDefine(t *testing.T) {
	tests := []struct {
		line     string
		name     string
		function bool
		params   []string
		variadic bool
		body     string
	}{
		{"#define E_FOO 0x1c00", "E_FOO", false, nil, false, "0x1c00"},
		{"#define EMPTY", "EMPTY", false, nil, false, ""},
		{"#define PAREN (1 << 4)", "PAREN", false, nil, false, "(1 << 4)"},
		{"#define F(x, y) ((x) + (y))", "F", true, []string{"x", "y"}, false, "((x) + (y))"},
		{"#define G() 1", "G", true, nil, false, "1"},
		{"#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)", "LOG", true, []string{"fmt"}, true, "printf(fmt, __VA_ARGS__)"},
		{"#define GNU(args...) f(args)", "GNU", true, []string{"args"}, true, "f(args)"},
		{"#define H(x)x", "H", true, []string{"x"}, false, "x"},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			dir := parseDirective(t, tc.line)
			if dir.Type != DIR_DEFINE || dir.Identifier != tc.name {
				t.Fatalf("got %v %q, want define %q", dir.Type, dir.Identifier, tc.name)
			}
			if dir.IsFunctionLike != tc.function || dir.IsVariadic != tc.variadic {
				t.Errorf("function=%v variadic=%v, want %v %v", dir.IsFunctionLike, dir.IsVariadic, tc.function, tc.variadic)
			}
			if len(dir.Params) != len(tc.params) {
				t.Fatalf("params = %v, want %v", dir.Params, tc.params)
			}
			for i := range tc.params {
				if dir.Params[i] != tc.params[i] {
					t.Errorf("param %d = %q, want %q", i, dir.Params[i], tc.params[i])
				}
			}
			if got := TokensToString(dir.Replacement); got != tc.body {
				t.Errorf("body = %q, want %q", got, tc.body)
			}
		})
	}
}

func TestObjectMacroWithParenBody(t *testing.T) {
	dir := parseDirective(t, "#define X (2)")
	if dir.IsFunctionLike {
		t.Error("a space before '(' makes the macro object-like")
	}
}

func TestParseDirectiveErrors(t *testing.T) {
	lines := []string{
		"#define",
		"#define 1X 2",
		"#define F(x, 1) x",
		"#define F(x,) x",
		"#define F(x",
		"#undef",
		"#ifdef",
		"#if",
		"#bogus thing",
		"#include",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			toks := Tokenize(line, "test.h")
			if _, err := ParseDirectiveFromTokens(toks[1:], toks[0].Loc); err == nil {
				t.Errorf("expected error for %q", line)
			}
		})
	}
}

func TestParseOtherDirectives(t *testing.T) {
	tests := []struct {
		line string
		typ  DirectiveType
	}{
		{"#", DIR_EMPTY},
		{"#include <windows.h>", DIR_INCLUDE},
		{"#include \"bar.h\"", DIR_INCLUDE},
		{"#pragma once", DIR_PRAGMA},
		{"#line 20 \"x.h\"", DIR_LINE},
		{"# 7 \"y.h\" 2", DIR_LINEMARKER},
		{"#error stop here", DIR_ERROR},
		{"#elif defined(A)", DIR_ELIF},
		{"#endif // FOO_H", DIR_ENDIF},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			if dir := parseDirective(t, tc.line); dir.Type != tc.typ {
				t.Errorf("type = %v, want %v", dir.Type, tc.typ)
			}
		})
	}

	if dir := parseDirective(t, "#include <sys/types.h>"); dir.HeaderName != "<sys/types.h>" {
		t.Errorf("HeaderName = %q", dir.HeaderName)
	}
	if dir := parseDirective(t, "#line 20 \"x.h\""); dir.LineNum != 20 || dir.FileName != "x.h" {
		t.Errorf("line directive = %d %q", dir.LineNum, dir.FileName)
	}
	if dir := parseDirective(t, "#error stop  here"); dir.Message != "stop  here" {
		t.Errorf("Message = %q", dir.Message)
	}
}

func TestMacroTable(t *testing.T) {
	mt := NewMacroTable()
	if !mt.IsDefined("__cplusplus") {
		t.Fatal("__cplusplus should be predefined")
	}
	if m := mt.Lookup("__cplusplus"); !m.Predefined || m.Body() != CPlusPlusVersion {
		t.Errorf("__cplusplus = %+v", m)
	}

	loc := func(line int) SourceLoc { return SourceLoc{File: "a.h", Line: line} }
	if err := mt.DefineSimple("B", "2", loc(5)); err != nil {
		t.Fatal(err)
	}
	if err := mt.DefineSimple("A", "1", loc(3)); err != nil {
		t.Fatal(err)
	}
	if err := mt.DefineSimple("A", "10", loc(9)); err != nil {
		t.Fatal(err)
	}
	if err := mt.DefineSimple("defined", "1", loc(1)); err == nil {
		t.Error("\"defined\" must not be definable")
	}
	if err := mt.DefineFunction("F", []string{"x", "x"}, false, nil, loc(1)); err == nil {
		t.Error("duplicate parameters must be rejected")
	}

	live := mt.Live()
	if len(live) != 2 || live[0].Name != "B" || live[1].Name != "A" || live[1].Body() != "10" {
		t.Fatalf("Live() = %v", macroNames(live))
	}

	mt.Undefine("B")
	mt.Undefine("NOT_THERE")
	if mt.IsDefined("B") || len(mt.Live()) != 1 {
		t.Error("Undefine did not remove B")
	}
}

func TestApplyCmdlineDefines(t *testing.T) {
	mt := NewMacroTable()
	if err := mt.ApplyCmdlineDefines([]string{"WIN32", "LEVEL=3", "GONE"}, []string{"GONE"}); err != nil {
		t.Fatal(err)
	}
	if m := mt.Lookup("WIN32"); m == nil || m.Body() != "1" || !m.Predefined {
		t.Errorf("WIN32 = %+v", m)
	}
	if m := mt.Lookup("LEVEL"); m == nil || m.Body() != "3" {
		t.Errorf("LEVEL = %+v", m)
	}
	if mt.IsDefined("GONE") {
		t.Error("-U should win over -D")
	}
	if len(mt.Live()) != 0 {
		t.Error("command-line macros must not be live unit macros")
	}
	if err := mt.ApplyCmdlineDefines([]string{"1BAD"}, nil); err == nil {
		t.Error("expected error for invalid -D name")
	}
}

func macroNames(ms []*Macro) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}
