package gogen

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
)

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// ident makes s usable as a Go identifier: keywords get a trailing '_'.
func ident(s string) string {
	if goKeywords[s] {
		return s + "_"
	}
	return s
}

// typeName is the exported Go name of a qualified C++ name:
// N1::N2::Directions is N1_N2_Directions and ns::Mode is Ns_Mode.
func typeName(q ctypes.QName) string {
	return exportName(q.GoName())
}

// constName is the Go name of a constant or enumerator key.
func constName(key string) string {
	return typeName(ctypes.ParseQName(key))
}

// exportName capitalises the first letter of a field or method name.
func exportName(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return ident(string(r))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// unitIdent is the CamelCase form of a unit's base name without its
// extension: include/win-types.h is WinTypes.
func unitIdent(unit string) string {
	base := path.Base(strings.ReplaceAll(unit, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	var b strings.Builder
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	s := b.String()
	if s == "" || unicode.IsDigit([]rune(s)[0]) {
		s = "Unit" + s
	}
	return s
}

// FileNames returns the output file name of each unit. Units with the same
// base name are numbered in input order.
func FileNames(units []string) []string {
	out := make([]string, len(units))
	used := make(map[string]bool, len(units))
	for i, u := range units {
		base := path.Base(strings.ReplaceAll(u, "\\", "/"))
		base = strings.TrimSuffix(base, path.Ext(base))
		if base == "" || base == "." || base == "/" {
			base = "unit"
		}
		if strings.HasSuffix(base, "_test") {
			base += "_h"
		}
		name := base + ".go"
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s_%d.go", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// uniqueNames suffixes repeated names with _1, _2, ... in order.
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		name := n
		for k := 1; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", n, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
