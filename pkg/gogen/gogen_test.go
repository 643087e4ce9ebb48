package gogen

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/opacity"
	"github.com/raymyers/ralph-bindgen/pkg/parser"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
	"gopkg.in/yaml.v3"
)

// GenSpec is one case from gogen.yaml. Snippets are compared line by line
// with runs of whitespace collapsed, so gofmt's column alignment does not
// matter; compact snippets are compared with all whitespace removed.
type GenSpec struct {
	Name      string   `yaml:"name"`
	Units     []string `yaml:"units"`
	Blocklist []string `yaml:"blocklist"`
	Contains  []string `yaml:"contains"`
	Compact   []string `yaml:"compact"`
	Absent    []string `yaml:"absent"`
	Ordered   []string `yaml:"ordered"`
}

type GenFile struct {
	Tests []GenSpec `yaml:"tests"`
}

func buildModel(t *testing.T, blocklist []string, srcs ...string) *sema.Model {
	t.Helper()
	units := make([]sema.Unit, len(srcs))
	for i, src := range srcs {
		name := fmt.Sprintf("unit%d.h", i)
		res, err := cpp.Preprocess(src, name, cpp.PreprocessorOptions{})
		if err != nil {
			t.Fatalf("Preprocess: %v", err)
		}
		p := parser.New(lexer.New(res.Text), name)
		prog := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			t.Fatalf("parse errors in %s: %v", name, errs)
		}
		units[i] = sema.Unit{Name: name, Program: prog, Macros: res.Macros}
	}
	m := sema.Build(units, sema.Options{})
	if len(blocklist) > 0 {
		var names []ctypes.QName
		for _, b := range blocklist {
			names = append(names, ctypes.ParseQName(b))
		}
		m = opacity.Apply(m, names)
	}
	return m
}

func squash(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return strings.Join(lines, "\n")
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestGenerateYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/gogen.yaml")
	if err != nil {
		t.Fatalf("failed to read gogen.yaml: %v", err)
	}
	var file GenFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse gogen.yaml: %v", err)
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			m := buildModel(t, tc.Blocklist, tc.Units...)
			files, err := Generate(m, Options{})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(files) != len(tc.Units) {
				t.Fatalf("expected %d files, got %d", len(tc.Units), len(files))
			}
			src := string(files[0].Source)
			got := squash(src)

			for _, want := range tc.Contains {
				if !strings.Contains(got, squash(want)) {
					t.Errorf("output does not contain\n%s\ngot:\n%s", want, src)
				}
			}
			for _, want := range tc.Compact {
				if !strings.Contains(compact(src), compact(want)) {
					t.Errorf("output does not contain %q\ngot:\n%s", want, src)
				}
			}
			for _, bad := range tc.Absent {
				if strings.Contains(got, squash(bad)) {
					t.Errorf("output unexpectedly contains %q\ngot:\n%s", bad, src)
				}
			}
			last := -1
			for _, want := range tc.Ordered {
				i := strings.Index(got, squash(want))
				if i < 0 {
					t.Errorf("output does not contain %q", want)
					continue
				}
				if i < last {
					t.Errorf("%q is out of order\ngot:\n%s", want, src)
				}
				last = i
			}
		})
	}
}

func TestGenerateHeader(t *testing.T) {
	m := buildModel(t, nil, "struct P { int x; };\n")
	files, err := Generate(m, Options{Package: "win32"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src := string(files[0].Source)
	if !strings.HasPrefix(src, "// Code generated by ralph-bindgen from unit0.h. DO NOT EDIT.\n\npackage win32\n") {
		t.Errorf("unexpected header:\n%s", src)
	}
	if files[0].Name != "unit0.go" || files[0].Unit != "unit0.h" {
		t.Errorf("file = %s from %s, want unit0.go from unit0.h", files[0].Name, files[0].Unit)
	}

	files, err = Generate(m, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(files[0].Source), "\npackage "+DefaultPackage+"\n") {
		t.Errorf("default package clause missing:\n%s", files[0].Source)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	srcs := []string{
		"#define A 1\n#define TWICE(x) ((x) * 2)\nstruct X { int a; };\nenum E { One, Two };\n",
		"#define B (A + 1)\nstruct Y { X x; double d; };\ntypedef Y* PY;\nextern \"C\" int UseY(PY y);\n",
	}
	first, err := Generate(buildModel(t, nil, srcs...), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := Generate(buildModel(t, nil, srcs...), Options{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for j := range got {
			if !bytes.Equal(got[j].Source, first[j].Source) {
				t.Fatalf("run %d, file %s differs\nfirst:\n%s\ngot:\n%s", i, got[j].Name, first[j].Source, got[j].Source)
			}
		}
	}
}

func TestConstantsRoundTrip(t *testing.T) {
	m := buildModel(t, nil,
		"#define SMALL 7\n#define MASK 0xFFFF0000u\n#define NEG (-0x10)\n#define OCT 0755\n#define WIDE 0x7FFFFFFFFFFFFFFFLL\n")
	files, err := Generate(m, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	emitted := make(map[string][]string)
	for _, line := range strings.Split(squash(string(files[0].Source)), "\n") {
		f := strings.Fields(line)
		if len(f) == 4 && f[2] == "=" {
			emitted[f[0]] = f
		}
	}
	if len(m.Constants) == 0 {
		t.Fatalf("no constants; diagnostics: %v", m.Diagnostics)
	}
	for _, c := range m.Constants {
		f, ok := emitted[c.Name.Name]
		if !ok {
			t.Errorf("constant %s not emitted", c.Name)
			continue
		}
		if f[1] != c.Value.GoType() {
			t.Errorf("%s: type %s, want %s", c.Name, f[1], c.Value.GoType())
		}
		v, err := literal.ParseGo(f[3], f[1])
		if err != nil {
			t.Errorf("%s: ParseGo(%q): %v", c.Name, f[3], err)
			continue
		}
		if v.Big().Cmp(c.Value.Big()) != 0 {
			t.Errorf("%s: round trip gives %s, want %s", c.Name, v.Big(), c.Value.Big())
		}
	}
}

func TestConstraintDeclaredOnce(t *testing.T) {
	m := buildModel(t, nil,
		"struct A { int a; };\n",
		"#define ONE(x) ((x) + 1)\n",
		"#define TWO(x) ((x) + 2)\n")
	files, err := Generate(m, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	decl := "type " + constraintName + " interface"
	for i, want := range []bool{false, true, false} {
		if got := strings.Contains(string(files[i].Source), decl); got != want {
			t.Errorf("%s declares the constraint: %v, want %v", files[i].Name, got, want)
		}
	}
	if !strings.Contains(string(files[2].Source), "func TWO[T "+constraintName+"](x T) T {") {
		t.Errorf("TWO not emitted in %s:\n%s", files[2].Name, files[2].Source)
	}
}

func TestDeclarationsStayInTheirUnit(t *testing.T) {
	m := buildModel(t, nil,
		"struct A { int a; };\n",
		"struct B { A a; };\nextern \"C\" void TakeB(B* b);\n")
	files, err := Generate(m, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(string(files[0].Source), "type B struct") {
		t.Errorf("B emitted in %s", files[0].Name)
	}
	if !strings.Contains(string(files[1].Source), "type B struct") {
		t.Errorf("B missing from %s", files[1].Name)
	}
	if strings.Contains(string(files[0].Source), "LoadUnit") {
		t.Errorf("%s has no functions but declares a Load function", files[0].Name)
	}
	if !strings.Contains(string(files[1].Source), "func LoadUnit1(lib ffi.Lib) error {") {
		t.Errorf("Load function missing from %s:\n%s", files[1].Name, files[1].Source)
	}
}

func TestFileNames(t *testing.T) {
	tests := []struct {
		name  string
		units []string
		want  []string
	}{
		{"plain", []string{"include/winbase.h", "winuser.hpp"}, []string{"winbase.go", "winuser.go"}},
		{"duplicate bases", []string{"a/types.h", "b/types.h", "c/types.h"}, []string{"types.go", "types_1.go", "types_2.go"}},
		{"test suffix", []string{"api_test.h"}, []string{"api_test_h.go"}},
		{"windows separators", []string{`sdk\um\objbase.h`}, []string{"objbase.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileNames(tt.units)
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("FileNames(%v) = %v, want %v", tt.units, got, tt.want)
			}
		})
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"keyword", ident("type"), "type_"},
		{"plain", ident("value"), "value"},
		{"qualified", typeName(ctypes.QName{Path: []string{"N1", "N2"}, Name: "Directions"}), "N1_N2_Directions"},
		{"lower-case namespace", typeName(ctypes.QName{Path: []string{"ns"}, Name: "Secret"}), "Ns_Secret"},
		{"lower-case type", typeName(ctypes.QName{Name: "point"}), "Point"},
		{"lower-case constant", constName("cfg::max_depth"), "Cfg_max_depth"},
		{"export", exportName("refcount"), "Refcount"},
		{"unit ident", unitIdent("include/win-types.go"), "WinTypes"},
		{"unit ident digit", unitIdent("3d.go"), "Unit3d"},
		{"unique", strings.Join(uniqueNames([]string{"x", "x", "y", "x"}), " "), "x x_1 y x_2"},
		{"param names", strings.Join(paramNames([]string{"", "err", "a"}, 4), " "), "p0 err_ a p3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStorage(t *testing.T) {
	tests := []struct {
		size, align int64
		want        string
	}{
		{0, 0, "_ [0]byte"},
		{16, 8, "_ [2]uint64"},
		{12, 4, "_ [3]uint32"},
		{6, 2, "_ [3]uint16"},
		{5, 1, "_ [5]uint8"},
		{12, 8, "_ [3]uint32"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := storage(tt.size, tt.align); got != tt.want {
				t.Errorf("storage(%d, %d) = %q, want %q", tt.size, tt.align, got, tt.want)
			}
		})
	}
}
