package sema

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
	"github.com/raymyers/ralph-bindgen/pkg/parser"
	"gopkg.in/yaml.v3"
)

// BuildSpec is one case from sema.yaml.
type BuildSpec struct {
	Name           string   `yaml:"name"`
	Units          []string `yaml:"units"`
	AssumeCLinkage bool     `yaml:"assume_c_linkage"`
	Dump           string   `yaml:"dump"`
	Diagnostics    []string `yaml:"diagnostics"`
}

type BuildFile struct {
	Tests []BuildSpec `yaml:"tests"`
}

func parseUnit(t *testing.T, name, src string) Unit {
	t.Helper()
	res, err := cpp.Preprocess(src, name, cpp.PreprocessorOptions{})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	p := parser.New(lexer.New(res.Text), name)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors in %s: %v", name, errs)
	}
	return Unit{Name: name, Program: prog, Macros: res.Macros}
}

func buildSources(t *testing.T, opts Options, srcs ...string) *Model {
	t.Helper()
	units := make([]Unit, len(srcs))
	for i, src := range srcs {
		units[i] = parseUnit(t, fmt.Sprintf("unit%d.h", i), src)
	}
	return Build(units, opts)
}

func dumpString(m *Model) string {
	var out strings.Builder
	m.Dump(&out)
	return out.String()
}

func diagSummary(m *Model) []string {
	var out []string
	for _, d := range m.Diagnostics {
		out = append(out, d.Code.String()+" "+d.Subject)
	}
	return out
}

func TestBuildYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/sema.yaml")
	if err != nil {
		t.Fatalf("failed to read sema.yaml: %v", err)
	}
	var file BuildFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse sema.yaml: %v", err)
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			m := buildSources(t, Options{AssumeCLinkage: tc.AssumeCLinkage}, tc.Units...)

			if got := dumpString(m); got != tc.Dump {
				t.Errorf("model mismatch\nexpected:\n%s\ngot:\n%s", tc.Dump, got)
			}
			got := diagSummary(m)
			if len(got) != len(tc.Diagnostics) {
				t.Fatalf("diagnostics: expected %v, got %v", tc.Diagnostics, m.Diagnostics)
			}
			for i := range got {
				if got[i] != tc.Diagnostics[i] {
					t.Errorf("diagnostics[%d]: expected %q, got %q", i, tc.Diagnostics[i], got[i])
				}
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	srcs := []string{
		"#define A 1\nstruct X { int a; };\nenum E { One, Two };\n",
		"#define B (A + 1)\nstruct Y { X x; double d; };\ntypedef Y* PY;\n",
	}
	first := dumpString(buildSources(t, Options{}, srcs...))
	for i := 0; i < 5; i++ {
		if got := dumpString(buildSources(t, Options{}, srcs...)); got != first {
			t.Fatalf("run %d differs\nfirst:\n%s\ngot:\n%s", i, first, got)
		}
	}
}

func TestConstantsAcrossUnits(t *testing.T) {
	m := buildSources(t, Options{},
		"#define BASE 0x100\n",
		"#define NEXT (BASE + 1)\n")

	c, ok := m.Constant("NEXT")
	if !ok {
		t.Fatalf("NEXT not resolved; diagnostics: %v", m.Diagnostics)
	}
	if got := c.Value.Big().Int64(); got != 0x101 {
		t.Errorf("NEXT = %d, want %d", got, 0x101)
	}
	if c.Origin.Unit != 1 {
		t.Errorf("NEXT unit = %d, want 1", c.Origin.Unit)
	}
}

func TestMacroFuncCasts(t *testing.T) {
	m := buildSources(t, Options{},
		"#define MAKE(sev, code) ((HRESULT)(((unsigned long)(sev) << 31) | (code)))\n")
	if len(m.MacroFuncs) != 1 {
		t.Fatalf("expected one macro function, got %d; diagnostics: %v", len(m.MacroFuncs), m.Diagnostics)
	}
	mf := m.MacroFuncs[0]
	if mf.Kind != macro.FuncPure {
		t.Fatalf("MAKE kind = %v, want pure", mf.Kind)
	}
	if got, ok := mf.Casts["HRESULT"]; !ok || got != macro.Int32 {
		t.Errorf("HRESULT cast = %v, %v; want int32", got, ok)
	}
}

func TestLongBits(t *testing.T) {
	tests := []struct {
		name     string
		longBits int
		size     int64
	}{
		{"llp64", 0, 4},
		{"lp64", 64, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := buildSources(t, Options{LongBits: tt.longBits}, "struct L { long v; };\n")
			rec, ok := m.Record(ctypes.QName{Name: "L"})
			if !ok {
				t.Fatalf("L not laid out")
			}
			if rec.Size != tt.size {
				t.Errorf("size = %d, want %d", rec.Size, tt.size)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := buildSources(t, Options{}, "struct A { int x; };\nstruct B { int y; };\n")
	c := m.Clone()
	c.Records = c.Records[:1]
	c.Index()

	if len(m.Records) != 2 {
		t.Errorf("original has %d records after clone edit, want 2", len(m.Records))
	}
	if _, ok := m.Record(ctypes.QName{Name: "B"}); !ok {
		t.Errorf("original lost B")
	}
	if _, ok := c.Record(ctypes.QName{Name: "B"}); ok {
		t.Errorf("clone still has B")
	}
}

func TestUnderlyingFollowsTypedefs(t *testing.T) {
	m := buildSources(t, Options{}, "typedef int A;\ntypedef A B;\ntypedef B C;\n")
	got := m.Underlying(ctypes.Tnamed{Name: ctypes.QName{Name: "C"}})
	if _, ok := got.(ctypes.Tint); !ok {
		t.Errorf("Underlying(C) = %v, want an integer", got)
	}
}
