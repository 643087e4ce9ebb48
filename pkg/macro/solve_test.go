package macro

import (
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
)

const hresultSource = `#define SEVERITY_ERROR 1
#define FACILITY_ITF 0x3F
#define MAKE_HRESULT(sev,fac,code) \
    ((HRESULT) (((unsigned long)(sev)<<31) | ((unsigned long)(fac)<<16) | ((unsigned long)(code))) )
#define E_CUSTOM MAKE_HRESULT(SEVERITY_ERROR, FACILITY_ITF, 8)
#define E_CUSTOM_9 MAKE_HRESULT(SEVERITY_ERROR, FACILITY_ITF, 9)
#define CYCLE_A (CYCLE_B + 1)
#define CYCLE_B (CYCLE_A + 1)
#define SELF SELF
#define USES_BAD (BAD + 1)
#define BAD "str"
#define UNKNOWN_REF (NOWHERE | 1)
#define EMPTY
`

type typeTable map[string]IntType

func (tt typeTable) IntType(name string, scope []string) (IntType, bool) {
	t, ok := tt[name]
	return t, ok
}

func unitMacros(t *testing.T, src string) []*cpp.Macro {
	t.Helper()
	res, err := cpp.Preprocess(src, "test.h", cpp.PreprocessorOptions{})
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(res.Diagnostics) > 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	return res.Macros
}

func objectItems(t *testing.T, macros []*cpp.Macro) []Item {
	t.Helper()
	funcs := FunctionTable(macros, nil)
	var items []Item
	for _, m := range macros {
		if m.Kind != cpp.MacroObject {
			continue
		}
		if item, ok := ObjectItem(m, funcs, ParseOptions{}); ok {
			items = append(items, item)
		}
	}
	return items
}

func TestSolveMakeHResult(t *testing.T) {
	items := objectItems(t, unitMacros(t, hresultSource))
	sol := Solve(items, typeTable{"HRESULT": Int32})

	tests := []struct {
		name   string
		value  string
		goType string
		text   string
	}{
		{"SEVERITY_ERROR", "1", "int32", "1"},
		{"FACILITY_ITF", "63", "int32", "0x3F"},
		{"E_CUSTOM", "-2143354872", "int32", "-0x7FC0FFF8"},
		{"E_CUSTOM_9", "-2143354871", "int32", "-0x7FC0FFF7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := sol[tt.name]
			if !ok {
				t.Fatalf("%s not in solution", tt.name)
			}
			if res.Err != nil {
				t.Fatalf("%s: %v", tt.name, res.Err)
			}
			if got := res.Value.String(); got != tt.value {
				t.Errorf("value = %s, want %s", got, tt.value)
			}
			if got := res.Value.GoType(); got != tt.goType {
				t.Errorf("type = %s, want %s", got, tt.goType)
			}
			if got := literal.Format(res.Value, res.Radix); got != tt.text {
				t.Errorf("Format = %s, want %s", got, tt.text)
			}
		})
	}
}

func TestSolveMakeHResultBits(t *testing.T) {
	items := objectItems(t, unitMacros(t, hresultSource))
	sol := Solve(items, typeTable{"HRESULT": Int32})
	if got := sol["E_CUSTOM"].Value.Bits; got != 0x803F0008 {
		t.Errorf("bits = %#x, want 0x803F0008", got)
	}
}

func TestSolveUnresolved(t *testing.T) {
	items := objectItems(t, unitMacros(t, hresultSource))
	sol := Solve(items, typeTable{"HRESULT": Int32})

	tests := []struct {
		name   string
		reason string
	}{
		{"CYCLE_A", "cyclic or unresolved reference: CYCLE_B"},
		{"CYCLE_B", "cyclic or unresolved reference: CYCLE_A"},
		{"SELF", "cyclic or unresolved reference: SELF"},
		{"BAD", "string literal in body"},
		{"USES_BAD", "depends on unsupported BAD"},
		{"UNKNOWN_REF", "cyclic or unresolved reference: NOWHERE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := sol[tt.name]
			if !ok {
				t.Fatalf("%s not in solution", tt.name)
			}
			if res.Err == nil {
				t.Fatalf("%s resolved to %s, want unsupported", tt.name, res.Value)
			}
			if got := res.Err.Error(); got != tt.reason {
				t.Errorf("reason = %q, want %q", got, tt.reason)
			}
		})
	}
	if _, ok := sol["EMPTY"]; ok {
		t.Error("empty macro should not be an item")
	}
}

func TestSolveScopes(t *testing.T) {
	parse := func(s string) Expr {
		e, err := ParseString(s, ParseOptions{})
		if err != nil {
			t.Fatalf("ParseString(%q): %v", s, err)
		}
		return e
	}
	u32 := Uint32
	items := []Item{
		{Name: ctypes.ParseQName("LIMIT"), Expr: parse("100")},
		{Name: ctypes.ParseQName("ns::LIMIT"), Scope: []string{"ns"}, Expr: parse("7")},
		{Name: ctypes.ParseQName("ns::Color::Red"), Kind: ItemEnumerator, Scope: []string{"ns", "Color"}, Expr: parse("LIMIT + 1")},
		{Name: ctypes.ParseQName("ns::Color::Green"), Kind: ItemEnumerator, Scope: []string{"ns", "Color"}, Expr: parse("::LIMIT + 1")},
		{Name: ctypes.ParseQName("ns::ALL"), Kind: ItemVar, Scope: []string{"ns"}, Expr: parse("-1"), Type: &u32},
		{Name: ctypes.ParseQName("LATER"), Expr: parse("ns::Color::Red * 2")},
	}
	sol := Solve(items, nil)

	want := map[string]string{
		"LIMIT":            "100",
		"ns::LIMIT":        "7",
		"ns::Color::Red":   "8",
		"ns::Color::Green": "101",
		"ns::ALL":          "4294967295",
		"LATER":            "16",
	}
	for key, value := range want {
		res := sol[key]
		if res == nil || res.Err != nil {
			t.Errorf("%s: unresolved %+v", key, res)
			continue
		}
		if got := res.Value.String(); got != value {
			t.Errorf("%s = %s, want %s", key, got, value)
		}
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("X", []string{"a", "b"})
	want := []string{"a::b::X", "a::X", "X"}
	if len(got) != len(want) {
		t.Fatalf("Candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if got := Candidates("::X", []string{"a"}); len(got) != 1 || got[0] != "X" {
		t.Errorf("Candidates(::X) = %v, want [X]", got)
	}
}
