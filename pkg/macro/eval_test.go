package macro

import (
	"errors"
	"os"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"gopkg.in/yaml.v3"
)

// EvalSpec is one case from macro_eval.yaml.
type EvalSpec struct {
	Name        string `yaml:"name"`
	Expr        string `yaml:"expr"`
	Value       string `yaml:"value"`
	Type        string `yaml:"type"`
	Hex         bool   `yaml:"hex"`
	Unsupported string `yaml:"unsupported"`
}

type EvalFile struct {
	Tests []EvalSpec `yaml:"tests"`
}

// mapEnv resolves names from a map; HRESULT and DWORD are known cast types.
type mapEnv map[string]literal.Value

func (m mapEnv) Value(name string) (literal.Value, literal.Radix, error) {
	v, ok := m[name]
	if !ok {
		return literal.Value{}, literal.Decimal, &PendingError{Name: name}
	}
	return v, literal.Decimal, nil
}

func (mapEnv) CastType(name string) (IntType, bool) {
	switch name {
	case "HRESULT":
		return Int32, true
	case "DWORD":
		return Uint32, true
	}
	return IntType{}, false
}

func evalString(t *testing.T, text string, env Env) (Evaluation, error) {
	t.Helper()
	e, err := ParseString(text, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseString(%q): %v", text, err)
	}
	return Eval(e, env)
}

func TestEvalYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/macro_eval.yaml")
	if err != nil {
		t.Fatalf("failed to read macro_eval.yaml: %v", err)
	}
	var file EvalFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse macro_eval.yaml: %v", err)
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			ev, err := evalString(t, tc.Expr, mapEnv{})
			if tc.Unsupported != "" {
				var u *UnsupportedError
				if !errors.As(err, &u) {
					t.Fatalf("expected unsupported %q, got value %s err %v", tc.Unsupported, ev.Value, err)
				}
				if u.Reason != tc.Unsupported {
					t.Errorf("reason = %q, want %q", u.Reason, tc.Unsupported)
				}
				return
			}
			if err != nil {
				t.Fatalf("Eval(%q): %v", tc.Expr, err)
			}
			if got := ev.Value.String(); got != tc.Value {
				t.Errorf("value = %s, want %s", got, tc.Value)
			}
			if got := ev.Value.GoType(); got != tc.Type {
				t.Errorf("type = %s, want %s", got, tc.Type)
			}
			if (ev.Radix == literal.Hex) != tc.Hex {
				t.Errorf("radix = %s, want hex=%v", ev.Radix, tc.Hex)
			}
		})
	}
}

func TestEvalReferences(t *testing.T) {
	env := mapEnv{
		"A":       literal.Int32(4),
		"ns::B":   literal.Make(0x10, literal.W32, false),
		"WIDE":    literal.Make(1, literal.W64, true),
		"MINUS_1": literal.Int32(-1),
	}

	tests := []struct {
		expr  string
		value string
		typ   string
	}{
		{"A * 2", "8", "int32"},
		{"ns::B | A", "20", "uint32"},
		{"WIDE << 40", "1099511627776", "int64"},
		{"(DWORD)MINUS_1", "4294967295", "uint32"},
		{"(HRESULT)0x80004005", "-2147467259", "int32"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ev, err := evalString(t, tt.expr, env)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got := ev.Value.String(); got != tt.value {
				t.Errorf("value = %s, want %s", got, tt.value)
			}
			if got := ev.Value.GoType(); got != tt.typ {
				t.Errorf("type = %s, want %s", got, tt.typ)
			}
		})
	}
}

func TestEvalPendingReference(t *testing.T) {
	_, err := evalString(t, "MISSING + 1", mapEnv{})
	var pe *PendingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PendingError, got %v", err)
	}
	if pe.Name != "MISSING" {
		t.Errorf("pending name = %q, want MISSING", pe.Name)
	}
	if !errors.Is(err, errPending) {
		t.Error("PendingError should match errPending")
	}
}

func TestEvalDropsUnknownCast(t *testing.T) {
	ev, err := evalString(t, "(FLAGS)5", mapEnv{})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if ev.Value.String() != "5" {
		t.Errorf("value = %s, want 5", ev.Value)
	}
	if len(ev.DroppedCasts) != 1 || ev.DroppedCasts[0] != "FLAGS" {
		t.Errorf("DroppedCasts = %v, want [FLAGS]", ev.DroppedCasts)
	}
}

func TestEvalRejectsRuntimeForms(t *testing.T) {
	tests := []struct {
		expr   string
		params []string
		reason string
	}{
		{"F(1)", nil, "call to F"},
		{"x + 1", []string{"x"}, "parameter x outside a function macro"},
		{"p->n", nil, "member access"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := ParseString(tt.expr, ParseOptions{Params: tt.params})
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			_, err = Eval(e, mapEnv{})
			var u *UnsupportedError
			if !errors.As(err, &u) || u.Reason != tt.reason {
				t.Errorf("err = %v, want %q", err, tt.reason)
			}
		})
	}
}
