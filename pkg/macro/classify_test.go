package macro

import (
	"strings"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
)

const functionSource = `#define SQ(x) ((x)*(x))
#define TWICE_SQ(x) (SQ(x) * 2)
#define DEC_REF(p) ((p)->refs--)
#define INC_COUNT(p) (++(*p).count)
#define PRE_DEC(p) --p->level
#define STR(x) #x
#define CAT(a, b) a##b
#define VA(...) __VA_ARGS__
#define NOTHING()
#define SET(p, v) ((p)->x = (v))
#define GETX(p) ((p)->x)
#define CMP(a, b) ((a) < (b))
#define TERN(a) ((a) ? 1 : 0)
#define BAD_CALL(x) (UNKNOWN(x))
#define CHAIN(x) BAD_CALL(x)
#define CALLS_MUTATOR(p) DEC_REF(p)
#define ARITY(x) SQ(x, x)
#define POST_INC_VALUE(x) ((x)++)
`

func classifyAll(t *testing.T, src string) map[string]Function {
	t.Helper()
	var funcs []Function
	for _, m := range unitMacros(t, src) {
		if m.Kind == cpp.MacroFunction {
			funcs = append(funcs, Classify(m, ParseOptions{}))
		}
	}
	CheckCalls(funcs)
	out := make(map[string]Function, len(funcs))
	for _, f := range funcs {
		out[f.Name] = f
	}
	return out
}

func TestClassifyPure(t *testing.T) {
	funcs := classifyAll(t, functionSource)
	for _, name := range []string{"SQ", "TWICE_SQ"} {
		t.Run(name, func(t *testing.T) {
			f := funcs[name]
			if f.Kind != FuncPure {
				t.Fatalf("kind = %s (%s), want pure", f.Kind, f.Reason)
			}
			if f.Body == nil {
				t.Fatal("pure function has no body")
			}
		})
	}
	if got := funcs["SQ"].Body.String(); got != "(x * x)" {
		t.Errorf("SQ body = %s, want (x * x)", got)
	}
	if got := funcs["SQ"].Pos.Line; got != 1 {
		t.Errorf("SQ line = %d, want 1", got)
	}
}

func TestClassifyMutator(t *testing.T) {
	funcs := classifyAll(t, functionSource)
	tests := []struct {
		name  string
		param string
		field string
		op    string
		post  bool
	}{
		{"DEC_REF", "p", "refs", "--", true},
		{"INC_COUNT", "p", "count", "++", false},
		{"PRE_DEC", "p", "level", "--", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := funcs[tt.name]
			if f.Kind != FuncMutator {
				t.Fatalf("kind = %s (%s), want mutator", f.Kind, f.Reason)
			}
			if f.Param != tt.param || f.Field != tt.field || f.Op != tt.op || f.Post != tt.post {
				t.Errorf("got %s %s %s post=%v, want %s %s %s post=%v",
					f.Param, f.Field, f.Op, f.Post, tt.param, tt.field, tt.op, tt.post)
			}
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	funcs := classifyAll(t, functionSource)
	tests := []struct {
		name   string
		reason string
	}{
		{"STR", "stringification or token pasting"},
		{"CAT", "stringification or token pasting"},
		{"VA", "variadic macro"},
		{"NOTHING", "empty body"},
		{"SET", "assignment"},
		{"GETX", "member access"},
		{"CMP", "comparison <"},
		{"TERN", "conditional operator"},
		{"BAD_CALL", "call to unknown macro UNKNOWN"},
		{"CHAIN", "call to unsupported macro BAD_CALL"},
		{"CALLS_MUTATOR", "call to mutator macro DEC_REF"},
		{"ARITY", "wrong number of arguments to SQ"},
		{"POST_INC_VALUE", "increment or decrement outside a field update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := funcs[tt.name]
			if !ok {
				t.Fatalf("%s not classified", tt.name)
			}
			if f.Kind != FuncUnsupported {
				t.Fatalf("kind = %s, want unsupported", f.Kind)
			}
			if f.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", f.Reason, tt.reason)
			}
		})
	}
}

func TestObjectItemEmptyBody(t *testing.T) {
	m := &cpp.Macro{Name: "GUARD_H", Kind: cpp.MacroObject}
	if _, ok := ObjectItem(m, nil, ParseOptions{}); ok {
		t.Error("empty object macro should not produce an item")
	}
}

func TestFunctionTableReportsRejected(t *testing.T) {
	loc := cpp.SourceLoc{File: "a.h", Line: 7, Column: 9}
	ms := []*cpp.Macro{
		{Name: "SQ", Kind: cpp.MacroFunction, Params: []string{"x"}, Loc: loc},
		{Name: "DUP", Kind: cpp.MacroFunction, Params: []string{"a", "a"}, Loc: loc},
		{Name: "ONE", Kind: cpp.MacroObject, Loc: loc},
	}
	var diags diag.Bag
	mt := FunctionTable(ms, &diags)
	if !mt.IsDefined("SQ") {
		t.Error("SQ missing from table")
	}
	if mt.IsDefined("DUP") || mt.IsDefined("ONE") {
		t.Error("table holds a rejected or object-like macro")
	}
	items := diags.Items()
	if len(items) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(items), items)
	}
	d := items[0]
	if d.Code != diag.UnsupportedMacroBody || d.Subject != "DUP" || d.Pos.Line != 7 || d.Pos.Col != 9 {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if !strings.Contains(d.Message, `duplicate parameter "a"`) {
		t.Errorf("message %q does not name the duplicate parameter", d.Message)
	}
}
