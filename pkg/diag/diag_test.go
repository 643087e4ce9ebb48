package diag

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestCodeDefaults(t *testing.T) {
	tests := []struct {
		code Code
		id   string
		name string
		sev  Severity
	}{
		{MalformedLiteral, "MAC1001", "MalformedLiteral", SevError},
		{UnsupportedMacroBody, "MAC1002", "UnsupportedMacroBody", SevWarning},
		{UnsupportedDeclaration, "DEC2001", "UnsupportedDeclaration", SevWarning},
		{TokenizeError, "DEC2002", "TokenizeError", SevFatal},
		{UnresolvedType, "SEM3001", "UnresolvedType", SevInfo},
		{DuplicateDefinitionConflict, "SEM3002", "DuplicateDefinitionConflict", SevError},
		{LayoutCycle, "SEM3003", "LayoutCycle", SevError},
		{BlocklistRewrite, "OPQ4001", "BlocklistRewrite", SevInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.ID(); got != tt.id {
				t.Errorf("ID() = %q, want %q", got, tt.id)
			}
			if got := tt.code.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.code.DefaultSeverity(); got != tt.sev {
				t.Errorf("DefaultSeverity() = %v, want %v", got, tt.sev)
			}
		})
	}
}

func TestBagSortIsDeterministic(t *testing.T) {
	b := NewBag()
	b.Report(UnresolvedType, Pos{File: "b.h", Line: 1}, "X", "unresolved X")
	b.Report(LayoutCycle, Pos{File: "a.h", Line: 9}, "A", "cycle")
	b.Report(BlocklistRewrite, Pos{File: "a.h", Line: 2}, "B", "rewrite")
	b.Report(MalformedLiteral, Pos{File: "a.h", Line: 2}, "C", "bad literal")
	b.Sort()

	var got []string
	for _, d := range b.Items() {
		got = append(got, d.Subject)
	}
	want := []string{"C", "B", "A", "X"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sorted subjects = %v, want %v", got, want)
	}
}

func TestBagDedupAndErrors(t *testing.T) {
	b := NewBag()
	b.Report(UnsupportedMacroBody, Pos{File: "a.h", Line: 3}, "M", "string literal")
	b.Report(UnsupportedMacroBody, Pos{File: "a.h", Line: 3}, "M", "string literal")
	if b.HasErrors() {
		t.Error("warnings alone should not count as errors")
	}
	b.Dedup()
	if b.Len() != 1 {
		t.Fatalf("Len() after Dedup = %d, want 1", b.Len())
	}

	other := NewBag()
	other.Report(LayoutCycle, Pos{}, "A", "cycle")
	b.Merge(other)
	if !b.HasErrors() {
		t.Error("expected HasErrors after merging a LayoutCycle")
	}
	if n := len(b.Filter(LayoutCycle)); n != 1 {
		t.Errorf("Filter(LayoutCycle) = %d items, want 1", n)
	}
}

func TestWriteFormats(t *testing.T) {
	items := []Diagnostic{
		New(UnsupportedMacroBody, Pos{File: "foo.h", Line: 4, Col: 9}, "FOO", "macro FOO: string literal in body"),
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, items, FormatText, false); err != nil {
			t.Fatal(err)
		}
		want := "foo.h:4:9: warning: macro FOO: string literal in body [MAC1002 UnsupportedMacroBody]\n"
		if buf.String() != want {
			t.Errorf("text = %q, want %q", buf.String(), want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, items, FormatJSON, false); err != nil {
			t.Fatal(err)
		}
		var back []Diagnostic
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("json output does not decode: %v\n%s", err, buf.String())
		}
		if len(back) != 1 || back[0] != items[0] {
			t.Errorf("json round trip = %+v, want %+v", back, items)
		}
		if !strings.Contains(buf.String(), `"code": "UnsupportedMacroBody"`) {
			t.Errorf("expected code rendered by name, got %s", buf.String())
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, items, FormatYAML, false); err != nil {
			t.Fatal(err)
		}
		var back []Diagnostic
		if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("yaml output does not decode: %v\n%s", err, buf.String())
		}
		if len(back) != 1 || back[0] != items[0] {
			t.Errorf("yaml round trip = %+v, want %+v", back, items)
		}
	})
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "json", "yaml"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) error: %v", s, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestSummary(t *testing.T) {
	items := []Diagnostic{
		New(LayoutCycle, Pos{}, "A", "cycle"),
		New(UnsupportedDeclaration, Pos{}, "B", "template"),
		New(UnsupportedDeclaration, Pos{}, "C", "template"),
		New(BlocklistRewrite, Pos{}, "D", "rewrite"),
	}
	if got, want := Summary(items), "1 error, 2 warnings, 1 note"; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
