package cpp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseHeaderName(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		kind    IncludeKind
		wantErr bool
	}{
		{`"foo.h"`, "foo.h", IncludeQuoted, false},
		{"<sys/types.h>", "sys/types.h", IncludeAngled, false},
		{"foo.h", "", IncludeQuoted, true},
		{`"`, "", IncludeQuoted, true},
	}
	for _, tc := range tests {
		name, kind, err := ParseHeaderName(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseHeaderName(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if name != tc.name || kind != tc.kind {
			t.Errorf("ParseHeaderName(%q) = %q %v, want %q %v", tc.in, name, kind, tc.name, tc.kind)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSearchPathResolve(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "src", "local.h"), "")
	writeFile(t, filepath.Join(tmpDir, "inc", "shared.h"), "")
	writeFile(t, filepath.Join(tmpDir, "inc", "local.h"), "")
	from := filepath.Join(tmpDir, "src", "main.h")
	sp := SearchPath{filepath.Join(tmpDir, "inc")}

	tests := []struct {
		name string
		inc  Include
		want string
	}{
		{"quoted prefers the including directory", Include{Name: "local.h", Kind: IncludeQuoted}, filepath.Join(tmpDir, "src", "local.h")},
		{"angled skips the including directory", Include{Name: "local.h", Kind: IncludeAngled}, filepath.Join(tmpDir, "inc", "local.h")},
		{"quoted falls back to -I", Include{Name: "shared.h", Kind: IncludeQuoted}, filepath.Join(tmpDir, "inc", "shared.h")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sp.Resolve(from, tc.inc)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("Resolve = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSearchPathMissing(t *testing.T) {
	tmpDir := t.TempDir()
	inc := Include{Name: "missing.h", Kind: IncludeQuoted}
	_, err := SearchPath{tmpDir}.Resolve(filepath.Join(tmpDir, "a.h"), inc)
	if !errors.Is(err, ErrIncludeNotFound) {
		t.Fatalf("error = %v, want ErrIncludeNotFound", err)
	}
	var incErr *IncludeError
	if !errors.As(err, &incErr) || incErr.Name != "missing.h" || len(incErr.Searched) != 2 {
		t.Errorf("error = %#v, want *IncludeError for missing.h searching 2 directories", err)
	}
	if !strings.HasPrefix(err.Error(), `"missing.h": include not found`) {
		t.Errorf("message = %q", err.Error())
	}
}

func TestSearchPathSkipsDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "dir.h"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := (SearchPath{tmpDir}).Resolve("", Include{Name: "dir.h", Kind: IncludeAngled}); err == nil {
		t.Error("a directory must not resolve as a header")
	}
}

func TestIncludeSpelling(t *testing.T) {
	if got := (Include{Name: "a/b.h", Kind: IncludeAngled}).Spelling(); got != "<a/b.h>" {
		t.Errorf("Spelling = %s", got)
	}
	if got := (Include{Name: "c.h"}).Spelling(); got != `"c.h"` {
		t.Errorf("Spelling = %s", got)
	}
}
