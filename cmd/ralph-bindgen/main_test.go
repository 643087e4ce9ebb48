package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/driver"
)

// E2ETestSpec is one case from e2e.yaml: a header, extra flags, and what
// the generated file and the diagnostics must contain.
type E2ETestSpec struct {
	Name        string   `yaml:"name"`
	Input       string   `yaml:"input"`
	Args        []string `yaml:"args"`
	Expect      []string `yaml:"expect"`
	ExpectNot   []string `yaml:"expect_not"`
	ExpectDiag  []string `yaml:"expect_diag"`
	ExpectError bool     `yaml:"expect_error"`
}

type E2ETestFile struct {
	Tests []E2ETestSpec `yaml:"tests"`
}

func writeHeader(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.Contains(out, driver.Version) {
		t.Errorf("version output %q does not contain %s", out, driver.Version)
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	for _, name := range []string{
		"config", "out", "package", "blocklist",
		"allowlist-type", "allowlist-function", "allowlist-macro", "allowlist-variable",
		"long-bits", "assume-c-linkage", "jobs", "cache-dir", "color", "diagnostics-format",
		"follow-includes", "include", "define", "undefine", "dparse", "dmodel", "strict",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	got := normalizeFlags([]string{"-dparse", "-dmodel", "-o", "out", "-dfoo", "x.h"})
	want := []string{"--dparse", "--dmodel", "-o", "out", "-dfoo", "x.h"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("normalizeFlags = %v, want %v", got, want)
	}
}

func TestNoArgsShowsHelp(t *testing.T) {
	out, _, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage, got %q", out)
	}
}

func TestE2EYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/e2e.yaml")
	if err != nil {
		t.Fatalf("failed to read e2e.yaml: %v", err)
	}
	var file E2ETestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse e2e.yaml: %v", err)
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			dir := t.TempDir()
			header := writeHeader(t, dir, "input.h", tc.Input)
			outDir := filepath.Join(dir, "gen")

			args := append([]string{"-o", outDir, "--color", "off"}, tc.Args...)
			args = append(args, header)
			_, errOut, err := execute(t, args...)
			if tc.ExpectError {
				if err == nil {
					t.Fatalf("expected an error, stderr:\n%s", errOut)
				}
			} else if err != nil {
				t.Fatalf("unexpected error %v, stderr:\n%s", err, errOut)
			}

			src, err := os.ReadFile(filepath.Join(outDir, "input.go"))
			if err != nil {
				t.Fatalf("generated file missing: %v", err)
			}
			for _, want := range tc.Expect {
				if !strings.Contains(string(src), want) {
					t.Errorf("generated file does not contain %q\n%s", want, src)
				}
			}
			for _, bad := range tc.ExpectNot {
				if strings.Contains(string(src), bad) {
					t.Errorf("generated file unexpectedly contains %q\n%s", bad, src)
				}
			}
			for _, want := range tc.ExpectDiag {
				if !strings.Contains(errOut, want) {
					t.Errorf("diagnostics do not contain %q\n%s", want, errOut)
				}
			}
		})
	}
}

func TestConfigFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "api.h", "struct Secret { int a; };\nstruct Other { int b; };\n")
	cfgPath := writeHeader(t, dir, "bindgen.toml", "package = \"fromfile\"\nblocklist = [\"Secret\"]\n")
	outDir := filepath.Join(dir, "gen")

	if _, errOut, err := execute(t, "--config", cfgPath, "--blocklist", "Other", "-o", outDir, header); err != nil {
		t.Fatalf("unexpected error %v, stderr:\n%s", err, errOut)
	}
	src, err := os.ReadFile(filepath.Join(outDir, "api.go"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"package fromfile", "placeholder for Secret", "placeholder for Other"} {
		if !strings.Contains(string(src), want) {
			t.Errorf("generated file does not contain %q\n%s", want, src)
		}
	}

	if _, _, err := execute(t, "--config", cfgPath, "--package", "fromflag", "-o", outDir, header); err != nil {
		t.Fatal(err)
	}
	src, err = os.ReadFile(filepath.Join(outDir, "api.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(src), "package fromflag") {
		t.Errorf("--package should override the file:\n%s", src)
	}
}

func TestBadSettings(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "a.h", "struct A { int a; };\n")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"color", []string{"--color", "sometimes"}, "unknown --color mode"},
		{"format", []string{"--diagnostics-format", "xml"}, "unknown diagnostics format"},
		{"long bits", []string{"--long-bits", "16"}, "long_bits must be 32 or 64"},
		{"package", []string{"--package", "not-valid"}, "not a valid Go package name"},
		{"config", []string{"--config", filepath.Join(dir, "missing.toml")}, "missing.toml"},
		{"input", []string{filepath.Join(dir, "missing.h")}, "error reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-o", filepath.Join(dir, "gen")}, tt.args...)
			if tt.name != "input" {
				args = append(args, header)
			}
			_, errOut, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.HasPrefix(errOut, "ralph-bindgen: ") || !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr %q does not report %q", errOut, tt.want)
			}
		})
	}
}

func TestTokenizeError(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "bad.h", "struct A\x00 { int a; };\n")
	_, errOut, err := execute(t, "-o", filepath.Join(dir, "gen"), header)
	if !errors.Is(err, driver.ErrTokenize) {
		t.Fatalf("expected ErrTokenize, got %v", err)
	}
	if !strings.Contains(errOut, "NUL byte") {
		t.Errorf("stderr %q does not mention the NUL byte", errOut)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "gen")); !os.IsNotExist(statErr) {
		t.Error("no output should be written for an untokenizable input")
	}
}

func TestDiagnosticsFormats(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "api.h", "int Hidden(int a);\n")
	outDir := filepath.Join(dir, "gen")

	_, errOut, err := execute(t, "-o", outDir, "--diagnostics-format", "json", header)
	if err != nil {
		t.Fatal(err)
	}
	var items []diag.Diagnostic
	if err := json.Unmarshal([]byte(errOut), &items); err != nil {
		t.Fatalf("stderr is not a JSON diagnostics list: %v\n%s", err, errOut)
	}
	if len(items) != 1 || items[0].Code != diag.LinkageSkipped || items[0].Subject != "Hidden" {
		t.Errorf("unexpected diagnostics: %+v", items)
	}

	_, errOut, err = execute(t, "-o", outDir, "--diagnostics-format", "yaml", header)
	if err != nil {
		t.Fatal(err)
	}
	items = nil
	if err := yaml.Unmarshal([]byte(errOut), &items); err != nil {
		t.Fatalf("stderr is not a YAML diagnostics list: %v\n%s", err, errOut)
	}
	if len(items) != 1 || items[0].Severity != diag.SevWarning {
		t.Errorf("unexpected diagnostics: %+v", items)
	}

	_, errOut, err = execute(t, "-o", outDir, "--color", "on", header)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "\x1b[") {
		t.Errorf("--color on should emit escape codes: %q", errOut)
	}
}

func TestDumpFlags(t *testing.T) {
	dir := t.TempDir()
	header := writeHeader(t, dir, "p.h", "#define N 3\nstruct P { int x[N]; };\n")
	outDir := filepath.Join(dir, "gen")

	out, _, err := execute(t, "-dparse", "-o", outDir, header)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "// "+header) || !strings.Contains(out, "P") {
		t.Errorf("unexpected -dparse output:\n%s", out)
	}

	out, _, err = execute(t, "-dmodel", "-o", outDir, header)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"const N int32 = 3", "struct P size 12 align 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("-dmodel output does not contain %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("dump flags should not write generated files")
	}
}

func TestFollowIncludes(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, dir, "types.h", "struct Point { int x; int y; };\n")
	header := writeHeader(t, dir, "api.h", "#include \"types.h\"\nextern \"C\" int Area(Point p);\n")
	outDir := filepath.Join(dir, "gen")

	if _, errOut, err := execute(t, "--follow-includes", "-o", outDir, header); err != nil {
		t.Fatalf("unexpected error %v, stderr:\n%s", err, errOut)
	}
	for _, name := range []string{"api.go", "types.go"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("%s not generated: %v", name, err)
		}
	}
}
