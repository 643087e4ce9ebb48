package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
)

const tomlConfig = `
package = "win32"
blocklist = ["ns::Secret", "Hidden"]
blocklist_patterns = ["Internal.*"]
long_bits = 64
assume_c_linkage = true
jobs = 4
cache_dir = "/tmp/bindgen"

[allowlist]
types = ["Widget"]
functions = ["Create.*"]

[denylist]
macros = ["DEBUG_.*"]
`

const yamlConfig = `
package: win32
blocklist: ["ns::Secret", "Hidden"]
blocklist_patterns: ["Internal.*"]
long_bits: 64
assume_c_linkage: true
jobs: 4
cache_dir: /tmp/bindgen
allowlist:
  types: [Widget]
  functions: ["Create.*"]
denylist:
  macros: ["DEBUG_.*"]
`

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"toml", ".toml", tomlConfig},
		{"yaml", ".yaml", yamlConfig},
		{"yml", ".YML", yamlConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), tt.ext)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cfg.Package != "win32" {
				t.Errorf("Package = %q, want win32", cfg.Package)
			}
			if strings.Join(cfg.Blocklist, ",") != "ns::Secret,Hidden" {
				t.Errorf("Blocklist = %v", cfg.Blocklist)
			}
			if strings.Join(cfg.BlocklistPatterns, ",") != "Internal.*" {
				t.Errorf("BlocklistPatterns = %v", cfg.BlocklistPatterns)
			}
			if cfg.LongBits != 64 || cfg.PointerBits != 64 {
				t.Errorf("LongBits, PointerBits = %d, %d; want 64, 64", cfg.LongBits, cfg.PointerBits)
			}
			if !cfg.AssumeCLinkage || cfg.Jobs != 4 || cfg.CacheDir != "/tmp/bindgen" {
				t.Errorf("unexpected settings: %+v", cfg)
			}
			if strings.Join(cfg.Allowlist.Types, ",") != "Widget" || strings.Join(cfg.Allowlist.Functions, ",") != "Create.*" {
				t.Errorf("Allowlist = %+v", cfg.Allowlist)
			}
			if strings.Join(cfg.Denylist.Macros, ",") != "DEBUG_.*" {
				t.Errorf("Denylist = %+v", cfg.Denylist)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	for _, ext := range []string{".toml", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			cfg, err := Parse(nil, ext)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			want := Default()
			if cfg.Package != want.Package || cfg.LongBits != want.LongBits || cfg.PointerBits != want.PointerBits {
				t.Errorf("got %+v, want defaults %+v", cfg, want)
			}
			if !cfg.Allowlist.Empty() || !cfg.Denylist.Empty() {
				t.Errorf("filters should be empty: %+v %+v", cfg.Allowlist, cfg.Denylist)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
		want string
	}{
		{"unknown toml key", ".toml", "packge = \"x\"\n", "unknown key packge"},
		{"unknown yaml key", ".yaml", "packge: x\n", "failed to parse YAML"},
		{"bad toml", ".toml", "package = \n", "failed to parse TOML"},
		{"long bits", ".toml", "long_bits = 16\n", "long_bits must be 32 or 64"},
		{"pointer bits", ".yaml", "pointer_bits: 48\n", "pointer_bits must be 32 or 64"},
		{"negative jobs", ".yaml", "jobs: -1\n", "jobs must not be negative"},
		{"keyword package", ".toml", "package = \"func\"\n", "not a valid Go package name"},
		{"bad package", ".toml", "package = \"my-pkg\"\n", "not a valid Go package name"},
		{"empty blocklist entry", ".yaml", "blocklist: [\"ns::\"]\n", "not a qualified name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse([]byte("{}"), ".json")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindgen.toml")
	if err := os.WriteFile(path, []byte(tomlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Package != "win32" {
		t.Errorf("Package = %q, want win32", cfg.Package)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("long_bits: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.HasPrefix(err.Error(), bad+": ") {
		t.Errorf("expected error prefixed with the path, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestDerivedOptions(t *testing.T) {
	cfg := Default()
	cfg.Package = "api"
	cfg.Blocklist = []string{"ns::Secret", "::Top"}
	cfg.LongBits = 64
	cfg.AssumeCLinkage = true

	names := cfg.BlocklistNames()
	want := []ctypes.QName{{Path: []string{"ns"}, Name: "Secret"}, {Path: []string{}, Name: "Top"}}
	if len(names) != len(want) {
		t.Fatalf("BlocklistNames = %v, want %v", names, want)
	}
	for i := range want {
		if !names[i].Equal(want[i]) {
			t.Errorf("BlocklistNames[%d] = %v, want %v", i, names[i], want[i])
		}
	}
	so := cfg.SemaOptions()
	if so.LongBits != 64 || so.PointerBits != 64 || !so.AssumeCLinkage {
		t.Errorf("SemaOptions = %+v", so)
	}
	if cfg.GoOptions().Package != "api" {
		t.Errorf("GoOptions().Package = %q, want api", cfg.GoOptions().Package)
	}
}
