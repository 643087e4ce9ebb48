// Package config loads generator settings from a TOML or YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/gogen"
	"github.com/raymyers/ralph-bindgen/pkg/opacity"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

// ErrUnknownFormat is returned for a config file that is neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown config format")

// Config is the complete set of generator settings.
type Config struct {
	// Package is the package clause of the generated files.
	Package string `toml:"package" yaml:"package"`
	// Blocklist names types emitted as opaque placeholders, in order.
	Blocklist []string `toml:"blocklist" yaml:"blocklist"`
	// BlocklistPatterns are regular expressions over qualified type names,
	// added to Blocklist.
	BlocklistPatterns []string `toml:"blocklist_patterns" yaml:"blocklist_patterns"`

	Allowlist opacity.Lists `toml:"allowlist" yaml:"allowlist"`
	Denylist  opacity.Lists `toml:"denylist" yaml:"denylist"`

	LongBits       int  `toml:"long_bits" yaml:"long_bits"`
	PointerBits    int  `toml:"pointer_bits" yaml:"pointer_bits"`
	AssumeCLinkage bool `toml:"assume_c_linkage" yaml:"assume_c_linkage"`

	// Defines and Undefines are applied to every unit before its own
	// directives, as NAME or NAME=VALUE.
	Defines   []string `toml:"defines" yaml:"defines"`
	Undefines []string `toml:"undefines" yaml:"undefines"`

	// Jobs bounds the parallel front end and emission; 0 means GOMAXPROCS.
	Jobs int `toml:"jobs" yaml:"jobs"`
	// CacheDir enables the on-disk result cache when set.
	CacheDir string `toml:"cache_dir" yaml:"cache_dir"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Package:     gogen.DefaultPackage,
		LongBits:    32,
		PointerBits: 64,
	}
}

// Load reads a config file, choosing the format by extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml" or
// ".yml") over the defaults and validates the result. Unknown keys are
// errors.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown key %s", undecoded[0])
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w %q", ErrUnknownFormat, ext)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and name syntax.
func (c Config) Validate() error {
	if !token.IsIdentifier(c.Package) || token.IsKeyword(c.Package) {
		return fmt.Errorf("package %q is not a valid Go package name", c.Package)
	}
	switch c.LongBits {
	case 0, 32, 64:
	default:
		return fmt.Errorf("long_bits must be 32 or 64, got %d", c.LongBits)
	}
	switch c.PointerBits {
	case 0, 32, 64:
	default:
		return fmt.Errorf("pointer_bits must be 32 or 64, got %d", c.PointerBits)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	for _, b := range c.Blocklist {
		if ctypes.ParseQName(b).Name == "" {
			return fmt.Errorf("blocklist entry %q is not a qualified name", b)
		}
	}
	return nil
}

// BlocklistNames parses Blocklist into qualified names.
func (c Config) BlocklistNames() []ctypes.QName {
	out := make([]ctypes.QName, 0, len(c.Blocklist))
	for _, b := range c.Blocklist {
		out = append(out, ctypes.ParseQName(b))
	}
	return out
}

// SemaOptions returns the options of the semantic model builder.
func (c Config) SemaOptions() sema.Options {
	return sema.Options{
		LongBits:       c.LongBits,
		PointerBits:    c.PointerBits,
		AssumeCLinkage: c.AssumeCLinkage,
	}
}

// GoOptions returns the options of the code emitter.
func (c Config) GoOptions() gogen.Options {
	return gogen.Options{Package: c.Package}
}
