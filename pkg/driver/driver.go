// Package driver runs the generator pipeline: units are preprocessed and
// parsed in parallel, merged into one frozen semantic model, rewritten by
// the blocklist and filters, and emitted in parallel.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-bindgen/pkg/config"
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/gogen"
	"github.com/raymyers/ralph-bindgen/pkg/lexer"
	"github.com/raymyers/ralph-bindgen/pkg/opacity"
	"github.com/raymyers/ralph-bindgen/pkg/parser"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

// Version identifies the generator in cache keys and the CLI.
var Version = "0.1.0"

// ErrTokenize is returned for an input that cannot be tokenized at all.
var ErrTokenize = errors.New("input cannot be tokenized")

// Input is one header unit.
type Input struct {
	Name string
	Text string
}

// Result is the output of a run.
type Result struct {
	Files       []gogen.File
	Diagnostics []diag.Diagnostic
	// Cached reports that the result was read from the cache.
	Cached bool
	// CacheErr is a failure to store the result; the result itself is valid.
	CacheErr error
}

// Front is the output of the front end: one parsed unit per input and the
// diagnostics of preprocessing and parsing, in input order.
type Front struct {
	Units       []sema.Unit
	Diagnostics []diag.Diagnostic
}

// Run generates bindings for inputs. It fails only when an input cannot be
// tokenized, the configuration is invalid or ctx is done; everything else is
// reported as diagnostics.
func Run(ctx context.Context, inputs []Input, cfg config.Config) (*Result, error) {
	if err := CheckInputs(inputs); err != nil {
		return nil, err
	}

	var cache *Cache
	var key Key
	if cfg.CacheDir != "" {
		cache = OpenCache(cfg.CacheDir)
		var err error
		if key, err = CacheKey(inputs, cfg); err != nil {
			return nil, err
		}
		if res, ok := cache.Get(key); ok {
			return res, nil
		}
	}

	m, front, err := Model(ctx, inputs, cfg)
	if err != nil {
		return nil, err
	}
	files, err := Emit(ctx, m, cfg)
	if err != nil {
		return nil, err
	}

	bag := diag.NewBag()
	for _, d := range front.Diagnostics {
		bag.Add(d)
	}
	for _, d := range m.Diagnostics {
		bag.Add(d)
	}
	bag.Dedup()
	bag.Sort()

	res := &Result{Files: files, Diagnostics: bag.Items()}
	if cache != nil {
		res.CacheErr = cache.Put(key, res)
	}
	return res, nil
}

// CheckInputs rejects NUL bytes and invalid UTF-8.
func CheckInputs(inputs []Input) error {
	for _, in := range inputs {
		if i := strings.IndexByte(in.Text, 0); i >= 0 {
			line := strings.Count(in.Text[:i], "\n") + 1
			return fmt.Errorf("%s:%d: NUL byte: %w", in.Name, line, ErrTokenize)
		}
		if !utf8.ValidString(in.Text) {
			return fmt.Errorf("%s: invalid UTF-8: %w", in.Name, ErrTokenize)
		}
	}
	return nil
}

func jobs(cfg config.Config, n int) int {
	j := cfg.Jobs
	if j <= 0 {
		j = runtime.GOMAXPROCS(0)
	}
	return max(1, min(j, n))
}

// Parse preprocesses and parses every input in parallel. Results are
// written by index, so their order is the input order.
func Parse(ctx context.Context, inputs []Input, cfg config.Config) (*Front, error) {
	units := make([]sema.Unit, len(inputs))
	diags := make([][]diag.Diagnostic, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs(cfg, len(inputs)))
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pre, err := cpp.Preprocess(in.Text, in.Name, cpp.PreprocessorOptions{
				Defines:   cfg.Defines,
				Undefines: cfg.Undefines,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			p := parser.New(lexer.New(pre.Text), in.Name)
			prog := p.ParseProgram()
			units[i] = sema.Unit{Name: in.Name, Program: prog, Macros: pre.Macros}
			diags[i] = append(append([]diag.Diagnostic(nil), pre.Diagnostics...), p.Diagnostics()...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	front := &Front{Units: units}
	for _, d := range diags {
		front.Diagnostics = append(front.Diagnostics, d...)
	}
	return front, nil
}

// Model runs the front end, builds the semantic model, and applies the
// blocklist and then the allow and deny lists.
func Model(ctx context.Context, inputs []Input, cfg config.Config) (*sema.Model, *Front, error) {
	front, err := Parse(ctx, inputs, cfg)
	if err != nil {
		return nil, nil, err
	}
	m := sema.Build(front.Units, cfg.SemaOptions())

	blocked := cfg.BlocklistNames()
	if len(cfg.BlocklistPatterns) > 0 {
		matched, err := opacity.Match(m, cfg.BlocklistPatterns)
		if err != nil {
			return nil, nil, fmt.Errorf("blocklist_patterns: %w", err)
		}
		blocked = appendNew(blocked, matched)
	}
	if len(blocked) > 0 {
		m = opacity.Apply(m, blocked)
	}
	if !cfg.Allowlist.Empty() || !cfg.Denylist.Empty() {
		if m, err = opacity.Filter(m, cfg.Allowlist, cfg.Denylist); err != nil {
			return nil, nil, err
		}
	}
	return m, front, nil
}

func appendNew(names, more []ctypes.QName) []ctypes.QName {
	seen := make(map[string]bool, len(names))
	for _, q := range names {
		seen[q.Key()] = true
	}
	for _, q := range more {
		if !seen[q.Key()] {
			seen[q.Key()] = true
			names = append(names, q)
		}
	}
	return names
}

// Emit writes one file per unit of m in parallel. The model is only read.
func Emit(ctx context.Context, m *sema.Model, cfg config.Config) ([]gogen.File, error) {
	names := gogen.FileNames(m.Units)
	files := make([]gogen.File, len(m.Units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs(cfg, len(m.Units)))
	for i := range m.Units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := gogen.Unit(m, i, names[i], cfg.GoOptions())
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
