package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/raymyers/ralph-bindgen/pkg/cabs"
	"github.com/raymyers/ralph-bindgen/pkg/config"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/driver"
)

// ErrStrict is returned under --strict when an error diagnostic was reported.
var ErrStrict = errors.New("error diagnostics reported")

// options holds the command-line flags. File settings are overridden only by
// flags that were set.
type options struct {
	configPath string
	out        string
	pkg        string
	blocklist  []string
	allow      allowFlags
	longBits   int
	assumeC    bool
	jobs       int
	cacheDir   string
	color      string
	format     string
	follow     bool
	includes   []string
	defines    []string
	undefines  []string
	dParse     bool
	dModel     bool
	strict     bool
}

type allowFlags struct {
	types, functions, macros, variables []string
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames accept the single-dash spelling, as in -dparse.
var debugFlagNames = []string{"dparse", "dmodel"}

// normalizeFlags converts single-dash debug flags like -dparse to --dparse.
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range debugFlagNames {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "ralph-bindgen [flags] header...",
		Short: "ralph-bindgen generates Go bindings for C and C++ headers",
		Long: `ralph-bindgen reads C and C++ header declarations and writes one Go
file per header. Records keep their C layout, macros become constants
and generic functions, and extern "C" functions are called through libffi.`,
		Version:       driver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			err := generate(cmd.Context(), cmd.Flags(), opts, args, out, errOut)
			if err != nil && !errors.Is(err, ErrStrict) {
				fmt.Fprintf(errOut, "ralph-bindgen: %v\n", err)
			}
			return err
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	f := rootCmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Read settings from a TOML or YAML file")
	f.StringVarP(&opts.out, "out", "o", ".", "Directory for the generated files")
	f.StringVar(&opts.pkg, "package", "", "Package clause of the generated files")
	f.StringArrayVar(&opts.blocklist, "blocklist", nil, "Emit the named type as an opaque placeholder (repeatable)")
	f.StringArrayVar(&opts.allow.types, "allowlist-type", nil, "Only emit types matching the pattern (repeatable)")
	f.StringArrayVar(&opts.allow.functions, "allowlist-function", nil, "Only emit functions matching the pattern (repeatable)")
	f.StringArrayVar(&opts.allow.macros, "allowlist-macro", nil, "Only emit macros matching the pattern (repeatable)")
	f.StringArrayVar(&opts.allow.variables, "allowlist-variable", nil, "Only emit constants matching the pattern (repeatable)")
	f.IntVar(&opts.longBits, "long-bits", 32, "Width of long: 32 (LLP64) or 64 (LP64)")
	f.BoolVar(&opts.assumeC, "assume-c-linkage", false, "Bind functions declared without extern \"C\"")
	f.IntVar(&opts.jobs, "jobs", 0, "Parallel units (default GOMAXPROCS)")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "Cache results in this directory")
	f.StringVar(&opts.color, "color", "auto", "Color diagnostics: auto, on or off")
	f.StringVar(&opts.format, "diagnostics-format", "text", "Diagnostics format: text, json or yaml")
	f.BoolVar(&opts.follow, "follow-includes", false, "Add headers named by quoted #include as extra units")
	f.StringArrayVarP(&opts.includes, "include", "I", nil, "Add directory to include search path")
	f.StringArrayVarP(&opts.defines, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	f.StringArrayVarP(&opts.undefines, "undefine", "U", nil, "Undefine macro")
	f.BoolVar(&opts.dParse, "dparse", false, "Dump the syntax model of each unit")
	f.BoolVar(&opts.dModel, "dmodel", false, "Dump the semantic model")
	f.BoolVar(&opts.strict, "strict", false, "Exit with status 1 when an error diagnostic is reported")

	return rootCmd
}

// loadConfig reads the config file, if any, and applies the flags that were
// set on top of it.
func loadConfig(flags *pflag.FlagSet, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("package") {
		cfg.Package = opts.pkg
	}
	cfg.Blocklist = append(cfg.Blocklist, opts.blocklist...)
	cfg.Allowlist.Types = append(cfg.Allowlist.Types, opts.allow.types...)
	cfg.Allowlist.Functions = append(cfg.Allowlist.Functions, opts.allow.functions...)
	cfg.Allowlist.Macros = append(cfg.Allowlist.Macros, opts.allow.macros...)
	cfg.Allowlist.Variables = append(cfg.Allowlist.Variables, opts.allow.variables...)
	if flags.Changed("long-bits") {
		cfg.LongBits = opts.longBits
	}
	if flags.Changed("assume-c-linkage") {
		cfg.AssumeCLinkage = opts.assumeC
	}
	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}
	cfg.Defines = append(cfg.Defines, opts.defines...)
	cfg.Undefines = append(cfg.Undefines, opts.undefines...)
	return cfg, cfg.Validate()
}

func readInputs(paths []string) ([]driver.Input, error) {
	inputs := make([]driver.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		inputs = append(inputs, driver.Input{Name: path, Text: string(data)})
	}
	return inputs, nil
}

func generate(ctx context.Context, flags *pflag.FlagSet, opts *options, args []string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := diag.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	colorize, err := useColor(opts.color, errOut)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return err
	}
	inputs, err := readInputs(args)
	if err != nil {
		return err
	}
	if err := driver.CheckInputs(inputs); err != nil {
		return err
	}
	if opts.follow {
		if inputs, err = driver.FollowIncludes(inputs, opts.includes, cfg); err != nil {
			return err
		}
	}

	var items []diag.Diagnostic
	switch {
	case opts.dParse:
		front, err := driver.Parse(ctx, inputs, cfg)
		if err != nil {
			return err
		}
		for _, u := range front.Units {
			fmt.Fprintf(out, "// %s\n", u.Name)
			cabs.NewPrinter(out).PrintProgram(u.Program)
		}
		items = front.Diagnostics
	case opts.dModel:
		m, front, err := driver.Model(ctx, inputs, cfg)
		if err != nil {
			return err
		}
		m.Dump(out)
		items = append(append(items, front.Diagnostics...), m.Diagnostics...)
	default:
		res, err := driver.Run(ctx, inputs, cfg)
		if err != nil {
			return err
		}
		if res.CacheErr != nil {
			fmt.Fprintf(errOut, "ralph-bindgen: warning: %v\n", res.CacheErr)
		}
		if err := writeFiles(opts.out, res); err != nil {
			return err
		}
		items = res.Diagnostics
	}

	if err := diag.Write(errOut, items, format, colorize); err != nil {
		return err
	}
	if len(items) > 0 && format == diag.FormatText {
		fmt.Fprintf(errOut, "ralph-bindgen: %s\n", diag.Summary(items))
	}
	if opts.strict && diag.HasErrors(items) {
		return ErrStrict
	}
	return nil
}

func writeFiles(dir string, res *driver.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating %s: %w", dir, err)
	}
	for _, f := range res.Files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Source, 0o644); err != nil {
			return fmt.Errorf("error writing %s: %w", path, err)
		}
	}
	return nil
}

// useColor resolves --color. auto colors only a terminal.
func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	}
	return false, fmt.Errorf("unknown --color mode %q (want auto, on or off)", mode)
}
