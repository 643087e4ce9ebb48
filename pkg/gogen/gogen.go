// Package gogen writes Go bindings for a semantic model: one source file per
// input unit, calling foreign functions through github.com/jupiterrider/ffi.
package gogen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"

	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

const (
	importFmt    = "fmt"
	importUnsafe = "unsafe"
	importFFI    = "github.com/jupiterrider/ffi"
)

// DefaultPackage is the package clause used when none is configured.
const DefaultPackage = "bindings"

// Options configures emission.
type Options struct {
	// Package is the package clause of every generated file.
	Package string
}

// File is one generated Go source file.
type File struct {
	// Unit is the input the file was generated from.
	Unit string
	// Name is the file name, unique among the files of one run.
	Name   string
	Source []byte
}

type emitter struct {
	m       *sema.Model
	unit    int
	file    string
	opts    Options
	buf     bytes.Buffer
	imports map[string]bool
	byValue map[string]bool
	fields  map[string][]string
}

// Generate emits every unit of m in order.
func Generate(m *sema.Model, opts Options) ([]File, error) {
	names := FileNames(m.Units)
	files := make([]File, len(m.Units))
	for i := range m.Units {
		f, err := Unit(m, i, names[i], opts)
		if err != nil {
			return nil, err
		}
		files[i] = f
	}
	return files, nil
}

// Unit emits the declarations whose origin is unit i into the file name.
// It only reads m, so units can be emitted concurrently.
func Unit(m *sema.Model, i int, name string, opts Options) (File, error) {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	e := &emitter{
		m:       m,
		unit:    i,
		file:    name,
		opts:    opts,
		imports: make(map[string]bool),
		byValue: byValueRecords(m),
		fields:  make(map[string][]string),
	}
	e.constants()
	e.typedefs()
	e.enums()
	e.interfaces()
	e.opaques()
	e.records()
	e.macroFuncs()
	e.functions()

	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by ralph-bindgen from %s. DO NOT EDIT.\n\n", m.Units[i])
	fmt.Fprintf(&out, "package %s\n\n", opts.Package)
	e.writeImports(&out)
	out.Write(e.buf.Bytes())

	src, err := format.Source(out.Bytes())
	if err != nil {
		return File{}, fmt.Errorf("format %s: %w", name, err)
	}
	return File{Unit: m.Units[i], Name: name, Source: src}, nil
}

func (e *emitter) writeImports(out *bytes.Buffer) {
	var std, ext []string
	for imp := range e.imports {
		if imp == importFFI {
			ext = append(ext, imp)
		} else {
			std = append(std, imp)
		}
	}
	if len(std)+len(ext) == 0 {
		return
	}
	sort.Strings(std)
	sort.Strings(ext)
	out.WriteString("import (\n")
	for _, imp := range std {
		fmt.Fprintf(out, "\t%q\n", imp)
	}
	if len(std) > 0 && len(ext) > 0 {
		out.WriteString("\n")
	}
	for _, imp := range ext {
		fmt.Fprintf(out, "\t%q\n", imp)
	}
	out.WriteString(")\n\n")
}

func (e *emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
}

func (e *emitter) mine(o sema.Origin) bool {
	return o.Unit == e.unit
}
