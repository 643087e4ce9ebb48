package gogen

import (
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/sema"
)

func funcVar(fn *sema.Function) string {
	return lowerFirst(fn.GoName) + "Func"
}

// functions writes one ffi.Fun per foreign function, the Load function that
// prepares them from a library, and a wrapper per function.
func (e *emitter) functions() {
	var fns []*sema.Function
	for _, fn := range e.m.Functions {
		if e.mine(fn.Origin) {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return
	}
	e.imports[importFFI] = true
	e.imports[importFmt] = true

	e.printf("var (\n")
	for _, fn := range fns {
		e.printf("\t%s ffi.Fun\n", funcVar(fn))
	}
	e.printf(")\n\n")

	load := "Load" + unitIdent(e.file)
	e.printf("// %s prepares the functions declared in %s.\n", load, e.m.Units[e.unit])
	e.printf("func %s(lib ffi.Lib) error {\n", load)
	e.printf("\tvar err error\n\n")
	for _, fn := range fns {
		types := []string{e.ffiType(fn.Type.Return)}
		for _, p := range fn.Type.Params {
			types = append(types, e.ffiType(p))
		}
		e.printf("\tif %s, err = lib.Prep(%q, %s); err != nil {\n", funcVar(fn), fn.Symbol, strings.Join(types, ", "))
		e.printf("\t\treturn fmt.Errorf(\"%s: %%w\", err)\n", fn.Symbol)
		e.printf("\t}\n\n")
	}
	e.printf("\treturn nil\n}\n\n")

	for _, fn := range fns {
		e.wrapper(fn)
	}
}

func (e *emitter) wrapper(fn *sema.Function) {
	ft := fn.Type
	params := paramNames(fn.Params, len(ft.Params))

	e.printf("// %s calls %s.\n", fn.GoName, fn.Name)
	for i, p := range ft.Params {
		if _, ok := p.(ctypes.Trvalue); ok {
			e.printf("// %s is an rvalue reference; ownership transfers to the callee.\n", params[i])
		}
	}
	e.printf("func %s%s {\n", fn.GoName, e.signature(ft, fn.Params))

	args := make([]string, len(ft.Params))
	for i := range ft.Params {
		args[i] = e.unsafePointer() + "(&" + params[i] + ")"
	}
	argList := ""
	if len(args) > 0 {
		argList = ", " + strings.Join(args, ", ")
	}

	call := funcVar(fn) + ".Call"
	switch {
	case isVoid(ft.Return):
		e.printf("\t%s(nil%s)\n", call, argList)
	case e.narrowResult(ft.Return):
		e.printf("\tvar result ffi.Arg\n")
		e.printf("\t%s(%s(&result)%s)\n", call, e.unsafePointer(), argList)
		if _, ok := e.m.Underlying(ft.Return).(ctypes.Tbool); ok {
			e.printf("\treturn result != 0\n")
		} else {
			e.printf("\treturn %s(result)\n", e.goType(ft.Return))
		}
	default:
		e.printf("\tvar result %s\n", e.goType(ft.Return))
		e.printf("\t%s(%s(&result)%s)\n", call, e.unsafePointer(), argList)
		e.printf("\treturn result\n")
	}
	e.printf("}\n\n")
}
