package sema

import (
	"strings"

	"github.com/raymyers/ralph-bindgen/pkg/ctypes"
	"github.com/raymyers/ralph-bindgen/pkg/literal"
	"github.com/raymyers/ralph-bindgen/pkg/macro"
)

// fundamental maps the keywords of a fundamental type to its type.
func fundamental(words []string, longBits int) ctypes.Type {
	spelling := strings.Join(words, " ")
	var longs int
	size, sign, sized := ctypes.I32, ctypes.Signed, false
	for _, w := range words {
		switch w {
		case "void":
			return ctypes.Tvoid{}
		case "bool", "_Bool":
			return ctypes.Tbool{}
		case "float":
			return ctypes.Tfloat{Size: ctypes.F32}
		case "double":
			return ctypes.Tfloat{Size: ctypes.F64}
		case "wchar_t", "char16_t":
			return ctypes.Tint{Size: ctypes.I16, Sign: ctypes.Unsigned, Spelling: spelling}
		case "char32_t":
			return ctypes.Tint{Size: ctypes.I32, Sign: ctypes.Unsigned, Spelling: spelling}
		case "char8_t":
			return ctypes.Tint{Size: ctypes.I8, Sign: ctypes.Unsigned, Spelling: spelling}
		case "unsigned":
			sign = ctypes.Unsigned
		case "char", "__int8":
			size, sized = ctypes.I8, true
		case "short", "__int16":
			size, sized = ctypes.I16, true
		case "__int32":
			size, sized = ctypes.I32, true
		case "__int64":
			size, sized = ctypes.I64, true
		case "long":
			longs++
		}
	}
	switch {
	case longs >= 2:
		size = ctypes.I64
	case longs == 1 && (!sized || size == ctypes.I32):
		size = ctypes.I32
		if longBits == 64 {
			size = ctypes.I64
		}
	}
	return ctypes.Tint{Size: size, Sign: sign, Spelling: spelling}
}

type primitive struct {
	size ctypes.IntSize
	sign ctypes.Signedness
}

// primitiveInts are the fixed-width integer typedefs of <stdint.h> and the
// Windows headers, used when the input does not declare them.
var primitiveInts = map[string]primitive{
	"int8_t": {ctypes.I8, ctypes.Signed}, "INT8": {ctypes.I8, ctypes.Signed},
	"CHAR": {ctypes.I8, ctypes.Signed}, "CCHAR": {ctypes.I8, ctypes.Signed},
	"uint8_t": {ctypes.I8, ctypes.Unsigned}, "UINT8": {ctypes.I8, ctypes.Unsigned},
	"BYTE": {ctypes.I8, ctypes.Unsigned}, "UCHAR": {ctypes.I8, ctypes.Unsigned},
	"BOOLEAN": {ctypes.I8, ctypes.Unsigned},
	"int16_t": {ctypes.I16, ctypes.Signed}, "INT16": {ctypes.I16, ctypes.Signed},
	"SHORT": {ctypes.I16, ctypes.Signed},
	"uint16_t": {ctypes.I16, ctypes.Unsigned}, "UINT16": {ctypes.I16, ctypes.Unsigned},
	"WORD": {ctypes.I16, ctypes.Unsigned}, "USHORT": {ctypes.I16, ctypes.Unsigned},
	"WCHAR": {ctypes.I16, ctypes.Unsigned},
	"int32_t": {ctypes.I32, ctypes.Signed}, "INT32": {ctypes.I32, ctypes.Signed},
	"INT": {ctypes.I32, ctypes.Signed}, "LONG": {ctypes.I32, ctypes.Signed},
	"LONG32": {ctypes.I32, ctypes.Signed}, "BOOL": {ctypes.I32, ctypes.Signed},
	"HRESULT": {ctypes.I32, ctypes.Signed},
	"uint32_t": {ctypes.I32, ctypes.Unsigned}, "UINT32": {ctypes.I32, ctypes.Unsigned},
	"UINT": {ctypes.I32, ctypes.Unsigned}, "ULONG": {ctypes.I32, ctypes.Unsigned},
	"ULONG32": {ctypes.I32, ctypes.Unsigned}, "DWORD": {ctypes.I32, ctypes.Unsigned},
	"DWORD32": {ctypes.I32, ctypes.Unsigned},
	"int64_t": {ctypes.I64, ctypes.Signed}, "INT64": {ctypes.I64, ctypes.Signed},
	"LONGLONG": {ctypes.I64, ctypes.Signed}, "LONG64": {ctypes.I64, ctypes.Signed},
	"uint64_t": {ctypes.I64, ctypes.Unsigned}, "UINT64": {ctypes.I64, ctypes.Unsigned},
	"ULONGLONG": {ctypes.I64, ctypes.Unsigned}, "ULONG64": {ctypes.I64, ctypes.Unsigned},
	"DWORD64": {ctypes.I64, ctypes.Unsigned}, "QWORD": {ctypes.I64, ctypes.Unsigned},
}

// pointerInts are integers as wide as a pointer.
var pointerInts = map[string]ctypes.Signedness{
	"intptr_t": ctypes.Signed, "ptrdiff_t": ctypes.Signed, "ssize_t": ctypes.Signed,
	"INT_PTR": ctypes.Signed, "LONG_PTR": ctypes.Signed, "SSIZE_T": ctypes.Signed,
	"uintptr_t": ctypes.Unsigned, "size_t": ctypes.Unsigned, "UINT_PTR": ctypes.Unsigned,
	"ULONG_PTR": ctypes.Unsigned, "DWORD_PTR": ctypes.Unsigned, "SIZE_T": ctypes.Unsigned,
}

// primitiveType resolves the well-known typedefs that headers take from
// system headers the generator does not read.
func primitiveType(name string, opts Options) (ctypes.Type, bool) {
	if p, ok := primitiveInts[name]; ok {
		return ctypes.Tint{Size: p.size, Sign: p.sign, Spelling: name}, true
	}
	if sign, ok := pointerInts[name]; ok {
		size := ctypes.I64
		if opts.PointerBytes() == 4 {
			size = ctypes.I32
		}
		return ctypes.Tint{Size: size, Sign: sign, Spelling: name}, true
	}
	char := ctypes.Tint{Size: ctypes.I8, Sign: ctypes.Signed, Spelling: "char"}
	wchar := ctypes.Tint{Size: ctypes.I16, Sign: ctypes.Unsigned, Spelling: "wchar_t"}
	switch name {
	case "FLOAT":
		return ctypes.Tfloat{Size: ctypes.F32}, true
	case "DOUBLE":
		return ctypes.Tfloat{Size: ctypes.F64}, true
	case "HANDLE", "PVOID", "LPVOID", "HMODULE", "HINSTANCE":
		return ctypes.Tpointer{Elem: ctypes.Tvoid{}}, true
	case "LPCVOID":
		return ctypes.Tpointer{Elem: ctypes.Tvoid{}, Const: true}, true
	case "LPSTR", "PSTR":
		return ctypes.Tpointer{Elem: char}, true
	case "LPCSTR", "PCSTR":
		return ctypes.Tpointer{Elem: char, Const: true}, true
	case "LPWSTR", "PWSTR":
		return ctypes.Tpointer{Elem: wchar}, true
	case "LPCWSTR", "PCWSTR":
		return ctypes.Tpointer{Elem: wchar, Const: true}, true
	}
	return nil, false
}

// intType converts an integer type for the evaluator.
func intType(t ctypes.Tint) macro.IntType {
	return macro.IntType{
		Width:  literal.Width(t.Size.Bytes() * 8),
		Signed: t.Sign == ctypes.Signed,
	}
}

// tintOf is the inverse of intType.
func tintOf(t macro.IntType) ctypes.Tint {
	size := map[literal.Width]ctypes.IntSize{
		literal.W8: ctypes.I8, literal.W16: ctypes.I16, literal.W32: ctypes.I32, literal.W64: ctypes.I64,
	}[t.Width]
	sign := ctypes.Unsigned
	if t.Signed {
		sign = ctypes.Signed
	}
	return ctypes.Tint{Size: size, Sign: sign}
}
