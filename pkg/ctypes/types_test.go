package ctypes

import "testing"

var (
	i8  = Tint{Size: I8, Sign: Signed}
	i32 = Tint{Size: I32, Sign: Signed}
	u32 = Tint{Size: I32, Sign: Unsigned}
)

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		wantStr string
	}{
		{"void", Tvoid{}, "void"},
		{"int", i32, "signed i32"},
		{"spelled", Tint{Size: I32, Sign: Unsigned, Spelling: "unsigned long"}, "unsigned long"},
		{"float", Tfloat{Size: F32}, "float"},
		{"double", Tfloat{Size: F64}, "double"},
		{"pointer to void", Tpointer{Elem: Tvoid{}}, "void *"},
		{"const pointer", Tpointer{Elem: i8, Const: true}, "const signed i8 *"},
		{"reference", Treference{Elem: Tnamed{Name: ParseQName("Foo")}}, "Foo &"},
		{"const reference", Treference{Elem: Tnamed{Name: ParseQName("N::Foo")}, Const: true}, "const N::Foo &"},
		{"rvalue", Trvalue{Elem: Tnamed{Name: ParseQName("Foo")}}, "Foo &&"},
		{"array", Tarray{Elem: i32, Size: 10}, "signed i32[10]"},
		{"array expr", Tarray{Elem: i32, Size: -1, SizeExpr: "N + 1"}, "signed i32[N + 1]"},
		{"function", Tfunction{Params: []Type{i32}, Return: Tvoid{}, VarArg: true}, "void(signed i32, ...)"},
		{"opaque", Topaque{Name: ParseQName("IsBlocked")}, "opaque IsBlocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestTypeEquality(t *testing.T) {
	foo := Tnamed{Name: ParseQName("N::Foo")}
	tests := []struct {
		name  string
		a, b  Type
		equal bool
	}{
		{"int == int", i32, i32, true},
		{"spelling ignored", Tint{Size: I32, Sign: Signed, Spelling: "long"}, i32, true},
		{"int != unsigned int", i32, u32, false},
		{"int != void", i32, Tvoid{}, false},
		{"bool == bool", Tbool{}, Tbool{}, true},
		{"pointer == pointer", Tpointer{Elem: i32}, Tpointer{Elem: i32}, true},
		{"pointer != const pointer", Tpointer{Elem: i32}, Tpointer{Elem: i32, Const: true}, false},
		{"ref != pointer", Treference{Elem: i32}, Tpointer{Elem: i32}, false},
		{"named == named", foo, Tnamed{Name: ParseQName("::N::Foo")}, true},
		{"named != other", foo, Tnamed{Name: ParseQName("Foo")}, false},
		{"array[10] == array[10]", Tarray{Elem: i32, Size: 10}, Tarray{Elem: i32, Size: 10}, true},
		{"array[10] != array[20]", Tarray{Elem: i32, Size: 10}, Tarray{Elem: i32, Size: 20}, false},
		{"nil == nil", nil, nil, true},
		{"nil != int", nil, i32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.equal {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestQName(t *testing.T) {
	q := ParseQName("::N1::N2::d1")
	if q.Name != "d1" || len(q.Path) != 2 || q.Path[0] != "N1" {
		t.Fatalf("ParseQName = %+v", q)
	}
	if q.String() != "N1::N2::d1" {
		t.Errorf("String() = %q", q.String())
	}
	if !q.IsQualified() || ParseQName("x").IsQualified() {
		t.Error("IsQualified mismatch")
	}
	inner := Qualify(q.Scope(), "Inner")
	if inner.String() != "N1::N2::d1::Inner" {
		t.Errorf("Qualify = %q", inner.String())
	}
}

func TestMapReplacesNamed(t *testing.T) {
	in := Tpointer{Elem: Tarray{Elem: Tnamed{Name: ParseQName("IsBlocked")}, Size: 2}}
	out := Map(in, func(t Type) Type {
		if n, ok := t.(Tnamed); ok && n.Name.Key() == "IsBlocked" {
			return Topaque{Name: n.Name, Size: 1, Align: 1}
		}
		return nil
	})
	want := Tpointer{Elem: Tarray{Elem: Topaque{Name: ParseQName("IsBlocked")}, Size: 2}}
	if !Equal(out, want) {
		t.Errorf("Map = %v, want %v", out, want)
	}
	if !Equal(in, Tpointer{Elem: Tarray{Elem: Tnamed{Name: ParseQName("IsBlocked")}, Size: 2}}) {
		t.Error("Map must not modify its input")
	}
}

func TestWalkByValue(t *testing.T) {
	typ := Tfunction{
		Params: []Type{Tnamed{Name: ParseQName("A")}},
		Return: Tarray{Elem: Tnamed{Name: ParseQName("B")}, Size: 1},
	}
	seen := map[string]bool{}
	Walk(Tarray{Elem: Tnamed{Name: ParseQName("C")}, Size: 3}, func(t Type, byValue bool) {
		if n, ok := t.(Tnamed); ok {
			seen[n.Name.Key()] = byValue
		}
	})
	Walk(Tpointer{Elem: typ}, func(t Type, byValue bool) {
		if n, ok := t.(Tnamed); ok {
			seen[n.Name.Key()] = byValue
		}
	})
	if !seen["C"] {
		t.Error("array element should be reached by value")
	}
	if seen["A"] || seen["B"] {
		t.Error("types behind a pointer must not be by value")
	}
}
