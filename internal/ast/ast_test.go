package ast

import "testing"

func TestTypeRefString(t *testing.T) {
	tests := []struct {
		name string
		typ  *TypeRef
		want string
	}{
		{"base", Base(BaseI64), "i64"},
		{"refined", Refined("Nat"), "Nat"},
		{"named", Named("Point"), "Point"},
		{"array", ArrayOf(Base(BaseI64)), "[i64]"},
		{"self", SelfType(), "Self"},
		{"generic", Generic("Stack", Named("Nat")), "Stack<Nat>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypeRefEquals(t *testing.T) {
	a := Generic("Stack", Named("Nat"))
	b := Generic("Stack", Named("Nat"))
	c := Generic("Stack", Named("Int"))

	if !a.Equals(b) {
		t.Errorf("expected structurally equal TypeRefs to be Equals")
	}

	if a.Equals(c) {
		t.Errorf("expected distinct type arguments to be unequal")
	}
}

func TestTypeRefSubstitute(t *testing.T) {
	generic := Generic("Stack", Var("T"))
	bindings := map[string]*TypeRef{"T": Named("Nat")}

	got := generic.Substitute(bindings)
	if want := "Stack<Nat>"; got.String() != want {
		t.Errorf("Substitute() = %q, want %q", got.String(), want)
	}

	// Substitution must not be observed by the source TypeRef.
	if generic.String() != "Stack<T>" {
		t.Errorf("Substitute must not mutate the receiver, got %q", generic.String())
	}
}

func TestStructFieldByName(t *testing.T) {
	s := &StructDef{
		Name: "Point",
		Fields: []StructField{
			{Name: "x", Type: Base(BaseI64)},
			{Name: "y", Type: Base(BaseI64)},
		},
	}

	if _, ok := s.FieldByName("x"); !ok {
		t.Errorf("expected field x to be found")
	}

	if _, ok := s.FieldByName("z"); ok {
		t.Errorf("expected field z to be absent")
	}
}

func TestEnumVariantIndex(t *testing.T) {
	e := &EnumDef{
		Name: "Option",
		Variants: []EnumVariant{
			{Name: "None"},
			{Name: "Some", Fields: []*TypeRef{Var("T")}},
		},
	}

	if got := e.VariantIndex("Some"); got != 1 {
		t.Errorf("VariantIndex(Some) = %d, want 1", got)
	}

	if got := e.VariantIndex("Missing"); got != -1 {
		t.Errorf("VariantIndex(Missing) = %d, want -1", got)
	}
}
