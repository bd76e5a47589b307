package parser

import (
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
)

func TestParseImport(t *testing.T) {
	f, err := Parse("test.mm", []byte(`import "std/prelude" as prelude;`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Imports) != 1 {
		t.Fatalf("expected 1 import, got %d", len(f.Imports))
	}

	if f.Imports[0].Path != "std/prelude" || f.Imports[0].Alias != "prelude" {
		t.Fatalf("unexpected import: %+v", f.Imports[0])
	}
}

func TestParseTypeDecl(t *testing.T) {
	f, err := Parse("test.mm", []byte(`type Pos = i64 where self >= 0;`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Types) != 1 || f.Types[0].Name != "Pos" {
		t.Fatalf("unexpected types: %+v", f.Types)
	}
}

func TestParseStructDecl(t *testing.T) {
	src := `struct Pair<T> { left: T, right: T where right >= left }`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Structs) != 1 {
		t.Fatalf("expected 1 struct, got %d", len(f.Structs))
	}

	s := f.Structs[0]
	if s.Name != "Pair" || len(s.TypeParams) != 1 || s.TypeParams[0] != "T" {
		t.Fatalf("unexpected struct: %+v", s)
	}

	if len(s.Fields) != 2 || s.Fields[1].Predicate == nil {
		t.Fatalf("unexpected fields: %+v", s.Fields)
	}
}

func TestParseEnumDecl(t *testing.T) {
	src := `enum Option<T> { Some(T), None }`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Enums) != 1 || len(f.Enums[0].Variants) != 2 {
		t.Fatalf("unexpected enum: %+v", f.Enums)
	}

	if f.Enums[0].Variants[0].Name != "Some" || len(f.Enums[0].Variants[0].Fields) != 1 {
		t.Fatalf("unexpected variant: %+v", f.Enums[0].Variants[0])
	}
}

func TestParseAtomWithContractsAndBody(t *testing.T) {
	src := `
atom increment(x: i64) => i64
	requires x >= 0
	ensures result == x + 1
{
	x + 1
}
`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Atoms) != 1 {
		t.Fatalf("expected 1 atom, got %d", len(f.Atoms))
	}

	a := f.Atoms[0]
	if a.Name != "increment" || len(a.Params) != 1 {
		t.Fatalf("unexpected atom: %+v", a)
	}

	if a.Requires == nil || a.Ensures == nil || a.Body == nil {
		t.Fatalf("expected requires/ensures/body to be populated, got %+v", a)
	}

	if _, ok := a.Body.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected block result to be the binary expr, got %T", a.Body)
	}
}

func TestParseAtomClausesInAnyOrder(t *testing.T) {
	src := `
atom spend(acc: ref mut i64, amt: i64)
	trusted
	async
	max_unroll 5
	resource(Lock1, Lock2)
{
	acc = acc - amt;
}
`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	a := f.Atoms[0]
	if a.Trust != ast.TrustTrusted || !a.Async || a.MaxUnroll != 5 {
		t.Fatalf("unexpected atom flags: %+v", a)
	}

	if len(a.Resources) != 2 || a.Resources[0] != "Lock1" || a.Resources[1] != "Lock2" {
		t.Fatalf("unexpected resources: %+v", a.Resources)
	}

	if a.Params[0].Flag != ast.ParamRefMut {
		t.Fatalf("expected ref mut param, got %v", a.Params[0].Flag)
	}
}

func TestParseBodylessAtomSignature(t *testing.T) {
	src := `trait Shape { atom area() => i64; law non_negative: area() >= 0; }`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Traits) != 1 {
		t.Fatalf("expected 1 trait, got %d", len(f.Traits))
	}

	tr := f.Traits[0]
	if len(tr.Methods) != 1 || tr.Methods[0].Name != "area" {
		t.Fatalf("unexpected methods: %+v", tr.Methods)
	}

	if len(tr.Laws) != 1 || tr.Laws[0].Name != "non_negative" {
		t.Fatalf("unexpected laws: %+v", tr.Laws)
	}
}

func TestParseImplDecl(t *testing.T) {
	src := `
impl Shape for Square {
	atom area() => i64 { self.side * self.side }
}
`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Impls) != 1 || f.Impls[0].Trait != "Shape" {
		t.Fatalf("unexpected impls: %+v", f.Impls)
	}

	if _, ok := f.Impls[0].Methods["area"]; !ok {
		t.Fatalf("expected area method in impl")
	}
}

func TestParseResourceDecl(t *testing.T) {
	src := `resource DbLock priority: 1 mode: shared;`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Resources) != 1 || f.Resources[0].Mode != ast.ResourceShared || f.Resources[0].Priority != 1 {
		t.Fatalf("unexpected resource: %+v", f.Resources)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `atom f() => bool { 1 + 2 * 3 == 7 && true }`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	top, ok := f.Atoms[0].Body.(*ast.BinaryExpr)
	if !ok || top.Op != ast.OpAnd {
		t.Fatalf("expected top-level &&, got %#v", f.Atoms[0].Body)
	}

	eq, ok := top.L.(*ast.BinaryExpr)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("expected == as lhs of &&, got %#v", top.L)
	}

	add, ok := eq.L.(*ast.BinaryExpr)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("expected + on lhs of ==, got %#v", eq.L)
	}

	if _, ok := add.R.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected * to bind tighter than +, got %#v", add.R)
	}
}

func TestParseIfMatchQuantifierAcquireAwait(t *testing.T) {
	src := `
resource R priority: 0;
atom g(x: i64) => i64 {
	if x > 0 {
		match x {
			1 => 10,
			_ => 0,
		}
	} else {
		acquire R {
			forall(i, 0, x, i >= 0)
		}
	}
}
`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ifExpr, ok := f.Atoms[0].Body.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected if-expr body, got %T", f.Atoms[0].Body)
	}

	thenBlock, ok := ifExpr.Then.(*ast.Block)
	if !ok {
		t.Fatalf("expected then-branch to be a block, got %T", ifExpr.Then)
	}
	if _, ok := thenBlock.Result.(*ast.MatchExpr); !ok {
		t.Fatalf("expected match in then-branch, got %T", thenBlock.Result)
	}

	elseBlock, ok := ifExpr.Else.(*ast.Block)
	if !ok {
		t.Fatalf("expected else-branch to be a block, got %T", ifExpr.Else)
	}
	acq, ok := elseBlock.Result.(*ast.AcquireExpr)
	if !ok || acq.Resource != "R" {
		t.Fatalf("expected acquire R in else-branch, got %#v", elseBlock.Result)
	}

	if _, ok := acq.Body.Result.(*ast.QuantifierExpr); !ok {
		t.Fatalf("expected quantifier inside acquire body, got %T", acq.Body.Result)
	}
}

func TestParseCallAndFieldAndIndex(t *testing.T) {
	src := `atom h(a: [i64]) => i64 { Math::max(a[0], a[1]).value }`

	f, err := Parse("test.mm", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	field, ok := f.Atoms[0].Body.(*ast.FieldExpr)
	if !ok || field.Field != "value" {
		t.Fatalf("expected trailing field access, got %#v", f.Atoms[0].Body)
	}

	call, ok := field.X.(*ast.CallExpr)
	if !ok || call.FQN != "Math::max" || len(call.Args) != 2 {
		t.Fatalf("expected Math::max(...) call, got %#v", field.X)
	}

	if _, ok := call.Args[0].(*ast.IndexExpr); !ok {
		t.Fatalf("expected index expr as first arg, got %#v", call.Args[0])
	}
}

func TestParseUnexpectedTopLevelTokenErrors(t *testing.T) {
	if _, err := Parse("test.mm", []byte(`+`)); err == nil {
		t.Fatalf("expected a parse error for a bare '+' at top level")
	}
}

func TestParseMissingSemicolonErrors(t *testing.T) {
	if _, err := Parse("test.mm", []byte(`type Pos = i64 where self >= 0`)); err == nil {
		t.Fatalf("expected a parse error for a missing trailing semicolon")
	}
}
