package mono

import (
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

func TestMonomorphizeSpecializesGenericCall(t *testing.T) {
	env := moduleenv.New()

	identity := &ast.AtomDef{
		Name:       "identity",
		TypeParams: []ast.TypeParamBound{{Name: "T"}},
		Params:     []ast.Param{{Name: "x", Type: ast.Var("T")}},
		Body:       &ast.VarExpr{Name: "x"},
	}
	if err := env.AddAtom(identity); err != nil {
		t.Fatalf("AddAtom identity: %v", err)
	}

	caller := &ast.AtomDef{
		Name: "caller",
		Body: &ast.CallExpr{FQN: "identity<Nat>", Args: []ast.Expr{&ast.IntLit{Value: 1}}},
	}
	if err := env.AddAtom(caller); err != nil {
		t.Fatalf("AddAtom caller: %v", err)
	}

	out, err := Monomorphize(env)
	if err != nil {
		t.Fatalf("Monomorphize: %v", err)
	}

	if _, ok := out.Atom("caller"); !ok {
		t.Errorf("expected non-generic atom caller to pass through")
	}

	specialized, ok := out.Atom("identity__Nat")
	if !ok {
		t.Fatalf("expected specialized atom identity__Nat to be installed")
	}

	if len(specialized.TypeParams) != 0 {
		t.Errorf("expected specialized atom to have no remaining type params, got %v", specialized.TypeParams)
	}

	if got := specialized.Params[0].Type.String(); got != "Nat" {
		t.Errorf("expected param type substituted to Nat, got %s", got)
	}
}

func TestMonomorphizeUnsatisfiedTraitBound(t *testing.T) {
	env := moduleenv.New()

	bounded := &ast.AtomDef{
		Name:       "show",
		TypeParams: []ast.TypeParamBound{{Name: "T", Trait: "Printable"}},
		Params:     []ast.Param{{Name: "x", Type: ast.Var("T")}},
		Body:       &ast.VarExpr{Name: "x"},
	}
	if err := env.AddAtom(bounded); err != nil {
		t.Fatalf("AddAtom show: %v", err)
	}

	caller := &ast.AtomDef{
		Name: "caller",
		Body: &ast.CallExpr{FQN: "show<Nat>", Args: []ast.Expr{&ast.IntLit{Value: 1}}},
	}
	if err := env.AddAtom(caller); err != nil {
		t.Fatalf("AddAtom caller: %v", err)
	}

	if _, err := Monomorphize(env); err == nil {
		t.Fatalf("expected unsatisfied trait bound error, got nil")
	}
}

func TestMonomorphizeNonGenericAtomPassesThrough(t *testing.T) {
	env := moduleenv.New()

	plain := &ast.AtomDef{Name: "plain", Body: &ast.IntLit{Value: 42}}
	if err := env.AddAtom(plain); err != nil {
		t.Fatalf("AddAtom plain: %v", err)
	}

	out, err := Monomorphize(env)
	if err != nil {
		t.Fatalf("Monomorphize: %v", err)
	}

	if _, ok := out.Atom("plain"); !ok {
		t.Errorf("expected plain atom to pass through unchanged")
	}
}
