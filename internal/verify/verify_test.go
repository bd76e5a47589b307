package verify

import (
	"context"
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

func intParam(name string) ast.Param {
	return ast.Param{Name: name, Type: ast.Base(ast.BaseI64), Flag: ast.ParamOwned}
}

func eq(l, r ast.Expr) *ast.BinaryExpr   { return &ast.BinaryExpr{Op: ast.OpEq, L: l, R: r} }
func gt(l, r ast.Expr) *ast.BinaryExpr   { return &ast.BinaryExpr{Op: ast.OpGt, L: l, R: r} }
func ge(l, r ast.Expr) *ast.BinaryExpr   { return &ast.BinaryExpr{Op: ast.OpGe, L: l, R: r} }
func add(l, r ast.Expr) *ast.BinaryExpr  { return &ast.BinaryExpr{Op: ast.OpAdd, L: l, R: r} }
func divv(l, r ast.Expr) *ast.BinaryExpr { return &ast.BinaryExpr{Op: ast.OpDiv, L: l, R: r} }
func v(name string) *ast.VarExpr         { return &ast.VarExpr{Name: name} }
func lit(n int64) *ast.IntLit            { return &ast.IntLit{Value: n} }

func TestVerifySimpleAtomSucceeds(t *testing.T) {
	env := moduleenv.New()

	atom := &ast.AtomDef{
		Name:     "increment",
		Params:   []ast.Param{intParam("x")},
		Requires: ge(v("x"), lit(0)),
		Ensures:  eq(&ast.ResultExpr{}, add(v("x"), lit(1))),
		Body:     add(v("x"), lit(1)),
	}

	if err := env.AddAtom(atom); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	outcomes, err := Verify(context.Background(), env, 3, nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}

	if outcomes[0].Status != StatusVerified {
		t.Fatalf("expected verified, got %s (err=%v)", outcomes[0].Status, outcomes[0].Err)
	}
}

func TestVerifyEnsuresViolated(t *testing.T) {
	env := moduleenv.New()

	atom := &ast.AtomDef{
		Name:     "broken",
		Params:   []ast.Param{intParam("x")},
		Requires: &ast.BoolLit{Value: true},
		Ensures:  gt(&ast.ResultExpr{}, v("x")),
		Body:     v("x"), // result == x, never strictly greater
	}

	if err := env.AddAtom(atom); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	outcomes, err := Verify(context.Background(), env, 3, nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if outcomes[0].Status != StatusFailed {
		t.Fatalf("expected failed, got %s", outcomes[0].Status)
	}

	if outcomes[0].Err == nil || outcomes[0].Err.Category != "ENSURES_VIOLATED" {
		t.Fatalf("expected ENSURES_VIOLATED, got %v", outcomes[0].Err)
	}
}

func TestVerifyTrustedAtomSkipsBody(t *testing.T) {
	env := moduleenv.New()

	atom := &ast.AtomDef{
		Name:     "trusted_div",
		Trust:    ast.TrustTrusted,
		Params:   []ast.Param{intParam("x")},
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     divv(v("x"), lit(0)), // would fail gate 6 if ever evaluated
	}

	if err := env.AddAtom(atom); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	outcomes, err := Verify(context.Background(), env, 3, nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if outcomes[0].Status != StatusVerified {
		t.Fatalf("expected trusted atom to verify without evaluating its body, got %s", outcomes[0].Status)
	}
}

func TestVerifyDivisionByZeroDetected(t *testing.T) {
	env := moduleenv.New()

	atom := &ast.AtomDef{
		Name:     "unsafe_div",
		Params:   []ast.Param{intParam("x"), intParam("y")},
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     divv(v("x"), v("y")),
	}

	if err := env.AddAtom(atom); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	outcomes, err := Verify(context.Background(), env, 3, nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if outcomes[0].Status != StatusFailed || outcomes[0].Err.Category != "DIVISION_BY_ZERO" {
		t.Fatalf("expected DIVISION_BY_ZERO, got %+v", outcomes[0])
	}
}

func TestVerificationOrderDetectsUnguardedCycle(t *testing.T) {
	env := moduleenv.New()

	a := &ast.AtomDef{
		Name:     "ping",
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     &ast.CallExpr{FQN: "pong", Args: nil},
	}
	b := &ast.AtomDef{
		Name:     "pong",
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     &ast.CallExpr{FQN: "ping", Args: nil},
	}

	if err := env.AddAtom(a); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	if err := env.AddAtom(b); err != nil {
		t.Fatalf("AddAtom: %v", err)
	}

	_, cycles := verificationOrder(env)
	if len(cycles) == 0 {
		t.Fatalf("expected a detected cycle between ping and pong")
	}

	if cycleIsGuarded(env, cycles[0]) {
		t.Fatalf("cycle has no decreases/max_unroll guard and should not be considered guarded")
	}
}

func TestVerifyLawHoldsForIdentityImpl(t *testing.T) {
	env := moduleenv.New()

	apply := &ast.AtomDef{
		Name:     "apply",
		Params:   []ast.Param{intParam("n")},
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     v("n"),
	}

	if err := env.AddTrait(&ast.TraitDef{
		Name: "Idempotent",
		Laws: []ast.Law{{
			Name: "idempotent",
			Body: eq(
				&ast.CallExpr{FQN: "apply", Args: []ast.Expr{&ast.CallExpr{FQN: "apply", Args: []ast.Expr{v("x")}}}},
				&ast.CallExpr{FQN: "apply", Args: []ast.Expr{v("x")}},
			),
		}},
	}); err != nil {
		t.Fatalf("AddTrait: %v", err)
	}

	if err := env.AddImpl(&ast.ImplDef{
		Trait:   "Idempotent",
		Type:    ast.Named("Nat"),
		Methods: map[string]*ast.AtomDef{"apply": apply},
	}); err != nil {
		t.Fatalf("AddImpl: %v", err)
	}

	outcomes := verifyLaws(context.Background(), env, 3)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 law outcome, got %d", len(outcomes))
	}

	if outcomes[0].Status != StatusVerified {
		t.Fatalf("expected law to verify, got %s (err=%v)", outcomes[0].Status, outcomes[0].Err)
	}
}
