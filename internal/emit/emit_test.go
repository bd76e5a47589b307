package emit

import (
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/lir"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

func addAtom(env *moduleenv.Env, t *testing.T, name string, body ast.Expr) {
	t.Helper()

	if err := env.AddAtom(&ast.AtomDef{
		Name:     name,
		Requires: &ast.BoolLit{Value: true},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     body,
	}); err != nil {
		t.Fatalf("AddAtom(%s): %v", name, err)
	}
}

func TestLowerSkipsUnverifiedAtoms(t *testing.T) {
	env := moduleenv.New()
	addAtom(env, t, "ghost", &ast.IntLit{Value: 1})

	m := Lower(env)
	if len(m.Functions) != 0 {
		t.Fatalf("expected no functions for unverified atoms, got %d", len(m.Functions))
	}
}

func TestLowerStraightLineArithmetic(t *testing.T) {
	env := moduleenv.New()
	addAtom(env, t, "add_one", &ast.BinaryExpr{
		Op: ast.OpAdd,
		L:  &ast.VarExpr{Name: "x"},
		R:  &ast.IntLit{Value: 1},
	})
	env.MarkVerified("add_one")

	m := Lower(env)
	if len(m.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(m.Functions))
	}

	fn := m.Functions[0]
	if fn.Name != "add_one" {
		t.Fatalf("unexpected function name %q", fn.Name)
	}

	if len(fn.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(fn.Blocks))
	}

	insns := fn.Blocks[0].Insns
	if len(insns) == 0 {
		t.Fatalf("expected at least one instruction")
	}

	last := insns[len(insns)-1]
	if _, ok := last.(lir.Ret); !ok {
		t.Fatalf("expected the block to end in a Ret, got %T", last)
	}

	foundAdd := false

	for _, ins := range insns {
		if _, ok := ins.(lir.Add); ok {
			foundAdd = true
		}
	}

	if !foundAdd {
		t.Fatalf("expected an Add instruction among %v", insns)
	}
}

func TestLowerUnsupportedFormGetsPlaceholder(t *testing.T) {
	env := moduleenv.New()
	addAtom(env, t, "branchy", &ast.IfExpr{
		Cond: &ast.BoolLit{Value: true},
		Then: &ast.Block{Result: &ast.IntLit{Value: 1}},
		Else: &ast.Block{Result: &ast.IntLit{Value: 2}},
	})
	env.MarkVerified("branchy")

	m := Lower(env)
	fn := m.Functions[0]
	insns := fn.Blocks[0].Insns

	call, ok := insns[0].(lir.Call)
	if !ok || call.Callee != "branchy_body" {
		t.Fatalf("expected a placeholder call, got %#v", insns[0])
	}
}
