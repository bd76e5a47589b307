package verify

import (
	"sort"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

// calleesOf returns the distinct set of atom names a's body calls, walking
// every expression and statement kind the body grammar can produce.
func calleesOf(a *ast.AtomDef) []string {
	seen := make(map[string]bool)

	var walkExpr func(ast.Expr)

	var walkStmt func(ast.Stmt)

	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ast.CallExpr:
			seen[n.FQN] = true

			for _, arg := range n.Args {
				walkExpr(arg)
			}
		case *ast.BinaryExpr:
			walkExpr(n.L)
			walkExpr(n.R)
		case *ast.UnaryExpr:
			walkExpr(n.X)
		case *ast.IfExpr:
			walkExpr(n.Cond)
			walkExpr(n.Then)
			walkExpr(n.Else)
		case *ast.Block:
			for _, s := range n.Stmts {
				walkStmt(s)
			}

			walkExpr(n.Result)
		case *ast.MatchExpr:
			walkExpr(n.Scrutinee)

			for _, arm := range n.Arms {
				walkExpr(arm.Body)
			}
		case *ast.QuantifierExpr:
			walkExpr(n.Lo)
			walkExpr(n.Hi)
			walkExpr(n.Pred)
		case *ast.IndexExpr:
			walkExpr(n.Array)
			walkExpr(n.Index)
		case *ast.FieldExpr:
			walkExpr(n.X)
		case *ast.AcquireExpr:
			walkExpr(n.Body)
		case *ast.AwaitExpr:
			walkExpr(n.X)
		}
	}

	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.LetStmt:
			walkExpr(n.Value)
		case *ast.AssignStmt:
			walkExpr(n.Value)
		case *ast.ExprStmt:
			walkExpr(n.X)
		case *ast.WhileStmt:
			walkExpr(n.Cond)

			for _, s2 := range n.Body.Stmts {
				walkStmt(s2)
			}
		}
	}

	walkExpr(a.Body)
	walkExpr(a.Requires)
	walkExpr(a.Ensures)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// verificationOrder runs Gate 5: it builds the static call graph over every
// atom in env and returns a dependency-respecting order (callees before
// callers) via DFS over the atoms in name order, plus every cycle found,
// guarded or not; Verify uses cycleIsGuarded to decide which cycles to
// report. Atoms on a cycle still appear in order, in DFS finishing order.
func verificationOrder(env *moduleenv.Env) (order []string, cycles [][]string) {
	atoms := env.Atoms()
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Name < atoms[j].Name })

	const (
		white = 0
		grey  = 1
		black = 2
	)

	color := make(map[string]int, len(atoms))
	var stack []string

	var visit func(name string)

	for _, a := range atoms {
		color[a.Name] = white
	}

	visit = func(name string) {
		if color[name] == black {
			return
		}

		if color[name] == grey {
			// Found a back-edge: extract the cycle from the active stack.
			start := -1

			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}

			if start >= 0 {
				cyc := append([]string{}, stack[start:]...)
				cyc = append(cyc, name)
				cycles = append(cycles, cyc)
			}

			return
		}

		a, ok := env.Atom(name)
		if !ok {
			color[name] = black
			return
		}

		color[name] = grey
		stack = append(stack, name)

		for _, callee := range calleesOf(a) {
			if _, ok := env.Atom(callee); ok {
				visit(callee)
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		order = append(order, name)
	}

	for _, a := range atoms {
		visit(a.Name)
	}

	return order, cycles
}

// cycleIsGuarded reports whether every atom named in cycle carries a
// decreases clause, an invariant, or a declared max_unroll bound — the
// mechanisms this verifier accepts as evidence the recursive chain
// terminates.
func cycleIsGuarded(env *moduleenv.Env, cycle []string) bool {
	for _, name := range cycle {
		a, ok := env.Atom(name)
		if !ok {
			continue
		}

		if a.Decreases == nil && a.Invariant == nil && a.MaxUnroll <= 0 {
			return false
		}
	}

	return true
}
