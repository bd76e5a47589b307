package verify

import (
	"sort"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// translateWhile dispatches to Gate 4's inductive-invariant proof when the
// loop carries an invariant clause, or to Gate 2's bounded unrolling
// otherwise (§4.5).
func (c *VCtx) translateWhile(n *ast.WhileStmt) error {
	if n.Invariant != nil {
		return c.translateInvariantLoop(n)
	}

	return c.translateUnrolledLoop(n)
}

// translateUnrolledLoop is Gate 2's fallback for a loop without a declared
// invariant: the body is unrolled up to maxUnroll times, each pass gated by
// its own loop condition as a path-condition guard exactly like an if-arm,
// and the condition is finally required to be false — proving the loop
// terminates within the bound.
func (c *VCtx) translateUnrolledLoop(n *ast.WhileStmt) error {
	for i := 0; i < c.maxUnroll; i++ {
		cond, err := c.translate(n.Cond)
		if err != nil {
			return err
		}

		c.pushPath(cond)
		_, err = c.translateBlock(n.Body)
		c.popPath()

		if err != nil {
			return err
		}
	}

	cond, err := c.translate(n.Cond)
	if err != nil {
		return err
	}

	return c.require(smt.Not(cond), func(model smt.Model) *errors.CompilerError {
		return errors.TerminationFailed(c.atom.Name, position.Span{}).WithCounterexample(toMap(model))
	})
}

// translateInvariantLoop is Gate 4: the invariant is proved on entry, every
// variable the body assigns is havoced to a fresh unconstrained symbol, the
// invariant is assumed to hold at the loop head, the body is evaluated once
// under the loop condition, and the invariant (plus, if present, a
// decreases clause) is proved preserved — establishing it for every
// iteration by induction rather than by unrolling.
func (c *VCtx) translateInvariantLoop(n *ast.WhileStmt) error {
	entryInv, err := c.translate(n.Invariant)
	if err != nil {
		return err
	}

	if err := c.require(entryInv, func(model smt.Model) *errors.CompilerError {
		return errors.InvariantFailed(c.atom.Name, position.Span{}).WithCounterexample(toMap(model))
	}); err != nil {
		return err
	}

	for _, name := range collectAssignedNames(n.Body) {
		if old, ok := c.bindings[name]; ok {
			c.bindings[name] = c.fresh(name, sortOf(old))
		}
	}

	headInv, err := c.translate(n.Invariant)
	if err != nil {
		return err
	}

	c.engine.Assert(headInv)

	var decBefore smt.Term

	if n.Decreases != nil {
		decBefore, err = c.translate(n.Decreases)
		if err != nil {
			return err
		}

		if err := c.require(smt.Ge(decBefore, smt.I(0)), func(model smt.Model) *errors.CompilerError {
			return errors.TerminationFailed(c.atom.Name, position.Span{}).WithCounterexample(toMap(model))
		}); err != nil {
			return err
		}
	}

	cond, err := c.translate(n.Cond)
	if err != nil {
		return err
	}

	c.pushPath(cond)

	if _, err := c.translateBlock(n.Body); err != nil {
		c.popPath()
		return err
	}

	preservedInv, err := c.translate(n.Invariant)
	if err != nil {
		c.popPath()
		return err
	}

	if err := c.require(preservedInv, func(model smt.Model) *errors.CompilerError {
		return errors.InvariantFailed(c.atom.Name, position.Span{}).WithCounterexample(toMap(model))
	}); err != nil {
		c.popPath()
		return err
	}

	if n.Decreases != nil {
		decAfter, err := c.translate(n.Decreases)
		if err != nil {
			c.popPath()
			return err
		}

		if err := c.require(smt.Lt(decAfter, decBefore), func(model smt.Model) *errors.CompilerError {
			return errors.TerminationFailed(c.atom.Name, position.Span{}).WithCounterexample(toMap(model))
		}); err != nil {
			c.popPath()
			return err
		}
	}

	c.popPath()

	exitCond, err := c.translate(n.Cond)
	if err != nil {
		return err
	}

	c.engine.Assert(smt.Not(exitCond))

	exitInv, err := c.translate(n.Invariant)
	if err != nil {
		return err
	}

	c.engine.Assert(exitInv)

	return nil
}

// collectAssignedNames walks a loop body for every variable name it binds
// or rebinds (let or assignment, including inside nested control flow), so
// translateInvariantLoop can havoc exactly the variables the loop might
// touch before assuming the invariant at the loop head.
func collectAssignedNames(b *ast.Block) []string {
	seen := make(map[string]bool)

	var walkStmt func(ast.Stmt)

	var walkExpr func(ast.Expr)

	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
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
		case *ast.BinaryExpr:
			walkExpr(n.L)
			walkExpr(n.R)
		case *ast.UnaryExpr:
			walkExpr(n.X)
		case *ast.CallExpr:
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.AcquireExpr:
			walkExpr(n.Body)
		case *ast.AwaitExpr:
			walkExpr(n.X)
		}
	}

	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.LetStmt:
			seen[n.Name] = true
			walkExpr(n.Value)
		case *ast.AssignStmt:
			seen[n.Name] = true
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

	for _, s := range b.Stmts {
		walkStmt(s)
	}

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}
