// Package emit implements the emission handoff (spec §4.8, L8): once
// internal/verify has discharged every atom's obligations and
// internal/mono has produced the fully concrete ModuleEnv, emit hands that
// read-only env to one or more codegen/transpile collaborators through one
// narrow interface. internal/emit/gotarget is the one concrete, in-module
// consumer; LLVM IR emission and the Rust/TypeScript transpilers are true
// external collaborators this package only describes the contract for.
//
// Lower additionally produces a lir.Module (internal/lir, adapted from the
// teacher's target-agnostic low-level IR) for every verified atom whose
// body is straight-line enough to express in a three-address form — the
// literal "emit low-level IR" step spec.md's pipeline names, demonstrated
// here as illustrative plumbing rather than a full instruction-selection
// pass.
package emit

import (
	"fmt"
	"sort"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/lir"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

// Emitter hands a verified, monomorphized ModuleEnv to one codegen/
// transpile target. Implementations must treat env as read-only.
type Emitter interface {
	Emit(env *moduleenv.Env) error
}

// Lower builds a lir.Module containing one lir.Function per verified atom
// in env, in name order. Atoms whose bodies use control flow or data forms
// this conservative lowering does not model (match, while, struct/array
// access, acquire, await, quantifiers) still get a Function, but its single
// block is a placeholder Call documenting that the real body is only
// available in source form via internal/emit/gotarget — Lower never fails
// an atom outright, since the low-level IR here is illustrative, not a
// complete backend.
func Lower(env *moduleenv.Env) *lir.Module {
	m := &lir.Module{Name: "mumei"}

	atoms := env.Atoms()
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Name < atoms[j].Name })

	for _, a := range atoms {
		if !env.IsVerified(a.Name) {
			continue
		}

		m.Functions = append(m.Functions, lowerAtom(a))
	}

	return m
}

func lowerAtom(a *ast.AtomDef) *lir.Function {
	fn := &lir.Function{Name: a.Name}
	bb := &lir.BasicBlock{Label: "entry"}

	tmp := 0
	next := func() string {
		tmp++
		return fmt.Sprintf("%%t%d", tmp)
	}

	result, insns, ok := lowerStraightLine(a.Body, next)
	if !ok {
		bb.Insns = append(bb.Insns, lir.Call{Callee: a.Name + "_body", Dst: "%unsupported"})
		bb.Insns = append(bb.Insns, lir.Ret{})
		fn.Blocks = []*lir.BasicBlock{bb}

		return fn
	}

	bb.Insns = append(bb.Insns, insns...)
	bb.Insns = append(bb.Insns, lir.Ret{Src: result})
	fn.Blocks = []*lir.BasicBlock{bb}

	return fn
}

// lowerStraightLine lowers literal/variable/unary/binary/call expressions
// into a flat instruction list plus the register holding the final value.
// It reports ok=false for any construct outside this fragment (if/match/
// while/struct/array/acquire/await/quantifiers), which the caller turns
// into a placeholder block rather than propagating an error.
func lowerStraightLine(e ast.Expr, next func() string) (string, []lir.Insn, bool) {
	switch n := e.(type) {
	case *ast.IntLit:
		dst := next()
		return dst, []lir.Insn{lir.Mov{Dst: dst, Src: fmt.Sprintf("%d", n.Value)}}, true
	case *ast.FloatLit:
		dst := next()
		return dst, []lir.Insn{lir.Mov{Dst: dst, Src: fmt.Sprintf("%g", n.Value)}}, true
	case *ast.BoolLit:
		dst := next()
		return dst, []lir.Insn{lir.Mov{Dst: dst, Src: fmt.Sprintf("%v", n.Value)}}, true
	case *ast.VarExpr:
		return "%" + n.Name, nil, true
	case *ast.UnaryExpr:
		src, insns, ok := lowerStraightLine(n.X, next)
		if !ok {
			return "", nil, false
		}

		dst := next()

		switch n.Op {
		case ast.OpNeg:
			insns = append(insns, lir.Sub{Dst: dst, LHS: "0", RHS: src})
		default:
			return "", nil, false
		}

		return dst, insns, true
	case *ast.BinaryExpr:
		lsrc, linsns, ok := lowerStraightLine(n.L, next)
		if !ok {
			return "", nil, false
		}

		rsrc, rinsns, ok := lowerStraightLine(n.R, next)
		if !ok {
			return "", nil, false
		}

		insns := append(linsns, rinsns...)
		dst := next()

		switch n.Op {
		case ast.OpAdd:
			insns = append(insns, lir.Add{Dst: dst, LHS: lsrc, RHS: rsrc})
		case ast.OpSub:
			insns = append(insns, lir.Sub{Dst: dst, LHS: lsrc, RHS: rsrc})
		case ast.OpMul:
			insns = append(insns, lir.Mul{Dst: dst, LHS: lsrc, RHS: rsrc})
		case ast.OpDiv:
			insns = append(insns, lir.Div{Dst: dst, LHS: lsrc, RHS: rsrc})
		case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq, ast.OpNe:
			insns = append(insns, lir.Cmp{Dst: dst, Pred: n.Op.String(), LHS: lsrc, RHS: rsrc})
		default:
			return "", nil, false
		}

		return dst, insns, true
	case *ast.CallExpr:
		var insns []lir.Insn

		args := make([]string, 0, len(n.Args))

		for _, arg := range n.Args {
			src, sub, ok := lowerStraightLine(arg, next)
			if !ok {
				return "", nil, false
			}

			insns = append(insns, sub...)
			args = append(args, src)
		}

		dst := next()
		insns = append(insns, lir.Call{Dst: dst, Callee: n.FQN, Args: args})

		return dst, insns, true
	default:
		return "", nil, false
	}
}
