// Package smt implements the hand-rolled bounded symbolic constraint engine
// of spec §4.4. No SMT solver binding (Z3 or otherwise) exists anywhere in
// the retrieval pack, so this engine stands in for one: interval
// propagation, union-find equality tracking, and bounded enumeration over
// small integer domains, structured as a worklist solve loop grounded on
// the teacher's internal/types/constraint_solver.go (ConstraintSet,
// tryToSolveConstraint-equivalent dispatch, progress-loop-until-stuck).
//
// It is necessarily incomplete relative to a real decision procedure: it
// proves what it can and reports Inconclusive, never a false Unsat/Sat.
package smt

import (
	"fmt"
	"strings"

	"github.com/mumei-lang/mumei/internal/ast"
)

// Sort is the type of a symbolic value.
type Sort int

const (
	SortInt Sort = iota
	SortReal
	SortBool
	SortArray
)

// Term is a symbolic expression built by the translator (internal/verify)
// out of an atom's contracts and body.
type Term interface {
	termNode()
	String() string
}

type termBase struct{}

func (termBase) termNode() {}

// IntLit is a concrete integer constant.
type IntLit struct {
	termBase
	Value int64
}

func (t *IntLit) String() string { return fmt.Sprintf("%d", t.Value) }

// RealLit is a concrete real constant.
type RealLit struct {
	termBase
	Value float64
}

func (t *RealLit) String() string { return fmt.Sprintf("%g", t.Value) }

// BoolLit is a concrete boolean constant.
type BoolLit struct {
	termBase
	Value bool
}

func (t *BoolLit) String() string { return fmt.Sprintf("%t", t.Value) }

// Sym is a symbolic constant: a function parameter, a flattened struct
// field (`v_point_x`), a linearity flag (`__alive_x`), or a fresh
// let-bound/result symbol.
type Sym struct {
	termBase
	Name string
	Sort Sort
}

func (t *Sym) String() string { return t.Name }

// Unary applies a unary operator (negation, boolean not) to x.
type Unary struct {
	termBase
	Op ast.UnOp
	X  Term
}

func (t *Unary) String() string { return fmt.Sprintf("(%s %s)", unopString(t.Op), t.X) }

// Binary applies a binary operator to l and r, reusing the surface
// language's operator vocabulary (ast.BinOp) so the translator needs no
// second enum.
type Binary struct {
	termBase
	Op   ast.BinOp
	L, R Term
}

func (t *Binary) String() string { return fmt.Sprintf("(%s %s %s)", t.L, binopString(t.Op), t.R) }

// Ite is `if cond then then else els`, used for both surface if-expressions
// and the SSA-style merge of branch values.
type Ite struct {
	termBase
	Cond, Then, Else Term
}

func (t *Ite) String() string { return fmt.Sprintf("(ite %s %s %s)", t.Cond, t.Then, t.Else) }

// Select reads an uninterpreted array at index: `arr[idx]`.
type Select struct {
	termBase
	Arr Term
	Idx Term
}

func (t *Select) String() string { return fmt.Sprintf("(select %s %s)", t.Arr, t.Idx) }

// Bounded is a bounded quantifier: `forall(i, lo, hi, pred)` or
// `exists(i, lo, hi, pred)` (§4.4 "Quantifier calls"). Lo/Hi must fold to
// concrete integers for the engine to evaluate it by enumeration; otherwise
// it is an unsupported obligation.
type Bounded struct {
	termBase
	Universal bool // true = forall, false = exists
	Var       string
	Lo, Hi    Term
	Pred      Term
}

func (t *Bounded) String() string {
	kind := "exists"
	if t.Universal {
		kind = "forall"
	}

	return fmt.Sprintf("(%s %s %s %s %s)", kind, t.Var, t.Lo, t.Hi, t.Pred)
}

func unopString(op ast.UnOp) string {
	if op == ast.OpNot {
		return "not"
	}

	return "-"
}

func binopString(op ast.BinOp) string {
	names := map[ast.BinOp]string{
		ast.OpAdd: "+", ast.OpSub: "-", ast.OpMul: "*", ast.OpDiv: "/", ast.OpMod: "%",
		ast.OpLt: "<", ast.OpLe: "<=", ast.OpGt: ">", ast.OpGe: ">=",
		ast.OpEq: "==", ast.OpNe: "!=", ast.OpAnd: "&&", ast.OpOr: "||", ast.OpImplies: "=>",
	}
	if s, ok := names[op]; ok {
		return s
	}

	return "?"
}

// Helper constructors mirroring ast's TypeRef-style constructor functions.

func I(n int64) Term      { return &IntLit{Value: n} }
func R(f float64) Term    { return &RealLit{Value: f} }
func B(b bool) Term       { return &BoolLit{Value: b} }
func IntSym(n string) Term  { return &Sym{Name: n, Sort: SortInt} }
func RealSym(n string) Term { return &Sym{Name: n, Sort: SortReal} }
func BoolSym(n string) Term { return &Sym{Name: n, Sort: SortBool} }

func Not(x Term) Term          { return &Unary{Op: ast.OpNot, X: x} }
func Neg(x Term) Term          { return &Unary{Op: ast.OpNeg, X: x} }
func And(l, r Term) Term       { return &Binary{Op: ast.OpAnd, L: l, R: r} }
func Or(l, r Term) Term        { return &Binary{Op: ast.OpOr, L: l, R: r} }
func Implies(l, r Term) Term   { return &Binary{Op: ast.OpImplies, L: l, R: r} }
func Eq(l, r Term) Term        { return &Binary{Op: ast.OpEq, L: l, R: r} }
func Ne(l, r Term) Term        { return &Binary{Op: ast.OpNe, L: l, R: r} }
func Lt(l, r Term) Term        { return &Binary{Op: ast.OpLt, L: l, R: r} }
func Le(l, r Term) Term        { return &Binary{Op: ast.OpLe, L: l, R: r} }
func Gt(l, r Term) Term        { return &Binary{Op: ast.OpGt, L: l, R: r} }
func Ge(l, r Term) Term        { return &Binary{Op: ast.OpGe, L: l, R: r} }
func Add(l, r Term) Term       { return &Binary{Op: ast.OpAdd, L: l, R: r} }
func Sub(l, r Term) Term       { return &Binary{Op: ast.OpSub, L: l, R: r} }
func Mul(l, r Term) Term       { return &Binary{Op: ast.OpMul, L: l, R: r} }

func AndAll(terms ...Term) Term {
	switch len(terms) {
	case 0:
		return B(true)
	case 1:
		return terms[0]
	}

	acc := terms[0]
	for _, t := range terms[1:] {
		acc = And(acc, t)
	}

	return acc
}

// FlattenFieldName builds the `<param>_<field>` symbol name for a flattened
// struct field, nesting recursively for nested structs (`v_point_x`).
func FlattenFieldName(parts ...string) string {
	return strings.Join(parts, "_")
}
