package smt

import "github.com/mumei-lang/mumei/internal/ast"

// constraintKind mirrors the teacher's ExtendedConstraintKind
// (internal/types/constraint_solver.go): a closed set of atomic shapes the
// worklist loop knows how to fold into tighter intervals/equality classes.
type constraintKind int

const (
	ckRange constraintKind = iota
	ckEqualSym
)

type constraint struct {
	kind  constraintKind
	sym   string
	rng   Interval
	other string
}

const maxSolveSteps = 64

// deriveConstraints scans a flattened fact list for the atomic forms the
// solver can fold directly: `sym OP literal`, `literal OP sym`, and
// `sym == sym`. Anything richer is left to full enumeration in CheckSat.
func deriveConstraints(facts []Term) []constraint {
	var out []constraint

	for _, f := range facts {
		b, ok := f.(*Binary)
		if !ok {
			continue
		}

		if c, ok := rangeConstraint(b); ok {
			out = append(out, c)
			continue
		}

		if b.Op == ast.OpEq {
			ls, lok := b.L.(*Sym)
			rs, rok := b.R.(*Sym)

			if lok && rok {
				out = append(out, constraint{kind: ckEqualSym, sym: ls.Name, other: rs.Name})
			}
		}
	}

	return out
}

func rangeConstraint(b *Binary) (constraint, bool) {
	if sym, lit, swapped, ok := symLitPair(b); ok {
		rng := intervalFromComparison(b.Op, lit, swapped)
		return constraint{kind: ckRange, sym: sym.Name, rng: rng}, true
	}

	return constraint{}, false
}

func symLitPair(b *Binary) (*Sym, int64, bool, bool) {
	if !isOrderingOrEq(b.Op) {
		return nil, 0, false, false
	}

	if s, ok := b.L.(*Sym); ok {
		if lit, ok := b.R.(*IntLit); ok {
			return s, lit.Value, false, true
		}
	}

	if s, ok := b.R.(*Sym); ok {
		if lit, ok := b.L.(*IntLit); ok {
			return s, lit.Value, true, true
		}
	}

	return nil, 0, false, false
}

func isOrderingOrEq(op ast.BinOp) bool {
	switch op {
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq:
		return true
	default:
		return false
	}
}

// intervalFromComparison turns `sym OP lit` (swapped=false) or
// `lit OP sym` (swapped=true) into the interval it implies for sym.
func intervalFromComparison(op ast.BinOp, lit int64, swapped bool) Interval {
	if swapped {
		op = flip(op)
	}

	switch op {
	case ast.OpLt:
		return Interval{HasHi: true, Hi: lit - 1}
	case ast.OpLe:
		return Interval{HasHi: true, Hi: lit}
	case ast.OpGt:
		return Interval{HasLo: true, Lo: lit + 1}
	case ast.OpGe:
		return Interval{HasLo: true, Lo: lit}
	case ast.OpEq:
		return Interval{HasLo: true, Lo: lit, HasHi: true, Hi: lit}
	default:
		return fullInterval()
	}
}

// flip turns `lit OP sym` into the equivalent `sym OP' lit`.
func flip(op ast.BinOp) ast.BinOp {
	switch op {
	case ast.OpLt:
		return ast.OpGt
	case ast.OpLe:
		return ast.OpGe
	case ast.OpGt:
		return ast.OpLt
	case ast.OpGe:
		return ast.OpLe
	default:
		return op
	}
}

// solveConstraints is the worklist loop proper: repeatedly scan cs for a
// constraint that tightens the current state, stopping when a full pass
// makes no progress (stuck) or maxSolveSteps is exceeded, directly
// mirroring ConstraintSolver.SolveConstraints's progress-loop shape in the
// teacher.
func solveConstraints(cs []constraint) (map[string]Interval, *unionFind, bool) {
	intervals := make(map[string]Interval)
	uf := newUnionFind()

	for step, changed := 0, true; changed && step < maxSolveSteps; step++ {
		changed = false

		for _, c := range cs {
			switch c.kind {
			case ckRange:
				cur, ok := intervals[c.sym]
				if !ok {
					cur = fullInterval()
				}

				merged := cur.intersect(c.rng)
				if merged != cur {
					intervals[c.sym] = merged
					changed = true
				}
			case ckEqualSym:
				if uf.union(c.sym, c.other) {
					changed = true
				}
			}
		}
	}

	mergeEqualityClasses(intervals, uf)

	contradiction := false

	for _, iv := range intervals {
		if iv.empty() {
			contradiction = true
		}
	}

	return intervals, uf, contradiction
}

// mergeEqualityClasses intersects the interval of every symbol with the
// intervals of everything in its union-find class, so `x == y, x < 5`
// tightens y too.
func mergeEqualityClasses(intervals map[string]Interval, uf *unionFind) {
	classBound := make(map[string]Interval)

	for sym, iv := range intervals {
		class := uf.classOf(sym)
		cur, ok := classBound[class]

		if !ok {
			cur = fullInterval()
		}

		classBound[class] = cur.intersect(iv)
	}

	for sym := range intervals {
		intervals[sym] = classBound[uf.classOf(sym)]
	}
}
