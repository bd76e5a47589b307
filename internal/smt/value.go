package smt

import "github.com/mumei-lang/mumei/internal/ast"

// Value is a concrete assignment to one symbol, produced by model
// extraction for a counter-example or by enumeration during CheckSat.
type Value struct {
	Sort Sort
	I    int64
	F    float64
	Bo   bool
}

func VI(n int64) Value   { return Value{Sort: SortInt, I: n} }
func VR(f float64) Value { return Value{Sort: SortReal, F: f} }
func VB(b bool) Value    { return Value{Sort: SortBool, Bo: b} }

// AsBool reports the boolean value of v, treating any nonzero integer/real
// as true when v was not itself declared SortBool — callers should not rely
// on this outside Eval's internal coercions.
func (v Value) AsBool() bool {
	switch v.Sort {
	case SortBool:
		return v.Bo
	case SortInt:
		return v.I != 0
	case SortReal:
		return v.F != 0
	default:
		return false
	}
}

// Model is a satisfying or counter-example assignment, keyed by symbol name.
type Model map[string]Value

// Eval evaluates t under model, returning ok=false when t depends on a
// symbol absent from model or on an array Select (uninterpreted without a
// concrete array model) — both render the term's value unknown rather than
// wrongly guessed.
func Eval(t Term, model Model) (Value, bool) {
	switch n := t.(type) {
	case *IntLit:
		return VI(n.Value), true
	case *RealLit:
		return VR(n.Value), true
	case *BoolLit:
		return VB(n.Value), true
	case *Sym:
		v, ok := model[n.Name]
		return v, ok
	case *Unary:
		x, ok := Eval(n.X, model)
		if !ok {
			return Value{}, false
		}

		return evalUnary(n.Op, x)
	case *Binary:
		l, ok := Eval(n.L, model)
		if !ok {
			return Value{}, false
		}
		// short-circuit boolean connectives so a partial model can still
		// decide e.g. `false && <unknown>`
		if n.Op == ast.OpAnd && l.Sort == SortBool && !l.Bo {
			return VB(false), true
		}

		if n.Op == ast.OpOr && l.Sort == SortBool && l.Bo {
			return VB(true), true
		}

		r, ok := Eval(n.R, model)
		if !ok {
			return Value{}, false
		}

		return evalBinary(n.Op, l, r)
	case *Ite:
		c, ok := Eval(n.Cond, model)
		if !ok {
			return Value{}, false
		}

		if c.AsBool() {
			return Eval(n.Then, model)
		}

		return Eval(n.Else, model)
	case *Bounded:
		return evalBounded(n, model)
	default:
		return Value{}, false // Select and any future uninterpreted term
	}
}
