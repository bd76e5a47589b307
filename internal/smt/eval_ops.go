package smt

import (
	"fmt"

	"github.com/mumei-lang/mumei/internal/ast"
)

func evalUnary(op ast.UnOp, x Value) (Value, bool) {
	switch op {
	case ast.OpNot:
		return VB(!x.AsBool()), true
	case ast.OpNeg:
		if x.Sort == SortReal {
			return VR(-x.F), true
		}

		return VI(-x.I), true
	default:
		return Value{}, false
	}
}

func evalBinary(op ast.BinOp, l, r Value) (Value, bool) {
	switch op {
	case ast.OpAnd:
		return VB(l.AsBool() && r.AsBool()), true
	case ast.OpOr:
		return VB(l.AsBool() || r.AsBool()), true
	case ast.OpImplies:
		return VB(!l.AsBool() || r.AsBool()), true
	case ast.OpEq:
		return VB(valuesEqual(l, r)), true
	case ast.OpNe:
		return VB(!valuesEqual(l, r)), true
	}

	if l.Sort == SortReal || r.Sort == SortReal {
		lf, rf := asFloat(l), asFloat(r)

		switch op {
		case ast.OpAdd:
			return VR(lf + rf), true
		case ast.OpSub:
			return VR(lf - rf), true
		case ast.OpMul:
			return VR(lf * rf), true
		case ast.OpDiv:
			if rf == 0 {
				return Value{}, false
			}

			return VR(lf / rf), true
		case ast.OpLt:
			return VB(lf < rf), true
		case ast.OpLe:
			return VB(lf <= rf), true
		case ast.OpGt:
			return VB(lf > rf), true
		case ast.OpGe:
			return VB(lf >= rf), true
		}

		return Value{}, false
	}

	li, ri := l.I, r.I

	switch op {
	case ast.OpAdd:
		return VI(li + ri), true
	case ast.OpSub:
		return VI(li - ri), true
	case ast.OpMul:
		return VI(li * ri), true
	case ast.OpDiv:
		if ri == 0 {
			return Value{}, false
		}

		return VI(li / ri), true
	case ast.OpMod:
		if ri == 0 {
			return Value{}, false
		}

		return VI(li % ri), true
	case ast.OpLt:
		return VB(li < ri), true
	case ast.OpLe:
		return VB(li <= ri), true
	case ast.OpGt:
		return VB(li > ri), true
	case ast.OpGe:
		return VB(li >= ri), true
	default:
		return Value{}, false
	}
}

func valuesEqual(l, r Value) bool {
	if l.Sort == SortReal || r.Sort == SortReal {
		return asFloat(l) == asFloat(r)
	}

	if l.Sort == SortBool || r.Sort == SortBool {
		return l.AsBool() == r.AsBool()
	}

	return l.I == r.I
}

func asFloat(v Value) float64 {
	switch v.Sort {
	case SortReal:
		return v.F
	case SortInt:
		return float64(v.I)
	default:
		if v.Bo {
			return 1
		}

		return 0
	}
}

// evalBounded evaluates a Bounded quantifier by enumeration. Lo/Hi must
// fold to concrete integers under model; otherwise the quantifier is an
// unsupported obligation (ok=false), per §4.4 "treated as an unsupported
// obligation when the bounds are themselves symbolic and unbounded".
func evalBounded(n *Bounded, model Model) (Value, bool) {
	lo, ok := Eval(n.Lo, model)
	if !ok {
		return Value{}, false
	}

	hi, ok := Eval(n.Hi, model)
	if !ok {
		return Value{}, false
	}

	sub := make(Model, len(model)+1)
	for k, v := range model {
		sub[k] = v
	}

	for i := lo.I; i < hi.I; i++ {
		sub[n.Var] = VI(i)

		v, ok := Eval(n.Pred, sub)
		if !ok {
			return Value{}, false
		}

		if n.Universal && !v.AsBool() {
			return VB(false), true
		}

		if !n.Universal && v.AsBool() {
			return VB(true), true
		}
	}

	return VB(n.Universal), true
}

func (v Value) String() string {
	switch v.Sort {
	case SortInt:
		return fmt.Sprintf("%d", v.I)
	case SortReal:
		return fmt.Sprintf("%g", v.F)
	case SortBool:
		return fmt.Sprintf("%t", v.Bo)
	default:
		return "?"
	}
}
