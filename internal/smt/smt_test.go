package smt

import (
	"context"
	"testing"
	"time"
)

func TestProveSimpleArithmeticFact(t *testing.T) {
	e := NewEngine(6)
	e.Declare("x", SortInt)
	e.Assert(Ge(IntSym("x"), I(0)))
	e.Assert(Le(IntSym("x"), I(3)))

	goal := Ge(IntSym("x"), I(0))

	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	proved, _, err := e.Prove(ctx, goal)
	if err != nil {
		t.Fatalf("Prove returned error: %v", err)
	}

	if !proved {
		t.Fatalf("expected x>=0 to be proved from x in [0,3]")
	}
}

func TestProveFindsCounterexample(t *testing.T) {
	e := NewEngine(6)
	e.Declare("x", SortInt)
	e.Assert(Ge(IntSym("x"), I(-3)))
	e.Assert(Le(IntSym("x"), I(3)))

	goal := Gt(IntSym("x"), I(0))

	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	proved, model, err := e.Prove(ctx, goal)
	if err != nil {
		t.Fatalf("Prove returned error: %v", err)
	}

	if proved {
		t.Fatalf("expected x>0 to be disprovable when x can be -3")
	}

	if model["x"].I > 0 {
		t.Errorf("expected counter-example with x<=0, got x=%d", model["x"].I)
	}
}

func TestCheckSatDirectContradiction(t *testing.T) {
	e := NewEngine(6)
	e.Declare("x", SortInt)
	e.Assert(Lt(IntSym("x"), I(0)))
	e.Assert(Ge(IntSym("x"), I(0)))

	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, _ := e.CheckSat(ctx, B(true))
	if res != Unsat {
		t.Fatalf("expected direct contradiction to be Unsat, got %v", res)
	}
}

func TestEqualityClassPropagation(t *testing.T) {
	e := NewEngine(6)
	e.Declare("x", SortInt)
	e.Declare("y", SortInt)
	e.Assert(Eq(IntSym("x"), IntSym("y")))
	e.Assert(Lt(IntSym("x"), I(2)))

	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	proved, _, err := e.Prove(ctx, Lt(IntSym("y"), I(2)))
	if err != nil {
		t.Fatalf("Prove returned error: %v", err)
	}

	if !proved {
		t.Fatalf("expected y<2 proved via equality with x<2")
	}
}

func TestDivisionByZeroObligation(t *testing.T) {
	e := NewEngine(6)
	e.Declare("d", SortInt)

	goal := Ne(IntSym("d"), I(0))

	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	proved, model, err := e.Prove(ctx, goal)
	if err != nil {
		t.Fatalf("Prove returned error: %v", err)
	}

	if proved {
		t.Fatalf("expected d!=0 to be unprovable with no constraint on d")
	}

	if model["d"].I != 0 {
		t.Errorf("expected counter-example d=0, got d=%d", model["d"].I)
	}
}

func TestBoundedForallEnumeration(t *testing.T) {
	pred := Ge(IntSym("i"), I(0))
	forall := &Bounded{Universal: true, Var: "i", Lo: I(0), Hi: I(5), Pred: pred}

	v, ok := Eval(forall, Model{})
	if !ok || !v.AsBool() {
		t.Fatalf("expected forall i in [0,5), i>=0 to evaluate true, got %v ok=%v", v, ok)
	}
}
