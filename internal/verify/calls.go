package verify

import (
	"fmt"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// translateCall evaluates a call expression. Under Gate 9 law verification
// (c.implContext set) a call to one of the impl's own trait methods is
// inlined — the law is checked against the impl's actual body, not trusted
// opaquely. Every other call, including calls made from ordinary atom
// bodies, is opaque per §4.4: the callee's requires is proved under the
// actuals, then a fresh result symbol is introduced and the callee's
// ensures is asserted of it.
func (c *VCtx) translateCall(n *ast.CallExpr) (smt.Term, error) {
	actuals := make([]smt.Term, len(n.Args))

	for i, a := range n.Args {
		v, err := c.translate(a)
		if err != nil {
			return nil, err
		}

		actuals[i] = v
	}

	if c.implContext != nil {
		if method, ok := c.implContext.Methods[n.FQN]; ok {
			return c.inlineCall(method, n.Args, actuals)
		}
	}

	callee, ok := c.env.Atom(n.FQN)
	if !ok {
		return nil, fmt.Errorf("verify: call to unknown atom %q in atom %q", n.FQN, c.atom.Name)
	}

	c.trackOwnershipTransfers(callee, n.Args)

	scope := make(map[string]smt.Term, len(callee.Params))
	for i, p := range callee.Params {
		if i < len(actuals) {
			scope[p.Name] = actuals[i]
		}
	}

	if callee.Trust != ast.TrustTrusted {
		reqTerm, err := c.translateInScope(scope, callee.Requires)
		if err != nil {
			return nil, err
		}

		if err := c.require(reqTerm, func(model smt.Model) *errors.CompilerError {
			return errors.RequiresNotMet(callee.Name, position.Span{}).WithAtom(c.atom.Name).WithCounterexample(toMap(model))
		}); err != nil {
			return nil, err
		}
	}

	resultSort := returnSort(callee)
	fresh := c.fresh("result_of_"+callee.Name, resultSort)
	scope["result"] = fresh

	ensTerm, err := c.translateInScope(scope, callee.Ensures)
	if err != nil {
		return nil, err
	}

	c.engine.Assert(ensTerm)

	if callee.Trust == ast.TrustUnverified {
		c.tainted[fresh.Name] = true
	}

	return fresh, nil
}

// inlineCall translates method's body with its formals bound to actuals,
// used only for Gate 9 law checking where the law must be checked against
// the impl's real implementation rather than its trusted contract.
func (c *VCtx) inlineCall(method *ast.AtomDef, argExprs []ast.Expr, actuals []smt.Term) (smt.Term, error) {
	savedBindings := c.bindings
	c.bindings = make(map[string]smt.Term, len(method.Params))

	for k, v := range savedBindings {
		c.bindings[k] = v
	}

	for i, p := range method.Params {
		if i < len(actuals) {
			c.bindings[p.Name] = actuals[i]
		}
	}

	v, err := c.translate(method.Body)
	c.bindings = savedBindings

	return v, err
}

// translateInScope translates e with bindings temporarily overridden by
// scope (formal parameter names and, for ensures, "result"), restoring the
// prior scope afterward.
func (c *VCtx) translateInScope(scope map[string]smt.Term, e ast.Expr) (smt.Term, error) {
	saved := c.bindings
	merged := make(map[string]smt.Term, len(saved)+len(scope))

	for k, v := range saved {
		merged[k] = v
	}

	for k, v := range scope {
		merged[k] = v
	}

	c.bindings = merged
	v, err := c.translate(e)
	c.bindings = saved

	return v, err
}

// trackOwnershipTransfers records a move when a plain local variable,
// itself one of this atom's owned (non-ref) parameters or let-bindings, is
// passed to a callee formal that is itself owned — the natural point at
// which ownership transfers to the callee, in the absence of a dedicated
// `consume` statement in the body grammar. A ref/ref-mut formal instead
// borrows for the (synchronous) duration of the call.
func (c *VCtx) trackOwnershipTransfers(callee *ast.AtomDef, argExprs []ast.Expr) {
	for i, argExpr := range argExprs {
		v, ok := argExpr.(*ast.VarExpr)
		if !ok || i >= len(callee.Params) {
			continue
		}

		switch callee.Params[i].Flag {
		case ast.ParamOwned:
			if err := c.linearity.Consume(v.Name); err != nil {
				c.warnings = append(c.warnings, errors.DoubleFree(v.Name, position.Span{}).WithAtom(c.atom.Name).AsWarning())
			}
		case ast.ParamRef, ast.ParamRefMut:
			borrower := fmt.Sprintf("%s@%s", v.Name, callee.Name)
			_ = c.linearity.Borrow(v.Name, borrower)
			c.linearity.ReleaseBorrow(v.Name, borrower)
		}
	}
}

// returnSort defaults every call's result symbol to SortInt: AtomDef
// carries no declared return type (spec §3's atom grammar infers it from
// body/ensures), and every numeric refinement base type this engine models
// besides f64 is integral; f64-returning atoms remain usable since Eval
// only consults a symbol's declared sort for enumeration, not for equality
// or comparison semantics.
func returnSort(*ast.AtomDef) smt.Sort {
	return smt.SortInt
}
