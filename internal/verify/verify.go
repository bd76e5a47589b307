package verify

import (
	"context"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/cache"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// Verify runs every gate of §4.5 over env: Gate 5 orders atoms by call
// dependency and flags unguarded recursive cycles, each atom is then
// discharged through Gates 0/1/2/3/4/6/7/8 in newVCtx's context, and
// finally Gate 9 checks every impl's laws against its own method bodies.
//
// priorCache is the incremental proof cache entry (internal/cache) from an
// earlier run of the same source file, or nil if none applies (e.g. the
// `verify` and `watch` commands, which never consult the cache). Before discharging any
// gate for an atom, §4.6 has the verifier consult this cache first: a hit —
// the atom's current hash matches what was last recorded as verified —
// short-circuits straight to a verified Outcome.
func Verify(ctx context.Context, env *moduleenv.Env, defaultMaxUnroll int, priorCache *cache.Entry) ([]*Outcome, error) {
	order, cycles := verificationOrder(env)

	var outcomes []*Outcome

	for _, cyc := range cycles {
		if !cycleIsGuarded(env, cyc) {
			outcomes = append(outcomes, &Outcome{
				Name:     cyc[0],
				Status:   StatusWarning,
				Warnings: []*errors.CompilerError{errors.CallCycle(cyc, position.Span{})},
			})
		}
	}

	for _, name := range order {
		a, ok := env.Atom(name)
		if !ok {
			continue
		}

		var outcome *Outcome
		if priorCache != nil && !priorCache.Stale(a) {
			outcome = &Outcome{Name: name, Status: StatusVerified, Cached: true}
		} else {
			outcome = verifyAtom(ctx, env, a, defaultMaxUnroll)
		}

		outcomes = append(outcomes, outcome)

		if outcome.Status != StatusFailed {
			env.MarkVerified(name)
		}
	}

	outcomes = append(outcomes, verifyLaws(ctx, env, defaultMaxUnroll)...)

	return outcomes, nil
}

// verifyAtom discharges one atom's contract: Gate 0 dispatches trust level,
// setupParams injects refinement/struct/array/linearity state, requires is
// asserted, the body is evaluated (exercising Gates 1-4 as acquire/await/
// while nodes are reached), and ensures is proved of the body's result —
// with Gate 7's linearity finalization and Gate 8's taint bookkeeping
// running throughout via c.require and c.linearity.
func verifyAtom(ctx context.Context, env *moduleenv.Env, a *ast.AtomDef, defaultMaxUnroll int) *Outcome {
	c := newVCtx(ctx, env, a, defaultMaxUnroll)

	if a.Trust == ast.TrustTrusted {
		// Gate 0: the contract is recorded but the body is never evaluated —
		// callers of a trusted atom still get its requires/ensures asserted
		// opaquely at each call site (calls.go's translateCall).
		return verified(a.Name, nil)
	}

	if a.Trust == ast.TrustUnverified {
		c.downgrade = true
	}

	if err := c.setupParams(); err != nil {
		if ce, ok := err.(*errors.CompilerError); ok {
			return failed(a.Name, ce, c.warnings)
		}

		return failed(a.Name, errors.RequiresNotMet(a.Name, position.Span{}).WithAtom(a.Name), c.warnings)
	}

	reqTerm, err := c.translate(a.Requires)
	if err != nil {
		return exprFailure(a.Name, err, c.warnings)
	}

	c.engine.Assert(reqTerm)

	resultTerm, err := c.translate(a.Body)
	if err != nil {
		return exprFailure(a.Name, err, c.warnings)
	}

	c.bindings["result"] = resultTerm

	ensTerm, err := c.translate(a.Ensures)
	if err != nil {
		return exprFailure(a.Name, err, c.warnings)
	}

	if err := c.require(ensTerm, func(model smt.Model) *errors.CompilerError {
		return errors.EnsuresViolated(a.Name, position.Span{}).WithAtom(a.Name).WithCounterexample(toMap(model))
	}); err != nil {
		if ce, ok := err.(*errors.CompilerError); ok {
			return failed(a.Name, ce, c.warnings)
		}

		return failed(a.Name, errors.EnsuresViolated(a.Name, position.Span{}).WithAtom(a.Name), c.warnings)
	}

	if err := c.finalizeLinearity(); err != nil {
		return exprFailure(a.Name, err, c.warnings)
	}

	return verified(a.Name, c.warnings)
}

// finalizeLinearity is Gate 7: every owned parameter the body consumed
// must end the atom dead (moved out, never reused); every ref/ref-mut
// parameter must end with no outstanding borrows. Violations recorded
// along the way by LinearityCtx are reported together.
func (c *VCtx) finalizeLinearity() error {
	for _, p := range c.atom.Params {
		if p.Flag == ast.ParamRef || p.Flag == ast.ParamRefMut {
			if c.linearity.IsBorrowed(p.Name) {
				return c.fail(errors.BorrowConflict(
					p.Name+" still borrowed at end of atom", position.Span{}).WithAtom(c.atom.Name))
			}
		}
	}

	if c.linearity.HasViolations() {
		return c.fail(errors.UseAfterFree(c.atom.Name, position.Span{}).WithAtom(c.atom.Name))
	}

	return nil
}

func exprFailure(name string, err error, warnings []*errors.CompilerError) *Outcome {
	if ce, ok := err.(*errors.CompilerError); ok {
		return failed(name, ce, warnings)
	}

	return failed(name, errors.New(errors.CategoryEnsuresViolated, err.Error(), position.Span{}, nil).WithAtom(name), warnings)
}
