package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// verifyLaws runs Gate 9 over every registered impl: each law of the impl's
// trait is checked not against the trait's abstract signature but against
// the impl's own method bodies, by having translateCall inline them
// (calls.go's implContext redirect) instead of trusting their contracts
// opaquely.
func verifyLaws(ctx context.Context, env *moduleenv.Env, maxUnroll int) []*Outcome {
	impls := env.Impls()
	sort.Slice(impls, func(i, j int) bool {
		return impls[i].Trait+impls[i].Type.String() < impls[j].Trait+impls[j].Type.String()
	})

	var outcomes []*Outcome

	for _, im := range impls {
		tr, ok := env.Trait(im.Trait)
		if !ok {
			continue
		}

		for _, law := range tr.Laws {
			outcomes = append(outcomes, verifyOneLaw(ctx, env, im, law, maxUnroll))
		}
	}

	return outcomes
}

func verifyOneLaw(ctx context.Context, env *moduleenv.Env, im *ast.ImplDef, law ast.Law, maxUnroll int) *Outcome {
	name := fmt.Sprintf("%s for %s::%s", im.Trait, im.Type.String(), law.Name)

	synthetic := &ast.AtomDef{Name: name, Trust: ast.TrustVerified, MaxUnroll: maxUnroll}
	c := newVCtx(ctx, env, synthetic, maxUnroll)
	c.implContext = im

	for _, v := range freeVarsOf(law.Body) {
		sym := c.fresh(v, smt.SortInt)
		sym.Name = v
		c.engine.Declare(v, smt.SortInt)
		c.bindings[v] = &smt.Sym{Name: v, Sort: smt.SortInt}
	}

	lawTerm, err := c.translate(law.Body)
	if err != nil {
		return failed(name, errors.LawViolated(law.Name, im.Type.String(), position.Span{}).WithAtom(name), c.warnings)
	}

	if err := c.require(lawTerm, func(model smt.Model) *errors.CompilerError {
		return errors.LawViolated(law.Name, im.Type.String(), position.Span{}).WithAtom(name).WithCounterexample(toMap(model))
	}); err != nil {
		if ce, ok := err.(*errors.CompilerError); ok {
			return failed(name, ce, c.warnings)
		}

		return failed(name, errors.LawViolated(law.Name, im.Type.String(), position.Span{}).WithAtom(name), c.warnings)
	}

	return verified(name, c.warnings)
}

// freeVarsOf collects every distinct VarExpr name referenced in e, in
// sorted order, used to quantify a law's free variables universally by
// giving each a fresh unconstrained symbol before checking the law.
func freeVarsOf(e ast.Expr) []string {
	seen := make(map[string]bool)

	var walk func(ast.Expr)

	walk = func(n ast.Expr) {
		switch x := n.(type) {
		case nil:
			return
		case *ast.VarExpr:
			seen[x.Name] = true
		case *ast.BinaryExpr:
			walk(x.L)
			walk(x.R)
		case *ast.UnaryExpr:
			walk(x.X)
		case *ast.IfExpr:
			walk(x.Cond)
			walk(x.Then)
			walk(x.Else)
		case *ast.CallExpr:
			for _, a := range x.Args {
				walk(a)
			}
		case *ast.FieldExpr:
			walk(x.X)
		case *ast.IndexExpr:
			walk(x.Array)
			walk(x.Index)
		}
	}

	walk(e)

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
