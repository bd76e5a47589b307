package smt

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mumei-lang/mumei/internal/ast"
)

// Result is the three-valued outcome of a satisfiability query: the engine
// never claims Sat or Unsat when it merely ran out of search budget.
type Result int

const (
	Unsat Result = iota
	Sat
	Inconclusive
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "inconclusive"
	}
}

// defaultBound is the half-width of the enumeration window used for a
// symbol whose interval is unbounded on one or both sides.
const defaultBound = 6

// maxCombos caps the total size of the cartesian product CheckSat will
// enumerate, so a query with many symbols degrades to Inconclusive rather
// than hanging.
const maxCombos = 200000

var realSamples = []float64{-2, -1, -0.5, 0, 0.5, 1, 2}

// Engine is one solver context: a set of declared symbols and asserted
// facts, corresponding to the spec's "solver context holding symbolic
// variables keyed by name" (§4.4).
type Engine struct {
	sorts map[string]Sort
	facts []Term
	bound int64
}

// NewEngine returns an empty solver context. bound sets the enumeration
// window half-width for otherwise-unbounded integer symbols; pass 0 to use
// defaultBound.
func NewEngine(bound int64) *Engine {
	if bound <= 0 {
		bound = defaultBound
	}

	return &Engine{sorts: make(map[string]Sort), bound: bound}
}

// Declare records a symbol's sort, used only to decide how to enumerate it.
func (e *Engine) Declare(name string, sort Sort) {
	e.sorts[name] = sort
}

// Assert adds t to the context's accumulated facts.
func (e *Engine) Assert(t Term) {
	e.facts = append(e.facts, t)
}

// ErrInconclusive is returned by Prove when the engine could not decide
// goal within its search budget — never misreported as proved or
// disproved (§5 "solver timeout is inconclusive, treated as error").
var ErrInconclusive = errors.New("smt: inconclusive within search budget")

// Prove checks whether the context's facts entail goal by checking
// satisfiability of their conjunction with ¬goal: an unsat negation means
// goal is proved (proved=true, no model); a sat negation yields a
// counter-example model (proved=false); ErrInconclusive means the engine
// could not decide either way.
func (e *Engine) Prove(ctx context.Context, goal Term) (proved bool, counterexample Model, err error) {
	res, model := e.checkSat(ctx, Not(goal))

	switch res {
	case Unsat:
		return true, nil, nil
	case Sat:
		return false, model, nil
	default:
		return false, nil, ErrInconclusive
	}
}

// CheckSat checks satisfiability of the context's facts conjoined with
// goal, returning a witnessing model on Sat.
func (e *Engine) CheckSat(ctx context.Context, goal Term) (Result, Model) {
	return e.checkSat(ctx, goal)
}

func (e *Engine) checkSat(ctx context.Context, goal Term) (Result, Model) {
	all := append(append([]Term{}, e.facts...), goal)

	var flat []Term
	for _, f := range all {
		flat = append(flat, flattenAnd(f)...)
	}

	intervals, _, contradiction := solveConstraints(deriveConstraints(flat))
	if contradiction {
		return Unsat, nil
	}

	syms := collectSymbols(flat)
	sort.Slice(syms, func(i, j int) bool { return syms[i].Name < syms[j].Name })

	domains := make([][]Value, len(syms))
	combos := int64(1)

	for i, s := range syms {
		domains[i] = domainFor(s, intervals[s.Name], e.bound)
		combos *= int64(len(domains[i]))
	}

	exploredFully := combos <= maxCombos

	if !exploredFully {
		// shrink the per-symbol domain rather than giving up outright,
		// trading completeness for termination on large queries.
		domains = shrinkDomains(domains, maxCombos)
	}

	model, found := enumerate(ctx, syms, domains, flat)
	if found {
		return Sat, model
	}

	if exploredFully {
		return Unsat, nil
	}

	return Inconclusive, nil
}

func domainFor(s *Sym, iv Interval, bound int64) []Value {
	switch s.Sort {
	case SortBool:
		return []Value{VB(true), VB(false)}
	case SortReal:
		vals := make([]Value, len(realSamples))
		for i, f := range realSamples {
			vals[i] = VR(f)
		}

		return vals
	default:
		b := iv.bounded(bound)
		vals := make([]Value, 0, b.Hi-b.Lo+1)

		for n := b.Lo; n <= b.Hi; n++ {
			vals = append(vals, VI(n))
		}

		return vals
	}
}

func shrinkDomains(domains [][]Value, cap int64) [][]Value {
	for total := productSize(domains); total > cap; total = productSize(domains) {
		shrunk := false

		for i, d := range domains {
			if len(d) > 2 {
				domains[i] = d[:len(d)-1]
				shrunk = true
			}
		}

		if !shrunk {
			break
		}
	}

	return domains
}

func productSize(domains [][]Value) int64 {
	total := int64(1)
	for _, d := range domains {
		total *= int64(len(d))
	}

	return total
}

func enumerate(ctx context.Context, syms []*Sym, domains [][]Value, facts []Term) (Model, bool) {
	idx := make([]int, len(syms))

	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		model := make(Model, len(syms))
		for i, s := range syms {
			model[s.Name] = domains[i][idx[i]]
		}

		if satisfiesAll(facts, model) {
			return model, true
		}

		if !advance(idx, domains) {
			return nil, false
		}
	}
}

func advance(idx []int, domains [][]Value) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(domains[i]) {
			return true
		}

		idx[i] = 0
	}

	return false
}

func satisfiesAll(facts []Term, model Model) bool {
	for _, f := range facts {
		v, ok := Eval(f, model)
		if !ok || !v.AsBool() {
			return false
		}
	}

	return true
}

// flattenAnd splits a top-level conjunction into its conjuncts so the
// worklist's atomic pattern matching sees past `And(a, And(b, c))` nesting.
func flattenAnd(t Term) []Term {
	b, ok := t.(*Binary)
	if !ok || b.Op != ast.OpAnd {
		return []Term{t}
	}

	return append(flattenAnd(b.L), flattenAnd(b.R)...)
}

// collectSymbols walks t and returns every distinct Sym referenced,
// deduplicated by name.
func collectSymbols(terms []Term) []*Sym {
	seen := make(map[string]*Sym)

	var walk func(Term)

	walk = func(t Term) {
		switch n := t.(type) {
		case *Sym:
			seen[n.Name] = n
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.L)
			walk(n.R)
		case *Ite:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		case *Select:
			walk(n.Arr)
			walk(n.Idx)
		case *Bounded:
			walk(n.Lo)
			walk(n.Hi)
			walk(n.Pred)
		}
	}

	for _, t := range terms {
		walk(t)
	}

	out := make([]*Sym, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}

	return out
}

// WithTimeout returns a context bounded by d, used by callers to enforce
// the per-query solver timeout of §5 ("Cancellation/timeouts").
func WithTimeout(parent context.Context, d time.Duration) (context.Context, func()) {
	return context.WithTimeout(parent, d)
}
