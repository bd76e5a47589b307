package verify

import (
	"fmt"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// translate maps one expression to its symbolic term (§4.4/§4.5 Gate 6
// "Symbolically evaluate the body"), asserting and proving the side
// obligations (bounds, division, call contracts, linearity) it triggers
// along the way.
func (c *VCtx) translate(e ast.Expr) (smt.Term, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return smt.I(n.Value), nil
	case *ast.FloatLit:
		return smt.R(n.Value), nil
	case *ast.BoolLit:
		return smt.B(n.Value), nil
	case *ast.VarExpr:
		return c.translateVar(n.Name)
	case *ast.SelfExpr:
		return c.translateVar("self")
	case *ast.ResultExpr:
		return c.translateVar("result")
	case *ast.UnaryExpr:
		x, err := c.translate(n.X)
		if err != nil {
			return nil, err
		}

		return &smt.Unary{Op: n.Op, X: x}, nil
	case *ast.BinaryExpr:
		return c.translateBinary(n)
	case *ast.IfExpr:
		return c.translateIf(n)
	case *ast.Block:
		return c.translateBlock(n)
	case *ast.MatchExpr:
		return c.translateMatch(n)
	case *ast.CallExpr:
		return c.translateCall(n)
	case *ast.QuantifierExpr:
		return c.translateQuantifier(n)
	case *ast.IndexExpr:
		return c.translateIndex(n)
	case *ast.FieldExpr:
		return c.translateField(n)
	case *ast.StructInitExpr:
		return c.translateStructInit(n)
	case *ast.AcquireExpr:
		return c.translateAcquire(n)
	case *ast.AwaitExpr:
		return c.translateAwait(n)
	case nil:
		return smt.B(true), nil
	default:
		return nil, fmt.Errorf("verify: unsupported expression %T", e)
	}
}

func (c *VCtx) translateVar(name string) (smt.Term, error) {
	if err := c.linearity.CheckAlive(name); err != nil {
		if failErr := c.fail(errors.UseAfterFree(name, position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
			return nil, failErr
		}
	}

	t, ok := c.bindings[name]
	if !ok {
		return nil, fmt.Errorf("verify: reference to unbound variable %q in atom %q", name, c.atom.Name)
	}

	return t, nil
}

func (c *VCtx) translateBinary(n *ast.BinaryExpr) (smt.Term, error) {
	l, err := c.translate(n.L)
	if err != nil {
		return nil, err
	}

	r, err := c.translate(n.R)
	if err != nil {
		return nil, err
	}

	if n.Op == ast.OpDiv || n.Op == ast.OpMod {
		if err := c.require(smt.Ne(r, smt.I(0)), func(model smt.Model) *errors.CompilerError {
			return errors.DivisionByZero(position.Span{}).WithAtom(c.atom.Name).WithCounterexample(toMap(model))
		}); err != nil {
			return nil, err
		}
	}

	return &smt.Binary{Op: n.Op, L: l, R: r}, nil
}

func (c *VCtx) translateIf(n *ast.IfExpr) (smt.Term, error) {
	cond, err := c.translate(n.Cond)
	if err != nil {
		return nil, err
	}

	c.pushPath(cond)
	thenVal, err := c.translate(n.Then)
	c.popPath()

	if err != nil {
		return nil, err
	}

	c.pushPath(smt.Not(cond))
	elseVal, err := c.translate(n.Else)
	c.popPath()

	if err != nil {
		return nil, err
	}

	return &smt.Ite{Cond: cond, Then: thenVal, Else: elseVal}, nil
}

func (c *VCtx) translateBlock(n *ast.Block) (smt.Term, error) {
	for _, s := range n.Stmts {
		if err := c.translateStmt(s); err != nil {
			return nil, err
		}
	}

	if n.Result == nil {
		return smt.B(true), nil
	}

	return c.translate(n.Result)
}

func (c *VCtx) translateStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.LetStmt:
		return c.translateLet(n)
	case *ast.AssignStmt:
		v, err := c.translate(n.Value)
		if err != nil {
			return err
		}

		c.bindings[n.Name] = c.bindFresh(n.Name, v)

		return nil
	case *ast.ExprStmt:
		_, err := c.translate(n.X)
		return err
	case *ast.WhileStmt:
		return c.translateWhile(n)
	default:
		return fmt.Errorf("verify: unsupported statement %T", s)
	}
}

func (c *VCtx) translateLet(n *ast.LetStmt) error {
	if init, ok := n.Value.(*ast.StructInitExpr); ok {
		fields, err := c.evalStructFields(init)
		if err != nil {
			return err
		}

		c.structFields[n.Name] = fields
		c.bindings[n.Name] = c.fresh(n.Name, smt.SortInt)
		c.linearity.Register(n.Name)

		return nil
	}

	v, err := c.translate(n.Value)
	if err != nil {
		return err
	}

	c.bindings[n.Name] = c.bindFresh(n.Name, v)
	c.linearity.Register(n.Name)

	return nil
}

func (c *VCtx) bindFresh(name string, value smt.Term) smt.Term {
	fresh := c.fresh(name, sortOf(value))
	c.engine.Assert(smt.Eq(fresh, value))

	return fresh
}

func (c *VCtx) evalStructFields(n *ast.StructInitExpr) (map[string]smt.Term, error) {
	fields := make(map[string]smt.Term, len(n.Fields))

	for name, expr := range n.Fields {
		v, err := c.translate(expr)
		if err != nil {
			return nil, err
		}

		fields[name] = v
	}

	return fields, nil
}

func (c *VCtx) translateMatch(n *ast.MatchExpr) (smt.Term, error) {
	scrutinee, err := c.translate(n.Scrutinee)
	if err != nil {
		return nil, err
	}

	var guards []smt.Term

	negated := smt.B(true)

	var result smt.Term = smt.B(true)

	for _, arm := range n.Arms {
		guard := c.patternGuard(scrutinee, arm.Pattern)

		if arm.Guard != nil {
			g, err := c.translate(arm.Guard)
			if err != nil {
				return nil, err
			}

			guard = smt.And(guard, g)
		}

		guards = append(guards, guard)

		armPath := smt.And(negated, guard)
		c.pushPath(armPath)
		bindArmVariables(c, scrutinee, arm.Pattern)
		body, err := c.translate(arm.Body)
		c.popPath()

		if err != nil {
			return nil, err
		}

		result = &smt.Ite{Cond: armPath, Then: body, Else: result}
		negated = smt.And(negated, smt.Not(guard))
	}

	if len(guards) > 0 {
		covered := guards[0]
		for _, g := range guards[1:] {
			covered = smt.Or(covered, g)
		}

		res, model := c.engine.CheckSat(c.ctx, smt.Not(covered))
		if res == smt.Sat {
			ce := errors.NonExhaustiveMatch(position.Span{}).WithAtom(c.atom.Name)
			if model != nil {
				ce = ce.WithCounterexample(toMap(model))
			}

			if failErr := c.fail(ce); failErr != nil {
				return nil, failErr
			}
		}
	}

	return result, nil
}

// patternGuard builds the boolean condition a pattern imposes on scrutinee:
// a literal match, a variant-tag match against the named enum's registered
// VariantIndex, or true for a variable/wildcard binding.
func (c *VCtx) patternGuard(scrutinee smt.Term, p ast.Pattern) smt.Term {
	switch pat := p.(type) {
	case *ast.LitPattern:
		switch v := pat.Value.(type) {
		case int64:
			return smt.Eq(scrutinee, smt.I(v))
		case bool:
			return smt.Eq(scrutinee, smt.B(v))
		default:
			return smt.B(true)
		}
	case *ast.VariantPattern:
		edef, ok := c.env.Enum(pat.Enum)
		if !ok {
			return smt.B(true)
		}

		idx := edef.VariantIndex(pat.Variant)
		if idx < 0 {
			return smt.B(true)
		}

		return smt.Eq(scrutinee, smt.I(int64(idx)))
	case *ast.VarPattern, *ast.WildcardPattern:
		return smt.B(true)
	default:
		return smt.B(true)
	}
}

// bindArmVariables introduces the bindings a matched pattern brings into
// scope for its arm body: a plain variable pattern aliases scrutinee itself,
// while a variant pattern's nested field patterns each get a fresh,
// unconstrained symbol (this engine has no per-variant payload encoding to
// read an exact value from, matching declareEnumParam's tag-only model) and
// recurse so nested variant patterns bind their own fields in turn.
func bindArmVariables(c *VCtx, scrutinee smt.Term, p ast.Pattern) {
	switch pat := p.(type) {
	case *ast.VarPattern:
		c.bindings[pat.Name] = scrutinee
		c.linearity.Register(pat.Name)
	case *ast.VariantPattern:
		for i, field := range pat.Fields {
			bindVariantField(c, pat, i, field)
		}
	default:
	}
}

func bindVariantField(c *VCtx, pat *ast.VariantPattern, index int, field ast.Pattern) {
	switch sub := field.(type) {
	case *ast.VarPattern:
		name := fmt.Sprintf("%s_%s_%d", pat.Enum, pat.Variant, index)
		c.bindings[sub.Name] = c.fresh(name, smt.SortInt)
		c.linearity.Register(sub.Name)
	case *ast.VariantPattern:
		bindArmVariables(c, nil, sub)
	default:
	}
}

func (c *VCtx) translateQuantifier(n *ast.QuantifierExpr) (smt.Term, error) {
	lo, err := c.translate(n.Lo)
	if err != nil {
		return nil, err
	}

	hi, err := c.translate(n.Hi)
	if err != nil {
		return nil, err
	}

	saved, had := c.bindings[n.Var]
	c.bindings[n.Var] = smt.IntSym(n.Var)

	pred, err := c.translate(n.Pred)

	if had {
		c.bindings[n.Var] = saved
	} else {
		delete(c.bindings, n.Var)
	}

	if err != nil {
		return nil, err
	}

	return &smt.Bounded{Universal: n.Kind == ast.Forall, Var: n.Var, Lo: lo, Hi: hi, Pred: pred}, nil
}

func (c *VCtx) translateIndex(n *ast.IndexExpr) (smt.Term, error) {
	arrName, ok := n.Array.(*ast.VarExpr)
	if !ok {
		if failErr := c.fail(errors.UnsupportedLen("<expr>", position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
			return nil, failErr
		}

		return c.fresh("unsupported_index", smt.SortInt), nil
	}

	lenSym, ok := c.arrayLens[arrName.Name]
	if !ok {
		if failErr := c.fail(errors.UnsupportedLen(arrName.Name, position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
			return nil, failErr
		}

		return c.fresh("unsupported_index", smt.SortInt), nil
	}

	arrTerm, err := c.translateVar(arrName.Name)
	if err != nil {
		return nil, err
	}

	idx, err := c.translate(n.Index)
	if err != nil {
		return nil, err
	}

	obligation := smt.And(smt.Ge(idx, smt.I(0)), smt.Lt(idx, lenSym))
	if err := c.require(obligation, func(model smt.Model) *errors.CompilerError {
		return errors.ArrayOutOfBounds(arrName.Name, position.Span{}).WithAtom(c.atom.Name).WithCounterexample(toMap(model))
	}); err != nil {
		return nil, err
	}

	return &smt.Select{Arr: arrTerm, Idx: idx}, nil
}

func (c *VCtx) translateField(n *ast.FieldExpr) (smt.Term, error) {
	v, ok := n.X.(*ast.VarExpr)
	if !ok {
		return nil, fmt.Errorf("verify: unsupported field access on non-local value in atom %q", c.atom.Name)
	}

	fields, ok := c.structFields[v.Name]
	if !ok {
		return nil, fmt.Errorf("verify: %q is not a known struct value in atom %q", v.Name, c.atom.Name)
	}

	t, ok := fields[n.Field]
	if !ok {
		return nil, fmt.Errorf("verify: unknown field %q of %q in atom %q", n.Field, v.Name, c.atom.Name)
	}

	return t, nil
}

func (c *VCtx) translateStructInit(n *ast.StructInitExpr) (smt.Term, error) {
	// A struct literal used as a sub-expression (not bound via `let`) has
	// no name to flatten field symbols under; its scalar identity value is
	// opaque but its fields remain reachable only through a bound name, so
	// this path only supports being passed straight through without field
	// access.
	return c.fresh("struct_"+n.Type, smt.SortInt), nil
}

func (c *VCtx) translateAcquire(n *ast.AcquireExpr) (smt.Term, error) {
	res, ok := c.env.Resource(n.Resource)
	if !ok {
		return nil, fmt.Errorf("verify: acquire of unknown resource %q in atom %q", n.Resource, c.atom.Name)
	}

	if !declaresResource(c.atom, n.Resource) {
		if failErr := c.fail(errors.DeadlockRisk(c.atom.Name, n.Resource, position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
			return nil, failErr
		}
	}

	for _, held := range c.resourceStack {
		if res.Priority <= held.priority {
			if failErr := c.fail(errors.DeadlockRisk(held.name, n.Resource, position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
				return nil, failErr
			}
		}
	}

	heldFlag := smt.BoolSym("__resource_held_" + n.Resource)
	c.engine.Assert(smt.Eq(heldFlag, smt.B(true)))
	c.resourceStack = append(c.resourceStack, heldResource{name: n.Resource, priority: res.Priority})

	v, err := c.translate(n.Body)

	c.resourceStack = c.resourceStack[:len(c.resourceStack)-1]
	c.engine.Assert(smt.Eq(heldFlag, smt.B(false)))

	return v, err
}

func (c *VCtx) translateAwait(n *ast.AwaitExpr) (smt.Term, error) {
	if len(c.resourceStack) > 0 {
		if failErr := c.fail(errors.AwaitWithResourceHeld(c.resourceStack[len(c.resourceStack)-1].name, position.Span{}).WithAtom(c.atom.Name)); failErr != nil {
			return nil, failErr
		}
	}

	// Gate 3's __await_consumed_x marking (§4.4): any binding already
	// non-alive just before a suspension point is snapshotted so a later
	// resume cannot be proved to observe it as alive again.
	for name, alive := range c.linearity.alive {
		if !alive {
			c.engine.Assert(smt.Eq(smt.BoolSym("__await_consumed_"+name), smt.B(true)))
		}
	}

	return c.translate(n.X)
}

func declaresResource(a *ast.AtomDef, resource string) bool {
	for _, r := range a.Resources {
		if r == resource {
			return true
		}
	}

	return false
}

func sortOf(t smt.Term) smt.Sort {
	switch n := t.(type) {
	case *smt.IntLit:
		return smt.SortInt
	case *smt.RealLit:
		return smt.SortReal
	case *smt.BoolLit:
		return smt.SortBool
	case *smt.Sym:
		return n.Sort
	case *smt.Unary:
		if n.Op == ast.OpNot {
			return smt.SortBool
		}

		return sortOf(n.X)
	case *smt.Binary:
		switch n.Op {
		case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq, ast.OpNe, ast.OpAnd, ast.OpOr, ast.OpImplies:
			return smt.SortBool
		default:
			return sortOf(n.L)
		}
	case *smt.Ite:
		return sortOf(n.Then)
	case *smt.Bounded:
		return smt.SortBool
	default:
		return smt.SortInt
	}
}

func toMap(model smt.Model) map[string]interface{} {
	out := make(map[string]interface{}, len(model))
	for k, v := range model {
		out[k] = v.String()
	}

	return out
}

