package verify

import (
	"fmt"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/position"
	"github.com/mumei-lang/mumei/internal/smt"
)

// setupParams performs Gate 6's entry setup: refinement predicates for
// every typed parameter, struct-field predicates (one level deep; see
// declareStructParam), array length
// symbols, and initial linearity symbols, exactly in the order
// original_source/src/verification.rs's verify() applies them.
func (c *VCtx) setupParams() error {
	for _, p := range c.atom.Params {
		sym, err := c.declareParam(p)
		if err != nil {
			return err
		}

		c.bindings[p.Name] = sym
		c.linearity.Register(p.Name)

		switch p.Flag {
		case ast.ParamRef:
			c.engine.Assert(smt.Eq(smt.BoolSym("__borrowed_"+p.Name), smt.B(true)))
			c.engine.Assert(smt.Eq(smt.BoolSym("__alive_"+p.Name), smt.B(true)))
		case ast.ParamRefMut:
			c.engine.Assert(smt.Eq(smt.BoolSym("__exclusive_"+p.Name), smt.B(true)))

			if err := c.checkExclusiveAliasing(p); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkExclusiveAliasing enforces that a `ref mut` parameter forbids any
// other `ref`/`ref mut` parameter of the same type unless requires proves
// distinctness (§4.5 Gate 6's linearity initialization bullet). Distinctness
// here is approximated structurally: two same-typed ref/ref-mut parameters
// are rejected unless requires mentions an inequality between them.
func (c *VCtx) checkExclusiveAliasing(mut ast.Param) error {
	for _, other := range c.atom.Params {
		if other.Name == mut.Name || (other.Flag != ast.ParamRef && other.Flag != ast.ParamRefMut) {
			continue
		}

		if other.Type == nil || mut.Type == nil || !other.Type.Equals(mut.Type) {
			continue
		}

		if !requiresProvesDistinctness(c.atom.Requires, mut.Name, other.Name) {
			return c.fail(errors.BorrowConflict(
				fmt.Sprintf("%q and %q alias the same type and both require exclusivity", mut.Name, other.Name),
				position.Span{}).WithAtom(c.atom.Name))
		}
	}

	return nil
}

// requiresProvesDistinctness looks for an explicit `a != b` / `b != a`
// conjunct in requires — a syntactic check, not a proof, matching the
// lightweight aliasing discipline spec §4.5/§5 describes.
func requiresProvesDistinctness(requires ast.Expr, a, b string) bool {
	found := false

	var walk func(ast.Expr)

	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.BinaryExpr:
			if n.Op == ast.OpNe {
				if sameVarPair(n.L, n.R, a, b) {
					found = true
				}
			}

			if n.Op == ast.OpAnd {
				walk(n.L)
				walk(n.R)
			}
		}
	}

	walk(requires)

	return found
}

func sameVarPair(l, r ast.Expr, a, b string) bool {
	lv, lok := l.(*ast.VarExpr)
	rv, rok := r.(*ast.VarExpr)

	if !lok || !rok {
		return false
	}

	return (lv.Name == a && rv.Name == b) || (lv.Name == b && rv.Name == a)
}

// declareParam builds the symbolic constant(s) for one parameter: a scalar
// symbol with its refinement predicate asserted, a flattened struct-field
// bundle, or an array symbol paired with its `len_<param> >= 0` obligation.
func (c *VCtx) declareParam(p ast.Param) (smt.Term, error) {
	if p.Type != nil && p.Type.Kind == ast.TypeRefArray {
		lenSym := c.fresh("len_"+p.Name, smt.SortInt)
		c.engine.Assert(smt.Ge(lenSym, smt.I(0)))
		c.arrayLens[p.Name] = lenSym

		return &smt.Sym{Name: p.Name, Sort: smt.SortArray}, nil
	}

	// A refined-type alias reaches here tagged TypeRefRefined only when
	// something (e.g. mono's substitution, or a hand-built AST) explicitly
	// marked it so; the parser always emits TypeRefNamed for every
	// user-written type name, leaving env.Type the only way to tell a
	// refined-type alias apart from a struct/enum name by the time
	// verification runs. Checking both kinds here ensures the §3 refined-
	// type invariant ("whenever a value of type name is in scope, P(v) is
	// asserted") is enforced regardless of which tag the parameter's
	// TypeRef happens to carry.
	if p.Type != nil && (p.Type.Kind == ast.TypeRefRefined || p.Type.Kind == ast.TypeRefNamed) {
		if rt, ok := c.env.Type(p.Type.Name); ok {
			return c.declareRefinedParam(p.Name, rt)
		}
	}

	if p.Type != nil && p.Type.Kind == ast.TypeRefNamed {
		if sdef, ok := c.env.Struct(p.Type.Name); ok {
			return c.declareStructParam(p.Name, sdef)
		}

		if edef, ok := c.env.Enum(p.Type.Name); ok {
			return c.declareEnumParam(p.Name, edef)
		}
	}

	sort := smt.SortInt
	if p.Type != nil && p.Type.Kind == ast.TypeRefBase && p.Type.Base == ast.BaseF64 {
		sort = smt.SortReal
	}

	sym := c.fresh(p.Name, sort)
	sym.Name = p.Name // parameters keep their declared name, unlike let-bound locals

	if p.Type != nil && p.Type.Kind == ast.TypeRefBase && p.Type.Base == ast.BaseU64 {
		c.engine.Assert(smt.Ge(sym, smt.I(0)))
	}

	return sym, nil
}

func (c *VCtx) declareRefinedParam(name string, rt *ast.RefinedType) (smt.Term, error) {
	sort := smt.SortInt
	if rt.Base == ast.BaseF64 {
		sort = smt.SortReal
	}

	sym := &smt.Sym{Name: name, Sort: sort}
	c.engine.Declare(name, sort)

	if rt.Base == ast.BaseU64 {
		c.engine.Assert(smt.Ge(sym, smt.I(0)))
	}

	pred, err := c.translateInScope(map[string]smt.Term{"v": sym}, rt.Predicate)
	if err != nil {
		return nil, err
	}

	c.engine.Assert(pred)

	return sym, nil
}

// declareEnumParam models an enum-typed parameter as the integer tag symbol
// described in §3's Enum invariant: "the runtime tag t of an enum with n
// variants satisfies 0 <= t < n". Variant payload fields have no parameter-
// level encoding here; they only become concrete symbols when a match arm
// destructures them (translate.go's bindArmVariables).
func (c *VCtx) declareEnumParam(name string, edef *ast.EnumDef) (smt.Term, error) {
	sym := &smt.Sym{Name: name, Sort: smt.SortInt}
	c.engine.Declare(name, smt.SortInt)
	c.engine.Assert(smt.Ge(sym, smt.I(0)))
	c.engine.Assert(smt.Lt(sym, smt.I(int64(len(edef.Variants)))))

	return sym, nil
}

// declareStructParam flattens one level of sdef's fields into per-field
// symbols and asserts each field's own predicate. A field whose type is
// itself a struct gets a single opaque Int symbol: its inner fields are not
// flattened and their predicates are not asserted.
func (c *VCtx) declareStructParam(name string, sdef *ast.StructDef) (smt.Term, error) {
	fields := make(map[string]smt.Term, len(sdef.Fields))

	for _, f := range sdef.Fields {
		fieldVarName := smt.FlattenFieldName(name, f.Name)

		sort := smt.SortInt
		if f.Type != nil && f.Type.Kind == ast.TypeRefBase && f.Type.Base == ast.BaseF64 {
			sort = smt.SortReal
		}

		sym := &smt.Sym{Name: fieldVarName, Sort: sort}
		c.engine.Declare(fieldVarName, sort)
		fields[f.Name] = sym

		if f.Predicate != nil {
			pred, err := c.translateInScope(map[string]smt.Term{"v": sym}, f.Predicate)
			if err != nil {
				return nil, err
			}

			c.engine.Assert(pred)
		}
	}

	c.structFields[name] = fields

	return &smt.Sym{Name: name, Sort: smt.SortInt}, nil
}
