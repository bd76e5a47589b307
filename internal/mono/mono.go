// Package mono implements the monomorphizer (spec §4.3): it walks an
// already-resolved ModuleEnv, collects every explicit instantiation site of
// every generic atom, and produces a new ModuleEnv in which each such
// instantiation is a specialized atom with its parameter types substituted.
// Trait bounds on type parameters are checked per instantiation. Generic
// structs and enums are not specialized: they are copied into the new
// ModuleEnv with their type parameters intact.
//
// The structural substitution walk generalizes the teacher's dependent-type
// substitution machinery (internal/types/dependent.go's substituteInType /
// substituteInTerm over Pi/Sigma types) to TypeRef substitution over atom
// parameter types.
package mono

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/position"
)

// instantiation is one concrete TypeRef application C<A,...> discovered at a
// call site or a parameter's declared type.
type instantiation struct {
	generic string
	args    []*ast.TypeRef
}

func (i instantiation) mangled() string {
	parts := make([]string, len(i.args))
	for idx, a := range i.args {
		parts[idx] = mangleType(a)
	}

	return i.generic + "__" + strings.Join(parts, "_")
}

func mangleType(t *ast.TypeRef) string {
	return strings.NewReplacer("<", "_", ">", "", ",", "_", "[", "arr_", "]", "").Replace(t.String())
}

// Monomorphize walks src, collects generic instantiations of atoms, and
// returns a new ModuleEnv with specialized, non-generic atoms installed
// under mangled names alongside every already-concrete definition.
// Non-generic atoms, structs, and enums pass through unchanged.
func Monomorphize(src *moduleenv.Env) (*moduleenv.Env, error) {
	out := moduleenv.New()

	if err := copyNonAtomDefinitions(src, out); err != nil {
		return nil, err
	}

	sites := collectCallSites(src)

	seen := make(map[string]bool)

	for _, site := range sites {
		generic, ok := src.Atom(site.generic)
		if !ok || len(generic.TypeParams) == 0 {
			continue // not a generic atom; nothing to specialize
		}

		key := site.mangled()
		if seen[key] {
			continue
		}

		seen[key] = true

		specialized, err := specializeAtom(generic, site.args)
		if err != nil {
			return nil, err
		}

		if err := checkTraitBounds(src, generic, site.args); err != nil {
			return nil, err
		}

		specialized.Name = key
		out.ReplaceAtom(specialized)
	}

	// Non-generic atoms pass through untouched.
	for _, a := range src.Atoms() {
		if len(a.TypeParams) == 0 {
			out.ReplaceAtom(a)
		}
	}

	return out, nil
}

// copyNonAtomDefinitions installs every type/struct/enum/trait/impl/resource
// registered in src into out unchanged. Structs and enums keep any type
// parameters they declare; they are not specialized here. The verifier that
// later consults out for refinement
// predicates, struct field predicates, resource priorities, and trait laws
// (gates.go's declareParam, translate.go's acquire handling, gate9.go's law
// expansion) needs them present on the ModuleEnv it is actually handed, not
// left behind on src.
func copyNonAtomDefinitions(src, out *moduleenv.Env) error {
	for _, t := range src.Types() {
		if err := out.AddType(t); err != nil {
			return err
		}
	}

	for _, s := range src.Structs() {
		if err := out.AddStruct(s); err != nil {
			return err
		}
	}

	for _, en := range src.Enums() {
		if err := out.AddEnum(en); err != nil {
			return err
		}
	}

	for _, tr := range src.Traits() {
		if err := out.AddTrait(tr); err != nil {
			return err
		}
	}

	for _, im := range src.Impls() {
		if err := out.AddImpl(im); err != nil {
			return err
		}
	}

	for _, r := range src.Resources() {
		if err := out.AddResource(r); err != nil {
			return err
		}
	}

	return nil
}

// collectCallSites walks every atom body in src, in name order, and records
// each call written with explicit type arguments (`name<Arg,...>`). The
// declared parameter types of atoms are not examined.
func collectCallSites(src *moduleenv.Env) []instantiation {
	var sites []instantiation

	atoms := src.Atoms()
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Name < atoms[j].Name })

	for _, a := range atoms {
		if a.Body != nil {
			walkExprForCalls(a.Body, &sites)
		}
	}

	return sites
}

// walkExprForCalls looks for CallExpr nodes whose FQN encodes a generic
// instantiation as `name<Arg1,Arg2>` — the surface syntax for an explicit
// type-argument call. Implicit instantiation via parameter-type inference
// is intentionally not attempted here: spec §4.3 only requires collecting
// "instantiation sites" and the original source resolves type arguments
// explicitly at the call site.
func walkExprForCalls(e ast.Expr, sites *[]instantiation) {
	switch n := e.(type) {
	case *ast.CallExpr:
		if generic, args, ok := parseGenericCall(n.FQN); ok {
			*sites = append(*sites, instantiation{generic: generic, args: args})
		}

		for _, arg := range n.Args {
			walkExprForCalls(arg, sites)
		}
	case *ast.BinaryExpr:
		walkExprForCalls(n.L, sites)
		walkExprForCalls(n.R, sites)
	case *ast.UnaryExpr:
		walkExprForCalls(n.X, sites)
	case *ast.IfExpr:
		walkExprForCalls(n.Cond, sites)
		walkExprForCalls(n.Then, sites)
		walkExprForCalls(n.Else, sites)
	case *ast.Block:
		for _, s := range n.Stmts {
			walkStmtForCalls(s, sites)
		}

		if n.Result != nil {
			walkExprForCalls(n.Result, sites)
		}
	case *ast.MatchExpr:
		walkExprForCalls(n.Scrutinee, sites)

		for _, arm := range n.Arms {
			if arm.Guard != nil {
				walkExprForCalls(arm.Guard, sites)
			}

			walkExprForCalls(arm.Body, sites)
		}
	case *ast.IndexExpr:
		walkExprForCalls(n.Array, sites)
		walkExprForCalls(n.Index, sites)
	case *ast.FieldExpr:
		walkExprForCalls(n.X, sites)
	case *ast.AcquireExpr:
		walkExprForCalls(n.Body, sites)
	case *ast.AwaitExpr:
		walkExprForCalls(n.X, sites)
	case *ast.QuantifierExpr:
		walkExprForCalls(n.Lo, sites)
		walkExprForCalls(n.Hi, sites)
		walkExprForCalls(n.Pred, sites)
	}
}

func walkStmtForCalls(s ast.Stmt, sites *[]instantiation) {
	switch n := s.(type) {
	case *ast.LetStmt:
		walkExprForCalls(n.Value, sites)
	case *ast.AssignStmt:
		walkExprForCalls(n.Value, sites)
	case *ast.ExprStmt:
		walkExprForCalls(n.X, sites)
	case *ast.WhileStmt:
		walkExprForCalls(n.Cond, sites)
		walkExprForCalls(n.Body, sites)
	}
}

// parseGenericCall splits `name<Arg1,Arg2>` into its generic name and
// argument TypeRefs. Returns ok=false for ordinary (non-generic) calls.
func parseGenericCall(fqn string) (string, []*ast.TypeRef, bool) {
	lt := strings.IndexByte(fqn, '<')
	if lt < 0 || !strings.HasSuffix(fqn, ">") {
		return "", nil, false
	}

	name := fqn[:lt]
	argStr := fqn[lt+1 : len(fqn)-1]
	parts := strings.Split(argStr, ",")
	args := make([]*ast.TypeRef, len(parts))

	for i, p := range parts {
		args[i] = ast.Named(strings.TrimSpace(p))
	}

	return name, args, true
}

// specializeAtom returns a shallow copy of generic with TypeParams cleared
// and every parameter type substituted. Requires, ensures, body, invariant,
// and decreases go through substituteExpr, which returns them unchanged, so
// the copy shares those expression trees with generic.
func specializeAtom(generic *ast.AtomDef, args []*ast.TypeRef) (*ast.AtomDef, error) {
	if len(args) != len(generic.TypeParams) {
		return nil, fmt.Errorf("atom %s expects %d type arguments, got %d",
			generic.Name, len(generic.TypeParams), len(args))
	}

	bindings := make(map[string]*ast.TypeRef, len(args))
	for i, tp := range generic.TypeParams {
		bindings[tp.Name] = args[i]
	}

	specialized := *generic
	specialized.TypeParams = nil

	params := make([]ast.Param, len(generic.Params))
	for i, p := range generic.Params {
		params[i] = ast.Param{Name: p.Name, Type: p.Type.Substitute(bindings), Flag: p.Flag}
	}

	specialized.Params = params
	specialized.Requires = substituteExpr(generic.Requires, bindings)
	specialized.Ensures = substituteExpr(generic.Ensures, bindings)
	specialized.Body = substituteExpr(generic.Body, bindings)
	specialized.Invariant = substituteExpr(generic.Invariant, bindings)
	specialized.Decreases = substituteExpr(generic.Decreases, bindings)

	return &specialized, nil
}

// substituteExpr is a structural identity pass over expressions: TypeRef
// substitution affects only type annotations, which this closed grammar
// carries solely in AtomDef/Param/StructField, not inside Expr nodes
// themselves. Expr trees therefore pass through unchanged; this function
// exists so future Expr forms that do carry a TypeRef (e.g. a generic
// struct literal) have one place to extend.
func substituteExpr(e ast.Expr, _ map[string]*ast.TypeRef) ast.Expr {
	return e
}

// checkTraitBounds verifies, for each of generic's bounded type parameters,
// that the corresponding concrete argument has a registered impl of the
// required trait (spec §4.3: "for each bound T: Trait, the instantiation
// must present a registered impl Trait for A").
func checkTraitBounds(env *moduleenv.Env, generic *ast.AtomDef, args []*ast.TypeRef) error {
	for i, tp := range generic.TypeParams {
		if tp.Trait == "" {
			continue
		}

		arg := args[i]

		if _, ok := env.Impl(tp.Trait, arg.String()); !ok {
			return errors.UnsatisfiedTraitBound(arg.String(), tp.Trait, position.Span{})
		}
	}

	return nil
}
