// Package moduleenv implements ModuleEnv (spec §4.1): the in-memory registry
// of every definition kind a compilation unit knows about. One Env exists
// per compilation unit and is passed explicitly; there are no process-wide
// globals, mirroring the teacher's own insistence on explicit registries
// over singletons (internal/modules.ModuleRegistry).
package moduleenv

import (
	"fmt"

	"github.com/mumei-lang/mumei/internal/ast"
)

// implKey identifies one impl by its (trait, type) pair — the one
// definition kind that tolerates at most one registration per key rather
// than failing loudly on any re-registration.
type implKey struct {
	trait string
	typ   string
}

// Env is ModuleEnv: a total-lookup, loud-on-duplicate registry of types,
// structs, enums, traits, impls, atoms, and resources, plus the set of atom
// names verified so far in this run.
type Env struct {
	types     map[string]*ast.RefinedType
	structs   map[string]*ast.StructDef
	enums     map[string]*ast.EnumDef
	traits    map[string]*ast.TraitDef
	impls     map[implKey]*ast.ImplDef
	atoms     map[string]*ast.AtomDef
	resources map[string]*ast.ResourceDef
	verified  map[string]bool
}

// New returns an empty Env.
func New() *Env {
	return &Env{
		types:     make(map[string]*ast.RefinedType),
		structs:   make(map[string]*ast.StructDef),
		enums:     make(map[string]*ast.EnumDef),
		traits:    make(map[string]*ast.TraitDef),
		impls:     make(map[implKey]*ast.ImplDef),
		atoms:     make(map[string]*ast.AtomDef),
		resources: make(map[string]*ast.ResourceDef),
		verified:  make(map[string]bool),
	}
}

// --- Types (refined-type aliases) ---

// AddType registers a refined-type alias. Re-declaring the same name with an
// identical definition is permitted without error (spec §4.2 failure modes:
// "the refined-type name Nat may be re-declared identically without
// error"); any other re-declaration is a duplicate-name error.
func (e *Env) AddType(t *ast.RefinedType) error {
	if existing, ok := e.types[t.Name]; ok {
		if !sameRefinedType(existing, t) {
			return fmt.Errorf("duplicate type %q with conflicting definition", t.Name)
		}

		return nil
	}

	e.types[t.Name] = t

	return nil
}

func sameRefinedType(a, b *ast.RefinedType) bool {
	return a.Base == b.Base && exprEqualPlaceholder(a.Predicate, b.Predicate)
}

// exprEqualPlaceholder compares two predicate expressions for the identical
// re-declaration check above. Structural expression equality is exact
// pointer identity unless both sides were parsed from byte-identical source,
// which is the only case spec §4.2 asks us to treat as "identical".
func exprEqualPlaceholder(a, b ast.Expr) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

func (e *Env) Type(name string) (*ast.RefinedType, bool) {
	t, ok := e.types[name]
	return t, ok
}

// Types returns every registered refined-type alias, in no particular order.
func (e *Env) Types() []*ast.RefinedType {
	out := make([]*ast.RefinedType, 0, len(e.types))
	for _, t := range e.types {
		out = append(out, t)
	}

	return out
}

// --- Structs ---

func (e *Env) AddStruct(s *ast.StructDef) error {
	if _, ok := e.structs[s.Name]; ok {
		return fmt.Errorf("duplicate struct %q", s.Name)
	}

	e.structs[s.Name] = s

	return nil
}

func (e *Env) Struct(name string) (*ast.StructDef, bool) {
	s, ok := e.structs[name]
	return s, ok
}

// Structs returns every registered struct, in no particular order.
func (e *Env) Structs() []*ast.StructDef {
	out := make([]*ast.StructDef, 0, len(e.structs))
	for _, s := range e.structs {
		out = append(out, s)
	}

	return out
}

// --- Enums ---

func (e *Env) AddEnum(en *ast.EnumDef) error {
	if _, ok := e.enums[en.Name]; ok {
		return fmt.Errorf("duplicate enum %q", en.Name)
	}

	e.enums[en.Name] = en

	return nil
}

func (e *Env) Enum(name string) (*ast.EnumDef, bool) {
	en, ok := e.enums[name]
	return en, ok
}

// Enums returns every registered enum, in no particular order.
func (e *Env) Enums() []*ast.EnumDef {
	out := make([]*ast.EnumDef, 0, len(e.enums))
	for _, en := range e.enums {
		out = append(out, en)
	}

	return out
}

// --- Traits ---

func (e *Env) AddTrait(tr *ast.TraitDef) error {
	if _, ok := e.traits[tr.Name]; ok {
		return fmt.Errorf("duplicate trait %q", tr.Name)
	}

	e.traits[tr.Name] = tr

	return nil
}

func (e *Env) Trait(name string) (*ast.TraitDef, bool) {
	tr, ok := e.traits[name]
	return tr, ok
}

// Traits returns every registered trait, in no particular order.
func (e *Env) Traits() []*ast.TraitDef {
	out := make([]*ast.TraitDef, 0, len(e.traits))
	for _, tr := range e.traits {
		out = append(out, tr)
	}

	return out
}

// --- Impls ---

// AddImpl registers at most one impl per (trait, type) pair; a second impl
// of the same trait for the same type is a duplicate-name error.
func (e *Env) AddImpl(im *ast.ImplDef) error {
	key := implKey{trait: im.Trait, typ: im.Type.String()}
	if _, ok := e.impls[key]; ok {
		return fmt.Errorf("duplicate impl %s for %s", im.Trait, im.Type.String())
	}

	e.impls[key] = im

	return nil
}

func (e *Env) Impl(trait, typ string) (*ast.ImplDef, bool) {
	im, ok := e.impls[implKey{trait: trait, typ: typ}]
	return im, ok
}

// Impls returns every registered impl, in no particular order; callers that
// need determinism (e.g. the verifier's Gate 9 pass) must sort by (Trait,
// Type) themselves.
func (e *Env) Impls() []*ast.ImplDef {
	out := make([]*ast.ImplDef, 0, len(e.impls))
	for _, im := range e.impls {
		out = append(out, im)
	}

	return out
}

// --- Atoms ---

func (e *Env) AddAtom(a *ast.AtomDef) error {
	if _, ok := e.atoms[a.Name]; ok {
		return fmt.Errorf("duplicate atom %q", a.Name)
	}

	e.atoms[a.Name] = a

	return nil
}

func (e *Env) Atom(name string) (*ast.AtomDef, bool) {
	a, ok := e.atoms[name]
	return a, ok
}

// Atoms returns every registered atom, in no particular order.
func (e *Env) Atoms() []*ast.AtomDef {
	out := make([]*ast.AtomDef, 0, len(e.atoms))
	for _, a := range e.atoms {
		out = append(out, a)
	}

	return out
}

// ReplaceAtom overwrites an atom's definition in place, used by the
// monomorphizer to install specialized instantiations under mangled names.
func (e *Env) ReplaceAtom(a *ast.AtomDef) {
	e.atoms[a.Name] = a
}

// --- Resources ---

func (e *Env) AddResource(r *ast.ResourceDef) error {
	if _, ok := e.resources[r.Name]; ok {
		return fmt.Errorf("duplicate resource %q", r.Name)
	}

	e.resources[r.Name] = r

	return nil
}

func (e *Env) Resource(name string) (*ast.ResourceDef, bool) {
	r, ok := e.resources[name]
	return r, ok
}

// Resources returns every registered resource, in no particular order.
func (e *Env) Resources() []*ast.ResourceDef {
	out := make([]*ast.ResourceDef, 0, len(e.resources))
	for _, r := range e.resources {
		out = append(out, r)
	}

	return out
}

// --- Verified set ---

// MarkVerified records that name discharged every verifier gate in this run.
func (e *Env) MarkVerified(name string) {
	e.verified[name] = true
}

// Unmark removes name from the verified set, used when a cache entry is
// purged after a later failure forces re-verification.
func (e *Env) Unmark(name string) {
	delete(e.verified, name)
}

func (e *Env) IsVerified(name string) bool {
	return e.verified[name]
}
