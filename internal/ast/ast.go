// Package ast defines the data model of Mumei programs: types, refined
// types, structs, enums, traits, impls, atoms, resources, and the
// expression/pattern grammar they are built from (spec §3). Every node kind
// is a small concrete struct implementing a marker-method interface, in the
// teacher's sum-type-via-interface idiom; the verifier and SMT translator
// exhaustively type-switch over these.
//
// Everything here is created by the parser, populated into a ModuleEnv by
// the resolver, possibly cloned and specialized by the monomorphizer, and
// thereafter treated as read-only by the verifier and emitter.
package ast

import (
	"fmt"
	"strings"

	"github.com/mumei-lang/mumei/internal/position"
)

// BaseType is one of the four base types refinements and struct fields are
// built on.
type BaseType int

const (
	BaseI64 BaseType = iota
	BaseU64
	BaseF64
	BaseBool
)

func (b BaseType) String() string {
	switch b {
	case BaseI64:
		return "i64"
	case BaseU64:
		return "u64"
	case BaseF64:
		return "f64"
	case BaseBool:
		return "bool"
	default:
		return "?base"
	}
}

// TypeRefKind discriminates the four TypeRef shapes of spec §3.
type TypeRefKind int

const (
	TypeRefBase TypeRefKind = iota
	TypeRefRefined
	TypeRefNamed
	TypeRefGeneric
	TypeRefVar // type variable, present only before monomorphization
	TypeRefArray
	TypeRefSelf
)

// TypeRef is a tree describing a type: a base type, a reference to a
// refined-type alias, a named user type, a generic application C<T1,...,Tn>,
// an array type, an unresolved type variable, or Self (inside trait/enum
// recursive positions). Equality is structural after normalization (see
// Equals).
type TypeRef struct {
	Base     BaseType
	Name     string     // TypeRefRefined / TypeRefNamed / TypeRefGeneric / TypeRefVar
	Args     []*TypeRef // TypeRefGeneric
	Elem     *TypeRef   // TypeRefArray
	Kind     TypeRefKind
}

func Base(b BaseType) *TypeRef          { return &TypeRef{Kind: TypeRefBase, Base: b} }
func Refined(name string) *TypeRef      { return &TypeRef{Kind: TypeRefRefined, Name: name} }
func Named(name string) *TypeRef        { return &TypeRef{Kind: TypeRefNamed, Name: name} }
func Var(name string) *TypeRef          { return &TypeRef{Kind: TypeRefVar, Name: name} }
func ArrayOf(elem *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefArray, Elem: elem} }
func SelfType() *TypeRef                { return &TypeRef{Kind: TypeRefSelf} }
func Generic(name string, args ...*TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeRefGeneric, Name: name, Args: args}
}

// String renders the TypeRef in surface syntax, used in error messages and
// cache-key composition.
func (t *TypeRef) String() string {
	if t == nil {
		return "?"
	}

	switch t.Kind {
	case TypeRefBase:
		return t.Base.String()
	case TypeRefRefined, TypeRefNamed, TypeRefVar:
		return t.Name
	case TypeRefArray:
		return fmt.Sprintf("[%s]", t.Elem.String())
	case TypeRefSelf:
		return "Self"
	case TypeRefGeneric:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}

		return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ","))
	default:
		return "?"
	}
}

// Equals reports structural equality after normalization: two TypeRefs are
// equal exactly when their rendered form matches.
func (t *TypeRef) Equals(other *TypeRef) bool {
	if t == nil || other == nil {
		return t == other
	}

	return t.String() == other.String()
}

// Substitute returns a copy of t with every TypeRefVar named in bindings
// replaced structurally (fields, array elements, generic arguments). Used by
// the monomorphizer (§4.3); grounded on the teacher's dependent-type
// substitution walk generalized from Pi/Sigma substitution to TypeRef trees.
func (t *TypeRef) Substitute(bindings map[string]*TypeRef) *TypeRef {
	if t == nil {
		return nil
	}

	switch t.Kind {
	case TypeRefVar:
		if repl, ok := bindings[t.Name]; ok {
			return repl
		}

		return t
	case TypeRefArray:
		return ArrayOf(t.Elem.Substitute(bindings))
	case TypeRefGeneric:
		args := make([]*TypeRef, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.Substitute(bindings)
		}

		return Generic(t.Name, args...)
	default:
		return t
	}
}

// RefinedType is a named alias `name = base where P(v)`.
type RefinedType struct {
	Name      string
	Base      BaseType
	Predicate Expr // over the free variable "v"
	Span      position.Span
}

// StructField is one field of a Struct: a name, a type, and an optional
// predicate over "v" (the field's own value).
type StructField struct {
	Name      string
	Type      *TypeRef
	Predicate Expr // nil if unconstrained
}

// StructDef is a struct definition (spec §3 "Struct").
type StructDef struct {
	Name       string
	TypeParams []string
	Fields     []StructField
	Span       position.Span
}

// FieldByName returns the field with the given name, or false if absent.
func (s *StructDef) FieldByName(name string) (StructField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return StructField{}, false
}

// EnumVariant is one tagged alternative of an Enum.
type EnumVariant struct {
	Name   string
	Fields []*TypeRef
}

// EnumDef is a recursive-ADT definition (spec §3 "Enum (ADT)"). The runtime
// tag t of an enum with n variants satisfies 0 <= t < n; a variant's field
// TypeRefs may reference Self for recursive ADTs.
type EnumDef struct {
	Name       string
	TypeParams []string
	Variants   []EnumVariant
	Span       position.Span
}

// VariantIndex returns the tag of the named variant, or -1.
func (e *EnumDef) VariantIndex(name string) int {
	for i, v := range e.Variants {
		if v.Name == name {
			return i
		}
	}

	return -1
}

// ParamFlag distinguishes ownership modes of an Atom parameter (§3.1,
// supplementing spec.md's boolean flags with the original's 3-state enum).
type ParamFlag int

const (
	ParamOwned ParamFlag = iota
	ParamRef
	ParamRefMut
)

func (f ParamFlag) String() string {
	switch f {
	case ParamRef:
		return "ref"
	case ParamRefMut:
		return "ref mut"
	default:
		return "consume"
	}
}

// Param is one formal parameter of an Atom or trait method.
type Param struct {
	Name      string
	Type      *TypeRef
	Flag      ParamFlag
}

// TraitMethod is one required method signature of a Trait.
type TraitMethod struct {
	Name   string
	Params []Param
	Return *TypeRef
}

// Law is a named algebraic property a Trait's implementations must satisfy,
// e.g. `law reflexive: leq(x,x) == true`.
type Law struct {
	Name string
	Body Expr
	Span position.Span
}

// TraitDef is a trait: method signatures plus laws (spec §3 "Trait").
type TraitDef struct {
	Name    string
	Methods []TraitMethod
	Laws    []Law
	Span    position.Span
}

func (t *TraitDef) MethodByName(name string) (TraitMethod, bool) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, true
		}
	}

	return TraitMethod{}, false
}

// ImplDef implements one trait for one type, one AtomDef body per required
// method (spec §3 "Impl"). ModuleEnv keys impls by (Trait,Type) pair.
type ImplDef struct {
	Trait   string
	Type    *TypeRef
	Methods map[string]*AtomDef
	Span    position.Span
}

// TrustLevel is the 3-state trust flag of an Atom (§3.1, supplementing the
// spec's independent `trusted`/`unverified` booleans with the original's
// single 3-state field).
type TrustLevel int

const (
	TrustVerified TrustLevel = iota
	TrustTrusted
	TrustUnverified
)

// TypeParamBound is a generic parameter together with its required trait
// bound, if any (`T: Trait`).
type TypeParamBound struct {
	Name  string
	Trait string // empty if unbounded
}

// AtomDef is a verified function: contract plus optional body (spec §3
// "Atom").
type AtomDef struct {
	Name       string
	TypeParams []TypeParamBound
	Params     []Param
	Requires   Expr
	Ensures    Expr
	Body       Expr // nil for trait method signatures without a default body
	Trust      TrustLevel
	Async      bool
	Resources  []string
	Invariant  Expr // nil if absent
	Decreases  Expr // nil if absent
	MaxUnroll  int  // 0 means "use the configured default" (3)
	Span       position.Span
}

func (a *AtomDef) ParamByName(name string) (Param, bool) {
	for _, p := range a.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Param{}, false
}

// ResourceMode is the locking discipline of a ResourceDef.
type ResourceMode int

const (
	ResourceExclusive ResourceMode = iota
	ResourceShared
)

// ResourceDef declares a totally-ordered lock (§3.1, §5): `resource R
// priority: N mode: (exclusive|shared)`.
type ResourceDef struct {
	Name     string
	Priority int
	Mode     ResourceMode
	Span     position.Span
}

// Quantifier distinguishes forall/exists quantifier expressions.
type Quantifier int

const (
	Forall Quantifier = iota
	Exists
)

// BinOp is a binary arithmetic, comparison, or logical operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpImplies
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpImplies:
		return "=>"
	default:
		return "?op"
	}
}

// UnOp is a unary operator.
type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

// Expr is the closed sum type of expression nodes (spec §3 "Expression
// grammar"). Add a new form by adding a concrete type and extending every
// exhaustive switch in internal/smt and internal/verify.
type Expr interface {
	exprNode()
	Span() position.Span
}

type exprBase struct {
	Sp position.Span
}

func (e exprBase) Span() position.Span { return e.Sp }

// IntLit is an integer literal.
type IntLit struct {
	exprBase
	Value int64
}

func (*IntLit) exprNode() {}

// FloatLit is a floating-point literal.
type FloatLit struct {
	exprBase
	Value float64
}

func (*FloatLit) exprNode() {}

// BoolLit is a boolean literal.
type BoolLit struct {
	exprBase
	Value bool
}

func (*BoolLit) exprNode() {}

// VarExpr references a variable (a parameter, let-binding, or the implicit
// refinement variable "v").
type VarExpr struct {
	exprBase
	Name string
}

func (*VarExpr) exprNode() {}

// SelfExpr references the implicit receiver inside a trait law or recursive
// ADT definition.
type SelfExpr struct {
	exprBase
}

func (*SelfExpr) exprNode() {}

// ResultExpr references the fresh result symbol introduced by ensures
// clauses (`result == E`).
type ResultExpr struct {
	exprBase
}

func (*ResultExpr) exprNode() {}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	exprBase
	Op UnOp
	X  Expr
}

func (*UnaryExpr) exprNode() {}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	exprBase
	Op   BinOp
	L, R Expr
}

func (*BinaryExpr) exprNode() {}

// IfExpr is `if c then a else b`, always two-armed (no bare if-without-else
// in expression position).
type IfExpr struct {
	exprBase
	Cond, Then, Else Expr
}

func (*IfExpr) exprNode() {}

// Stmt is the closed sum type of statement nodes inside a Block.
type Stmt interface {
	stmtNode()
	Span() position.Span
}

type stmtBase struct {
	Sp position.Span
}

func (s stmtBase) Span() position.Span { return s.Sp }

// LetStmt introduces a fresh binding.
type LetStmt struct {
	stmtBase
	Name  string
	Value Expr
}

func (*LetStmt) stmtNode() {}

// AssignStmt reassigns a local (SSA-shadowed during verification).
type AssignStmt struct {
	stmtBase
	Name  string
	Value Expr
}

func (*AssignStmt) stmtNode() {}

// ExprStmt evaluates an expression for effect.
type ExprStmt struct {
	stmtBase
	X Expr
}

func (*ExprStmt) stmtNode() {}

// WhileStmt is `while c invariant I decreases V { body }`.
type WhileStmt struct {
	stmtBase
	Cond      Expr
	Invariant Expr // nil if absent
	Decreases Expr // nil if absent
	Body      *Block
}

func (*WhileStmt) stmtNode() {}

// Block is a sequence of statements followed by a trailing result
// expression (possibly a unit-valued ExprStmt sequence with no meaningful
// result).
type Block struct {
	exprBase
	Stmts  []Stmt
	Result Expr // nil if the block has no trailing value
}

func (*Block) exprNode() {}

// MatchArm is one arm of a Match: a pattern, an optional guard, and a body.
type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil if unguarded
	Body    Expr
}

// MatchExpr is `match e { arms }`.
type MatchExpr struct {
	exprBase
	Scrutinee Expr
	Arms      []MatchArm
}

func (*MatchExpr) exprNode() {}

// CallExpr calls an atom, trait method, or a std built-in (sqrt, len,
// cast_to_int). FQN is the fully-qualified or alias-qualified name
// (`alias::name` or plain `name`).
type CallExpr struct {
	exprBase
	FQN  string
	Args []Expr
}

func (*CallExpr) exprNode() {}

// QuantifierExpr is `forall(i, lo, hi, P)` / `exists(i, lo, hi, P)`.
type QuantifierExpr struct {
	exprBase
	Kind    Quantifier
	Var     string
	Lo, Hi  Expr
	Pred    Expr
}

func (*QuantifierExpr) exprNode() {}

// IndexExpr is an array index `a[i]`.
type IndexExpr struct {
	exprBase
	Array Expr
	Index Expr
}

func (*IndexExpr) exprNode() {}

// StructInitExpr constructs a struct value.
type StructInitExpr struct {
	exprBase
	Type   string
	Fields map[string]Expr
}

func (*StructInitExpr) exprNode() {}

// FieldExpr accesses a (possibly nested, via chained FieldExpr) struct
// field.
type FieldExpr struct {
	exprBase
	X     Expr
	Field string
}

func (*FieldExpr) exprNode() {}

// AcquireExpr is `acquire R { body }`.
type AcquireExpr struct {
	exprBase
	Resource string
	Body     *Block
}

func (*AcquireExpr) exprNode() {}

// AwaitExpr is `await e`.
type AwaitExpr struct {
	exprBase
	X Expr
}

func (*AwaitExpr) exprNode() {}

// Pattern is the closed sum type of match-arm patterns.
type Pattern interface {
	patternNode()
}

// LitPattern matches a literal integer, float, or bool value.
type LitPattern struct {
	Value interface{} // int64, float64, or bool
}

func (*LitPattern) patternNode() {}

// VarPattern binds the scrutinee (or a sub-field) to a fresh name.
type VarPattern struct {
	Name string
}

func (*VarPattern) patternNode() {}

// VariantPattern matches an enum variant, recursively destructuring its
// fields.
type VariantPattern struct {
	Enum    string
	Variant string
	Fields  []Pattern
}

func (*VariantPattern) patternNode() {}

// WildcardPattern (`_`) matches anything and binds nothing.
type WildcardPattern struct{}

func (*WildcardPattern) patternNode() {}

// ImportDecl is a top-level `import "path" as alias;` declaration.
type ImportDecl struct {
	Path  string
	Alias string // empty if the import has no alias
	Span  position.Span
}

// File is everything the parser produces from one source file: its imports
// plus every top-level item, in declaration order. The resolver consumes
// Files to populate a ModuleEnv; nothing downstream touches File again.
type File struct {
	Path      string
	Imports   []ImportDecl
	Types     []*RefinedType
	Structs   []*StructDef
	Enums     []*EnumDef
	Traits    []*TraitDef
	Impls     []*ImplDef
	Atoms     []*AtomDef
	Resources []*ResourceDef
}
