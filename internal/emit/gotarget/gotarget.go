// Package gotarget is the one concrete, in-module consumer of
// internal/emit.Emitter (spec §4.8): a minimal, illustrative Go-source
// emitter. It renders every verified atom as a plain Go function, folding
// ownership flags, resources, and async-ness into doc comments; each
// resource also gets a package-level sync.Mutex, which an acquire block
// locks for its duration — demonstrating the emission handoff contract
// without attempting a general multi-target transpiler (LLVM IR, Rust,
// TypeScript remain true external collaborators, per spec.md §1).
package gotarget

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

// Emitter writes verified atoms as Go source to a fixed output path.
type Emitter struct {
	OutPath string
}

// New returns an Emitter that writes to outPath (typically "<out_prefix>.go",
// per cmd/mumeic's build subcommand).
func New(outPath string) *Emitter {
	return &Emitter{OutPath: outPath}
}

// Emit renders every atom env reports as verified into Go source and
// writes it to e.OutPath. Unverified atoms are skipped: emission only ever
// sees atoms that passed every gate (§7 propagation policy).
func (e *Emitter) Emit(env *moduleenv.Env) error {
	var b strings.Builder

	resources := collectResources(env)
	for _, name := range resources {
		fmt.Fprintf(&b, "var mu_%s sync.Mutex\n", name)
	}

	if len(resources) > 0 {
		b.WriteString("\n")
	}

	atoms := env.Atoms()
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Name < atoms[j].Name })

	for _, a := range atoms {
		if !env.IsVerified(a.Name) {
			continue
		}

		writeDoc(&b, a)
		writeSignature(&b, a)
		b.WriteString(" {\n")
		writeBody(&b, a.Body, 1)
		b.WriteString("}\n\n")
	}

	header := "// Code generated by mumeic build; DO NOT EDIT.\npackage mumei\n\n"
	if len(resources) > 0 {
		header += "import \"sync\"\n\n"
	}

	return os.WriteFile(e.OutPath, []byte(header+b.String()), 0o644)
}

func collectResources(env *moduleenv.Env) []string {
	seen := make(map[string]bool)

	var names []string

	for _, a := range env.Atoms() {
		for _, r := range a.Resources {
			if !seen[r] {
				seen[r] = true

				names = append(names, r)
			}
		}
	}

	sort.Strings(names)

	return names
}

func writeDoc(b *strings.Builder, a *ast.AtomDef) {
	fmt.Fprintf(b, "// %s is emitted from a verified atom.\n", a.Name)

	for _, p := range a.Params {
		switch p.Flag {
		case ast.ParamRef:
			fmt.Fprintf(b, "//   %s: shared reference, not consumed\n", p.Name)
		case ast.ParamRefMut:
			fmt.Fprintf(b, "//   %s: exclusive reference, not consumed\n", p.Name)
		default:
			fmt.Fprintf(b, "//   %s: moved into this call\n", p.Name)
		}
	}

	if a.Async {
		b.WriteString("// async: suspends at every await\n")
	}

	for _, r := range a.Resources {
		fmt.Fprintf(b, "// acquires %s in priority order\n", r)
	}
}

func writeSignature(b *strings.Builder, a *ast.AtomDef) {
	fmt.Fprintf(b, "func %s(", goName(a.Name))

	for i, p := range a.Params {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(b, "%s %s", p.Name, goType(p.Type))
	}

	b.WriteString(") ")
	b.WriteString(goReturnType(a))
}

// goReturnType is illustrative: the surface grammar carries no explicit
// return-type annotation on Atom (§3 infers it from Ensures/body usage), so
// every emitted function returns interface{}, whatever its body; callers
// relying on a specific
// type should consult env directly rather than the emitted text.
func goReturnType(a *ast.AtomDef) string {
	return "interface{}"
}

func goType(t *ast.TypeRef) string {
	if t == nil {
		return "interface{}"
	}

	switch t.Kind {
	case ast.TypeRefBase:
		switch t.Base {
		case ast.BaseI64:
			return "int64"
		case ast.BaseU64:
			return "uint64"
		case ast.BaseF64:
			return "float64"
		default:
			return "bool"
		}
	case ast.TypeRefArray:
		return "[]" + goType(t.Elem)
	case ast.TypeRefSelf:
		return "Self"
	default:
		return goName(t.Name)
	}
}

func goName(name string) string {
	return strings.ReplaceAll(name, "::", "_")
}

func writeBody(b *strings.Builder, e ast.Expr, indent int) {
	pad := strings.Repeat("\t", indent)

	switch n := e.(type) {
	case nil:
		fmt.Fprintf(b, "%sreturn nil\n", pad)
	case *ast.Block:
		for _, s := range n.Stmts {
			writeStmt(b, s, indent)
		}

		if n.Result != nil {
			fmt.Fprintf(b, "%sreturn %s\n", pad, renderExpr(n.Result))
		}
	case *ast.IfExpr:
		fmt.Fprintf(b, "%sif %s {\n", pad, renderExpr(n.Cond))
		writeBody(b, n.Then, indent+1)
		fmt.Fprintf(b, "%s} else {\n", pad)
		writeBody(b, n.Else, indent+1)
		fmt.Fprintf(b, "%s}\n", pad)
	default:
		fmt.Fprintf(b, "%sreturn %s\n", pad, renderExpr(n))
	}
}

func writeStmt(b *strings.Builder, s ast.Stmt, indent int) {
	pad := strings.Repeat("\t", indent)

	switch n := s.(type) {
	case *ast.LetStmt:
		fmt.Fprintf(b, "%s%s := %s\n", pad, n.Name, renderExpr(n.Value))
	case *ast.AssignStmt:
		fmt.Fprintf(b, "%s%s = %s\n", pad, n.Name, renderExpr(n.Value))
	case *ast.ExprStmt:
		fmt.Fprintf(b, "%s_ = %s\n", pad, renderExpr(n.X))
	case *ast.WhileStmt:
		fmt.Fprintf(b, "%sfor %s { // invariant/decreases proved, not re-checked at runtime\n", pad, renderExpr(n.Cond))
		writeBody(b, n.Body, indent+1)
		fmt.Fprintf(b, "%s}\n", pad)
	}
}

var binOpText = map[ast.BinOp]string{
	ast.OpAdd: "+", ast.OpSub: "-", ast.OpMul: "*", ast.OpDiv: "/", ast.OpMod: "%",
	ast.OpLt: "<", ast.OpLe: "<=", ast.OpGt: ">", ast.OpGe: ">=", ast.OpEq: "==", ast.OpNe: "!=",
	ast.OpAnd: "&&", ast.OpOr: "||",
}

func renderExpr(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.IntLit:
		return strconv.FormatInt(n.Value, 10)
	case *ast.FloatLit:
		return strconv.FormatFloat(n.Value, 'g', -1, 64)
	case *ast.BoolLit:
		return strconv.FormatBool(n.Value)
	case *ast.VarExpr:
		return n.Name
	case *ast.SelfExpr:
		return "self"
	case *ast.ResultExpr:
		return "result"
	case *ast.UnaryExpr:
		if n.Op == ast.OpNot {
			return "!(" + renderExpr(n.X) + ")"
		}

		return "-(" + renderExpr(n.X) + ")"
	case *ast.BinaryExpr:
		if n.Op == ast.OpImplies {
			return fmt.Sprintf("(!(%s) || (%s))", renderExpr(n.L), renderExpr(n.R))
		}

		return fmt.Sprintf("(%s %s %s)", renderExpr(n.L), binOpText[n.Op], renderExpr(n.R))
	case *ast.IfExpr:
		return fmt.Sprintf("func() interface{} { if %s { return %s }; return %s }()",
			renderExpr(n.Cond), renderExpr(n.Then), renderExpr(n.Else))
	case *ast.CallExpr:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderExpr(a)
		}

		return fmt.Sprintf("%s(%s)", goName(n.FQN), strings.Join(args, ", "))
	case *ast.IndexExpr:
		return fmt.Sprintf("%s[%s]", renderExpr(n.Array), renderExpr(n.Index))
	case *ast.FieldExpr:
		return fmt.Sprintf("%s.%s", renderExpr(n.X), n.Field)
	case *ast.StructInitExpr:
		keys := make([]string, 0, len(n.Fields))
		for k := range n.Fields {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, renderExpr(n.Fields[k]))
		}

		return fmt.Sprintf("%s{%s}", goName(n.Type), strings.Join(parts, ", "))
	case *ast.AcquireExpr:
		return fmt.Sprintf("func() interface{} { mu_%s.Lock(); defer mu_%s.Unlock(); return %s }()",
			n.Resource, n.Resource, blockAsExpr(n.Body))
	case *ast.AwaitExpr:
		return "/* await */ " + renderExpr(n.X)
	case *ast.QuantifierExpr:
		return "true /* quantifier, proved at verify time */"
	case *ast.MatchExpr:
		return renderMatch(n)
	case *ast.Block:
		return blockAsExpr(n)
	default:
		return "nil /* unsupported expression form */"
	}
}

func blockAsExpr(b *ast.Block) string {
	if b.Result != nil {
		return renderExpr(b.Result)
	}

	return "nil"
}

func renderMatch(m *ast.MatchExpr) string {
	var b strings.Builder

	fmt.Fprintf(&b, "func() interface{} { switch { ")

	for _, arm := range m.Arms {
		cond := renderPatternCond(m.Scrutinee, arm.Pattern)
		if arm.Guard != nil {
			cond = fmt.Sprintf("(%s) && (%s)", cond, renderExpr(arm.Guard))
		}

		fmt.Fprintf(&b, "case %s: return %s; ", cond, renderExpr(arm.Body))
	}

	b.WriteString("}; panic(\"non-exhaustive match\") }()")

	return b.String()
}

func renderPatternCond(scrutinee ast.Expr, p ast.Pattern) string {
	switch n := p.(type) {
	case *ast.WildcardPattern, *ast.VarPattern:
		return "true"
	case *ast.LitPattern:
		return fmt.Sprintf("%s == %v", renderExpr(scrutinee), n.Value)
	case *ast.VariantPattern:
		return fmt.Sprintf("%s.Tag == %q", renderExpr(scrutinee), n.Variant)
	default:
		return "true"
	}
}
