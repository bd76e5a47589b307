package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mumei-lang/mumei/internal/config"
	"github.com/mumei-lang/mumei/internal/mono"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/parser"
	"github.com/mumei-lang/mumei/internal/resolver"
)

// TestResolveMonomorphizeVerifyNonAtomDefinitions drives the real
// resolve -> monomorphize -> verify pipeline (cmd/mumeic's runPipeline, here
// inlined) over a source file that exercises a named refined type, a struct
// parameter, and a resource acquire — the three definition kinds that
// mono.Monomorphize must carry through to its output env for gates.go and
// translate.go to find. Before copyNonAtomDefinitions copied types/structs/
// enums/traits/impls/resources into the monomorphized env, every one of
// these atoms would either misverify (refinement/struct predicates never
// asserted) or error out (acquire of an "unknown resource").
func TestResolveMonomorphizeVerifyNonAtomDefinitions(t *testing.T) {
	src := `
type Nat = i64 where v >= 0;

struct Point {
	x: i64 where v >= 0,
	y: i64 where v >= 0,
}

resource Lock priority: 1 mode: exclusive;

atom useNat(n: Nat) => i64
	requires true
	ensures result >= 0
{
	n
}

atom sumPoint(p: Point) => i64
	requires true
	ensures result >= 0
{
	p.x + p.y
}

atom useLock() => i64
	resource(Lock)
	requires true
	ensures result == 1
{
	acquire Lock {
		1
	}
}
`

	dir := t.TempDir()
	entryPath := filepath.Join(dir, "entry.mm")
	if err := os.WriteFile(entryPath, []byte(src), 0o644); err != nil {
		t.Fatalf("writing entry file: %v", err)
	}

	env := moduleenv.New()

	res := resolver.New(parser.Parse, config.Default(), dir, dir)
	if err := res.Resolve(env, entryPath); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	monoEnv, err := mono.Monomorphize(env)
	if err != nil {
		t.Fatalf("Monomorphize: %v", err)
	}

	if _, ok := monoEnv.Type("Nat"); !ok {
		t.Fatalf("expected Monomorphize to carry the Nat type alias into its output env")
	}

	if _, ok := monoEnv.Struct("Point"); !ok {
		t.Fatalf("expected Monomorphize to carry the Point struct into its output env")
	}

	if _, ok := monoEnv.Resource("Lock"); !ok {
		t.Fatalf("expected Monomorphize to carry the Lock resource into its output env")
	}

	outcomes, err := Verify(context.Background(), monoEnv, 3, nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	for _, o := range outcomes {
		if o.Status != StatusVerified {
			t.Fatalf("expected %s to verify, got %s (err=%v)", o.Name, o.Status, o.Err)
		}
	}
}
