package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/config"
	"github.com/mumei-lang/mumei/internal/moduleenv"
)

// stubParser returns File objects from an in-memory table keyed by path,
// avoiding any dependency on internal/parser for these resolver-focused
// tests.
func stubParser(t *testing.T, files map[string]*ast.File) Parser {
	t.Helper()

	return func(path string, _ []byte) (*ast.File, error) {
		f, ok := files[filepath.Base(path)]
		if !ok {
			t.Fatalf("stubParser: no fixture for %s", path)
		}

		return f, nil
	}
}

func atom(name string) *ast.AtomDef {
	return &ast.AtomDef{Name: name}
}

func TestResolveSimpleImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.mm", "")
	writeFile(t, dir, "helper.mm", "")

	files := map[string]*ast.File{
		"main.mm":   {Path: "main.mm", Imports: []ast.ImportDecl{{Path: filepath.Join(dir, "helper")}}, Atoms: []*ast.AtomDef{atom("main")}},
		"helper.mm": {Path: "helper.mm", Atoms: []*ast.AtomDef{atom("helper")}},
	}

	cfg := config.Default()
	r := New(stubParser(t, files), cfg, dir, dir)
	env := moduleenv.New()

	if err := r.Resolve(env, filepath.Join(dir, "main.mm")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, ok := env.Atom("main"); !ok {
		t.Errorf("expected atom main to be registered")
	}

	if _, ok := env.Atom("helper"); !ok {
		t.Errorf("expected atom helper to be registered")
	}
}

func TestResolveAliasRegistersQualifiedName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.mm", "")
	writeFile(t, dir, "math.mm", "")

	files := map[string]*ast.File{
		"main.mm": {Path: "main.mm", Imports: []ast.ImportDecl{{Path: filepath.Join(dir, "math"), Alias: "m"}}},
		"math.mm": {Path: "math.mm", Atoms: []*ast.AtomDef{atom("sqrt")}},
	}

	cfg := config.Default()
	r := New(stubParser(t, files), cfg, dir, dir)
	env := moduleenv.New()

	if err := r.Resolve(env, filepath.Join(dir, "main.mm")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, ok := env.Atom("sqrt"); !ok {
		t.Errorf("expected plain name sqrt to remain resolvable")
	}

	if _, ok := env.Atom("m::sqrt"); !ok {
		t.Errorf("expected aliased name m::sqrt to be registered")
	}
}

func TestResolveCircularImportFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mm", "")
	writeFile(t, dir, "b.mm", "")

	files := map[string]*ast.File{
		"a.mm": {Path: "a.mm", Imports: []ast.ImportDecl{{Path: filepath.Join(dir, "b")}}},
		"b.mm": {Path: "b.mm", Imports: []ast.ImportDecl{{Path: filepath.Join(dir, "a")}}},
	}

	cfg := config.Default()
	r := New(stubParser(t, files), cfg, dir, dir)
	env := moduleenv.New()

	err := r.Resolve(env, filepath.Join(dir, "a.mm"))
	if err == nil {
		t.Fatalf("expected circular import error, got nil")
	}
}

func TestResolveMissingImportFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.mm", "")

	files := map[string]*ast.File{
		"main.mm": {Path: "main.mm", Imports: []ast.ImportDecl{{Path: filepath.Join(dir, "missing")}}},
	}

	cfg := config.Default()
	r := New(stubParser(t, files), cfg, dir, dir)
	env := moduleenv.New()

	if err := r.Resolve(env, filepath.Join(dir, "main.mm")); err == nil {
		t.Fatalf("expected unresolved import error, got nil")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
}
