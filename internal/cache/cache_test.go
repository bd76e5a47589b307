package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mumei-lang/mumei/internal/ast"
)

func sampleAtom(requiresVal int64) *ast.AtomDef {
	return &ast.AtomDef{
		Name:     "increment",
		Requires: &ast.IntLit{Value: requiresVal},
		Ensures:  &ast.BoolLit{Value: true},
		Body:     &ast.VarExpr{Name: "x"},
	}
}

func TestAtomHashStableAcrossEqualAtoms(t *testing.T) {
	a := sampleAtom(0)
	b := sampleAtom(0)

	if AtomHash(a) != AtomHash(b) {
		t.Fatalf("expected identical atoms to hash identically")
	}
}

func TestAtomHashChangesWithRequires(t *testing.T) {
	a := sampleAtom(0)
	b := sampleAtom(1)

	if AtomHash(a) == AtomHash(b) {
		t.Fatalf("expected differing requires clauses to change the hash")
	}
}

func TestEntryStaleDetectsChange(t *testing.T) {
	entry := &Entry{AtomHashes: make(map[string]string)}
	atom := sampleAtom(0)

	if !entry.Stale(atom) {
		t.Fatalf("an atom never recorded should be stale")
	}

	entry.Record(atom)

	if entry.Stale(atom) {
		t.Fatalf("an unchanged atom should not be stale after Record")
	}

	changed := sampleAtom(1)
	changed.Name = atom.Name

	if !entry.Stale(changed) {
		t.Fatalf("a changed requires clause should mark the atom stale")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mumei_cache")

	c := New()
	entry := &Entry{SourceHash: "abc123", AtomHashes: make(map[string]string)}
	entry.Record(sampleAtom(0))
	c.Entries["main.mm"] = entry

	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	got, ok := loaded.Entries["main.mm"]
	if !ok {
		t.Fatalf("expected entry for main.mm to round-trip")
	}

	if got.SourceHash != "abc123" {
		t.Fatalf("expected source hash to round-trip, got %q", got.SourceHash)
	}
}

func TestLoadMissingFileReturnsEmptyCache(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if c == nil || len(c.Entries) != 0 {
		t.Fatalf("expected an empty cache for a missing file, got %+v", c)
	}
}

func TestLoadIncompatibleSchemaVersionReturnsEmptyCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mumei_cache")

	c := &Cache{SchemaVersion: "99.0.0", Entries: map[string]*Entry{"x": {SourceHash: "z"}}}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded := Load(path)
	if len(loaded.Entries) != 0 {
		t.Fatalf("expected an incompatible schema version to be discarded")
	}
}
