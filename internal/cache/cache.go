// Package cache implements the incremental verification cache (spec §4.6):
// a per-module record of source and per-atom contract hashes that lets a
// later run skip re-verifying atoms whose contract and body are unchanged.
// Grounded on original_source/src/resolver.rs's VerificationCache/CacheEntry/
// compute_atom_hash/load_cache/save_cache, and on the teacher's FSCache (
// internal/build/cache.go) for the atomic write-temp-then-rename discipline.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/mumei-lang/mumei/internal/ast"
)

// SchemaVersion is bumped whenever Entry's shape changes incompatibly; a
// cache file from an older incompatible major version is discarded rather
// than partially trusted.
const SchemaVersion = "1.0.0"

// Entry is one compilation unit's cached state.
type Entry struct {
	SourceHash    string            `json:"source_hash"`
	VerifiedAtoms []string          `json:"verified_atoms"`
	TypeNames     []string          `json:"type_names"`
	StructNames   []string          `json:"struct_names"`
	AtomHashes    map[string]string `json:"atom_hashes"`
}

// Cache is the full on-disk cache file: a schema version guard plus one
// Entry per source file path.
type Cache struct {
	SchemaVersion string            `json:"schema_version"`
	Entries       map[string]*Entry `json:"entries"`
}

// New returns an empty cache stamped with the current schema version.
func New() *Cache {
	return &Cache{SchemaVersion: SchemaVersion, Entries: make(map[string]*Entry)}
}

// Load reads path, returning a fresh empty cache (never an error) if the
// file is absent, unparseable, or carries an incompatible schema version —
// the cache is an optimization, never a correctness requirement, matching
// the original's load_cache swallowing every failure into Default.
func Load(path string) *Cache {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return New()
	}

	if !schemaCompatible(c.SchemaVersion) {
		return New()
	}

	if c.Entries == nil {
		c.Entries = make(map[string]*Entry)
	}

	return &c
}

// schemaCompatible reports whether a cache written with version v can be
// trusted by this build: same major version as SchemaVersion. An empty or
// unparseable version is treated as incompatible.
func schemaCompatible(v string) bool {
	if v == "" {
		return false
	}

	current, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return false
	}

	stored, err := semver.NewVersion(v)
	if err != nil {
		return false
	}

	return stored.Major() == current.Major()
}

// Save writes c to path atomically: marshaled to a sibling temp file, then
// renamed into place. Write failures are swallowed by the caller's
// discretion (the cache is best-effort), but Save itself reports them so a
// caller that wants to know, can.
func Save(path string, c *Cache) error {
	c.SchemaVersion = SchemaVersion

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// SourceHash returns the SHA-256 hex digest of src, used to decide whether
// an entire file needs re-parsing and re-resolving.
func SourceHash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// AtomHash computes the SHA-256 hex digest of everything about a that
// affects its verification outcome: name, requires/ensures/body rendering,
// per-parameter ownership flags (consume/ref/ref_mut), resources,
// async-ness, invariant, decreases, trust level, and max_unroll — mirroring compute_atom_hash's field order exactly, with
// requires/ensures/body rendered structurally (via exprKey) since this AST
// has no raw source text to hash directly.
func AtomHash(a *ast.AtomDef) string {
	h := sha256.New()

	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
		}
	}

	write(a.Name, "|", exprKey(a.Requires), "|", exprKey(a.Ensures), "|", exprKey(a.Body))

	for _, p := range a.Params {
		switch p.Flag {
		case ast.ParamRef:
			write("|ref:", p.Name)
		case ast.ParamRefMut:
			write("|ref_mut:", p.Name)
		default:
			write("|consume:", p.Name)
		}
	}

	for _, r := range a.Resources {
		write("|resource:", r)
	}

	if a.Async {
		write("|async")
	}

	if a.Invariant != nil {
		write("|invariant:", exprKey(a.Invariant))
	}

	if a.Decreases != nil {
		write("|decreases:", exprKey(a.Decreases))
	}

	write("|trust:", trustString(a.Trust))

	if a.MaxUnroll > 0 {
		write("|max_unroll:", fmt.Sprintf("%d", a.MaxUnroll))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func trustString(t ast.TrustLevel) string {
	switch t {
	case ast.TrustTrusted:
		return "trusted"
	case ast.TrustUnverified:
		return "unverified"
	default:
		return "verified"
	}
}

// exprKey renders e structurally for hashing purposes. Two expressions hash
// identically iff they are structurally identical, the same criterion
// moduleenv's duplicate-redeclaration check uses.
func exprKey(e ast.Expr) string {
	if e == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%#v", e)
}

// Stale reports whether atom must be re-verified against entry: either the
// atom is unknown to the cache, or its hash no longer matches.
func (entry *Entry) Stale(atom *ast.AtomDef) bool {
	if entry == nil {
		return true
	}

	prior, ok := entry.AtomHashes[atom.Name]

	return !ok || prior != AtomHash(atom)
}

// Record updates entry with atom's current hash and marks it verified.
func (entry *Entry) Record(atom *ast.AtomDef) {
	if entry.AtomHashes == nil {
		entry.AtomHashes = make(map[string]string)
	}

	entry.AtomHashes[atom.Name] = AtomHash(atom)

	for _, name := range entry.VerifiedAtoms {
		if name == atom.Name {
			return
		}
	}

	entry.VerifiedAtoms = append(entry.VerifiedAtoms, atom.Name)
}
