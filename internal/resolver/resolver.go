// Package resolver implements the module resolver (spec §4.2): given a root
// source file, transitively resolves `import "path" as alias;` declarations
// into a fully-populated moduleenv.Env. The prelude is auto-loaded first,
// regardless of user imports; the import graph is walked with a DFS colour
// scheme grounded on the teacher's internal/modules.DependencyGraph
// detectCyclesDFS; exact per-path semantics (search order, alias
// registration) follow original_source/src/resolver.rs.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/mumei-lang/mumei/internal/ast"
	"github.com/mumei-lang/mumei/internal/config"
	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/position"
)

// colour is the DFS visitation state of one module path in the import
// graph, mirroring the teacher's visited/recursionStack map pair
// (internal/modules/modules.go detectCyclesDFS) collapsed into one
// three-state enum.
type colour int

const (
	white colour = iota // unseen
	grey                // on the current DFS stack
	black               // fully resolved
)

// Parser is the minimal surface the resolver needs from the front end: turn
// source bytes at a path into a File. internal/parser.Parse satisfies this;
// tests may supply a stub.
type Parser func(path string, src []byte) (*ast.File, error)

// Resolver walks the import graph of a compilation unit.
type Resolver struct {
	parse      Parser
	cfg        *config.Config
	projectRoot string
	binDir     string

	colours map[string]colour
	path    []string // current DFS stack, for cycle-naming
	group   singleflight.Group
}

// New creates a Resolver. projectRoot is the root used for the `base/std`
// search entry; binDir is normally filepath.Dir(os.Args[0]).
func New(parse Parser, cfg *config.Config, projectRoot, binDir string) *Resolver {
	return &Resolver{
		parse:       parse,
		cfg:         cfg,
		projectRoot: projectRoot,
		binDir:      binDir,
		colours:     make(map[string]colour),
	}
}

// Resolve transitively resolves entryPath (and the auto-loaded prelude)
// into env.
func (r *Resolver) Resolve(env *moduleenv.Env, entryPath string) error {
	if err := r.loadPrelude(env); err != nil {
		return err
	}

	return r.resolvePath(env, entryPath, "")
}

// loadPrelude auto-loads std/prelude.mm first, regardless of user imports
// (§4.2). A project with no prelude on any search root proceeds without
// one — the prelude is a convenience, not a hard dependency.
func (r *Resolver) loadPrelude(env *moduleenv.Env) error {
	found, err := r.findStdPath("prelude")
	if err != nil {
		return nil //nolint:nilerr // absent prelude is not an error
	}

	return r.resolvePath(env, found, "")
}

// resolvePath resolves one module path (already resolved to a filesystem
// path or still a logical import path) and registers its contents into env,
// then recurses into its own imports. alias is the `as alias` name this
// path was imported under at the call site that reached it, or "" for the
// entry file / prelude.
func (r *Resolver) resolvePath(env *moduleenv.Env, logicalPath, alias string) error {
	resolvedPath, err := r.locate(logicalPath)
	if err != nil {
		return errors.UnresolvedImport(logicalPath, position.Span{})
	}

	switch r.colours[resolvedPath] {
	case black:
		return nil
	case grey:
		cycle := append(append([]string{}, r.path...), resolvedPath)
		return errors.CircularImport(cycle, position.Span{})
	}

	// singleflight de-dups concurrent re-resolves of the same path landing
	// from rapid watch-mode filesystem events (§4.2 "Concurrent
	// re-resolution"); it has no effect on the normal single-threaded walk
	// below, since each resolvePath call completes before the next import
	// is considered.
	_, err, _ = r.group.Do(resolvedPath, func() (interface{}, error) {
		return nil, r.resolveFileAt(env, resolvedPath, alias)
	})

	return err
}

func (r *Resolver) resolveFileAt(env *moduleenv.Env, resolvedPath, alias string) error {
	r.colours[resolvedPath] = grey
	r.path = append(r.path, resolvedPath)

	defer func() {
		r.path = r.path[:len(r.path)-1]
		r.colours[resolvedPath] = black
	}()

	src, err := os.ReadFile(resolvedPath)
	if err != nil {
		return errors.UnresolvedImport(resolvedPath, position.Span{})
	}

	file, err := r.parse(resolvedPath, src)
	if err != nil {
		return err
	}

	if err := register(env, file, alias); err != nil {
		return err
	}

	for _, imp := range file.Imports {
		if err := r.resolvePath(env, imp.Path, imp.Alias); err != nil {
			return err
		}
	}

	return nil
}

// register inserts every item of file into env. When alias is non-empty,
// atoms are additionally registered under the fully-qualified name
// `alias::name` (§4.2 "Aliasing") so both forms resolve.
func register(env *moduleenv.Env, file *ast.File, alias string) error {
	for _, t := range file.Types {
		if err := env.AddType(t); err != nil {
			return errors.DuplicateName(t.Name, t.Span)
		}
	}

	for _, s := range file.Structs {
		if err := env.AddStruct(s); err != nil {
			return errors.DuplicateName(s.Name, s.Span)
		}
	}

	for _, en := range file.Enums {
		if err := env.AddEnum(en); err != nil {
			return errors.DuplicateName(en.Name, en.Span)
		}
	}

	for _, tr := range file.Traits {
		if err := env.AddTrait(tr); err != nil {
			return errors.DuplicateName(tr.Name, tr.Span)
		}
	}

	for _, im := range file.Impls {
		if err := env.AddImpl(im); err != nil {
			return errors.DuplicateName(im.Trait+" for "+im.Type.String(), im.Span)
		}
	}

	for _, res := range file.Resources {
		if err := env.AddResource(res); err != nil {
			return errors.DuplicateName(res.Name, res.Span)
		}
	}

	for _, a := range file.Atoms {
		if err := env.AddAtom(a); err != nil {
			return errors.DuplicateName(a.Name, a.Span)
		}

		if alias != "" {
			aliased := *a
			aliased.Name = alias + "::" + a.Name
			if err := env.AddAtom(&aliased); err != nil {
				return errors.DuplicateName(aliased.Name, a.Span)
			}
		}
	}

	return nil
}

// locate turns a logical import path into a filesystem path: absolute and
// relative paths already naming a file are used directly; bare names are
// looked up on the standard-library search order.
func (r *Resolver) locate(logicalPath string) (string, error) {
	if fileExists(withExt(logicalPath)) {
		return withExt(logicalPath), nil
	}

	return r.findStdPath(logicalPath)
}

// findStdPath walks the std-path search order of §4.2: project root
// base/std/<x>.mm; the compiler binary's directory; the current working
// directory; every root named in MUMEI_STD_PATH (colon-separated, all
// tried, not just the first — see DESIGN.md Open Questions). First hit
// wins.
func (r *Resolver) findStdPath(name string) (string, error) {
	cwd, _ := os.Getwd()
	roots := r.cfg.StdPathSearchRoots(r.projectRoot, r.binDir, cwd)

	for _, root := range roots {
		candidate := filepath.Join(root, withExt(name))
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no std path entry for %q", name)
}

func withExt(path string) string {
	if strings.HasSuffix(path, ".mm") {
		return path
	}

	return path + ".mm"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
