// Package main provides mumeic, the command-line entry point for the Mumei
// verifying compiler: build|verify|check|watch (spec.md §6), each driving
// the same resolve -> monomorphize -> verify pipeline to a different depth.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mumei-lang/mumei/internal/cache"
	"github.com/mumei-lang/mumei/internal/config"
	"github.com/mumei-lang/mumei/internal/diagnostic"
	"github.com/mumei-lang/mumei/internal/emit/gotarget"
	"github.com/mumei-lang/mumei/internal/mono"
	"github.com/mumei-lang/mumei/internal/moduleenv"
	"github.com/mumei-lang/mumei/internal/parser"
	"github.com/mumei-lang/mumei/internal/report"
	"github.com/mumei-lang/mumei/internal/resolver"
	"github.com/mumei-lang/mumei/internal/verify"
)

var (
	version = "0.1.0-alpha"
	commit  = "dev"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	var err error

	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "--version", "version":
		fmt.Printf("mumeic %s (%s)\n", version, commit)
		return
	case "--help", "help":
		showUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "mumeic: unknown command %q\n", os.Args[1])
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "mumeic: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("mumeic - the Mumei verifying compiler")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    mumeic <build|verify|check|watch> [OPTIONS] <INPUT_FILE>")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("    build   resolve, monomorphize, verify, then emit Go source for every verified atom")
	fmt.Println("    verify  resolve, monomorphize, verify, and write a run report")
	fmt.Println("    check   resolve and monomorphize only; no verification, no cache")
	fmt.Println("    watch   re-run verify on every source change under the project root")
}

// pipelineResult is the outcome of running resolve -> mono -> verify once,
// shared by build/verify/watch so each only differs in what it does
// with the result.
type pipelineResult struct {
	env      *moduleenv.Env
	outcomes []*verify.Outcome
}

func runPipeline(ctx context.Context, cfg *config.Config, entryPath string, priorEntry *cache.Entry) (*pipelineResult, error) {
	env := moduleenv.New()

	res := resolver.New(parser.Parse, cfg, projectRoot(entryPath), binDir())
	if err := res.Resolve(env, entryPath); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	monoEnv, err := mono.Monomorphize(env)
	if err != nil {
		return nil, fmt.Errorf("monomorphize: %w", err)
	}

	outcomes, err := verify.Verify(ctx, monoEnv, cfg.MaxUnroll, priorEntry)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	for _, o := range outcomes {
		if o.Status.String() != "failed" {
			monoEnv.MarkVerified(o.Name)
		}
	}

	return &pipelineResult{env: monoEnv, outcomes: outcomes}, nil
}

func printOutcomes(outcomes []*verify.Outcome) {
	for _, o := range outcomes {
		cat := diagnostic.DiagnosticVerify

		var d *diagnostic.Diagnostic
		if o.Err != nil {
			d = diagnostic.FromCompilerError(cat, o.Err)
		} else {
			d = diagnostic.NewDiagnostic().Info().Verify().Atom(o.Name).
				Title(o.Status.String()).
				Message(fmt.Sprintf("%s: %s", o.Name, o.Status)).
				Build()
		}

		engine := diagnostic.NewDiagnosticEngine(diagnostic.DiagnosticConfig{})
		engine.AddDiagnostic(d)

		for _, w := range o.Warnings {
			engine.AddDiagnostic(diagnostic.FromCompilerError(cat, w))
		}

		fmt.Print(engine.FormatDiagnostics())
	}

	verified, warning, failed := report.FromOutcomes(outcomes).Summary()
	fmt.Printf("mumeic: %d verified, %d warning, %d failed\n", verified, warning, failed)
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "mumei.yaml", "path to mumei.yaml")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("no input file specified")
	}

	entryPath := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	result, err := runPipeline(context.Background(), cfg, entryPath, nil)
	if err != nil {
		return err
	}

	printOutcomes(result.outcomes)

	rep := report.FromOutcomes(result.outcomes)
	if err := report.Write(cfg.ReportFile, rep); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if anyFailed(result.outcomes) {
		os.Exit(1)
	}

	return nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "mumei.yaml", "path to mumei.yaml")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("no input file specified")
	}

	entryPath := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	env := moduleenv.New()
	if err := resolver.New(parser.Parse, cfg, projectRoot(entryPath), binDir()).Resolve(env, entryPath); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if _, err := mono.Monomorphize(env); err != nil {
		return fmt.Errorf("monomorphize: %w", err)
	}

	return nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "mumei.yaml", "path to mumei.yaml")
	outPrefix := fs.String("out", "mumei_out", "output path prefix (writes <out>.go)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("no input file specified")
	}

	entryPath := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", entryPath, err)
	}

	c := cache.Load(cfg.CacheFile)

	result, err := runPipeline(context.Background(), cfg, entryPath, c.Entries[entryPath])
	if err != nil {
		return err
	}

	printOutcomes(result.outcomes)

	updateCache(c, entryPath, src, result)

	if err := cache.Save(cfg.CacheFile, c); err != nil {
		fmt.Fprintf(os.Stderr, "mumeic: warning: could not save cache: %v\n", err)
	}

	rep := report.FromOutcomes(result.outcomes)
	if err := report.Write(cfg.ReportFile, rep); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if anyFailed(result.outcomes) {
		os.Exit(1)
	}

	emitter := gotarget.New(*outPrefix + ".go")
	if err := emitter.Emit(result.env); err != nil {
		return fmt.Errorf("emit: %w", err)
	}

	fmt.Printf("mumeic: wrote %s.go\n", *outPrefix)

	return nil
}

func updateCache(c *cache.Cache, entryPath string, src []byte, result *pipelineResult) {
	entry := &cache.Entry{
		SourceHash: cache.SourceHash(src),
		AtomHashes: make(map[string]string),
	}

	for _, a := range result.env.Atoms() {
		entry.AtomHashes[a.Name] = cache.AtomHash(a)

		if result.env.IsVerified(a.Name) {
			entry.VerifiedAtoms = append(entry.VerifiedAtoms, a.Name)
		}
	}

	c.Entries[entryPath] = entry
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "mumei.yaml", "path to mumei.yaml")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("no input file specified")
	}

	entryPath := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	root := projectRoot(entryPath)
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	fmt.Printf("mumeic: watching %s (debounce %s)\n", root, cfg.WatchDebounce)

	reverify := func() {
		result, err := runPipeline(context.Background(), cfg, entryPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mumeic: %v\n", err)
			return
		}

		printOutcomes(result.outcomes)
	}

	reverify()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Ext(ev.Name) != ".mm" {
				continue
			}

			debounce.Reset(cfg.WatchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			fmt.Fprintf(os.Stderr, "mumeic: watch error: %v\n", err)
		case <-debounce.C:
			reverify()
		}
	}
}

func anyFailed(outcomes []*verify.Outcome) bool {
	for _, o := range outcomes {
		if o.Status.String() == "failed" {
			return true
		}
	}

	return false
}

func projectRoot(entryPath string) string {
	abs, err := filepath.Abs(entryPath)
	if err != nil {
		return filepath.Dir(entryPath)
	}

	return filepath.Dir(abs)
}

func binDir() string {
	return filepath.Dir(os.Args[0])
}
