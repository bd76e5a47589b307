// Package config loads the compiler-wide configuration file (mumei.yaml),
// generalizing the teacher's scattered per-invocation CLI flags
// (cmd/orizon-compiler) into one structured, serializable settings object.
// cmd/mumeic's -config flag selects which file is loaded; no CLI flag
// overrides a setting read from it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full compiler configuration.
type Config struct {
	// MaxUnroll is the default loop-unrolling bound for bounded model
	// checking (Gate 2) when an atom does not specify its own max_unroll.
	MaxUnroll int `yaml:"max_unroll"`

	// SolverTimeout bounds each individual solver query (§5 "Cancellation/
	// timeouts"); expressed as a Go duration string, e.g. "2s".
	SolverTimeout time.Duration `yaml:"solver_timeout"`

	// StdPathRoots is the list of additional standard-library search roots,
	// tried after the built-in search order (§4.2) and before
	// MUMEI_STD_PATH.
	StdPathRoots []string `yaml:"std_path_roots"`

	// CacheFile is the path of the incremental verification cache.
	CacheFile string `yaml:"cache_file"`

	// BuildCacheFile is the configured path of the full-pipeline build
	// cache. No cmd/mumeic command reads or writes this file.
	BuildCacheFile string `yaml:"build_cache_file"`

	// ReportFile is the path the run report is written to.
	ReportFile string `yaml:"report_file"`

	// WatchDebounce bounds how often watch mode re-verifies in response to
	// a burst of filesystem events.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Default returns the configuration used when no mumei.yaml is present.
func Default() *Config {
	return &Config{
		MaxUnroll:      3,
		SolverTimeout:  2 * time.Second,
		StdPathRoots:   nil,
		CacheFile:      ".mumei_cache",
		BuildCacheFile: ".mumei_build_cache",
		ReportFile:     ".mumei_report.json",
		WatchDebounce:  200 * time.Millisecond,
	}
}

// Load reads and parses a mumei.yaml file, filling any field the file omits
// from Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.MaxUnroll <= 0 {
		cfg.MaxUnroll = 3
	}

	return cfg, nil
}

// StdPathSearchRoots returns the full std-path search order (§4.2): the
// project root's base/std, the compiler binary's directory, the current
// working directory, the config file's extra roots, then every root named
// in MUMEI_STD_PATH (colon-separated, all tried in order rather than only
// the first — a deliberate generalization of the single-root behavior in
// original_source/src/resolver.rs's resolve_path, recorded in DESIGN.md).
func (c *Config) StdPathSearchRoots(projectRoot, binDir, cwd string) []string {
	roots := []string{
		projectRoot + "/base/std",
		binDir,
		cwd,
	}

	roots = append(roots, c.StdPathRoots...)

	if env := os.Getenv("MUMEI_STD_PATH"); env != "" {
		roots = append(roots, strings.Split(env, ":")...)
	}

	return roots
}
