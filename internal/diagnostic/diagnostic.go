// Package diagnostic renders the structured errors.CompilerError values
// produced by the resolver, monomorphizer, and verifier into sorted,
// human-readable reports, including solver counter-examples.
package diagnostic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mumei-lang/mumei/internal/errors"
	"github.com/mumei-lang/mumei/internal/position"
)

// DiagnosticLevel represents the severity level of a diagnostic message.
type DiagnosticLevel int

const (
	DiagnosticError DiagnosticLevel = iota
	DiagnosticWarning
	DiagnosticInfo
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticInfo:
		return "info"
	default:
		return "unknown"
	}
}

// DiagnosticCategory mirrors the compiler stage that raised the diagnostic.
type DiagnosticCategory int

const (
	DiagnosticParse DiagnosticCategory = iota
	DiagnosticResolve
	DiagnosticMono
	DiagnosticVerify
)

func (dc DiagnosticCategory) String() string {
	switch dc {
	case DiagnosticParse:
		return "parse"
	case DiagnosticResolve:
		return "resolve"
	case DiagnosticMono:
		return "mono"
	case DiagnosticVerify:
		return "verify"
	default:
		return "unknown"
	}
}

// Diagnostic is a single rendered message, optionally carrying a solver
// counter-example model (name -> human-readable value).
type Diagnostic struct {
	Code           string
	Title          string
	Message        string
	Atom           string
	Counterexample map[string]interface{}
	RelatedInfo    []RelatedInformation
	Span           position.Span
	Level          DiagnosticLevel
	Category       DiagnosticCategory
}

// RelatedInformation provides additional context for a diagnostic.
type RelatedInformation struct {
	Message string
	Span    position.Span
}

// DiagnosticBuilder helps construct diagnostic messages with a fluent API.
type DiagnosticBuilder struct {
	diagnostic *Diagnostic
}

// NewDiagnostic creates a new diagnostic builder.
func NewDiagnostic() *DiagnosticBuilder {
	return &DiagnosticBuilder{
		diagnostic: &Diagnostic{
			RelatedInfo: make([]RelatedInformation, 0),
		},
	}
}

func (db *DiagnosticBuilder) Error() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticError

	return db
}

func (db *DiagnosticBuilder) Warning() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticWarning

	return db
}

func (db *DiagnosticBuilder) Info() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticInfo

	return db
}

func (db *DiagnosticBuilder) Parse() *DiagnosticBuilder {
	db.diagnostic.Category = DiagnosticParse

	return db
}

func (db *DiagnosticBuilder) Resolve() *DiagnosticBuilder {
	db.diagnostic.Category = DiagnosticResolve

	return db
}

func (db *DiagnosticBuilder) Mono() *DiagnosticBuilder {
	db.diagnostic.Category = DiagnosticMono

	return db
}

func (db *DiagnosticBuilder) Verify() *DiagnosticBuilder {
	db.diagnostic.Category = DiagnosticVerify

	return db
}

func (db *DiagnosticBuilder) Code(code string) *DiagnosticBuilder {
	db.diagnostic.Code = code

	return db
}

func (db *DiagnosticBuilder) Title(title string) *DiagnosticBuilder {
	db.diagnostic.Title = title

	return db
}

func (db *DiagnosticBuilder) Message(message string) *DiagnosticBuilder {
	db.diagnostic.Message = message

	return db
}

func (db *DiagnosticBuilder) Span(span position.Span) *DiagnosticBuilder {
	db.diagnostic.Span = span

	return db
}

func (db *DiagnosticBuilder) Atom(name string) *DiagnosticBuilder {
	db.diagnostic.Atom = name

	return db
}

func (db *DiagnosticBuilder) Counterexample(model map[string]interface{}) *DiagnosticBuilder {
	db.diagnostic.Counterexample = model

	return db
}

func (db *DiagnosticBuilder) Related(span position.Span, message string) *DiagnosticBuilder {
	db.diagnostic.RelatedInfo = append(db.diagnostic.RelatedInfo, RelatedInformation{Span: span, Message: message})

	return db
}

func (db *DiagnosticBuilder) Build() *Diagnostic {
	return db.diagnostic
}

// FromCompilerError renders a errors.CompilerError into a Diagnostic,
// carrying over its counter-example and atom name unchanged.
func FromCompilerError(category DiagnosticCategory, err *errors.CompilerError) *Diagnostic {
	builder := NewDiagnostic().
		Code(string(err.Category)).
		Title(strings.ReplaceAll(strings.ToLower(string(err.Category)), "_", " ")).
		Message(err.Message).
		Span(err.Span).
		Atom(err.Atom)

	if err.Warning {
		builder.Warning()
	} else {
		builder.Error()
	}

	switch category {
	case DiagnosticResolve:
		builder.Resolve()
	case DiagnosticMono:
		builder.Mono()
	case DiagnosticVerify:
		builder.Verify()
	default:
		builder.Parse()
	}

	if err.Counterexample != nil {
		builder.Counterexample(err.Counterexample)
	}

	return builder.Build()
}

// DiagnosticConfig controls diagnostic behavior.
type DiagnosticConfig struct {
	IgnoreCategories []DiagnosticCategory
	IgnoreCodes      []string
	MaxErrors        int
	WarningsAsErrors bool
}

// DiagnosticEngine manages the collection and processing of diagnostics for
// one compilation run.
type DiagnosticEngine struct {
	diagnostics []Diagnostic
	config      DiagnosticConfig
}

// NewDiagnosticEngine creates a new diagnostic engine.
func NewDiagnosticEngine(config DiagnosticConfig) *DiagnosticEngine {
	return &DiagnosticEngine{
		diagnostics: make([]Diagnostic, 0),
		config:      config,
	}
}

// AddDiagnostic adds a diagnostic to the engine.
func (de *DiagnosticEngine) AddDiagnostic(diagnostic *Diagnostic) {
	if de.shouldIgnore(diagnostic) {
		return
	}

	if de.config.WarningsAsErrors && diagnostic.Level == DiagnosticWarning {
		diagnostic.Level = DiagnosticError
	}

	de.diagnostics = append(de.diagnostics, *diagnostic)

	if de.config.MaxErrors > 0 && len(de.GetErrors()) >= de.config.MaxErrors {
		truncationDiag := NewDiagnostic().
			Error().
			Code("TOO_MANY_ERRORS").
			Title("too many errors").
			Message(fmt.Sprintf("stopping after %d errors", de.config.MaxErrors)).
			Build()
		de.diagnostics = append(de.diagnostics, *truncationDiag)
	}
}

func (de *DiagnosticEngine) shouldIgnore(diagnostic *Diagnostic) bool {
	for _, cat := range de.config.IgnoreCategories {
		if diagnostic.Category == cat {
			return true
		}
	}

	for _, code := range de.config.IgnoreCodes {
		if diagnostic.Code == code {
			return true
		}
	}

	return false
}

// GetDiagnostics returns all diagnostics.
func (de *DiagnosticEngine) GetDiagnostics() []Diagnostic {
	return de.diagnostics
}

// GetErrors returns only error-level diagnostics.
func (de *DiagnosticEngine) GetErrors() []Diagnostic {
	errs := make([]Diagnostic, 0)

	for _, diag := range de.diagnostics {
		if diag.Level == DiagnosticError {
			errs = append(errs, diag)
		}
	}

	return errs
}

// GetWarnings returns only warning-level diagnostics.
func (de *DiagnosticEngine) GetWarnings() []Diagnostic {
	warnings := make([]Diagnostic, 0)

	for _, diag := range de.diagnostics {
		if diag.Level == DiagnosticWarning {
			warnings = append(warnings, diag)
		}
	}

	return warnings
}

// HasErrors returns true if there are any errors. Per §7, the process exits
// nonzero exactly when this is true.
func (de *DiagnosticEngine) HasErrors() bool {
	return len(de.GetErrors()) > 0
}

// Clear removes all diagnostics.
func (de *DiagnosticEngine) Clear() {
	de.diagnostics = de.diagnostics[:0]
}

// SortDiagnostics sorts diagnostics by position, then severity.
func (de *DiagnosticEngine) SortDiagnostics() {
	sort.Slice(de.diagnostics, func(i, j int) bool {
		a, b := de.diagnostics[i], de.diagnostics[j]

		if a.Span.Start.Filename != b.Span.Start.Filename {
			return a.Span.Start.Filename < b.Span.Start.Filename
		}

		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}

		if a.Span.Start.Column != b.Span.Start.Column {
			return a.Span.Start.Column < b.Span.Start.Column
		}

		return a.Level < b.Level
	})
}

// FormatDiagnostics returns a formatted string representation of all diagnostics.
func (de *DiagnosticEngine) FormatDiagnostics() string {
	if len(de.diagnostics) == 0 {
		return ""
	}

	de.SortDiagnostics()

	var result strings.Builder

	for i, diag := range de.diagnostics {
		if i > 0 {
			result.WriteString("\n")
		}

		result.WriteString(de.formatSingleDiagnostic(&diag))
	}

	result.WriteString(de.formatSummary())

	return result.String()
}

func (de *DiagnosticEngine) formatSingleDiagnostic(diag *Diagnostic) string {
	var result strings.Builder

	atomPart := ""
	if diag.Atom != "" {
		atomPart = fmt.Sprintf(" in %s", diag.Atom)
	}

	result.WriteString(fmt.Sprintf("%s: %s[%s]%s: %s\n",
		diag.Span.String(),
		diag.Level.String(),
		diag.Code,
		atomPart,
		diag.Title,
	))

	if diag.Message != "" {
		result.WriteString(fmt.Sprintf("  %s\n", diag.Message))
	}

	if diag.Counterexample != nil {
		result.WriteString("  counter-example:\n")

		keys := make([]string, 0, len(diag.Counterexample))
		for k := range diag.Counterexample {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			result.WriteString(fmt.Sprintf("    %s = %v\n", k, diag.Counterexample[k]))
		}
	}

	for _, related := range diag.RelatedInfo {
		result.WriteString(fmt.Sprintf("  %s: %s\n", related.Span.String(), related.Message))
	}

	return result.String()
}

func (de *DiagnosticEngine) formatSummary() string {
	errorCount := len(de.GetErrors())
	warningCount := len(de.GetWarnings())

	if errorCount == 0 && warningCount == 0 {
		return "\nno issues found"
	}

	var parts []string
	if errorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errorCount))
	}

	if warningCount > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warningCount))
	}

	return fmt.Sprintf("\nfound %s", strings.Join(parts, ", "))
}
