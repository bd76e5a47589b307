// Package report writes the run report (.mumei_report.json, spec §6): one
// JSON document per compiler invocation recording every atom's verification
// outcome, written by the CLI's verify and build commands to the configured
// report_file path, and for tooling that visualizes
// verification results across a run. Grounded on
// original_source/src/verification.rs's save_visualizer_report, generalized
// from that function's single per-atom line write into one aggregate
// document covering the whole run the way internal/verify.Verify already
// returns results in aggregate.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mumei-lang/mumei/internal/verify"
)

// AtomResult is one atom or law's entry in the run report.
type AtomResult struct {
	Name           string                 `json:"atom"`
	Status         string                 `json:"status"`
	Reason         string                 `json:"reason,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Counterexample map[string]interface{} `json:"counterexample,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// Report is the full document written for one compiler run.
type Report struct {
	RunID     string       `json:"run_id"`
	Timestamp time.Time    `json:"timestamp"`
	Results   []AtomResult `json:"results"`
}

// FromOutcomes builds a Report from internal/verify.Verify's result,
// stamping a fresh run ID the way the teacher's request-scoped IDs are
// stamped once, at the boundary, rather than threaded through deeper calls.
func FromOutcomes(outcomes []*verify.Outcome) *Report {
	r := &Report{RunID: uuid.Must(uuid.NewV7()).String(), Timestamp: time.Now().UTC()}

	for _, o := range outcomes {
		ar := AtomResult{Name: o.Name, Status: o.Status.String()}

		if o.Err != nil {
			ar.Reason = o.Err.Message
			ar.Category = string(o.Err.Category)
			ar.Counterexample = o.Err.Counterexample
		}

		for _, w := range o.Warnings {
			ar.Warnings = append(ar.Warnings, w.Error())
		}

		r.Results = append(r.Results, ar)
	}

	return r
}

// Write renders r as indented JSON to path, creating parent directories as
// needed. A write failure here never aborts a build: the run report is
// diagnostic output, not a build artifact the compiler depends on.
func Write(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Summary reports the count of verified, warning, and failed results, for
// the CLI's terminal summary line.
func (r *Report) Summary() (verified, warning, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case "verified":
			verified++
		case "warning":
			warning++
		case "failed":
			failed++
		}
	}

	return verified, warning, failed
}
