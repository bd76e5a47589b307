package verify

import "github.com/mumei-lang/mumei/internal/errors"

// Status is the coarse verdict Verify reports per atom or law (§4.5/§6 run
// report).
type Status int

const (
	StatusVerified Status = iota
	StatusWarning
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusWarning:
		return "warning"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is one atom's (or law's) verification result: the terminal
// failure if any, plus every downgraded warning accumulated along the way
// (Gate 0 downgrades, taint warnings, call-cycle warnings).
type Outcome struct {
	Name     string
	Status   Status
	Err      *errors.CompilerError
	Warnings []*errors.CompilerError
	// Cached reports whether this outcome was a cache hit (§4.6: "a hit
	// short-circuits to verified") rather than a freshly discharged proof.
	Cached bool
}

func verified(name string, warnings []*errors.CompilerError) *Outcome {
	status := StatusVerified
	if len(warnings) > 0 {
		status = StatusWarning
	}

	return &Outcome{Name: name, Status: status, Warnings: warnings}
}

func failed(name string, err *errors.CompilerError, warnings []*errors.CompilerError) *Outcome {
	return &Outcome{Name: name, Status: StatusFailed, Err: err, Warnings: warnings}
}
