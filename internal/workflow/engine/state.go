package engine

import (
	"time"

	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

// OutcomeKind distinguishes the two terminal results of a compile.
type OutcomeKind string

const (
	OutcomeConverged OutcomeKind = "converged"
	OutcomeFatal     OutcomeKind = "fatal"
)

// FailureKind classifies a Fatal outcome.
type FailureKind string

const (
	// FailureToolInvocation covers any tool that exits non-zero, cannot be
	// launched or is interrupted.
	FailureToolInvocation FailureKind = "tool-invocation-failed"
	// FailureCompiler means the processor log carried a fatal marker.
	FailureCompiler FailureKind = "fatal-compiler-error"
)

// Outcome is what Compile reports upward. The caller decides whether to
// terminate the process.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// Passes counts main-processor invocations.
	Passes            int    `json:"passes"`
	BibliographyState string `json:"bibliography_state,omitempty"`
	BibliographyNote  string `json:"bibliography_status,omitempty"`
	IndexNote         string `json:"index_status,omitempty"`
	// Settled is false when the pass bound was reached while the processor
	// still asked for a rerun.
	Settled bool `json:"settled"`

	Failure FailureKind `json:"failure,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Excerpt string      `json:"excerpt,omitempty"`
	// LogPath is the processor log after relocation.
	LogPath string `json:"log_path,omitempty"`
	// OutputPath is the final document after relocation.
	OutputPath string `json:"output_path,omitempty"`
}

// Converged reports a successful compile.
func (o Outcome) Converged() bool {
	return o.Kind == OutcomeConverged
}

// Event is a progress notification emitted while a compile runs.
type Event struct {
	Phase   scheduler.Phase `json:"phase"`
	Pass    int             `json:"pass,omitempty"`
	Message string          `json:"message"`
	At      time.Time       `json:"at"`
}

// Invocation records one external tool run.
type Invocation struct {
	Phase    scheduler.Phase `json:"phase"`
	Pass     int             `json:"pass,omitempty"`
	Command  string          `json:"command"`
	ExitCode int             `json:"exit_code"`
	Elapsed  time.Duration   `json:"elapsed"`
	Error    string          `json:"error,omitempty"`
}

// State is the persisted record of the most recent compile.
type State struct {
	RunID       string          `json:"run_id"`
	Project     string          `json:"project"`
	Program     string          `json:"program"`
	MaxPasses   int             `json:"max_passes"`
	Phase       scheduler.Phase `json:"phase"`
	Signals     []string        `json:"signals,omitempty"`
	Invocations []Invocation    `json:"invocations,omitempty"`
	Outcome     Outcome         `json:"outcome"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Elapsed is the wall time of the run.
func (s State) Elapsed() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
