package scheduler

import (
	"fmt"
	"sort"
)

// Phase enumerates the convergence state machine.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhasePass1         Phase = "pass-1"
	PhaseErrorGate     Phase = "error-gate"
	PhaseBibliography  Phase = "bibliography"
	PhaseIndex         Phase = "index"
	PhaseTocGate       Phase = "toc-gate"
	PhaseExtraPasses   Phase = "extra-passes"
	PhaseFormatConvert Phase = "format-convert"
	PhaseDone          Phase = "done"
	PhaseFatal         Phase = "fatal"
)

// order is the happy path; Fatal is reachable from any phase after Init.
var order = []Phase{
	PhaseInit,
	PhasePass1,
	PhaseErrorGate,
	PhaseBibliography,
	PhaseIndex,
	PhaseTocGate,
	PhaseExtraPasses,
	PhaseFormatConvert,
	PhaseDone,
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFatal
}

// Next returns the phase that follows p on the happy path.
func (p Phase) Next() (Phase, bool) {
	for i, phase := range order {
		if phase == p && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// CanTransition reports whether from -> to is a legal move. The error gate
// re-enters itself after each extra pass.
func CanTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseFatal {
		return from != PhaseInit
	}
	if from == PhaseExtraPasses && to == PhaseErrorGate {
		return true
	}
	if from == PhaseErrorGate && to == PhaseExtraPasses {
		return true
	}
	if from == PhaseErrorGate && to == PhaseFormatConvert {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// Signal names one reason for an extra pass.
type Signal string

const (
	SignalBibliography Signal = "bibliography"
	SignalIndex        Signal = "index"
	SignalToc          Signal = "toc"
	SignalRerunHint    Signal = "rerun-hint"
)

// Signals are the independently computed extra-pass demands.
type Signals struct {
	Bibliography int
	Index        int
	TocChanged   bool
}

// Required is the maximum of the individual demands. One pass absorbs every
// change at once because they all feed the same next pass.
func (s Signals) Required() int {
	n := s.Bibliography
	if s.Index > n {
		n = s.Index
	}
	if s.TocChanged && n < 1 {
		n = 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// Reasons lists the signals that asked for at least one pass, sorted.
func (s Signals) Reasons() []Signal {
	var out []Signal
	if s.Bibliography > 0 {
		out = append(out, SignalBibliography)
	}
	if s.Index > 0 {
		out = append(out, SignalIndex)
	}
	if s.TocChanged {
		out = append(out, SignalToc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultMaxPasses bounds total main-processor passes, pass 1 included.
const DefaultMaxPasses = 5

// PassPlan is the engine's working state for one compile.
type PassPlan struct {
	// CurrentPass counts main-processor passes run so far.
	CurrentPass int
	// MaxPasses bounds CurrentPass.
	MaxPasses int
	Signals   Signals
}

// NewPlan returns a plan bounded by maxPasses (DefaultMaxPasses when <= 0).
func NewPlan(maxPasses int) PassPlan {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	return PassPlan{MaxPasses: maxPasses}
}

// ExtraPasses is the number of passes to run after the satellite phases,
// clipped so the plan never exceeds MaxPasses.
func (p PassPlan) ExtraPasses() int {
	n := p.Signals.Required()
	if room := p.Remaining(); n > room {
		n = room
	}
	return n
}

// Remaining is how many more passes the bound allows.
func (p PassPlan) Remaining() int {
	if room := p.MaxPasses - p.CurrentPass; room > 0 {
		return room
	}
	return 0
}

// Advance records one more main-processor pass.
func (p *PassPlan) Advance() error {
	if p.Remaining() == 0 {
		return fmt.Errorf("scheduler: pass bound %d reached", p.MaxPasses)
	}
	p.CurrentPass++
	return nil
}
