package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/texloop/internal/artifact"
	"github.com/kingrea/texloop/internal/bibliography"
	"github.com/kingrea/texloop/internal/citation"
	"github.com/kingrea/texloop/internal/index"
	"github.com/kingrea/texloop/internal/logscan"
	"github.com/kingrea/texloop/internal/runner"
	"github.com/kingrea/texloop/internal/toc"
	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

const excerptLines = 12

// compilation owns the snapshots and pass plan of a single Compile call.
type compilation struct {
	e      *Engine
	req    Request
	layout artifact.Layout
	store  *artifact.Store
	plan   scheduler.PassPlan
	phase  scheduler.Phase
	state  State

	lastLog   string
	lastExit  int
	lastClass logscan.Classification
	// auxBefore and auxAfter bracket the most recent pass.
	auxBefore string
	auxAfter  string
}

func (e *Engine) newCompilation(req Request) *compilation {
	return &compilation{
		e:      e,
		req:    req,
		layout: req.Layout(),
		store:  artifact.NewStore(req.Layout()),
		plan:   scheduler.NewPlan(req.MaxPasses),
		state: State{
			RunID:     e.newRunID(),
			Project:   req.Project(),
			Program:   req.Program.Name,
			MaxPasses: req.MaxPasses,
			StartedAt: e.now(),
		},
	}
}

func (c *compilation) execute(ctx context.Context) Outcome {
	c.enter(scheduler.PhaseInit, "capturing auxiliary state")
	auxPath := c.store.Path(artifact.Aux)
	priorCites := citation.Capture(auxPath)
	priorIndex := artifact.CaptureFingerprints(index.InputPaths(c.layout)...)
	priorTOC := toc.Take(c.store.Path(artifact.TOC))

	c.enter(scheduler.PhasePass1, "first pass")
	if out, ok := c.pass(ctx); !ok {
		return out
	}
	if out, ok := c.gate(); !ok {
		return out
	}
	if !c.store.Exists(artifact.Aux) {
		c.warn("%s was not produced by the first pass", filepath.Base(auxPath))
	}

	c.enter(scheduler.PhaseBibliography, "resolving bibliography")
	bib := bibliography.Resolve(bibliography.Request{
		RootAux:     auxPath,
		ControlFile: c.store.Path(artifact.BCF),
		SourceDir:   c.req.WorkDir,
		Prior:       priorCites,
		Log:         c.lastLog,
	})
	c.status(bib.Status, bib.Warning)
	if bib.RunBackend() {
		exe := c.req.Tools.BibTeX
		if bib.State.Backend == bibliography.BackendBiber {
			exe = c.req.Tools.Biber
		}
		if out, ok := c.tool(ctx, exe, []string{c.layout.Project}); !ok {
			return out
		}
	}

	c.enter(scheduler.PhaseIndex, "resolving index channels")
	idx := index.Resolve(index.Request{
		Layout: c.layout,
		Prior:  priorIndex,
		Log:    c.lastLog,
		Tools:  c.req.Tools.Index,
	})
	c.status(idx.Status, false)
	for _, cmd := range idx.Commands {
		if out, ok := c.tool(ctx, cmd.Executable, cmd.Args); !ok {
			return out
		}
	}

	c.enter(scheduler.PhaseTocGate, "checking table of contents")
	tocChanged := toc.Changed(c.store.Path(artifact.TOC), priorTOC)

	c.plan.Signals = scheduler.Signals{
		Bibliography: bib.ExtraPasses,
		Index:        idx.ExtraPasses(),
		TocChanged:   tocChanged,
	}
	for _, reason := range c.plan.Signals.Reasons() {
		c.state.Signals = append(c.state.Signals, string(reason))
	}
	extra := c.plan.ExtraPasses()
	c.enter(scheduler.PhaseExtraPasses, c.planMessage(extra))
	for i := 0; i < extra; i++ {
		if out, ok := c.extraPass(ctx); !ok {
			return out
		}
	}
	for c.followHint() {
		c.state.Signals = appendOnce(c.state.Signals, string(scheduler.SignalRerunHint))
		c.status(fmt.Sprintf("rerun requested: %s", strings.Join(c.lastClass.RerunSignals, "; ")), false)
		if out, ok := c.extraPass(ctx); !ok {
			return out
		}
	}
	atBound := c.plan.Remaining() == 0
	settled := !atBound || !c.lastClass.NeedsRerun() || c.auxBefore == c.auxAfter
	if !settled {
		c.warn("pass bound %d reached while the processor still asks for a rerun", c.plan.MaxPasses)
	}

	if c.req.Program.Intermediate {
		c.enter(scheduler.PhaseFormatConvert, "converting DVI to PDF")
		if out, ok := c.tool(ctx, c.req.Tools.DVIPDF, []string{c.layout.Name(artifact.DVI.Suffix)}); !ok {
			return out
		}
	} else {
		c.enter(scheduler.PhaseFormatConvert, "no conversion needed")
	}

	c.enter(scheduler.PhaseDone, fmt.Sprintf("finished after %d passes", c.plan.CurrentPass))
	return Outcome{
		Kind:              OutcomeConverged,
		Passes:            c.plan.CurrentPass,
		BibliographyState: bib.State.String(),
		BibliographyNote:  bib.Status,
		IndexNote:         idx.Status,
		Settled:           settled,
	}
}

// followHint reports whether another pass should run on the processor's own
// request. A hint is ignored once a pass left the aux file untouched, which
// is the case for references that can never resolve.
func (c *compilation) followHint() bool {
	if !c.req.FollowRerunHints || !c.lastClass.NeedsRerun() {
		return false
	}
	if c.plan.Remaining() == 0 {
		return false
	}
	return c.auxBefore != c.auxAfter
}

func (c *compilation) planMessage(extra int) string {
	reasons := c.plan.Signals.Reasons()
	if extra == 0 {
		return "no extra passes required"
	}
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	msg := fmt.Sprintf("%d extra pass(es) for %s", extra, strings.Join(names, ", "))
	if required := c.plan.Signals.Required(); required > extra {
		msg += fmt.Sprintf(" (clipped from %d by the pass bound)", required)
	}
	return msg
}

func (c *compilation) extraPass(ctx context.Context) (Outcome, bool) {
	if c.phase != scheduler.PhaseExtraPasses {
		c.enter(scheduler.PhaseExtraPasses, fmt.Sprintf("pass %d", c.plan.CurrentPass+1))
	}
	if out, ok := c.pass(ctx); !ok {
		return out, false
	}
	return c.gate()
}

// pass runs the main processor once.
func (c *compilation) pass(ctx context.Context) (Outcome, bool) {
	if err := ctx.Err(); err != nil {
		return c.fatal(FailureToolInvocation, fmt.Sprintf("compile interrupted before pass %d: %v", c.plan.CurrentPass+1, err), ""), false
	}
	if err := c.plan.Advance(); err != nil {
		// callers check Remaining first; reaching this is a scheduling bug
		return c.fatal(FailureToolInvocation, err.Error(), ""), false
	}
	c.auxBefore, _ = c.store.Read(artifact.Aux)
	args := append(append([]string(nil), c.req.ProgramArgs...), c.req.Source)
	out, err := c.invoke(ctx, c.req.Program.Executable, args)
	c.auxAfter, _ = c.store.Read(artifact.Aux)
	if err != nil {
		return c.fatal(FailureToolInvocation, err.Error(), ""), false
	}
	c.lastLog = out.Output
	c.lastExit = out.ExitCode
	return Outcome{}, true
}

// gate classifies the last processor log.
func (c *compilation) gate() (Outcome, bool) {
	c.enter(scheduler.PhaseErrorGate, fmt.Sprintf("checking log of pass %d", c.plan.CurrentPass))
	c.lastClass = logscan.Classify(c.lastLog)
	if c.lastClass.HasFatal() {
		reason := fmt.Sprintf("%s reported a fatal error in pass %d", c.req.Program.Name, c.plan.CurrentPass)
		return c.fatal(FailureCompiler, reason, c.lastClass.Excerpt()), false
	}
	if c.lastExit != 0 {
		reason := fmt.Sprintf("%s exited with status %d in pass %d", c.req.Program.Name, c.lastExit, c.plan.CurrentPass)
		return c.fatal(FailureToolInvocation, reason, tailLines(c.lastLog, excerptLines)), false
	}
	return Outcome{}, true
}

// tool runs a satellite tool; a non-zero exit is fatal.
func (c *compilation) tool(ctx context.Context, executable string, args []string) (Outcome, bool) {
	out, err := c.invoke(ctx, executable, args)
	if err != nil {
		return c.fatal(FailureToolInvocation, err.Error(), ""), false
	}
	if !out.Success() {
		reason := fmt.Sprintf("%s exited with status %d", runner.CommandLine(executable, args), out.ExitCode)
		return c.fatal(FailureToolInvocation, reason, tailLines(out.Output, excerptLines)), false
	}
	return Outcome{}, true
}

func (c *compilation) invoke(ctx context.Context, executable string, args []string) (runner.Outcome, error) {
	line := runner.CommandLine(executable, args)
	c.emit(fmt.Sprintf("running %s", line))
	out, err := c.e.runner.Run(ctx, executable, args, c.req.WorkDir)
	inv := Invocation{
		Phase:    c.phase,
		Pass:     c.plan.CurrentPass,
		Command:  line,
		ExitCode: out.ExitCode,
		Elapsed:  out.Elapsed,
	}
	if err != nil {
		inv.Error = err.Error()
		if errors.Is(err, runner.ErrLaunch) {
			err = fmt.Errorf("cannot start %s: %w", executable, err)
		}
		c.e.journal.Error("%s failed: %v", line, err)
	} else {
		c.e.journal.Info("%s exited %d after %s", line, out.ExitCode, out.Elapsed.Round(time.Millisecond))
	}
	c.state.Invocations = append(c.state.Invocations, inv)
	return out, err
}

func (c *compilation) fatal(kind FailureKind, reason, excerpt string) Outcome {
	c.enter(scheduler.PhaseFatal, reason)
	if excerpt != "" {
		c.e.journal.Error("%s", excerpt)
	}
	return Outcome{
		Kind:    OutcomeFatal,
		Passes:  c.plan.CurrentPass,
		Failure: kind,
		Reason:  reason,
		Excerpt: excerpt,
	}
}

// enter moves the state machine and announces the new phase.
func (c *compilation) enter(phase scheduler.Phase, message string) {
	if c.phase != "" && c.phase != phase && !scheduler.CanTransition(c.phase, phase) {
		c.e.journal.Warn("unexpected transition %s -> %s", c.phase, phase)
	}
	c.phase = phase
	c.state.Phase = phase
	c.emit(message)
}

func (c *compilation) emit(message string) {
	ev := Event{Phase: c.phase, Pass: c.plan.CurrentPass, Message: message, At: c.e.now()}
	if c.phase == scheduler.PhaseFatal {
		c.e.journal.Error("[%s] %s", ev.Phase, message)
	} else {
		c.e.journal.Info("[%s] %s", ev.Phase, message)
	}
	if c.e.observer != nil {
		c.e.observer(ev)
	}
}

func (c *compilation) status(message string, warning bool) {
	if message == "" {
		return
	}
	if warning {
		c.warn("%s", message)
		return
	}
	c.emit(message)
}

func (c *compilation) warn(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	c.e.journal.Warn("[%s] %s", c.phase, message)
	if c.e.observer != nil {
		c.e.observer(Event{Phase: c.phase, Pass: c.plan.CurrentPass, Message: "warning: " + message, At: c.e.now()})
	}
}

func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func appendOnce(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
