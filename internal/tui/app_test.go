package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/texloop/internal/workflow/engine"
	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

func update(t *testing.T, app App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := app.Update(msg)
	next, ok := model.(App)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	return next, cmd
}

func TestEventsUpdatePhaseAndTrimHistory(t *testing.T) {
	app := NewApp("paper.tex", 5, nil)
	for i := 1; i <= maxEventLines+3; i++ {
		app, _ = update(t, app, EventMsg{Phase: scheduler.PhaseExtraPasses, Pass: 2, Message: "running pdflatex"})
	}
	if app.phase != scheduler.PhaseExtraPasses || app.pass != 2 {
		t.Fatalf("phase %s pass %d", app.phase, app.pass)
	}
	if len(app.events) != maxEventLines {
		t.Fatalf("expected %d events, got %d", maxEventLines, len(app.events))
	}
	view := app.View()
	if !strings.Contains(view, "Extra passes") || !strings.Contains(view, "pass 2/5") {
		t.Fatalf("view missing progress:\n%s", view)
	}
}

func TestDoneQuitsAndKeepsOutcome(t *testing.T) {
	app := NewApp("paper.tex", 5, nil)
	if _, err := app.Outcome(); err != ErrNoResult {
		t.Fatalf("expected ErrNoResult before completion, got %v", err)
	}
	want := engine.Outcome{Kind: engine.OutcomeConverged, Passes: 3, Settled: true, BibliographyNote: "biber: no citation change"}
	app, cmd := update(t, app, DoneMsg{Outcome: want})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	got, err := app.Outcome()
	if err != nil || got.Passes != 3 {
		t.Fatalf("outcome %+v err %v", got, err)
	}
	if !strings.Contains(app.View(), "compiled in 3 pass(es)") {
		t.Fatalf("view:\n%s", app.View())
	}
}

func TestCtrlCCancelsOnce(t *testing.T) {
	calls := 0
	app := NewApp("paper.tex", 5, func() { calls++ })
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 || !app.cancelling {
		t.Fatalf("cancel calls = %d cancelling = %v", calls, app.cancelling)
	}
	if !strings.Contains(app.View(), "cancelling") {
		t.Fatalf("view should show cancellation")
	}
}

func TestRenderOutcomeFatal(t *testing.T) {
	out := engine.Outcome{
		Kind:    engine.OutcomeFatal,
		Failure: engine.FailureCompiler,
		Reason:  "pdflatex reported a fatal error in pass 1",
		Excerpt: "! Undefined control sequence. l.12 \\foo",
		LogPath: "/tmp/build/paper.log",
	}
	rendered := RenderOutcome(out)
	for _, want := range []string{"fatal-compiler-error", "Undefined control sequence", "/tmp/build/paper.log"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered outcome missing %q:\n%s", want, rendered)
		}
	}
}

func TestRenderStatusIncludesJournal(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := engine.State{
		RunID:      "run-1",
		Project:    "paper",
		Program:    "pdflatex",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcome:    engine.Outcome{Kind: engine.OutcomeConverged, Passes: 2, Settled: true},
	}
	rendered := RenderStatus(state, "/p/.texloop/logs/compile.log", []string{"line a", "line b"}, 40)
	for _, want := range []string{"run-1", "paper with pdflatex", "1.5s", "compile.log (2 of 40)", "line b"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("status missing %q:\n%s", want, rendered)
		}
	}
}
