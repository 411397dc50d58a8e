// internal/tui/app.go
//
// Progress view for a running compile. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: the compile progress (phase, pass, recent events)
// 2. Update: engine events and key presses arrive as messages
// 3. View: renders the model to a string
//
// The engine runs in its own goroutine and forwards events with
// Program.Send; the model never calls into the engine.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/texloop/internal/workflow/engine"
	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

const maxEventLines = 8

// ErrNoResult is returned when the program exits before the compile reports.
var ErrNoResult = errors.New("tui: compile did not report a result")

// EventMsg carries one engine event into the program.
type EventMsg engine.Event

// DoneMsg reports the end of the compile.
type DoneMsg struct {
	Outcome engine.Outcome
	Err     error
}

// App is the compile progress model.
type App struct {
	title     string
	maxPasses int
	spinner   spinner.Model
	cancel    context.CancelFunc

	phase      scheduler.Phase
	pass       int
	events     []string
	width      int
	cancelling bool

	done    bool
	outcome engine.Outcome
	err     error
}

// NewApp creates the model. cancel is invoked when the user presses ctrl+c;
// the model keeps running until the compile reports back.
func NewApp(title string, maxPasses int, cancel context.CancelFunc) App {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(colorAccent)),
	)
	return App{
		title:     title,
		maxPasses: maxPasses,
		spinner:   s,
		cancel:    cancel,
		phase:     scheduler.PhaseInit,
	}
}

// Init starts the spinner.
func (a App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update handles engine events, the final result and key presses.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case EventMsg:
		a.phase = m.Phase
		a.pass = m.Pass
		a.events = append(a.events, FormatEvent(engine.Event(m)))
		if len(a.events) > maxEventLines {
			a.events = a.events[len(a.events)-maxEventLines:]
		}
		return a, nil
	case DoneMsg:
		a.done = true
		a.outcome = m.Outcome
		a.err = m.Err
		if m.Outcome.Kind != "" {
			a.phase = scheduler.PhaseDone
			if !m.Outcome.Converged() {
				a.phase = scheduler.PhaseFatal
			}
		}
		return a, tea.Quit
	case tea.WindowSizeMsg:
		a.width = m.Width
		return a, nil
	case tea.KeyMsg:
		switch m.String() {
		case "ctrl+c", "q", "esc":
			if !a.cancelling && a.cancel != nil {
				a.cancelling = true
				a.cancel()
				a.events = append(a.events, "cancelling, waiting for the running tool to stop")
			}
		}
		return a, nil
	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	}
	return a, nil
}

// View renders the progress box, or the outcome once the compile is over.
func (a App) View() string {
	if a.done {
		if a.err != nil {
			return styleFatal.Render("error: "+a.err.Error()) + "\n"
		}
		return RenderOutcome(a.outcome) + "\n"
	}
	header := styleTitle.Render(fmt.Sprintf("texloop · %s", a.title))
	status := fmt.Sprintf("%s %s", a.spinner.View(), phaseLabel(a.phase))
	if a.pass > 0 {
		status += styleMuted.Render(fmt.Sprintf("  pass %d/%d", a.pass, a.maxPasses))
	}
	body := styleBody.Render(strings.Join(a.events, "\n"))
	width := a.width - 2
	if width < 40 {
		width = 40
	}
	box := styleBox.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, header, status, "", body))
	footer := styleMuted.Render("ctrl+c to cancel")
	if a.cancelling {
		footer = styleWarn.Render("cancelling…")
	}
	return box + "\n" + footer + "\n"
}

// Outcome returns what the compile reported.
func (a App) Outcome() (engine.Outcome, error) {
	if !a.done {
		return engine.Outcome{}, ErrNoResult
	}
	return a.outcome, a.err
}

// CompileFunc runs one compile, reporting progress to observe.
type CompileFunc func(ctx context.Context, observe func(engine.Event)) (engine.Outcome, error)

// Run drives compile inside a bubbletea program and returns its result.
func Run(ctx context.Context, title string, maxPasses int, compile CompileFunc, opts ...tea.ProgramOption) (engine.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	program := tea.NewProgram(NewApp(title, maxPasses, cancel), opts...)
	go func() {
		out, err := compile(ctx, func(ev engine.Event) { program.Send(EventMsg(ev)) })
		program.Send(DoneMsg{Outcome: out, Err: err})
	}()
	final, err := program.Run()
	if err != nil {
		return engine.Outcome{}, err
	}
	app, ok := final.(App)
	if !ok {
		return engine.Outcome{}, ErrNoResult
	}
	return app.Outcome()
}
