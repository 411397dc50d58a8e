package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/texloop/internal/workflow/engine"
	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

var (
	colorAccent = lipgloss.Color("#5B8DEF")

	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	styleBody  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	styleHead  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	styleFatal = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	styleBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

var phaseLabels = map[scheduler.Phase]string{
	scheduler.PhaseInit:          "Preparing",
	scheduler.PhasePass1:         "First pass",
	scheduler.PhaseErrorGate:     "Checking log",
	scheduler.PhaseBibliography:  "Bibliography",
	scheduler.PhaseIndex:         "Index",
	scheduler.PhaseTocGate:       "Table of contents",
	scheduler.PhaseExtraPasses:   "Extra passes",
	scheduler.PhaseFormatConvert: "Converting",
	scheduler.PhaseDone:          "Done",
	scheduler.PhaseFatal:         "Failed",
}

func phaseLabel(p scheduler.Phase) string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return string(p)
}

// FormatEvent renders one event as a single plain line.
func FormatEvent(ev engine.Event) string {
	if ev.Pass > 0 {
		return fmt.Sprintf("[%s #%d] %s", ev.Phase, ev.Pass, ev.Message)
	}
	return fmt.Sprintf("[%s] %s", ev.Phase, ev.Message)
}

// RenderOutcome summarizes a finished compile.
func RenderOutcome(out engine.Outcome) string {
	var lines []string
	if out.Converged() {
		head := styleOK.Render(fmt.Sprintf("✓ compiled in %d pass(es)", out.Passes))
		if !out.Settled {
			head += " " + styleWarn.Render("(pass bound reached)")
		}
		lines = append(lines, head)
		if out.BibliographyNote != "" {
			lines = append(lines, styleBody.Render("  bibliography: "+out.BibliographyNote))
		}
		if out.IndexNote != "" {
			lines = append(lines, styleBody.Render("  index: "+out.IndexNote))
		}
		if out.OutputPath != "" {
			lines = append(lines, styleMuted.Render("  output: "+out.OutputPath))
		}
		return strings.Join(lines, "\n")
	}
	lines = append(lines, styleFatal.Render(fmt.Sprintf("✗ %s: %s", out.Failure, out.Reason)))
	if out.Excerpt != "" {
		lines = append(lines, styleBox.Render(out.Excerpt))
	}
	if out.LogPath != "" {
		lines = append(lines, styleMuted.Render("  full log: "+out.LogPath))
	}
	return strings.Join(lines, "\n")
}

// RenderStatus shows the last persisted run and the journal tail.
func RenderStatus(state engine.State, journalPath string, tail []string, total int) string {
	head := styleHead.Render(fmt.Sprintf("LAST RUN · %s", state.RunID))
	meta := styleBody.Render(fmt.Sprintf("%s with %s, finished %s (%s)",
		state.Project,
		state.Program,
		state.FinishedAt.Local().Format(time.DateTime),
		state.Elapsed().Round(time.Millisecond),
	))
	sections := []string{styleBox.Render(head + "\n" + meta + "\n\n" + RenderOutcome(state.Outcome))}
	if len(tail) > 0 {
		name := filepath.Base(journalPath)
		if name == "." || name == "" {
			name = "journal"
		}
		logHead := styleHead.Render(fmt.Sprintf("LOG · %s (%d of %d)", name, len(tail), total))
		sections = append(sections, styleBox.Render(logHead+"\n"+styleBody.Render(strings.Join(tail, "\n"))))
	}
	return strings.Join(sections, "\n")
}
