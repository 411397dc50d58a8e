package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunCapturesCombinedOutput(t *testing.T) {
	requireShell(t)
	r := New()
	var echo bytes.Buffer
	r.Echo = &echo
	outcome, err := r.Run(context.Background(), "sh", []string{"-c", "echo out; echo err 1>&2"}, t.TempDir())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !outcome.Success() {
		t.Fatalf("exit code = %d", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Output, "out") || !strings.Contains(outcome.Output, "err") {
		t.Fatalf("output = %q", outcome.Output)
	}
	if echo.String() != outcome.Output {
		t.Fatalf("echo %q differs from captured %q", echo.String(), outcome.Output)
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)
	outcome, err := New().Run(context.Background(), "sh", []string{"-c", "exit 3"}, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.ExitCode != 3 || outcome.Success() {
		t.Fatalf("exit code = %d", outcome.ExitCode)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := New().Run(context.Background(), "texloop-definitely-missing-tool", nil, "")
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
	_, err = New().Run(context.Background(), " ", nil, "")
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("expected ErrLaunch for empty executable, got %v", err)
	}
}

func TestCommandLineQuotesSpaces(t *testing.T) {
	got := CommandLine("makeindex", []string{"-o", "my book.ind", "book.idx"})
	if got != `makeindex -o "my book.ind" book.idx` {
		t.Fatalf("command line = %s", got)
	}
}
