// Package runner executes external tools (the typesetting processor, the
// bibliography backends, index tools and the DVI converter) and captures
// their combined output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrLaunch is wrapped when an executable cannot be started at all.
var ErrLaunch = errors.New("runner: launch failed")

// Outcome is the result of one tool invocation. A non-zero exit code is an
// Outcome, not an error.
type Outcome struct {
	ExitCode int
	Output   string
	Elapsed  time.Duration
}

// Success reports a zero exit code.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Runner handles external process execution. Implementations block until
// the process exits.
type Runner interface {
	Run(ctx context.Context, executable string, args []string, dir string) (Outcome, error)
}

// Exec runs tools with os/exec.
type Exec struct {
	// Env is appended to the inherited environment.
	Env []string
	// Echo, when set, receives output while the tool runs (interactive
	// mode). Output is captured either way.
	Echo io.Writer
	// Stdin is connected to the tool; nil means no input, which keeps
	// processors from waiting on a prompt after an error.
	Stdin io.Reader

	clock func() time.Time
}

// New returns an Exec runner.
func New() *Exec {
	return &Exec{clock: time.Now}
}

// Run executes executable with args inside dir. Cancelling ctx kills the
// process; the engine itself never sets a deadline.
func (e *Exec) Run(ctx context.Context, executable string, args []string, dir string) (Outcome, error) {
	if strings.TrimSpace(executable) == "" {
		return Outcome{ExitCode: -1}, fmt.Errorf("%w: empty executable", ErrLaunch)
	}
	clock := e.clock
	if clock == nil {
		clock = time.Now
	}
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	cmd.Stdin = e.Stdin
	var buf bytes.Buffer
	var sink io.Writer = &buf
	if e.Echo != nil {
		sink = io.MultiWriter(&buf, e.Echo)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	start := clock()
	err := cmd.Run()
	outcome := Outcome{Output: buf.String(), Elapsed: clock().Sub(start)}
	if err == nil {
		return outcome, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	outcome.ExitCode = -1
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, fmt.Errorf("runner: %s interrupted: %w", executable, ctxErr)
	}
	return outcome, fmt.Errorf("%w: %s: %v", ErrLaunch, executable, err)
}

// CommandLine renders an invocation for logs.
func CommandLine(executable string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, executable)
	for _, arg := range args {
		if strings.ContainsAny(arg, " \t") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
