package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kingrea/texloop/internal/config"
	"github.com/kingrea/texloop/internal/logbook"
	"github.com/kingrea/texloop/internal/logging"
	"github.com/kingrea/texloop/internal/runner"
	"github.com/kingrea/texloop/internal/tui"
	"github.com/kingrea/texloop/internal/workflow/engine"
)

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(cmd, args)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	if flagVerbose {
		logger.Mirror(os.Stderr)
	}

	out, err := compileProject(cmd.Context(), cfg, logger, interactive(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if !out.Converged() {
		return errCompileFailed
	}
	return nil
}

// interactive reports whether the progress view can take over the terminal.
func interactive() bool {
	if flagPlain || flagVerbose {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// compileProject runs one compile and reports its outcome on w.
func compileProject(ctx context.Context, cfg *config.Config, logger *logging.Logger, useTUI bool, w io.Writer) (engine.Outcome, error) {
	req, err := engine.RequestFromConfig(cfg)
	if err != nil {
		return engine.Outcome{}, err
	}
	logger.Printf("compile %s with %s (max %d passes, aux %s, output %s)",
		cfg.SourcePath(), req.Program.Name, req.MaxPasses, req.AuxDir, req.OutputDir)

	var out engine.Outcome
	if useTUI {
		out, err = tui.Run(ctx, cfg.Source, req.MaxPasses, func(ctx context.Context, observe func(engine.Event)) (engine.Outcome, error) {
			eng, err := newEngine(cfg, observe, nil)
			if err != nil {
				return engine.Outcome{}, err
			}
			return eng.Compile(ctx, req)
		})
	} else {
		var echo io.Writer
		if flagVerbose {
			echo = os.Stderr
		}
		observe := func(ev engine.Event) {
			fmt.Fprintln(w, tui.FormatEvent(ev))
		}
		var eng *engine.Engine
		if eng, err = newEngine(cfg, observe, echo); err == nil {
			out, err = eng.Compile(ctx, req)
		}
		if err == nil {
			fmt.Fprintln(w, tui.RenderOutcome(out))
		}
	}
	if err != nil {
		logger.Printf("compile %s: %v", cfg.Source, err)
		return engine.Outcome{}, err
	}
	logger.Printf("compile %s: %s after %d pass(es) %s", cfg.Source, out.Kind, out.Passes, out.Reason)
	return out, nil
}

func newEngine(cfg *config.Config, observe func(engine.Event), echo io.Writer) (*engine.Engine, error) {
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return nil, err
	}
	r := runner.New()
	r.Echo = echo
	return engine.New(r,
		engine.WithJournal(journal),
		engine.WithStateStore(engine.NewRepository(cfg.LastRunPath())),
		engine.WithObserver(observe),
	)
}
