package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/texloop/internal/artifact"
	"github.com/kingrea/texloop/internal/config"
	"github.com/kingrea/texloop/internal/logbook"
	"github.com/kingrea/texloop/internal/logging"
	"github.com/kingrea/texloop/internal/relocate"
	"github.com/kingrea/texloop/internal/tui"
	"github.com/kingrea/texloop/internal/watch"
	"github.com/kingrea/texloop/internal/workflow/engine"
)

var (
	cleanAll    bool
	statusLines int

	watchCmd = &cobra.Command{
		Use:   "watch [source.tex]",
		Short: "Recompile whenever a source file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}

	cleanCmd = &cobra.Command{
		Use:   "clean [source.tex]",
		Short: "Remove auxiliary artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClean,
	}

	statusCmd = &cobra.Command{
		Use:   "status [source.tex]",
		Short: "Show the last compile and the journal tail",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}

	initCmd = &cobra.Command{
		Use:   "init [dir]",
		Short: "Create .texloop/ with a default config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
)

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "also remove the final PDF")
	statusCmd.Flags().IntVar(&statusLines, "lines", 12, "journal lines to show")
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	out := cmd.OutOrStdout()

	w, err := watch.New(cfg.ProjectDir, watch.Options{
		Debounce: cfg.Project.Watch.Debounce,
		Ignore:   cfg.Project.Watch.Ignore,
		OnError:  func(err error) { logger.Printf("watch: %v", err) },
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if cfg.OutputDir() != cfg.ProjectDir {
		w.Exclude(cfg.OutputDir())
	}
	if cfg.AuxDir() != cfg.ProjectDir {
		w.Exclude(cfg.AuxDir())
	}

	ctx := cmd.Context()
	if _, err := compileProject(ctx, cfg, logger, false, out); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s (ctrl+c to stop)\n", cfg.ProjectDir)
	return w.Run(ctx, func(ctx context.Context, changes []watch.Change) {
		names := make([]string, len(changes))
		for i, c := range changes {
			if rel, err := filepath.Rel(cfg.ProjectDir, c.Path); err == nil {
				names[i] = rel
			} else {
				names[i] = c.Path
			}
		}
		fmt.Fprintf(out, "\nchanged: %s\n", strings.Join(names, ", "))
		if _, err := compileProject(ctx, cfg, logger, false, out); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "texloop: %v\n", err)
		}
	})
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(cmd, args)
	if err != nil {
		return err
	}
	project := cfg.ProjectName()
	fs := relocate.FS{}
	dirs := uniqueDirs(cfg.ProjectDir, cfg.AuxDir())
	var removed []string
	var errs []error
	for _, dir := range dirs {
		exact := append(engine.IncludedAuxNames(dir, project), engine.AuxiliaryNames(project)...)
		names, err := fs.RemoveExact(exact, dir)
		removed = append(removed, names...)
		errs = append(errs, err)
		names, err = fs.RemoveMatching(engine.AuxiliaryPatterns(project), dir)
		removed = append(removed, names...)
		errs = append(errs, err)
	}
	if cleanAll {
		pdf := artifact.Layout{Project: project}.Name(artifact.PDF.Suffix)
		for _, dir := range uniqueDirs(cfg.ProjectDir, cfg.OutputDir()) {
			names, err := fs.RemoveExact([]string{pdf}, dir)
			removed = append(removed, names...)
			errs = append(errs, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s)\n", len(removed))
	if flagVerbose {
		for _, name := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
	}
	return errors.Join(errs...)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(cmd, args)
	if err != nil {
		return err
	}
	state, err := engine.NewRepository(cfg.LastRunPath()).Load()
	if errors.Is(err, engine.ErrStateNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "no compile recorded for %s yet\n", cfg.Source)
		return nil
	}
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}
	tail, total := journal.Tail(statusLines)
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(state, journal.Path(), tail, total))
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := config.InitStateDir(abs); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", filepath.Join(abs, config.StateDirName))
	return nil
}

func uniqueDirs(dirs ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
