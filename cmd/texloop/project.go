package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/texloop/internal/artifact"
	"github.com/kingrea/texloop/internal/config"
)

// loadProject resolves the root source, layers config file, magic comments
// and flags, and validates the result.
func loadProject(cmd *cobra.Command, args []string) (*config.Config, error) {
	source, err := sourceArg(args)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(source)
	if err != nil {
		return nil, err
	}
	magic, err := config.ExtractMagic(cfg.SourcePath())
	if err != nil {
		return nil, err
	}
	if magic.Root != "" {
		root := magic.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.ProjectDir, root)
		}
		if filepath.Clean(root) != cfg.SourcePath() {
			if cfg, err = config.NewConfig(root); err != nil {
				return nil, err
			}
			if magic, err = config.ExtractMagic(cfg.SourcePath()); err != nil {
				return nil, err
			}
		}
	}
	cfg.ApplyMagic(magic)
	cfg.ApplyOverrides(overridesFromFlags(cmd))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("program") {
		o.Program = &flagProgram
	}
	if flags.Changed("output-dir") {
		o.OutputDir = &flagOutputDir
	}
	if flags.Changed("aux-dir") {
		o.AuxDir = &flagAuxDir
	}
	if flags.Changed("max-passes") {
		o.MaxPasses = &flagMaxPasses
	}
	if flags.Changed("no-rerun-hints") {
		follow := !flagNoRerunHints
		o.FollowRerunHints = &follow
	}
	return o
}

// sourceArg returns the explicit argument or the single root document in the
// current directory.
func sourceArg(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	roots, err := findRoots(cwd)
	if err != nil {
		return "", err
	}
	switch len(roots) {
	case 0:
		return "", fmt.Errorf("no root document (a .tex file with \\documentclass) in %s", cwd)
	case 1:
		return filepath.Join(cwd, roots[0]), nil
	default:
		return "", fmt.Errorf("several root documents in %s (%s); name one", cwd, strings.Join(roots, ", "))
	}
}

func findRoots(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tex"))
	if err != nil {
		return nil, err
	}
	var roots []string
	for _, path := range matches {
		content, ok := artifact.ReadFile(path)
		if ok && strings.Contains(content, `\documentclass`) {
			roots = append(roots, filepath.Base(path))
		}
	}
	sort.Strings(roots)
	return roots, nil
}
