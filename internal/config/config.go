// internal/config/config.go
//
// This package handles configuration and the .texloop directory structure.
// Every project compiled by texloop gets a .texloop/ folder next to its root
// source file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// StateDirName is the name of the directory we create in each project
	StateDirName = ".texloop"

	defaultProgram   = "pdflatex"
	defaultMaxPasses = 5
	minMaxPasses     = 2
	maxMaxPasses     = 10
	defaultDebounce  = 300 * time.Millisecond
)

const defaultProjectConfigYAML = `# texloop project configuration
version: 1

# Main typesetting processor: pdflatex, xelatex, lualatex, latex, platex or uplatex.
# A "% !TEX program = ..." magic comment in the root source overrides this.
program: pdflatex

# Extra arguments passed to the processor before the source file.
program_args:
  - -interaction=nonstopmode
  - -file-line-error
  - -synctex=1

bibliography:
  biber: biber
  bibtex: bibtex

index:
  makeindex: makeindex
  # nomenclature style file handed to makeindex for .nlo inputs
  nomencl_style: nomencl.ist

convert:
  # used when the processor emits DVI (latex, platex, uplatex)
  dvipdf: dvipdfmx

# Where the final PDF and auxiliary artifacts are parked between runs.
# Relative paths resolve against the project directory; empty means in place.
output_dir: ""
aux_dir: ""

# Upper bound on main-processor passes per compile, including the first.
max_passes: 5

# Keep running passes while the processor log asks for a rerun.
follow_rerun_hints: true

watch:
  debounce: 300ms
  ignore:
    - .git
    - .texloop
`

// BibliographyConfig names the bibliography backend executables.
type BibliographyConfig struct {
	Biber  string `yaml:"biber"`
	BibTeX string `yaml:"bibtex"`
}

// IndexConfig names the index tool and its nomenclature style.
type IndexConfig struct {
	MakeIndex    string `yaml:"makeindex"`
	NomenclStyle string `yaml:"nomencl_style,omitempty"`
}

// ConvertConfig names the DVI to PDF converter.
type ConvertConfig struct {
	DVIPDF string `yaml:"dvipdf"`
}

// WatchConfig captures watch mode preferences.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore,omitempty"`
}

// ProjectConfig models .texloop/config.yaml.
type ProjectConfig struct {
	Version          int                `yaml:"version"`
	Program          string             `yaml:"program"`
	ProgramArgs      []string           `yaml:"program_args,omitempty"`
	Bibliography     BibliographyConfig `yaml:"bibliography"`
	Index            IndexConfig        `yaml:"index"`
	Convert          ConvertConfig      `yaml:"convert"`
	OutputDir        string             `yaml:"output_dir,omitempty"`
	AuxDir           string             `yaml:"aux_dir,omitempty"`
	MaxPasses        int                `yaml:"max_passes"`
	FollowRerunHints *bool              `yaml:"follow_rerun_hints,omitempty"`
	Watch            WatchConfig        `yaml:"watch"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory holding the root source; processors run here.
	ProjectDir string

	// StateDir is ProjectDir/.texloop
	StateDir string

	// Source is the root .tex file, relative to ProjectDir.
	Source string

	Project ProjectConfig
}

// InitStateDir creates the .texloop directory structure in the given project
// directory and writes the default config when none exists.
//
// Structure created:
// .texloop/
// ├── config.yaml
// ├── logs/    <- texloop.log (diagnostics) and compile.log (journal)
// └── state/   <- last-run.json
func InitStateDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, StateDirName)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a Config for the root source file, layering the project
// config file over the defaults. Magic comments and CLI overrides are applied
// separately by the caller.
func NewConfig(source string) (*Config, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("config: source file is required")
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", source, err)
	}
	if filepath.Ext(abs) == "" {
		abs += ".tex"
	}
	projectDir := filepath.Dir(abs)
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, StateDirName),
		Source:     filepath.Base(abs),
		Project:    DefaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectName returns the root source name without its extension; every
// processor artifact is named after it.
func (c *Config) ProjectName() string {
	return strings.TrimSuffix(c.Source, filepath.Ext(c.Source))
}

// SourcePath returns the absolute path of the root source file.
func (c *Config) SourcePath() string {
	return filepath.Join(c.ProjectDir, c.Source)
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the compile journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "compile.log")
}

// LastRunPath returns the path of the persisted engine state.
func (c *Config) LastRunPath() string {
	return filepath.Join(c.StateDir, "state", "last-run.json")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	return c.dirOrProject(c.Project.OutputDir)
}

// AuxDir returns the absolute auxiliary directory.
func (c *Config) AuxDir() string {
	return c.dirOrProject(c.Project.AuxDir)
}

// FollowRerunHints reports whether extra passes follow processor rerun hints.
func (c *Config) FollowRerunHints() bool {
	if c.Project.FollowRerunHints == nil {
		return true
	}
	return *c.Project.FollowRerunHints
}

// Program resolves the configured processor.
func (c *Config) Program() (Program, error) {
	return LookupProgram(c.Project.Program)
}

func (c *Config) dirOrProject(dir string) string {
	if dir == "" {
		return c.ProjectDir
	}
	return dir
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

// DefaultProjectConfig returns the settings used when no config file exists.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:     1,
		Program:     defaultProgram,
		ProgramArgs: []string{"-interaction=nonstopmode", "-file-line-error", "-synctex=1"},
		Bibliography: BibliographyConfig{
			Biber:  "biber",
			BibTeX: "bibtex",
		},
		Index: IndexConfig{
			MakeIndex:    "makeindex",
			NomenclStyle: "nomencl.ist",
		},
		Convert:   ConvertConfig{DVIPDF: "dvipdfmx"},
		MaxPasses: defaultMaxPasses,
		Watch: WatchConfig{
			Debounce: defaultDebounce,
			Ignore:   []string{".git", StateDirName},
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	defaults := DefaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Program) == "" {
		pc.Program = defaults.Program
	}
	if pc.Bibliography.Biber == "" {
		pc.Bibliography.Biber = defaults.Bibliography.Biber
	}
	if pc.Bibliography.BibTeX == "" {
		pc.Bibliography.BibTeX = defaults.Bibliography.BibTeX
	}
	if pc.Index.MakeIndex == "" {
		pc.Index.MakeIndex = defaults.Index.MakeIndex
	}
	if pc.Convert.DVIPDF == "" {
		pc.Convert.DVIPDF = defaults.Convert.DVIPDF
	}
	if pc.MaxPasses == 0 {
		pc.MaxPasses = defaults.MaxPasses
	}
	if pc.Watch.Debounce <= 0 {
		pc.Watch.Debounce = defaults.Watch.Debounce
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Program = strings.ToLower(strings.TrimSpace(pc.Program))
	pc.OutputDir = resolvePath(base, pc.OutputDir)
	pc.AuxDir = resolvePath(base, pc.AuxDir)
	args := pc.ProgramArgs[:0]
	for _, arg := range pc.ProgramArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	pc.ProgramArgs = args
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if _, err := LookupProgram(pc.Program); err != nil {
		return err
	}
	if pc.MaxPasses < minMaxPasses || pc.MaxPasses > maxMaxPasses {
		return fmt.Errorf("max_passes must be between %d and %d", minMaxPasses, maxMaxPasses)
	}
	return nil
}

// Validate re-checks the config after overrides were applied.
func (c *Config) Validate() error {
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
