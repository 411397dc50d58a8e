package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "thesis.tex", "\\documentclass{article}\n")
	c, err := NewConfig(source)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Program != "pdflatex" {
		t.Fatalf("expected pdflatex, got %q", c.Project.Program)
	}
	if c.ProjectName() != "thesis" {
		t.Fatalf("project name = %q", c.ProjectName())
	}
	if c.AuxDir() != projectDir || c.OutputDir() != projectDir {
		t.Fatalf("expected dirs to default to project dir, got %s / %s", c.AuxDir(), c.OutputDir())
	}
	if !c.FollowRerunHints() {
		t.Fatalf("rerun hints should default to on")
	}
}

func TestNewConfigAddsTexExtension(t *testing.T) {
	projectDir := t.TempDir()
	writeSource(t, projectDir, "paper.tex", "")
	c, err := NewConfig(filepath.Join(projectDir, "paper"))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.Source != "paper.tex" {
		t.Fatalf("source = %q", c.Source)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "main.tex", "")
	stateDir := filepath.Join(projectDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
program: LuaLaTeX
program_args:
  - -interaction=batchmode
  - "  "
bibliography:
  biber: /opt/tex/bin/biber
output_dir: build
aux_dir: build/aux
max_passes: 4
follow_rerun_hints: false
watch:
  debounce: 1s
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(source)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Program != "lualatex" {
		t.Fatalf("program = %q", c.Project.Program)
	}
	if len(c.Project.ProgramArgs) != 1 || c.Project.ProgramArgs[0] != "-interaction=batchmode" {
		t.Fatalf("program args = %#v", c.Project.ProgramArgs)
	}
	if c.Project.Bibliography.Biber != "/opt/tex/bin/biber" || c.Project.Bibliography.BibTeX != "bibtex" {
		t.Fatalf("bibliography = %+v", c.Project.Bibliography)
	}
	if want := filepath.Join(projectDir, "build"); c.OutputDir() != want {
		t.Fatalf("output dir = %s, want %s", c.OutputDir(), want)
	}
	if want := filepath.Join(projectDir, "build", "aux"); c.AuxDir() != want {
		t.Fatalf("aux dir = %s, want %s", c.AuxDir(), want)
	}
	if c.Project.MaxPasses != 4 {
		t.Fatalf("max passes = %d", c.Project.MaxPasses)
	}
	if c.FollowRerunHints() {
		t.Fatalf("expected rerun hints disabled")
	}
	if c.Project.Watch.Debounce != time.Second {
		t.Fatalf("debounce = %s", c.Project.Watch.Debounce)
	}
}

func TestLoadProjectConfigRejectsUnknownProgram(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "main.tex", "")
	stateDir := filepath.Join(projectDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("program: troff\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewConfig(source)
	if !errors.Is(err, ErrUnknownProgram) {
		t.Fatalf("expected ErrUnknownProgram, got %v", err)
	}
}

func TestLoadProjectConfigRejectsPassBound(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "main.tex", "")
	stateDir := filepath.Join(projectDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("max_passes: 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(source); err == nil || !strings.Contains(err.Error(), "max_passes") {
		t.Fatalf("expected max_passes error, got %v", err)
	}
}

func TestInitStateDirWritesDefaultConfigOnce(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitStateDir(projectDir); err != nil {
		t.Fatalf("InitStateDir: %v", err)
	}
	path := filepath.Join(projectDir, StateDirName, "config.yaml")
	if err := os.WriteFile(path, []byte("program: xelatex\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitStateDir(projectDir); err != nil {
		t.Fatalf("second InitStateDir: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "program: xelatex\n" {
		t.Fatalf("existing config overwritten: %q", data)
	}
	for _, dir := range []string{"logs", "state"} {
		if info, err := os.Stat(filepath.Join(projectDir, StateDirName, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s dir: %v", dir, err)
		}
	}
}

func TestDefaultConfigTemplateParses(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "main.tex", "")
	if err := InitStateDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(source)
	if err != nil {
		t.Fatalf("default template should parse: %v", err)
	}
	if c.Project.Index.NomenclStyle != "nomencl.ist" {
		t.Fatalf("nomencl style = %q", c.Project.Index.NomenclStyle)
	}
}

func TestMagicCommentsAndOverrides(t *testing.T) {
	projectDir := t.TempDir()
	source := writeSource(t, projectDir, "main.tex", strings.Join([]string{
		"% !TEX program = XeLaTeX",
		"%!TEX aux_directory = .aux",
		"",
		"\\documentclass{article}",
		"% !TEX program = lualatex",
	}, "\n"))
	magic, err := ExtractMagic(source)
	if err != nil {
		t.Fatalf("ExtractMagic: %v", err)
	}
	if magic.Program != "xelatex" {
		t.Fatalf("magic program = %q", magic.Program)
	}
	c, err := NewConfig(source)
	if err != nil {
		t.Fatal(err)
	}
	c.ApplyMagic(magic)
	if c.Project.Program != "xelatex" {
		t.Fatalf("program after magic = %q", c.Project.Program)
	}
	if want := filepath.Join(projectDir, ".aux"); c.AuxDir() != want {
		t.Fatalf("aux dir = %s", c.AuxDir())
	}
	program := "uplatex"
	passes := 3
	c.ApplyOverrides(Overrides{Program: &program, MaxPasses: &passes})
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	prog, err := c.Program()
	if err != nil {
		t.Fatal(err)
	}
	if !prog.Intermediate || prog.Executable != "uplatex" {
		t.Fatalf("unexpected program %+v", prog)
	}
	if c.Project.MaxPasses != 3 {
		t.Fatalf("max passes = %d", c.Project.MaxPasses)
	}
}
