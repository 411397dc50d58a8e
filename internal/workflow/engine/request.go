package engine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kingrea/texloop/internal/artifact"
	"github.com/kingrea/texloop/internal/citation"
	"github.com/kingrea/texloop/internal/config"
	"github.com/kingrea/texloop/internal/index"
	"github.com/kingrea/texloop/internal/workflow/scheduler"
)

// Tools names every satellite executable the engine may invoke.
type Tools struct {
	Biber  string
	BibTeX string
	Index  index.Tools
	DVIPDF string
}

// Request describes one compile. Nothing is read from globals.
type Request struct {
	// WorkDir is where the processor runs and writes its artifacts.
	WorkDir string
	// Source is the root file name relative to WorkDir.
	Source      string
	Program     config.Program
	ProgramArgs []string
	Tools       Tools
	// AuxDir and OutputDir default to WorkDir.
	AuxDir    string
	OutputDir string
	// MaxPasses bounds main-processor passes, the first one included.
	MaxPasses        int
	FollowRerunHints bool
}

// RequestFromConfig builds a request from a resolved project config.
func RequestFromConfig(cfg *config.Config) (Request, error) {
	if cfg == nil {
		return Request{}, fmt.Errorf("engine: config is required")
	}
	program, err := cfg.Program()
	if err != nil {
		return Request{}, fmt.Errorf("engine: %w", err)
	}
	pc := cfg.Project
	return Request{
		WorkDir:     cfg.ProjectDir,
		Source:      cfg.Source,
		Program:     program,
		ProgramArgs: append([]string(nil), pc.ProgramArgs...),
		Tools: Tools{
			Biber:  pc.Bibliography.Biber,
			BibTeX: pc.Bibliography.BibTeX,
			Index: index.Tools{
				MakeIndex:    pc.Index.MakeIndex,
				NomenclStyle: pc.Index.NomenclStyle,
			},
			DVIPDF: pc.Convert.DVIPDF,
		},
		AuxDir:           cfg.AuxDir(),
		OutputDir:        cfg.OutputDir(),
		MaxPasses:        pc.MaxPasses,
		FollowRerunHints: cfg.FollowRerunHints(),
	}, nil
}

// Project is the root source name without extension.
func (r Request) Project() string {
	return strings.TrimSuffix(r.Source, filepath.Ext(r.Source))
}

// Layout locates the project's artifacts in the working directory.
func (r Request) Layout() artifact.Layout {
	return artifact.Layout{Dir: r.WorkDir, Project: r.Project()}
}

func (r Request) normalized() (Request, error) {
	r.WorkDir = strings.TrimSpace(r.WorkDir)
	r.Source = strings.TrimSpace(r.Source)
	if r.WorkDir == "" {
		return Request{}, fmt.Errorf("engine: working directory is required")
	}
	if r.Source == "" {
		return Request{}, fmt.Errorf("engine: source file is required")
	}
	if filepath.Base(r.Source) != r.Source {
		return Request{}, fmt.Errorf("engine: source %q must be a file name inside the working directory", r.Source)
	}
	if r.Program.Executable == "" {
		return Request{}, fmt.Errorf("engine: processor executable is required")
	}
	if r.AuxDir == "" {
		r.AuxDir = r.WorkDir
	}
	if r.OutputDir == "" {
		r.OutputDir = r.WorkDir
	}
	if r.MaxPasses <= 0 {
		r.MaxPasses = scheduler.DefaultMaxPasses
	}
	if r.Tools.Biber == "" {
		r.Tools.Biber = "biber"
	}
	if r.Tools.BibTeX == "" {
		r.Tools.BibTeX = "bibtex"
	}
	if r.Tools.DVIPDF == "" {
		r.Tools.DVIPDF = "dvipdfmx"
	}
	return r, nil
}

// AuxiliaryNames lists the exact artifact names parked in the auxiliary
// directory between runs.
func AuxiliaryNames(project string) []string {
	layout := artifact.Layout{Project: project}
	refs := artifact.AuxiliaryRefs()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, layout.Name(ref.Suffix))
	}
	return names
}

// IncludedAuxNames lists the chapter aux files that project's root aux in
// dir pulls in through \@input, relative to dir. Targets outside dir are
// left alone.
func IncludedAuxNames(dir, project string) []string {
	root := artifact.Layout{Dir: dir, Project: project}.Path(artifact.Aux.Suffix)
	var names []string
	for _, path := range citation.Files(root) {
		if path == filepath.Clean(root) {
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		names = append(names, rel)
	}
	return names
}

// AuxiliaryPatterns matches project artifacts whose names are not fixed:
// glossary instances, beamer helpers and biblatex helpers.
func AuxiliaryPatterns(project string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(project)
	return []*regexp.Regexp{
		regexp.MustCompile(`^` + quoted + `\.(acn|acr|alg|glg|glo|gls|glsdefs|nlg|slg|slo|sls|lol|nav|snm|vrb|xref)$`),
		regexp.MustCompile(`^` + quoted + `-blx\.(bib|aux)$`),
	}
}
