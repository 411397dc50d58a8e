// Package bibliography decides which bibliography backend a project uses,
// which database it reads and whether the backend has to run again.
package bibliography

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kingrea/texloop/internal/artifact"
	"github.com/kingrea/texloop/internal/citation"
	"github.com/kingrea/texloop/internal/logscan"
)

// Backend names a bibliography processor.
type Backend string

const (
	BackendNone   Backend = ""
	BackendBiber  Backend = "biber"
	BackendBibTeX Backend = "bibtex"
)

// Kind discriminates State.
type Kind string

const (
	KindNone       Kind = "none"
	KindBackend    Kind = "backend"
	KindUnresolved Kind = "unresolved"
)

// Reason explains an unresolved bibliography.
type Reason string

const (
	ReasonManual          Reason = "manual"
	ReasonNoDatabase      Reason = "no-database"
	ReasonDatabaseMissing Reason = "database-missing"
)

// DefaultExtraPasses is what a changed or doubtful bibliography costs: one
// pass to pick up the .bbl and one for the resulting references.
const DefaultExtraPasses = 2

var (
	biberMarker  = regexp.MustCompile(`\\abx@aux@`)
	bibtexMarker = regexp.MustCompile(`\\bibdata\{`)
	manualMarker = regexp.MustCompile(`\\bibcite\{`)

	bcfDatasource = regexp.MustCompile(`<bcf:datasource[^>]*>\s*([^<]+?)\s*</bcf:datasource>`)
	bibdata       = regexp.MustCompile(`\\bibdata\{([^{}]*)\}`)

	logMissingBBL      = regexp.MustCompile(`No file [^\s]+\.bbl\.`)
	logUndefinedCite   = regexp.MustCompile("Citation [`'][^']*'\\s+(?:on\\s+page\\s+\\d+\\s+)?undefined")
	logUndefinedCites  = regexp.MustCompile(`There were undefined citations`)
	logBackendRequests = regexp.MustCompile(`Please \(?re\)?run (?:Biber|BibTeX)`)
)

// State is the resolved bibliography configuration of a project.
type State struct {
	Kind      Kind
	Backend   Backend
	Databases []string
	Reason    Reason
}

// Database returns the first referenced database, if any.
func (s State) Database() string {
	if len(s.Databases) == 0 {
		return ""
	}
	return s.Databases[0]
}

func (s State) String() string {
	switch s.Kind {
	case KindBackend:
		return fmt.Sprintf("%s(%s)", s.Backend, strings.Join(s.Databases, ","))
	case KindUnresolved:
		return fmt.Sprintf("unresolved(%s)", s.Reason)
	default:
		return "none"
	}
}

// Request carries everything Resolve needs; nothing is read from globals.
type Request struct {
	// RootAux is the root auxiliary file.
	RootAux string
	// ControlFile is the biber control file ({project}.bcf).
	ControlFile string
	// SourceDir is where relative database names resolve.
	SourceDir string
	// Prior is the citation snapshot captured before the first pass.
	Prior citation.Snapshot
	// Log is the most recent processor log.
	Log string
}

// Resolution is the resolver's verdict.
type Resolution struct {
	State       State
	ExtraPasses int
	Status      string
	// Warning is set when the status should be surfaced as a warning.
	Warning bool
	// Snapshot is the citation snapshot recomputed during resolution.
	Snapshot citation.Snapshot
}

// RunBackend reports whether the backend tool should be invoked.
func (r Resolution) RunBackend() bool {
	return r.State.Kind == KindBackend && r.ExtraPasses != 0
}

// Detect classifies the root auxiliary content. Biber wins over BibTeX when
// both markers are present.
func Detect(auxContent string) Backend {
	switch {
	case biberMarker.MatchString(auxContent):
		return BackendBiber
	case bibtexMarker.MatchString(auxContent):
		return BackendBibTeX
	default:
		return BackendNone
	}
}

// Resolve inspects the auxiliary tree and decides how many extra passes the
// bibliography needs.
func Resolve(req Request) Resolution {
	content, ok := artifact.ReadFile(req.RootAux)
	if !ok {
		return Resolution{
			State:   State{Kind: KindNone},
			Status:  fmt.Sprintf("auxiliary file %s not found", filepath.Base(req.RootAux)),
			Warning: true,
		}
	}

	backend := Detect(content)
	if backend == BackendNone {
		if manualMarker.MatchString(content) {
			return Resolution{
				State:       State{Kind: KindUnresolved, Reason: ReasonManual},
				ExtraPasses: 1,
				Status:      "manual bibliography environment",
			}
		}
		return Resolution{State: State{Kind: KindNone}, Status: "no bibliography"}
	}

	databases := extractDatabases(backend, content, req.ControlFile)
	if len(databases) == 0 {
		return Resolution{
			State:       State{Kind: KindUnresolved, Backend: backend, Reason: ReasonNoDatabase},
			ExtraPasses: DefaultExtraPasses,
			Status:      fmt.Sprintf("%s: no database configured", backend),
			Warning:     true,
		}
	}
	resolved := make([]string, len(databases))
	for i, db := range databases {
		resolved[i] = resolveDatabase(req.SourceDir, db)
		if !artifact.FileExists(resolved[i]) {
			return Resolution{
				State:       State{Kind: KindUnresolved, Backend: backend, Databases: []string{resolved[i]}, Reason: ReasonDatabaseMissing},
				ExtraPasses: DefaultExtraPasses,
				Status:      fmt.Sprintf("%s: database file not found: %s", backend, db),
				Warning:     true,
			}
		}
	}

	res := Resolution{
		State:       State{Kind: KindBackend, Backend: backend, Databases: resolved},
		ExtraPasses: DefaultExtraPasses,
		Status:      fmt.Sprintf("%s: citations changed", backend),
		Snapshot:    citation.Capture(req.RootAux),
	}
	if res.Snapshot.Equal(req.Prior) {
		res.ExtraPasses = 0
		res.Status = fmt.Sprintf("%s: no citation change", backend)
	}
	if marker := LogRequestsRerun(req.Log); marker != "" {
		res.ExtraPasses = DefaultExtraPasses
		res.Status = fmt.Sprintf("%s: log reports %q", backend, marker)
	}
	return res
}

// LogRequestsRerun returns the first log marker that demands a bibliography
// rerun, or "" when the log is clean.
func LogRequestsRerun(log string) string {
	log = logscan.Unwrap(log)
	for _, pattern := range []*regexp.Regexp{logMissingBBL, logUndefinedCite, logUndefinedCites, logBackendRequests} {
		if match := pattern.FindString(log); match != "" {
			return match
		}
	}
	return ""
}

func extractDatabases(backend Backend, auxContent, controlFile string) []string {
	switch backend {
	case BackendBiber:
		control, ok := artifact.ReadFile(controlFile)
		if !ok {
			return nil
		}
		var out []string
		for _, match := range bcfDatasource.FindAllStringSubmatch(control, -1) {
			out = appendUnique(out, match[1])
		}
		return out
	case BackendBibTeX:
		var out []string
		for _, match := range bibdata.FindAllStringSubmatch(auxContent, -1) {
			for _, name := range strings.Split(match[1], ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if filepath.Ext(name) != ".bib" {
					name += ".bib"
				}
				out = appendUnique(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

func resolveDatabase(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
