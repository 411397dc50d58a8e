// Package artifact defines the on-disk files the typesetting processor and its
// satellite tools exchange. Each artifact has a stable identifier, a kind and
// a suffix that maps to "{project}{suffix}" inside the working directory.

package artifact

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind captures the role an artifact plays in a compile.
type Kind string

const (
	// KindAuxiliary is processor-generated state that feeds the next pass.
	KindAuxiliary Kind = "auxiliary"
	// KindControl is a backend control file written by the processor.
	KindControl Kind = "control"
	// KindIndexInput is raw index data written by the processor.
	KindIndexInput Kind = "index-input"
	// KindIndexOutput is the sorted index produced by a satellite tool.
	KindIndexOutput Kind = "index-output"
	// KindMarker is a file whose mere presence selects a subsystem.
	KindMarker Kind = "marker"
	// KindLog is a transcript written by a tool.
	KindLog Kind = "log"
	// KindOutput is a typeset result (DVI or PDF).
	KindOutput Kind = "output"
)

// Layout locates a project's artifacts: every file is named after the project
// and lives in Dir.
type Layout struct {
	Dir     string
	Project string
}

// Path returns Dir/{project}{suffix}.
func (l Layout) Path(suffix string) string {
	if l.Project == "" {
		return ""
	}
	return filepath.Join(l.Dir, l.Project+suffix)
}

// Name returns {project}{suffix} without a directory.
func (l Layout) Name(suffix string) string {
	return l.Project + suffix
}

// ArtifactRef declares a stable identifier and naming rule for an artifact.
type ArtifactRef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Suffix      string
}

// Path resolves the artifact path for the layout.
func (r ArtifactRef) Path(l Layout) string {
	if r.Suffix == "" {
		return ""
	}
	return l.Path(r.Suffix)
}

// Validate ensures the reference is well-formed.
func (r ArtifactRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.Kind == "" {
		return fmt.Errorf("artifact: kind is required for %s", r.ID)
	}
	if !strings.HasPrefix(r.Suffix, ".") {
		return fmt.Errorf("artifact: suffix for %s must start with a dot", r.ID)
	}
	return nil
}

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateError   State = "error"
)

// CheckResult captures Store.Check results.
type CheckResult struct {
	Ref   ArtifactRef
	Path  string
	State State
	Size  int64
	Err   error
}

// helper to register global references
func register(ref ArtifactRef) ArtifactRef {
	if refs == nil {
		refs = map[string]ArtifactRef{}
	}
	refs[ref.ID] = ref
	return ref
}

var refs map[string]ArtifactRef

// Lookup returns a registered artifact reference by ID.
func Lookup(id string) (ArtifactRef, bool) {
	ref, ok := refs[id]
	return ref, ok
}

// Registered returns every canonical reference sorted by ID.
func Registered() []ArtifactRef {
	out := make([]ArtifactRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newRef(id, name, desc string, kind Kind, suffix string) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        kind,
		Suffix:      suffix,
	}
}

// Canonical artifact references. Names are produced by the processor and the
// satellite tools, so the suffixes are fixed.
var (
	Aux       = register(newRef("aux", "Auxiliary File", "root auxiliary file written by every pass", KindAuxiliary, ".aux"))
	TOC       = register(newRef("toc", "Table of Contents", "table of contents entries for the next pass", KindAuxiliary, ".toc"))
	LOF       = register(newRef("lof", "List of Figures", "list of figures entries", KindAuxiliary, ".lof"))
	LOT       = register(newRef("lot", "List of Tables", "list of tables entries", KindAuxiliary, ".lot"))
	Outline   = register(newRef("out", "PDF Outline", "hyperref bookmarks", KindAuxiliary, ".out"))
	BCF       = register(newRef("bcf", "Biber Control File", "biblatex control file read by biber", KindControl, ".bcf"))
	RunXML    = register(newRef("run-xml", "Biblatex Run Requests", "logreq run requests", KindControl, ".run.xml"))
	BBL       = register(newRef("bbl", "Formatted Bibliography", "bibliography produced by the backend", KindAuxiliary, ".bbl"))
	BLG       = register(newRef("blg", "Backend Log", "bibliography backend transcript", KindLog, ".blg"))
	IDX       = register(newRef("idx", "Index Input", "raw index entries", KindIndexInput, ".idx"))
	IND       = register(newRef("ind", "Sorted Index", "makeindex output", KindIndexOutput, ".ind"))
	ILG       = register(newRef("ilg", "Index Log", "makeindex transcript", KindLog, ".ilg"))
	NLO       = register(newRef("nlo", "Nomenclature Input", "raw nomenclature entries", KindIndexInput, ".nlo"))
	NLS       = register(newRef("nls", "Sorted Nomenclature", "makeindex output for nomenclature", KindIndexOutput, ".nls"))
	IST       = register(newRef("ist", "Glossary Style", "makeindex style written by the glossaries package", KindMarker, ".ist"))
	XDY       = register(newRef("xdy", "Glossary Xindy Style", "xindy style written by the glossaries package", KindMarker, ".xdy"))
	Log       = register(newRef("log", "Processor Log", "main processor transcript", KindLog, ".log"))
	FLS       = register(newRef("fls", "Recorder File", "files read and written by the processor", KindLog, ".fls"))
	SyncTeX   = register(newRef("synctex", "SyncTeX Data", "source/output position map", KindAuxiliary, ".synctex.gz"))
	DVI       = register(newRef("dvi", "DVI Output", "device independent output", KindOutput, ".dvi"))
	XDV       = register(newRef("xdv", "Extended DVI Output", "xetex intermediate output", KindOutput, ".xdv"))
	PDF       = register(newRef("pdf", "PDF Output", "final typeset document", KindOutput, ".pdf"))
)

// AuxiliaryRefs lists every reference that belongs in the auxiliary directory
// between runs (everything except the final PDF).
func AuxiliaryRefs() []ArtifactRef {
	var out []ArtifactRef
	for _, ref := range Registered() {
		if ref.ID == PDF.ID {
			continue
		}
		out = append(out, ref)
	}
	return out
}
