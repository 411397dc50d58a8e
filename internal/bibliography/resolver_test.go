package bibliography

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/texloop/internal/citation"
)

type fixture struct {
	dir string
	aux string
	bcf string
}

func newFixture(t *testing.T, aux string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{dir: dir, aux: filepath.Join(dir, "paper.aux"), bcf: filepath.Join(dir, "paper.bcf")}
	if aux != "" {
		f.write(t, "paper.aux", aux)
	}
	return f
}

func (f fixture) write(t *testing.T, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (f fixture) request(prior citation.Snapshot, log string) Request {
	return Request{RootAux: f.aux, ControlFile: f.bcf, SourceDir: f.dir, Prior: prior, Log: log}
}

const biberBCF = `<?xml version="1.0" encoding="UTF-8"?>
<bcf:controlfile version="3.10" bltxversion="3.19" xmlns:bcf="https://sourceforge.net/projects/biblatex">
  <bcf:bibdata section="0">
    <bcf:datasource type="file" datatype="bibtex" glob="false">refs.bib</bcf:datasource>
  </bcf:bibdata>
</bcf:controlfile>
`

func TestResolveBiberNoCitationChange(t *testing.T) {
	f := newFixture(t, "\\relax\n\\abx@aux@refcontext{nty/global//global/global}\n\\abx@aux@cite{0}{knuth84}\n")
	f.write(t, "paper.bcf", biberBCF)
	f.write(t, "refs.bib", "@book{knuth84}\n")
	prior := citation.Capture(f.aux)

	res := Resolve(f.request(prior, "Output written on paper.pdf (1 page)."))
	if res.State.Kind != KindBackend || res.State.Backend != BackendBiber {
		t.Fatalf("unexpected state %s", res.State)
	}
	if res.State.Database() != filepath.Join(f.dir, "refs.bib") {
		t.Fatalf("database = %s", res.State.Database())
	}
	if res.ExtraPasses != 0 {
		t.Fatalf("extra passes = %d, want 0", res.ExtraPasses)
	}
	if !strings.Contains(res.Status, "no citation change") {
		t.Fatalf("status = %q", res.Status)
	}
	if res.RunBackend() {
		t.Fatalf("backend must not run when nothing changed")
	}
}

func TestResolveCitationChangeNeedsBackend(t *testing.T) {
	f := newFixture(t, "\\bibstyle{plain}\n\\citation{knuth84}\n\\bibdata{refs}\n")
	f.write(t, "refs.bib", "@book{knuth84}\n")
	prior := citation.Snapshot{}

	res := Resolve(f.request(prior, ""))
	if res.State.Backend != BackendBibTeX {
		t.Fatalf("backend = %q", res.State.Backend)
	}
	if res.ExtraPasses != DefaultExtraPasses || !res.RunBackend() {
		t.Fatalf("expected backend run with %d passes, got %+v", DefaultExtraPasses, res)
	}
	if res.Snapshot.Total() != 1 {
		t.Fatalf("recomputed snapshot = %v", res.Snapshot)
	}
}

func TestResolveLogOverridesSnapshot(t *testing.T) {
	logs := []string{
		"No file paper.bbl.",
		"LaTeX Warning: Citation `knuth84' on page 1 undefined on input line 7.",
		// a long key pushes the warning past TeX's print column
		"LaTeX Warning: Citation `knuth84:the-art-of-computer-programming-volume-one' on\n page 1 undefined on input line 7.",
		"LaTeX Warning: There were undefined citations.",
		"Package biblatex Warning: Please (re)run Biber on the file:",
	}
	for _, log := range logs {
		f := newFixture(t, "\\citation{knuth84}\n\\bibdata{refs}\n")
		f.write(t, "refs.bib", "")
		prior := citation.Capture(f.aux)
		res := Resolve(f.request(prior, log))
		if res.ExtraPasses != DefaultExtraPasses {
			t.Fatalf("log %q: extra passes = %d", log, res.ExtraPasses)
		}
		if !res.RunBackend() {
			t.Fatalf("log %q: backend should run", log)
		}
	}
}

func TestResolveMissingDatabase(t *testing.T) {
	f := newFixture(t, "\\citation{a}\n\\bibdata{refs,extra}\n")
	f.write(t, "refs.bib", "")
	prior := citation.Capture(f.aux)
	res := Resolve(f.request(prior, ""))
	if res.State.Kind != KindUnresolved || res.State.Reason != ReasonDatabaseMissing {
		t.Fatalf("unexpected state %s", res.State)
	}
	if res.ExtraPasses != DefaultExtraPasses || !res.Warning {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if !strings.Contains(res.Status, "database file not found: extra.bib") {
		t.Fatalf("status = %q", res.Status)
	}
	if res.RunBackend() {
		t.Fatalf("unresolved bibliography must not invoke the backend")
	}
}

func TestResolveBiberWithoutControlFile(t *testing.T) {
	f := newFixture(t, "\\abx@aux@cite{0}{x}\n")
	res := Resolve(f.request(nil, ""))
	if res.State.Reason != ReasonNoDatabase {
		t.Fatalf("unexpected state %s", res.State)
	}
	if res.ExtraPasses != DefaultExtraPasses {
		t.Fatalf("extra passes = %d", res.ExtraPasses)
	}
	if !strings.Contains(res.Status, "no database configured") {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestResolveManualBibliography(t *testing.T) {
	f := newFixture(t, "\\bibcite{knuth84}{1}\n")
	res := Resolve(f.request(nil, ""))
	if res.State.Kind != KindUnresolved || res.State.Reason != ReasonManual {
		t.Fatalf("unexpected state %s", res.State)
	}
	if res.ExtraPasses != 1 {
		t.Fatalf("extra passes = %d, want 1", res.ExtraPasses)
	}
}

func TestResolveNoBibliographyAndMissingAux(t *testing.T) {
	f := newFixture(t, "\\relax\n\\newlabel{sec:intro}{{1}{1}}\n")
	res := Resolve(f.request(nil, "There were undefined citations."))
	if res.State.Kind != KindNone || res.ExtraPasses != 0 || res.Status != "no bibliography" {
		t.Fatalf("unexpected resolution %+v", res)
	}

	empty := newFixture(t, "")
	res = Resolve(empty.request(nil, ""))
	if res.State.Kind != KindNone || !res.Warning {
		t.Fatalf("missing aux should warn, got %+v", res)
	}
}

func TestDetectPriority(t *testing.T) {
	if got := Detect("\\bibdata{x}\n\\abx@aux@cite{0}{k}\n"); got != BackendBiber {
		t.Fatalf("expected biber to win, got %q", got)
	}
	if got := Detect("\\bibdata{x}\n"); got != BackendBibTeX {
		t.Fatalf("expected bibtex, got %q", got)
	}
	if got := Detect("\\relax\n"); got != BackendNone {
		t.Fatalf("expected none, got %q", got)
	}
}
