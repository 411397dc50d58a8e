package toc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.toc")

	before := Take(path)
	if before.Exists {
		t.Fatalf("toc should not exist yet")
	}
	if Changed(path, before) {
		t.Fatalf("absent toc is not a change")
	}

	entry := "\\contentsline {section}{\\numberline {1}Intro}{1}{}%\n"
	if err := os.WriteFile(path, []byte(entry), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Changed(path, before) {
		t.Fatalf("new toc must count as changed")
	}

	captured := Take(path)
	if Changed(path, captured) {
		t.Fatalf("identical toc must not count as changed")
	}
	if err := os.WriteFile(path, []byte(entry+entry), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Changed(path, captured) {
		t.Fatalf("edited toc must count as changed")
	}
}

func TestEmptyTocStillExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.toc")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !Changed(path, Capture{}) {
		t.Fatalf("an empty toc that appeared is still a change")
	}
	if Changed(path, Take(path)) {
		t.Fatalf("empty toc compared with itself is unchanged")
	}
}
