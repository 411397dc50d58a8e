package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestRelevantFiltersArtifactsAndIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	w.Exclude(filepath.Join(root, "build"))

	cases := map[string]bool{
		filepath.Join(root, "paper.tex"):             true,
		filepath.Join(root, "chapters", "intro.tex"): true,
		filepath.Join(root, "refs.bib"):              true,
		filepath.Join(root, "figures", "plot.PNG"):   true,
		filepath.Join(root, "paper.aux"):             false,
		filepath.Join(root, "paper.pdf"):             false,
		filepath.Join(root, "build", "paper.tex"):    false,
		filepath.Join(root, ".texloop", "notes.tex"): false,
		filepath.Join(root, ".git", "x.tex"):         false,
		filepath.Join(root, "paper.tex.swp"):         false,
		filepath.Join(root, ".#paper.tex"):           false,
	}
	for path, want := range cases {
		if got := w.Relevant(path); got != want {
			t.Errorf("Relevant(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestConfiguredIgnoreExtendsDefaults(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{Ignore: []string{".git", ".texloop", "drafts"}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	cases := map[string]bool{
		filepath.Join(root, "paper.tex"):           true,
		filepath.Join(root, "drafts", "old.tex"):   false,
		filepath.Join(root, ".#paper.tex"):         false,
		filepath.Join(root, "paper.tex~"):          false,
		filepath.Join(root, ".texloop", "x.tex"):   false,
		filepath.Join(root, "chapters", "one.tex"): true,
	}
	for path, want := range cases {
		if got := w.Relevant(path); got != want {
			t.Errorf("Relevant(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestDedupeKeepsLatestPerPath(t *testing.T) {
	changes := []Change{
		{Path: "a.tex", Op: fsnotify.Create},
		{Path: "b.bib", Op: fsnotify.Write},
		{Path: "a.tex", Op: fsnotify.Write},
	}
	got := Dedupe(changes)
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if got[0].Path != "a.tex" || got[0].Op != fsnotify.Write {
		t.Fatalf("first change = %+v", got[0])
	}
}

func TestRunDebouncesBurst(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan []Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changes []Change) {
			batches <- changes
		})
	}()

	// give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)
	for _, name := range []string{"paper.tex", "paper.aux", "refs.bib", "paper.tex"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case batch := <-batches:
		paths := map[string]bool{}
		for _, c := range batch {
			paths[filepath.Base(c.Path)] = true
		}
		if !paths["paper.tex"] || !paths["refs.bib"] || paths["paper.aux"] {
			t.Fatalf("unexpected batch %+v", batch)
		}
		if len(batch) != 2 {
			t.Fatalf("expected deduplicated batch of 2, got %d", len(batch))
		}
	case <-ctx.Done():
		t.Fatalf("no batch delivered")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRequiresHandler(t *testing.T) {
	w, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	if err := w.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error without handler")
	}
}
