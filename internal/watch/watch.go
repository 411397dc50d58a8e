// Package watch recompiles a project when its sources change. It watches the
// project tree with fsnotify, drops events for generated artifacts and
// ignored directories, and batches the rest with a debounce window so a
// burst of editor writes triggers a single compile.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one relevant filesystem event.
type Change struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Handler receives a debounced batch. It runs on the watcher goroutine, so
// events arriving meanwhile queue up for the next batch.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before flushing.
	Debounce time.Duration
	// Ignore holds base names or globs of paths to skip, in addition to
	// the stock list.
	Ignore []string
	// Extensions are the source suffixes that trigger a compile.
	Extensions []string
	// OnError receives watcher errors; nil drops them.
	OnError func(error)
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		Debounce: 300 * time.Millisecond,
		Ignore:   []string{".git", ".texloop", "*.swp", "*~", ".#*"},
		Extensions: []string{
			".tex", ".bib", ".sty", ".cls", ".bst", ".bbx", ".cbx", ".def", ".cfg",
			".png", ".jpg", ".jpeg", ".eps", ".svg",
		},
	}
}

// Watcher watches one project tree.
type Watcher struct {
	root     string
	opts     Options
	fs       *fsnotify.Watcher
	excluded []string
}

// New creates a watcher rooted at root. Empty option fields fall back to
// DefaultOptions; Ignore entries extend the stock list.
func New(root string, opts Options) (*Watcher, error) {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	opts.Ignore = mergeIgnore(defaults.Ignore, opts.Ignore)
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{root: abs, opts: opts, fs: fw}, nil
}

// Exclude skips whole directories, typically the output and aux dirs.
func (w *Watcher) Exclude(dirs ...string) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil && abs != w.root {
			w.excluded = append(w.excluded, abs)
		}
	}
}

// Close releases the fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Relevant reports whether a change to path should trigger a compile.
func (w *Watcher) Relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, dir := range w.excluded {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		rel = abs
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		for _, pattern := range w.opts.Ignore {
			if part == pattern {
				return true
			}
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Run watches until ctx is cancelled, calling handler once per debounced
// batch of relevant changes.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("watch: handler is required")
	}
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) && !w.ignored(event.Name) {
				if err := w.fs.Add(event.Name); err != nil {
					w.report(err)
				}
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.Relevant(event.Name) {
				continue
			}
			batch = append(batch, Change{Path: event.Name, Op: event.Op, Time: time.Now()})
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		case <-timerC:
			stopTimer()
			changes := Dedupe(batch)
			batch = nil
			if len(changes) > 0 {
				handler(ctx, changes)
			}
		}
	}
}

func (w *Watcher) report(err error) {
	if w.opts.OnError != nil && err != nil {
		w.opts.OnError(err)
	}
}

// Dedupe keeps the latest change per path, in first-seen order.
func Dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, change := range changes {
		if idx, ok := seen[change.Path]; ok {
			out[idx] = change
			continue
		}
		seen[change.Path] = len(out)
		out = append(out, change)
	}
	return out
}

func mergeIgnore(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, pattern := range extra {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == pattern {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, pattern)
		}
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
