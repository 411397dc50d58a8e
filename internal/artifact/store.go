package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Store reads artifacts rooted at a project layout.
type Store struct {
	layout Layout
}

// NewStore builds a store for a layout.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

// Layout returns the layout the store resolves against.
func (s *Store) Layout() Layout {
	return s.layout
}

// Path resolves a reference to a path.
func (s *Store) Path(ref ArtifactRef) string {
	return ref.Path(s.layout)
}

// Check inspects the artifact on disk and returns its state.
func (s *Store) Check(ref ArtifactRef) (CheckResult, error) {
	path := ref.Path(s.layout)
	if path == "" {
		err := fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Ref: ref, Path: path, State: StateMissing}, nil
		}
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	if info.IsDir() {
		err := fmt.Errorf("artifact: expected file got directory at %s", path)
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	return CheckResult{Ref: ref, Path: path, State: StateReady, Size: info.Size()}, nil
}

// Exists reports whether the artifact is present as a regular file.
func (s *Store) Exists(ref ArtifactRef) bool {
	return FileExists(ref.Path(s.layout))
}

// Read returns the artifact content. ok is false when the file is absent or
// unreadable; callers treat both as "no content yet".
func (s *Store) Read(ref ArtifactRef) (string, bool) {
	return ReadFile(ref.Path(s.layout))
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile returns the content of path, or ok=false when it cannot be read.
func ReadFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Fingerprints maps artifact paths to their captured textual content. Paths
// that did not exist at capture time are absent from the map.
type Fingerprints map[string]string

// CaptureFingerprints reads each path once. Unreadable paths are skipped.
func CaptureFingerprints(paths ...string) Fingerprints {
	out := make(Fingerprints, len(paths))
	for _, path := range paths {
		if content, ok := ReadFile(path); ok {
			out[path] = content
		}
	}
	return out
}

// Matches reports whether path currently holds exactly the captured content.
// A path with no prior capture never matches.
func (f Fingerprints) Matches(path, current string) bool {
	prior, ok := f[path]
	if !ok {
		return false
	}
	return prior == current
}
