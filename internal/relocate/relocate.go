// Package relocate moves and deletes build artifacts between the working,
// auxiliary and output directories.
package relocate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Relocator is the file-relocation contract the engine depends on. Missing
// source files are skipped silently; every method returns the names it
// actually touched.
type Relocator interface {
	MoveExact(names []string, from, to string) ([]string, error)
	MoveMatching(patterns []*regexp.Regexp, from, to string) ([]string, error)
	RemoveExact(names []string, dir string) ([]string, error)
	RemoveMatching(patterns []*regexp.Regexp, dir string) ([]string, error)
}

// FS implements Relocator on the local filesystem.
type FS struct{}

// MoveExact moves each named file from one directory to another, replacing
// existing targets. Moving within one directory is a no-op.
func (FS) MoveExact(names []string, from, to string) ([]string, error) {
	if sameDir(from, to) {
		return nil, nil
	}
	var moved []string
	var errs []error
	for _, name := range names {
		src := filepath.Join(from, name)
		if !isFile(src) {
			continue
		}
		if err := move(src, filepath.Join(to, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		moved = append(moved, name)
	}
	return moved, errors.Join(errs...)
}

// MoveMatching moves every regular file in from whose base name matches any
// pattern.
func (f FS) MoveMatching(patterns []*regexp.Regexp, from, to string) ([]string, error) {
	if sameDir(from, to) {
		return nil, nil
	}
	names, err := matching(patterns, from)
	if err != nil {
		return nil, err
	}
	return f.MoveExact(names, from, to)
}

// RemoveExact deletes each named file in dir.
func (FS) RemoveExact(names []string, dir string) ([]string, error) {
	var removed []string
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		if !isFile(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("relocate: remove %s: %w", path, err))
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

// RemoveMatching deletes every regular file in dir whose base name matches
// any pattern.
func (f FS) RemoveMatching(patterns []*regexp.Regexp, dir string) ([]string, error) {
	names, err := matching(patterns, dir)
	if err != nil {
		return nil, err
	}
	return f.RemoveExact(names, dir)
}

func matching(patterns []*regexp.Regexp, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("relocate: read %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, pattern := range patterns {
			if pattern.MatchString(entry.Name()) {
				names = append(names, entry.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("relocate: ensure %s: %w", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// rename fails across filesystems; fall back to copy and delete
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("relocate: move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("relocate: remove %s: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sameDir(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
