// Package citation counts citation records across an auxiliary-file tree so
// two captures can be compared for "nothing cited has changed".
package citation

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// biblatex: \abx@aux@cite{key} or \abx@aux@cite{refsection}{key}
	biblatexCite = regexp.MustCompile(`\\abx@aux@cite(?:\{[^{}]*\})?\{([^{}]*)\}`)
	// bibtex: \citation{key1,key2}
	bibtexCite = regexp.MustCompile(`\\citation\{([^{}]*)\}`)
	// \@input{chapter.aux}
	inputDirective = regexp.MustCompile(`\\@input\{([^{}]+)\}`)
)

// Counts maps a citation key to its number of occurrences in one file.
type Counts map[string]int

// Snapshot maps an auxiliary file path to its citation counts. A snapshot is
// never mutated after Capture returns it.
type Snapshot map[string]Counts

// Capture reads rootAux and every auxiliary file reachable through \@input
// directives. Included files that are missing or unreadable are skipped, and
// each path is visited at most once so cyclic inclusion terminates. A missing
// root yields an empty snapshot.
func Capture(rootAux string) Snapshot {
	snapshot := Snapshot{}
	walk(rootAux, func(path, content string) {
		snapshot[path] = Count(content)
	})
	return snapshot
}

// Files lists rootAux and the auxiliary files it reaches through \@input, in
// visit order. Only files that could be read are listed.
func Files(rootAux string) []string {
	var paths []string
	walk(rootAux, func(path, _ string) {
		paths = append(paths, path)
	})
	return paths
}

// walk visits the \@input tree breadth first. Relative targets resolve
// against the root's directory, as the processor writes them.
func walk(rootAux string, visit func(path, content string)) {
	root := filepath.Clean(rootAux)
	baseDir := filepath.Dir(root)
	visited := map[string]bool{}
	queue := []string{root}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		visit(path, content)
		for _, include := range Includes(content) {
			next := include
			if !filepath.IsAbs(next) {
				next = filepath.Join(baseDir, next)
			}
			next = filepath.Clean(next)
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
}

// Count tallies citation records of both backends in content.
func Count(content string) Counts {
	counts := Counts{}
	for _, match := range biblatexCite.FindAllStringSubmatch(content, -1) {
		if key := strings.TrimSpace(match[1]); key != "" {
			counts[key]++
		}
	}
	for _, match := range bibtexCite.FindAllStringSubmatch(content, -1) {
		for _, key := range strings.Split(match[1], ",") {
			if key = strings.TrimSpace(key); key != "" {
				counts[key]++
			}
		}
	}
	return counts
}

// Includes returns the targets of \@input directives in order of appearance.
func Includes(content string) []string {
	matches := inputDirective.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		if target := strings.TrimSpace(match[1]); target != "" {
			out = append(out, target)
		}
	}
	return out
}

// Equal reports whether both snapshots hold the same files with the same
// per-key counts.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for path, counts := range s {
		theirs, ok := other[path]
		if !ok || !counts.Equal(theirs) {
			return false
		}
	}
	return true
}

// Equal reports whether both maps hold the same keys with the same counts.
func (c Counts) Equal(other Counts) bool {
	if len(c) != len(other) {
		return false
	}
	for key, n := range c {
		if other[key] != n {
			return false
		}
	}
	return true
}

// Total returns the number of citation records across all files.
func (s Snapshot) Total() int {
	total := 0
	for _, counts := range s {
		for _, n := range counts {
			total += n
		}
	}
	return total
}
