// Package logscan classifies processor output into fatal errors and
// conditions that only ask for another pass.
package logscan

import (
	"regexp"
	"strings"
)

// MaxPrintLine is the column at which TeX breaks log lines.
const MaxPrintLine = 79

// continuationWindow bounds how far below a "! " line the l.NNN source
// location may appear.
const continuationWindow = 4

var (
	fileLineError = regexp.MustCompile(`^[^\s:()]+\.(?:tex|sty|cls|ltx|dtx|bbl):\d+: `)
	sourceLine    = regexp.MustCompile(`^l\.\d+`)
	fatalMarkers  = []string{
		"No pages of output.",
		"==> Fatal error occurred",
		"Emergency stop.",
	}
	rerunPatterns = []*regexp.Regexp{
		regexp.MustCompile("Reference [`'][^']*'\\s+on\\s+page\\s+\\d+\\s+undefined"),
		regexp.MustCompile(`There were undefined references`),
		regexp.MustCompile(`Label\(s\) may have changed\. Rerun to get cross-references right`),
		regexp.MustCompile(`No file [^\s]+\.(?:toc|lof|lot)\.`),
		regexp.MustCompile(`Rerun to get (?:outlines|citations) right`),
		regexp.MustCompile(`Package rerunfilecheck Warning: File .* has changed`),
	}
)

// Classification is the result of scanning one log.
type Classification struct {
	// Fatal holds one entry per fatal error, with its source line appended
	// when the processor printed one.
	Fatal []string
	// RerunSignals holds each warning that asks for another pass.
	RerunSignals []string
}

// HasFatal reports whether any fatal marker was found.
func (c Classification) HasFatal() bool {
	return len(c.Fatal) > 0
}

// NeedsRerun reports whether the processor itself asked for another pass.
func (c Classification) NeedsRerun() bool {
	return len(c.RerunSignals) > 0
}

// Excerpt joins the fatal entries for display.
func (c Classification) Excerpt() string {
	return strings.Join(c.Fatal, "\n")
}

// Classify scans log text. It never fails: an empty log classifies clean.
func Classify(log string) Classification {
	var c Classification
	lines := strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n")
	seen := map[string]bool{}
	addFatal := func(entry string) {
		if !seen[entry] {
			seen[entry] = true
			c.Fatal = append(c.Fatal, entry)
		}
	}
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "!"):
			entry := strings.TrimSpace(line)
			if loc := findSourceLine(lines, i+1); loc != "" {
				entry += "\n" + loc
			}
			addFatal(entry)
		case fileLineError.MatchString(line):
			addFatal(strings.TrimSpace(line))
		default:
			for _, marker := range fatalMarkers {
				if strings.Contains(line, marker) {
					addFatal(marker)
				}
			}
		}
	}
	joined := Unwrap(log)
	for _, pattern := range rerunPatterns {
		for _, match := range pattern.FindAllString(joined, -1) {
			if !contains(c.RerunSignals, match) {
				c.RerunSignals = append(c.RerunSignals, match)
			}
		}
	}
	return c
}

// Unwrap joins lines that TeX broke at MaxPrintLine, so messages with long
// keys or file names match as one line.
func Unwrap(log string) string {
	lines := strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n")
	var b strings.Builder
	b.Grow(len(log))
	for i, line := range lines {
		b.WriteString(line)
		if i < len(lines)-1 && len(line) != MaxPrintLine {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func findSourceLine(lines []string, start int) string {
	for j := start; j < len(lines) && j < start+continuationWindow; j++ {
		if strings.HasPrefix(lines[j], "!") {
			return ""
		}
		if sourceLine.MatchString(lines[j]) {
			return strings.TrimSpace(lines[j])
		}
	}
	return ""
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
