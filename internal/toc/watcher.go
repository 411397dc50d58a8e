// Package toc tracks the table-of-contents artifact across a pass.
package toc

import "github.com/kingrea/texloop/internal/artifact"

// Capture is the toc content at one point in time.
type Capture struct {
	Content string
	Exists  bool
}

// Take reads the toc at path. A missing file gives a zero Capture.
func Take(path string) Capture {
	content, ok := artifact.ReadFile(path)
	return Capture{Content: content, Exists: ok}
}

// Changed reports whether the toc exists now and differs from prior. A toc
// that does not exist is never a change: the document asked for no contents.
func Changed(path string, prior Capture) bool {
	current := Take(path)
	if !current.Exists {
		return false
	}
	return !prior.Exists || current.Content != prior.Content
}
