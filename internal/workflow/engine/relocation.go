package engine

import (
	"path/filepath"

	"github.com/kingrea/texloop/internal/artifact"
)

// restore brings artifacts parked by the previous run back into the working
// directory so the Init captures see them.
func (c *compilation) restore() {
	project := c.layout.Project
	names := append(IncludedAuxNames(c.req.AuxDir, project), AuxiliaryNames(project)...)
	moved, err := c.e.relocator.MoveExact(names, c.req.AuxDir, c.req.WorkDir)
	if err != nil {
		c.e.journal.Warn("restore auxiliary artifacts: %v", err)
	}
	matched, err := c.e.relocator.MoveMatching(AuxiliaryPatterns(project), c.req.AuxDir, c.req.WorkDir)
	if err != nil {
		c.e.journal.Warn("restore auxiliary artifacts: %v", err)
	}
	if n := len(moved) + len(matched); n > 0 {
		c.e.journal.Info("restored %d artifact(s) from %s", n, c.req.AuxDir)
	}
}

// stash parks auxiliary artifacts in AuxDir and the document in OutputDir.
// It runs on Done and on Fatal alike.
func (c *compilation) stash() {
	project := c.layout.Project
	names := append(IncludedAuxNames(c.req.WorkDir, project), AuxiliaryNames(project)...)
	if _, err := c.e.relocator.MoveExact(names, c.req.WorkDir, c.req.AuxDir); err != nil {
		c.e.journal.Warn("stash auxiliary artifacts: %v", err)
	}
	if _, err := c.e.relocator.MoveMatching(AuxiliaryPatterns(project), c.req.WorkDir, c.req.AuxDir); err != nil {
		c.e.journal.Warn("stash auxiliary artifacts: %v", err)
	}
	if _, err := c.e.relocator.MoveExact([]string{c.layout.Name(artifact.PDF.Suffix)}, c.req.WorkDir, c.req.OutputDir); err != nil {
		c.e.journal.Warn("move output: %v", err)
	}
}

// finish relocates artifacts, fills in their final paths and persists the
// run.
func (c *compilation) finish(out *Outcome) {
	c.stash()
	parked := artifact.NewStore(artifact.Layout{Dir: c.req.AuxDir, Project: c.layout.Project})
	if parked.Exists(artifact.Log) {
		out.LogPath = parked.Path(artifact.Log)
	}
	if out.Converged() {
		placed := artifact.NewStore(artifact.Layout{Dir: c.req.OutputDir, Project: c.layout.Project})
		check, err := placed.Check(artifact.PDF)
		switch {
		case err != nil:
			c.e.journal.Warn("inspect output: %v", err)
		case check.State == artifact.StateReady:
			out.OutputPath = check.Path
		default:
			c.warn("%s was not produced", filepath.Base(check.Path))
		}
	}

	c.state.Outcome = *out
	c.state.FinishedAt = c.e.now()
	if c.e.repo == nil {
		return
	}
	if err := c.e.repo.Save(c.state); err != nil {
		c.e.journal.Warn("persist state: %v", err)
	}
}
