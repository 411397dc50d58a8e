// Package scheduler holds the pass plan for one compile: the phases the
// convergence engine walks through, the independent extra-pass signals and
// the bound on main-processor invocations.
package scheduler
