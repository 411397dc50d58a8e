// Package engine drives one compilation to convergence. It captures the
// auxiliary artifacts before the first pass, runs the processor, consults the
// bibliography, index and table-of-contents resolvers, runs the satellite
// tools they schedule and then as many extra passes as the strongest signal
// demands. Fatal conditions are returned as an Outcome value; the engine never
// terminates the process. The last run is persisted through a StateStore.
package engine
