package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/texloop/internal/logbook"
	"github.com/kingrea/texloop/internal/relocate"
	"github.com/kingrea/texloop/internal/runner"
)

// Engine runs compiles to convergence. One Engine may serve many sequential
// compiles; it holds no per-compile state.
type Engine struct {
	runner    runner.Runner
	relocator relocate.Relocator
	repo      StateStore
	journal   *logbook.Logbook
	observer  func(Event)
	clock     func() time.Time
	newRunID  func() string
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRelocator replaces the filesystem relocator.
func WithRelocator(r relocate.Relocator) Option {
	return func(e *Engine) {
		if r != nil {
			e.relocator = r
		}
	}
}

// WithStateStore persists the state of every compile.
func WithStateStore(store StateStore) Option {
	return func(e *Engine) {
		e.repo = store
	}
}

// WithJournal records phases, tool invocations and decisions.
func WithJournal(journal *logbook.Logbook) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithObserver receives progress events synchronously.
func WithObserver(fn func(Event)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithRunID overrides run identifier generation.
func WithRunID(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// New wires an engine to the process runner.
func New(r runner.Runner, opts ...Option) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("engine: runner is required")
	}
	engine := &Engine{
		runner:    r,
		relocator: relocate.FS{},
		clock:     time.Now,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Compile drives req through the state machine. Fatal conditions come back
// as an Outcome of kind OutcomeFatal; the error return is reserved for
// requests that cannot be started.
func (e *Engine) Compile(ctx context.Context, req Request) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	normalized, err := req.normalized()
	if err != nil {
		return Outcome{}, err
	}
	c := e.newCompilation(normalized)
	c.restore()
	outcome := c.execute(ctx)
	c.finish(&outcome)
	return outcome, nil
}

// LastState loads the persisted state of the previous compile.
func (e *Engine) LastState() (State, error) {
	if e.repo == nil {
		return State{}, ErrStateNotFound
	}
	return e.repo.Load()
}

func (e *Engine) now() time.Time {
	return e.clock()
}
