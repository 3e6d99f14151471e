// Package engine drives runs through pending → running → completed|failed,
// one supervised goroutine per run, persisting after every step.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stevehiehn/orquestator/internal/action"
	"github.com/stevehiehn/orquestator/internal/logging"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Context is the parent of every background execution. Cancelling it
	// is the only way to stop in-flight runs.
	Context context.Context
	WorkDir string
	Environ []string // nil means the process environment
	Logger  *slog.Logger
}

// Engine starts runs and reports their state.
type Engine struct {
	store    store.Store
	source   workflow.Source
	registry *action.Registry
	logger   *slog.Logger
	base     context.Context
	workDir  string
	environ  []string
	sup      *supervisor

	newID func() string
}

// New creates an Engine on top of a store, a workflow source and an
// executor registry.
func New(st store.Store, src workflow.Source, reg *action.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.Context
	if base == nil {
		base = context.Background()
	}
	return &Engine{
		store:    st,
		source:   src,
		registry: reg,
		logger:   logger,
		base:     base,
		workDir:  opts.WorkDir,
		environ:  opts.Environ,
		sup:      newSupervisor(logger),
		newID:    newRunID,
	}
}

func newRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Start persists a pending run for the named workflow and executes it in
// the background. It returns as soon as the initial record is saved.
func (e *Engine) Start(ctx context.Context, name string) (string, error) {
	wf, err := e.source.Load(name)
	if err != nil {
		return "", err
	}
	run := state.NewRun(e.newID(), name, wf)
	if err := e.store.Save(ctx, run); err != nil {
		return "", err
	}
	logging.WithRun(e.logger, run.ID, name).InfoContext(ctx, "run started", "steps", len(run.Steps))
	e.dispatch(run.ID, name)
	return run.ID, nil
}

// Status returns the stored record for id.
func (e *Engine) Status(ctx context.Context, id string) (*state.Run, error) {
	return e.store.Load(ctx, id)
}

// List returns stored records matching filter.
func (e *Engine) List(ctx context.Context, filter store.Filter) ([]*state.Run, error) {
	return e.store.List(ctx, filter)
}

// Workflows lists the names the workflow source knows about, when it can.
func (e *Engine) Workflows() ([]string, error) {
	lister, ok := e.source.(interface{ List() ([]string, error) })
	if !ok {
		return nil, nil
	}
	return lister.List()
}

// Recover re-dispatches every pending or running record. The step that
// was in flight when the previous process stopped runs again.
func (e *Engine) Recover(ctx context.Context) ([]string, error) {
	runs, err := e.store.List(ctx, store.Filter{Status: []state.Status{state.StatusPending, state.StatusRunning}})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, run := range runs {
		if e.dispatch(run.ID, run.Name) {
			logging.WithRun(e.logger, run.ID, run.Name).InfoContext(ctx, "run recovered", "current", run.Current)
			ids = append(ids, run.ID)
		}
	}
	return ids, nil
}

// Active returns the number of runs executing in this process.
func (e *Engine) Active() int {
	return e.sup.running()
}

// Wait blocks until every dispatched run has finished.
func (e *Engine) Wait() {
	e.sup.wait()
}

func (e *Engine) dispatch(id, name string) bool {
	logger := logging.WithRun(e.logger, id, name)
	return e.sup.goRun(id, logger,
		func() error { return e.execute(e.base, id, logger) },
		func(p any) { e.markPanicked(e.base, id, p, logger) },
	)
}

// execute owns the record for id until it reaches a terminal status.
func (e *Engine) execute(ctx context.Context, id string, logger *slog.Logger) error {
	run, err := e.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return nil
	}
	run.Start()
	if err := e.store.Save(ctx, run); err != nil {
		return err
	}

	for i := run.Current; i < len(run.Steps); i++ {
		step := run.Steps[i]
		slogger := logging.WithStep(logger, i, step.DisplayName(i), step.Type())
		slogger.DebugContext(ctx, "step started")

		res := e.registry.Invoke(ctx, step.Clone(), e.env(run))

		run, err = e.store.Load(ctx, id)
		if err != nil {
			return err
		}
		run.Record(i, step.Name(), res)
		if err := e.store.Save(ctx, run); err != nil {
			return err
		}
		if run.Status == state.StatusFailed {
			slogger.WarnContext(ctx, "step failed", "code", res.CodeOrDefault(), "error", res.ErrorMessage())
			logger.InfoContext(ctx, "run failed", "current", run.Current)
			return nil
		}
		slogger.DebugContext(ctx, "step completed")
	}

	run.Complete()
	if err := e.store.Save(ctx, run); err != nil {
		return err
	}
	logger.InfoContext(ctx, "run completed", "steps", len(run.Steps))
	return nil
}

// markPanicked records a panic that escaped execute as a failed step.
func (e *Engine) markPanicked(ctx context.Context, id string, p any, logger *slog.Logger) {
	run, err := e.store.Load(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "cannot record panic", "error", err)
		return
	}
	if run.Status.IsTerminal() {
		return
	}
	name := ""
	if run.Current < len(run.Steps) {
		name = run.Steps[run.Current].Name()
	}
	run.Record(run.Current, name, state.Failuref("panic: %v", p))
	if err := e.store.Save(ctx, run); err != nil {
		logger.ErrorContext(ctx, "cannot record panic", "error", err)
	}
}

func (e *Engine) env(run *state.Run) action.Env {
	return action.Env{
		WorkDir: e.workDir,
		Environ: e.environ,
		RunID:   run.ID,
		RunName: run.Name,
	}
}
