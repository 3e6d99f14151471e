// Package action maps step types to the executors that run them.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/template"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Executor runs one step and reports a uniform result. Implementations
// must not keep references to the step or env after returning.
type Executor interface {
	Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step workflow.Step, env Env) (state.Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	return f(ctx, step, env)
}

// Registry is the step type table.
type Registry struct {
	Logger *slog.Logger

	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{Logger: slog.Default(), executors: map[string]Executor{}}
}

// Register binds stepType to ex, replacing any previous binding.
func (r *Registry) Register(stepType string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[stepType] = ex
}

// Lookup returns the executor for stepType.
func (r *Registry) Lookup(stepType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[stepType]
	if !ok {
		return nil, runerrors.NewUnknownStepType(stepType)
	}
	return ex, nil
}

// Types returns the registered step types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Invoke runs step through its executor and never fails: lookup errors,
// placeholder errors, returned errors, panics and results that cannot be
// persisted all come back as {code: 1, error: ...}. A nil result with no
// error is returned as an empty result, which the engine treats as a
// failure.
func (r *Registry) Invoke(ctx context.Context, step workflow.Step, env Env) state.Result {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := r.invoke(ctx, logger, step, env)
	if _, err := json.Marshal(res); err != nil {
		logger.WarnContext(ctx, "executor returned unencodable result", "step_type", step.Type(), "error", err)
		return state.Failuref("unencodable result: %v", err)
	}
	return res
}

func (r *Registry) invoke(ctx context.Context, logger *slog.Logger, step workflow.Step, env Env) state.Result {
	ex, err := r.Lookup(step.Type())
	if err != nil {
		logger.WarnContext(ctx, "step type not registered", "step_type", step.Type())
		return failure(nil, err)
	}

	resolved, err := template.ResolveAll(step, env.templateContext())
	if err != nil {
		err = runerrors.NewValidationError(fmt.Sprintf("%s: %v", step.Type(), err), "check {{env.*}} and {{run.*}} placeholders")
		return failure(nil, err)
	}

	res, err := call(ctx, ex, workflow.Step(resolved), env)
	if err != nil {
		logger.WarnContext(ctx, "executor error", "step_type", step.Type(), "error", err)
		return failure(res, err)
	}
	if res == nil {
		return state.Result{}
	}
	return res
}

func call(ctx context.Context, ex Executor, step workflow.Step, env Env) (res state.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return ex.Execute(ctx, step, env)
}

// failure merges partial executor output with the error. An existing
// non-zero code is kept.
func failure(partial state.Result, err error) state.Result {
	out := state.Result{}
	for k, v := range partial {
		out[k] = v
	}
	if c, ok := out.Code(); !ok || c == 0 {
		out[state.KeyCode] = 1
	}
	out[state.KeyError] = errorMessage(err)
	if t := runerrors.TypeOf(err); t != "" {
		out["error_type"] = t
	}
	return out
}

func errorMessage(err error) string {
	var re *runerrors.RunError
	if errors.As(err, &re) {
		if re.Cause != nil {
			return re.Message + ": " + re.Cause.Error()
		}
		return re.Message
	}
	return err.Error()
}
