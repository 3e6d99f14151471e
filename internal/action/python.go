package action

import (
	"context"
	"path/filepath"
	"time"

	"github.com/stevehiehn/orquestator/internal/runner"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Python runs a script with a virtualenv interpreter or the system python.
type Python struct{}

type pythonParams struct {
	Script  string        `mapstructure:"script" validate:"required"`
	Venv    string        `mapstructure:"venv"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (Python) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p pythonParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	script := env.Path(p.Script)
	if !isFile(script) {
		return state.Failuref("Script not found: %s", script), nil
	}

	interpreter := "python"
	if p.Venv != "" {
		if venv := env.Path(p.Venv); isDir(venv) {
			interpreter = filepath.Join(venv, "bin", "python")
			if !isFile(interpreter) {
				return state.Failuref("Python binary not found in venv: %s", interpreter), nil
			}
		}
	}

	return runCommand(ctx, runner.Command{
		Path:    interpreter,
		Args:    append([]string{script}, p.Args...),
		Dir:     filepath.Dir(script),
		Env:     env.Environment(),
		Timeout: p.Timeout,
	})
}
