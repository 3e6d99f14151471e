package action

import (
	"context"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Noop succeeds without doing anything, or echoes a fixed code.
type Noop struct{}

type noopParams struct {
	Code int `mapstructure:"code"`
}

func (Noop) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p noopParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	return state.Result{state.KeyCode: p.Code}, nil
}
