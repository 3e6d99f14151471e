package action

import (
	"context"
	"fmt"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/params"
	"github.com/stevehiehn/orquestator/internal/runner"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// decode fills out from the step's parameters.
func decode(step workflow.Step, out any) error {
	if err := params.Decode(step, out); err != nil {
		return runerrors.NewValidationError(fmt.Sprintf("%s: %v", step.Type(), err), "")
	}
	return nil
}

// commandResult converts a finished process into {code, out, err}.
func commandResult(res *runner.Result) state.Result {
	return state.Result{
		state.KeyCode: res.ExitCode,
		state.KeyOut:  res.Stdout,
		state.KeyErr:  res.Stderr,
	}
}

// runCommand runs c and folds timeouts and cancellation into a result that
// keeps the partial output.
func runCommand(ctx context.Context, c runner.Command) (state.Result, error) {
	res, err := runner.Run(ctx, c)
	if err != nil {
		if res != nil {
			return commandResult(res), err
		}
		return nil, err
	}
	return commandResult(res), nil
}
