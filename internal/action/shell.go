package action

import (
	"context"
	"time"

	"github.com/stevehiehn/orquestator/internal/poll"
	"github.com/stevehiehn/orquestator/internal/runner"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Shell runs a command through sh -c. When a poll predicate is set the
// command is re-run until its stdout satisfies it.
type Shell struct {
	Poller *poll.Poller
}

type shellParams struct {
	Command string            `mapstructure:"command" validate:"required"`
	Dir     string            `mapstructure:"dir"`
	Env     map[string]string `mapstructure:"env"`
	Timeout time.Duration     `mapstructure:"timeout"`

	poll.Options `mapstructure:",squash"`
}

func (s *Shell) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p shellParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}

	c := runner.Shell(p.Command)
	c.Dir = env.Path(p.Dir)
	c.Env = runner.MergeEnv(env.Environment(), p.Env)
	c.Timeout = p.Timeout

	if !p.Options.Enabled() || s.Poller == nil {
		return runCommand(ctx, c)
	}
	return s.Poller.Poll(ctx, p.Options, func(ctx context.Context, attempt int) (poll.Observation, error) {
		res, err := runner.Run(ctx, c)
		if err != nil {
			return poll.Observation{}, err
		}
		return poll.Observation{
			Raw:        res.Stdout,
			Parsed:     res.Stdout,
			StatusCode: res.ExitCode,
			OK:         res.ExitCode == 0,
		}, nil
	}), nil
}
