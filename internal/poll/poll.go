// Package poll implements the retry loop shared by executors whose
// underlying operation completes asynchronously.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stevehiehn/orquestator/internal/state"
)

// Observation is what one attempt saw.
type Observation struct {
	Raw        string // response body or process stdout
	Parsed     any    // decoded JSON when available, else Raw
	StatusCode int    // HTTP status or process exit code
	OK         bool   // 2xx response or zero exit code
}

// Operation performs one attempt. attempt is 1-based.
type Operation func(ctx context.Context, attempt int) (Observation, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options are decoded from the step. Zero Retries and an absent Interval
// take the Poller defaults; an explicit interval of 0 polls without waiting.
type Options struct {
	Retries        int      `mapstructure:"retries" validate:"gte=0"`
	Interval       *float64 `mapstructure:"interval" validate:"omitempty,gte=0"`
	StatusField    string   `mapstructure:"status_field"`
	DesiredStatus  any      `mapstructure:"desired_status"`
	ExpectedStatus string   `mapstructure:"expected_status"`
	SuccessWhen    string   `mapstructure:"success_when"`
}

// Enabled reports whether any success predicate is configured.
func (o Options) Enabled() bool {
	return o.SuccessWhen != "" || o.ExpectedStatus != "" || (o.StatusField != "" && o.DesiredStatus != nil)
}

// Poller runs Operations until a predicate holds or attempts run out.
type Poller struct {
	Retries  int
	Interval time.Duration
	Sleep    SleepFunc
	Logger   *slog.Logger
}

// New creates a Poller with the given defaults.
func New(retries int, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{Retries: retries, Interval: interval, Sleep: Sleep, Logger: logger}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Poller) settings(opts Options) (int, time.Duration) {
	retries := opts.Retries
	if retries == 0 {
		retries = p.Retries
	}
	if retries < 1 {
		retries = 1
	}
	interval := p.Interval
	if opts.Interval != nil {
		interval = time.Duration(*opts.Interval * float64(time.Second))
	}
	return retries, interval
}

// Poll executes op up to the configured number of attempts.
//
// Success returns {code: 0, response, attempt}. Exhaustion returns
// {code: 1, error: "<predicate> after N attempts", last_response}.
func (p *Poller) Poll(ctx context.Context, opts Options, op Operation) state.Result {
	pred, err := newPredicate(opts)
	if err != nil {
		return state.Failure(err.Error())
	}
	retries, interval := p.settings(opts)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var last string
	for attempt := 1; attempt <= retries; attempt++ {
		obs, err := op(ctx, attempt)
		if err != nil {
			last = err.Error()
			logger.DebugContext(ctx, "poll attempt failed", "attempt", attempt, "error", err)
		} else {
			last = obs.Raw
			ok, perr := pred.match(obs, attempt)
			if perr != nil {
				logger.DebugContext(ctx, "poll predicate error", "attempt", attempt, "error", perr)
			}
			if ok {
				return state.Result{
					state.KeyCode:     0,
					state.KeyResponse: obs.Parsed,
					state.KeyAttempt:  attempt,
				}
			}
			logger.DebugContext(ctx, "poll condition not met", "attempt", attempt, "status_code", obs.StatusCode)
		}

		if attempt < retries {
			if err := sleep(ctx, interval); err != nil {
				return state.Result{
					state.KeyCode:         1,
					state.KeyError:        fmt.Sprintf("polling cancelled: %v", err),
					state.KeyAttempt:      attempt,
					state.KeyLastResponse: last,
				}
			}
		}
	}

	return state.Result{
		state.KeyCode:         1,
		state.KeyError:        fmt.Sprintf("%s after %d attempts", pred.describe(), retries),
		state.KeyLastResponse: last,
	}
}
