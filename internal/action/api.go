package action

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/poll"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// API polls an HTTP endpoint until the response satisfies the step's
// predicate, or any 2xx when none is given.
type API struct {
	client *resty.Client
	poller *poll.Poller
}

// NewAPI creates the executor. timeout bounds each request.
func NewAPI(timeout time.Duration, poller *poll.Poller) *API {
	return &API{
		client: resty.New().SetTimeout(timeout),
		poller: poller,
	}
}

type apiParams struct {
	URL     string            `mapstructure:"url" validate:"required"`
	Method  string            `mapstructure:"method" default:"GET"`
	Headers map[string]string `mapstructure:"headers"`
	Query   map[string]string `mapstructure:"query"`
	Body    any               `mapstructure:"body"`
	Timeout time.Duration     `mapstructure:"timeout"`

	poll.Options `mapstructure:",squash"`
}

func (a *API) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p apiParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	method := strings.ToUpper(p.Method)

	return a.poller.Poll(ctx, p.Options, func(ctx context.Context, attempt int) (poll.Observation, error) {
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		req := a.client.R().
			SetContext(ctx).
			SetHeaders(p.Headers).
			SetQueryParams(p.Query)
		if p.Body != nil {
			req.SetBody(p.Body)
		}
		resp, err := req.Execute(method, p.URL)
		if err != nil {
			return poll.Observation{}, runerrors.NewTransient(method+" "+p.URL, err)
		}
		return observe(resp), nil
	}), nil
}

// observe decodes JSON bodies and falls back to raw text.
func observe(resp *resty.Response) poll.Observation {
	raw := resp.String()
	var parsed any = raw
	if strings.Contains(resp.Header().Get("Content-Type"), "application/json") {
		var v any
		if err := json.Unmarshal(resp.Body(), &v); err == nil {
			parsed = v
		}
	}
	return poll.Observation{
		Raw:        raw,
		Parsed:     parsed,
		StatusCode: resp.StatusCode(),
		OK:         resp.IsSuccess(),
	}
}
