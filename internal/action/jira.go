package action

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// Jira posts a comment on an issue.
type Jira struct {
	client *resty.Client
}

// NewJira creates the executor on top of a shared HTTP client.
func NewJira(client *resty.Client) *Jira {
	return &Jira{client: client}
}

type jiraParams struct {
	JiraURL string `mapstructure:"jira_url" validate:"required"`
	Issue   string `mapstructure:"issue" validate:"required"`
	User    string `mapstructure:"user" validate:"required"`
	Token   string `mapstructure:"token" validate:"required"`
	Comment string `mapstructure:"comment" validate:"required"`
}

func (j *Jira) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p jiraParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	url := strings.TrimRight(p.JiraURL, "/") + "/issue/" + p.Issue + "/comment"

	resp, err := j.client.R().
		SetContext(ctx).
		SetBasicAuth(p.User, p.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"body": p.Comment}).
		Post(url)
	if err != nil {
		return nil, runerrors.NewTransient("posting jira comment", err)
	}

	code := 0
	if !resp.IsSuccess() {
		code = 1
	}
	return state.Result{
		state.KeyCode: code,
		state.KeyOut:  resp.String(),
		"status_code": resp.StatusCode(),
	}, nil
}
