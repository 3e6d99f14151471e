package action

import (
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/stevehiehn/orquestator/internal/config"
	"github.com/stevehiehn/orquestator/internal/poll"
	"github.com/stevehiehn/orquestator/internal/tunnel"
)

// Builtin returns a registry holding every built-in executor.
func Builtin(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	apiPoller := poll.New(cfg.Polling.Retries, cfg.PollInterval(), logger)
	commandPoller := poll.New(cfg.Polling.Command.Retries, cfg.CommandPollInterval(), logger)

	r := NewRegistry()
	r.Logger = logger
	r.Register("noop", Noop{})
	r.Register("shell", &Shell{Poller: commandPoller})
	r.Register("api", NewAPI(cfg.HTTP.Timeout, apiPoller))
	r.Register("jira", NewJira(resty.New().SetTimeout(cfg.HTTP.Timeout)))
	r.Register("npm", &NPM{})
	r.Register("cypress", &Cypress{Modules: cfg.Cypress.Modules})
	r.Register("python", Python{})
	r.Register("file", File{})
	r.Register("json", JSON{})
	r.Register("kerberos", &Kerberos{Tickets: tunnel.NewTicketChecker(logger)})
	return r
}
