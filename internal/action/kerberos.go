package action

import (
	"context"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/tunnel"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// TicketLookup reports whether a service ticket is cached.
type TicketLookup interface {
	HasTicket(ctx context.Context, host string) bool
}

// Kerberos succeeds when a ticket for HTTP/<service_host>@ is cached.
type Kerberos struct {
	Tickets TicketLookup
}

type kerberosParams struct {
	ServiceHost string `mapstructure:"service_host" validate:"required"`
}

func (k *Kerberos) Execute(ctx context.Context, step workflow.Step, env Env) (state.Result, error) {
	var p kerberosParams
	if err := decode(step, &p); err != nil {
		return nil, err
	}
	principal := tunnel.ServicePrincipal(p.ServiceHost)
	if !k.Tickets.HasTicket(ctx, p.ServiceHost) {
		return state.Failuref("No Kerberos ticket found for %s", principal), nil
	}
	return state.Result{state.KeyCode: 0, "service": principal}, nil
}
