// Package tunnel relays CONNECT requests through an upstream proxy that
// requires Kerberos (Negotiate) authentication.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/stevehiehn/orquestator/internal/runner"
)

// ErrNoTicket is returned when no usable ticket is cached.
var ErrNoTicket = errors.New("no kerberos ticket")

// TokenSource produces the Proxy-Authorization value for host.
type TokenSource interface {
	Token(ctx context.Context, host string) (string, error)
}

// TicketChecker inspects the credential cache with klist.
type TicketChecker struct {
	// Command lists cached tickets. Defaults to klist.
	Command runner.Command
	// Negotiate is sent after "Negotiate " once a ticket is found. When
	// empty the matched service principal is sent.
	Negotiate string
	Logger    *slog.Logger
}

// NewTicketChecker creates a checker running klist.
func NewTicketChecker(logger *slog.Logger) *TicketChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketChecker{Command: runner.Command{Path: "klist"}, Logger: logger}
}

// ServicePrincipal is the principal prefix looked up for host.
func ServicePrincipal(host string) string {
	return "HTTP/" + host + "@"
}

// HasTicket reports whether a ticket for HTTP/<host>@ is cached. A missing
// or failing klist counts as no ticket.
func (c *TicketChecker) HasTicket(ctx context.Context, host string) bool {
	cmd := c.Command
	if cmd.Path == "" {
		cmd.Path = "klist"
	}
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		c.logger().WarnContext(ctx, "klist not available", "error", err)
		return false
	}
	if res.ExitCode != 0 {
		c.logger().WarnContext(ctx, "klist failed", "exit_code", res.ExitCode, "stderr", res.Stderr)
		return false
	}
	pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(ServicePrincipal(host)))
	if !pattern.MatchString(res.Stdout) {
		c.logger().WarnContext(ctx, "no kerberos ticket", "service", ServicePrincipal(host))
		return false
	}
	c.logger().DebugContext(ctx, "found kerberos ticket", "service", ServicePrincipal(host))
	return true
}

// Token returns the Negotiate header value, or ErrNoTicket.
func (c *TicketChecker) Token(ctx context.Context, host string) (string, error) {
	if !c.HasTicket(ctx, host) {
		return "", fmt.Errorf("%w for %s", ErrNoTicket, ServicePrincipal(host))
	}
	value := c.Negotiate
	if value == "" {
		value = ServicePrincipal(host)
	}
	return "Negotiate " + value, nil
}

func (c *TicketChecker) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
