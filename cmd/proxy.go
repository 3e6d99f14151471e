package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/tunnel"
)

var proxyListen string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the Kerberos CONNECT proxy",
	Long:  "Accepts CONNECT requests and tunnels them through the configured upstream proxy with a Negotiate Proxy-Authorization header.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newBaseApp()
		if err != nil {
			return err
		}
		defer a.close()

		pc := a.cfg.Proxy
		if pc.UpstreamHost == "" {
			return errors.New("proxy.upstream_host is not configured")
		}
		listen := pc.Listen
		if proxyListen != "" {
			listen = proxyListen
		}

		tickets := tunnel.NewTicketChecker(a.logger)
		tickets.Negotiate = pc.Negotiate
		p := &tunnel.Proxy{
			UpstreamHost: pc.UpstreamHost,
			UpstreamPort: pc.UpstreamPort,
			Tokens:       tickets,
			BufferSize:   pc.BufferSize,
			Logger:       a.logger,
		}
		if !tickets.HasTicket(ctx, pc.UpstreamHost) {
			a.logger.Warn("no Kerberos ticket cached yet; CONNECT requests will fail until kinit", "principal", tunnel.ServicePrincipal(pc.UpstreamHost))
		}
		a.logger.Info("proxy listening", "addr", listen, "upstream", pc.UpstreamHost, "port", pc.UpstreamPort)
		return p.ListenAndServe(ctx, listen)
	},
}

func init() {
	proxyCmd.Flags().StringVar(&proxyListen, "listen", "", "Listen address (overrides proxy.listen)")
	rootCmd.AddCommand(proxyCmd)
}
