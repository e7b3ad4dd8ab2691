package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/azcli"
	"github.com/54b3r/azmcp-go/internal/logging"
	"github.com/54b3r/azmcp-go/internal/server"
)

// NewServeCmd constructs the `azmcp serve` command, which runs the HTTP
// server.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the azmcp HTTP server",
		Long: `Start the azmcp HTTP server.

The server exposes POST /api/execute for running Azure CLI commands,
GET /api/history for the execution log, plus health, readiness, and
Prometheus metrics endpoints. When AZMCP_AUTH_TOKEN is set, the API
endpoints require it as a bearer token.

If AZURE_CREDENTIALS holds a service principal JSON document, the server
logs in with it before accepting requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st := openHistoryStore(log)
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			reg := prometheus.NewRegistry()
			gw, err := buildGateway(log, reg, st)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Authenticate before accepting requests, like the az CLI
			// itself would. Missing credentials only warn; login failures
			// are reported and the server starts anyway so interactive
			// logins remain possible.
			azcli.BootstrapLogin(ctx, gw, log, os.Getenv(azcli.CredentialsEnv))

			var rps float64
			if v := os.Getenv("AZMCP_RATE_RPS"); v != "" {
				rps, err = strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("serve: invalid AZMCP_RATE_RPS %q: %w", v, err)
				}
			}
			var burst int
			if v := os.Getenv("AZMCP_RATE_BURST"); v != "" {
				burst, err = strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("serve: invalid AZMCP_RATE_BURST %q: %w", v, err)
				}
			}

			if addr == "" {
				addr = envOr("AZMCP_ADDR", ":8080")
			}

			pingers := []server.Pinger{server.NewBinaryPinger("az")}
			if st != nil {
				pingers = append(pingers, server.NewStorePinger(st))
			}

			serverCfg := &server.Config{
				Addr:            addr,
				Logger:          log,
				Pingers:         pingers,
				AuthToken:       os.Getenv("AZMCP_AUTH_TOKEN"),
				RateLimit:       rps,
				RateBurst:       burst,
				MetricsRegistry: reg,
				MetricsGatherer: reg,
			}
			if st != nil {
				serverCfg.History = st
			}

			srv, err := server.New(gw, serverCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default AZMCP_ADDR or :8080)")

	return cmd
}
