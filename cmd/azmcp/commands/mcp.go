package commands

import (
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/azcli"
	"github.com/54b3r/azmcp-go/internal/logging"
	"github.com/54b3r/azmcp-go/internal/tools"
	"github.com/54b3r/azmcp-go/internal/version"
)

// NewMCPCmd constructs the `azmcp mcp` command, which serves the tool over
// MCP stdio. Stdout carries the protocol stream, so every log line goes to
// stderr.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Azure CLI tool over MCP stdio",
		Long: `Serve the execute-azure-cli-command tool over MCP stdio.

This is the mode MCP clients launch azmcp in. The process reads protocol
messages from stdin and writes responses to stdout until the client closes
the stream.

If AZURE_CREDENTIALS holds a service principal JSON document, the tool
logs in with it before serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st := openHistoryStore(log)
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			gw, err := buildGateway(log, prometheus.NewRegistry(), st)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			azcli.BootstrapLogin(ctx, gw, log, os.Getenv(azcli.CredentialsEnv))

			s := mcpserver.NewMCPServer(
				"azmcp",
				version.Version,
				mcpserver.WithToolCapabilities(false),
				mcpserver.WithRecovery(),
			)
			tools.Register(s, tools.NewExecuteTool(gw))

			log.Info("mcp server listening on stdio")
			if err := mcpserver.ServeStdio(s); err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		},
	}
}
