package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/logging"
)

// NewExecCmd constructs the `azmcp exec` command, a one-shot runner that
// sends a single command through the gateway.
func NewExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec -- az <args...>",
		Short: "Run one Azure CLI command through the gateway",
		Long: `Run one Azure CLI command through the gateway and print its output.

The command goes through the same validation, redaction, and history
recording as commands arriving over MCP or HTTP, so this is the quickest
way to check what a client would get back:

  azmcp exec -- az group list --output table

The exit status is non-zero when the command was rejected or failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			st := openHistoryStore(log)
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			gw, err := buildGateway(log, prometheus.NewRegistry(), st)
			if err != nil {
				return fmt.Errorf("exec: %w", err)
			}

			out := gw.Execute(cmd.Context(), strings.Join(args, " "))
			fmt.Fprint(cmd.OutOrStdout(), out)
			if !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if strings.HasPrefix(out, "Error:") {
				return errors.New("exec: command failed")
			}
			return nil
		},
	}
}
