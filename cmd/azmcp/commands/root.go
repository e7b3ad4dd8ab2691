// Package commands defines the azmcp command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/audit"
	"github.com/54b3r/azmcp-go/internal/config"
	"github.com/54b3r/azmcp-go/internal/logging"
)

// configPath is bound to the persistent --config flag.
var configPath string

// loadedConfigPath records which config file Load actually used, for the
// audit log. Empty when no file was found.
var loadedConfigPath string

// NewRootCmd constructs the root azmcp command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "azmcp",
		Short: "Azure CLI bridge for MCP clients",
		Long: `azmcp runs Azure CLI commands on behalf of MCP clients.

It serves a single execute-azure-cli-command tool over MCP stdio (azmcp mcp)
or over HTTP (azmcp serve), handles device-code logins by returning the
sign-in instructions to the caller, and can authenticate with a service
principal at startup via the AZURE_CREDENTIALS environment variable.

Configuration comes from environment variables or a YAML config file
(default ~/.azmcp/config.yaml); environment variables win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.azmcp/config.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMCPCmd())
	rootCmd.AddCommand(NewExecCmd())
	rootCmd.AddCommand(NewLoginCmd())
	rootCmd.AddCommand(NewDoctorCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
