package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/logging"
)

// NewLoginCmd constructs the `azmcp login` command, which starts a
// device-code login and waits for it to finish.
func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [-- az-login-args...]",
		Short: "Log in to Azure with a device code",
		Long: `Start an Azure device-code login through the gateway.

The sign-in instructions are printed as soon as az emits them; the command
then waits for the login to complete so the credentials are on disk before
it exits. Extra arguments are passed through to az login:

  azmcp login -- --tenant 00000000-0000-0000-0000-000000000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()

			st := openHistoryStore(log)
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			gw, err := buildGateway(log, prometheus.NewRegistry(), st)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			command := "az login"
			if len(args) > 0 {
				command += " " + strings.Join(args, " ")
			}

			out := gw.Execute(ctx, command)
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
			if strings.HasPrefix(out, "Error:") {
				return errors.New("login: failed to start device-code login")
			}

			// Execute returns as soon as az prints the device-code
			// instructions. Block on the process so the user can finish the
			// browser flow before we exit.
			if h := gw.Registry().Current(); h != nil {
				code, err := h.Wait(ctx)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				if code != 0 {
					return fmt.Errorf("login: az exited with code %d", code)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login complete.")
			return nil
		},
	}
}
