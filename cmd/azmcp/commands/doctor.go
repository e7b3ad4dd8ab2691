package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/azmcp-go/internal/azcli"
	"github.com/54b3r/azmcp-go/internal/process"
	"github.com/54b3r/azmcp-go/internal/store"
)

// doctorProbeTimeout bounds the az version probe so a wedged az install
// cannot hang the doctor.
const doctorProbeTimeout = 15 * time.Second

// errSkipped marks a check that could not run because an earlier one
// failed. Skipped checks do not count as failures.
var errSkipped = errors.New("skipped")

// doctorCheck is one named environment check. run returns a human detail
// string on success.
type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// NewDoctorCmd constructs the `azmcp doctor` command, which checks that the
// environment can actually serve Azure CLI commands.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the azmcp environment",
		Long: `Check that everything azmcp needs is in place: the az CLI, the
service principal credentials (if configured), the history store, and the
config file. Exits non-zero when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := []doctorCheck{
				{name: "az binary", run: checkAzBinary},
				{name: "az version", run: checkAzVersion},
				{name: "credentials", run: checkCredentials},
				{name: "history store", run: checkHistoryStore},
				{name: "config file", run: checkConfigFile},
			}

			failed := 0
			for _, c := range checks {
				detail, err := c.run(cmd.Context())
				switch {
				case errors.Is(err, errSkipped):
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s skip  %s\n", c.name, detail)
				case err != nil:
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s fail  %v\n", c.name, err)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s ok    %s\n", c.name, detail)
				}
			}

			if failed > 0 {
				return fmt.Errorf("doctor: %d check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkAzBinary(ctx context.Context) (string, error) {
	path, err := exec.LookPath("az")
	if err != nil {
		return "", fmt.Errorf("az not found on PATH: %w", err)
	}
	return path, nil
}

// checkAzVersion runs `az --version` through the same launcher the gateway
// uses, so a broken shell configuration shows up here too.
func checkAzVersion(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("az"); err != nil {
		return "az not found on PATH", errSkipped
	}

	launcher, err := newLauncher()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	res := process.Run(ctx, launcher, "az --version")
	if res.Err != nil {
		return "", fmt.Errorf("probe failed: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("az --version exited with code %d", res.ExitCode)
	}

	// First line reads "azure-cli  <version>"; collapse the padding.
	line, _, _ := strings.Cut(res.Output, "\n")
	return strings.Join(strings.Fields(line), " "), nil
}

func checkCredentials(ctx context.Context) (string, error) {
	raw := os.Getenv(azcli.CredentialsEnv)
	if raw == "" {
		return "not set (device-code login only)", nil
	}
	if _, err := azcli.LoadCredentials(raw); err != nil {
		return "", err
	}
	return "service principal configured", nil
}

func checkHistoryStore(ctx context.Context) (string, error) {
	dbPath := os.Getenv("AZMCP_HISTORY_DB")
	if dbPath == "disabled" {
		return "disabled", nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return "", err
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = st.Close() }()

	if err := st.Ping(ctx); err != nil {
		return "", err
	}
	return dbPath, nil
}

func checkConfigFile(ctx context.Context) (string, error) {
	if loadedConfigPath == "" {
		return "none found (environment only)", nil
	}
	return loadedConfigPath, nil
}
