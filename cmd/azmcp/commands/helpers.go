package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/azmcp-go/internal/azcli"
	"github.com/54b3r/azmcp-go/internal/process"
	"github.com/54b3r/azmcp-go/internal/store"
)

// envOr returns the value of the environment variable key, or fallback when
// it is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLauncher builds the process launcher selected by AZMCP_EXEC_MODE:
// "shell" (the default) runs the command line through a shell so pipes and
// quoting work, "argv" splits on whitespace and execs directly.
func newLauncher() (process.Launcher, error) {
	mode := envOr("AZMCP_EXEC_MODE", "shell")
	switch mode {
	case "shell":
		return &process.ShellLauncher{Shell: os.Getenv("AZMCP_SHELL")}, nil
	case "argv":
		return &process.ArgvLauncher{}, nil
	default:
		return nil, fmt.Errorf("unknown AZMCP_EXEC_MODE %q (want shell or argv)", mode)
	}
}

// execTimeout parses AZMCP_EXEC_TIMEOUT. Zero means no timeout, matching the
// az CLI's own run-until-done behavior.
func execTimeout() (time.Duration, error) {
	raw := os.Getenv("AZMCP_EXEC_TIMEOUT")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid AZMCP_EXEC_TIMEOUT %q: %w", raw, err)
	}
	return d, nil
}

// storeRecorder adapts the history store to the gateway's Recorder
// interface.
type storeRecorder struct {
	db store.ExecutionStore
}

func (r *storeRecorder) Record(ctx context.Context, rec azcli.ExecutionRecord) error {
	return r.db.Append(ctx, store.Execution{
		StartedAt: rec.StartedAt,
		Command:   rec.Command,
		Kind:      rec.Kind,
		OK:        rec.OK,
		ExitCode:  rec.ExitCode,
		Duration:  rec.Duration,
	})
}

// openHistoryStore opens the SQLite history store. AZMCP_HISTORY_DB
// overrides the default path (~/.azmcp/history.db); the sentinel value
// "disabled" turns history off. Open failures disable history with a
// warning rather than aborting startup — losing the audit trail is better
// than refusing to serve.
func openHistoryStore(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("AZMCP_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("command history disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("could not resolve history DB path, history disabled", slog.Any("error", err))
			return nil
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		log.Warn("failed to open history store, history disabled",
			slog.String("path", dbPath),
			slog.Any("error", err))
		return nil
	}
	log.Debug("history store open", slog.String("path", dbPath))
	return st
}

// buildGateway wires the launcher, metrics, and history recorder into a
// command gateway. st may be nil (history disabled).
func buildGateway(log *slog.Logger, reg prometheus.Registerer, st *store.SQLiteStore) (*azcli.Gateway, error) {
	launcher, err := newLauncher()
	if err != nil {
		return nil, err
	}
	timeout, err := execTimeout()
	if err != nil {
		return nil, err
	}

	cfg := azcli.Config{
		Launcher: launcher,
		Logger:   log,
		Metrics:  azcli.NewMetrics(reg),
		Timeout:  timeout,
	}
	if st != nil {
		cfg.History = &storeRecorder{db: st}
	}
	return azcli.New(cfg), nil
}
