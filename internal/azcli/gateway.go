// Package azcli implements the Azure CLI command gateway: prefix validation,
// synchronous command execution, and the device-code login handshake.
//
// The gateway's outer contract is text in, text out. Success returns the
// captured process output unmodified; every failure — bad prefix, non-zero
// exit, spawn fault, unmatched login scan — comes back as a plain string
// prefixed with "Error:" and nothing is ever raised past the boundary.
// Callers (the MCP tool, the HTTP API, the one-shot CLI) can therefore treat
// the result as an opaque string for whatever is driving them.
package azcli

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/azmcp-go/internal/audit"
	"github.com/54b3r/azmcp-go/internal/logging"
	"github.com/54b3r/azmcp-go/internal/process"
)

// commandPrefix is the only accepted start of a command; anything else is
// rejected before a process exists.
const commandPrefix = "az "

// loginPrefix routes a command to the interactive login flow.
const loginPrefix = "az login"

// prefixErrorText is returned for commands that fail validation.
const prefixErrorText = "Error: Invalid command. Command must start with 'az'."

// Execution kinds recorded in history and metrics.
const (
	KindCommand = "command"
	KindLogin   = "login"
)

// ExecutionRecord is one completed gateway call, as persisted to history.
type ExecutionRecord struct {
	// StartedAt is the UTC time the gateway accepted the command.
	StartedAt time.Time
	// Command is the redacted command text.
	Command string
	// Kind is KindCommand or KindLogin.
	Kind string
	// OK is false when the result carried the error marker.
	OK bool
	// ExitCode is the process exit code, or -1 when unknown (spawn faults,
	// rejected commands, and logins whose process outlives the call).
	ExitCode int
	// Duration is how long the gateway call took.
	Duration time.Duration
}

// Recorder persists execution records. Implementations must not block for
// long; the gateway calls Record on the request path.
type Recorder interface {
	Record(ctx context.Context, rec ExecutionRecord) error
}

// Config configures a Gateway.
type Config struct {
	// Launcher starts child processes. Required.
	Launcher process.Launcher
	// Logger is the structured logger. If nil, [logging.New] is used.
	Logger *slog.Logger
	// History receives one record per execution. Optional; failures are
	// logged, never surfaced to the caller.
	History Recorder
	// Metrics receives per-execution observations. Optional.
	Metrics *Metrics
	// Timeout bounds ordinary command execution. Zero means no timeout,
	// matching the az CLI's own behavior of running until done. It never
	// applies to the background login wait.
	Timeout time.Duration
}

// Gateway is the single entry point for executing Azure CLI commands.
type Gateway struct {
	launcher process.Launcher
	login    *LoginFlow
	registry *SessionRegistry
	history  Recorder
	metrics  *Metrics
	timeout  time.Duration
	log      *slog.Logger
}

// New constructs a Gateway and its login flow.
func New(cfg Config) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registry := NewSessionRegistry()
	return &Gateway{
		launcher: cfg.Launcher,
		login:    NewLoginFlow(cfg.Launcher, registry, log, cfg.Metrics),
		registry: registry,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		timeout:  cfg.Timeout,
		log:      log,
	}
}

// Registry exposes the login session registry, mainly for diagnostics.
func (g *Gateway) Registry() *SessionRegistry {
	return g.registry
}

// Execute runs one Azure CLI command and returns its output as text.
// The result is the raw captured output on success, or an "Error:"-prefixed
// message on any failure. Execute never returns an error and never panics.
func (g *Gateway) Execute(ctx context.Context, command string) string {
	audit.ExecutionStarted(g.log, command)

	if !strings.HasPrefix(command, commandPrefix) {
		g.log.Error("invalid command", "command", audit.Redact(command))
		return prefixErrorText
	}

	kind := KindCommand
	if strings.HasPrefix(command, loginPrefix) {
		kind = KindLogin
	}

	started := time.Now()
	var (
		out  string
		exit int
	)
	switch kind {
	case KindLogin:
		out = g.login.Start(ctx, command)
		// The login process outlives this call; its exit code is unknown.
		exit = -1
	default:
		out, exit = g.runToCompletion(ctx, command)
	}

	ok := !strings.HasPrefix(out, "Error:")
	elapsed := time.Since(started)

	audit.ExecutionFinished(g.log, kind, ok, elapsed)
	g.metrics.observe(kind, ok, elapsed)
	g.record(ctx, ExecutionRecord{
		StartedAt: started.UTC(),
		Command:   audit.Redact(command),
		Kind:      kind,
		OK:        ok,
		ExitCode:  exit,
		Duration:  elapsed,
	})
	return out
}

// runToCompletion executes an ordinary (non-login) command synchronously
// and maps the outcome onto the text contract.
func (g *Gateway) runToCompletion(ctx context.Context, command string) (string, int) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	res := process.Run(ctx, g.launcher, command)
	if res.Err != nil {
		g.log.Error("running azure cli command", "error", res.Err)
		return "Error: " + res.Err.Error(), -1
	}
	if res.ExitCode != 0 {
		g.log.Error("azure cli command failed", "exit_code", res.ExitCode)
		return "Error: " + res.Output, res.ExitCode
	}
	return res.Output, 0
}

// record appends rec to history, logging instead of failing the execution.
func (g *Gateway) record(ctx context.Context, rec ExecutionRecord) {
	if g.history == nil {
		return
	}
	if err := g.history.Record(ctx, rec); err != nil {
		g.log.Warn("recording execution history", "error", err)
	}
}
