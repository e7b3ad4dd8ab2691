package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/azmcp-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: ":8080").
	Addr string
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough to cover slow Azure CLI commands.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /readyz.
	// If empty, /readyz returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// History backs GET /api/history. If nil, the endpoint returns an
	// empty list (history disabled).
	History HistoryReader
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// AuthToken is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	AuthToken string
	// MetricsRegistry receives the server's metric registrations.
	// If nil, prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics.
	// If nil, prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// executor is the interface handleExecute calls to run a command.
// *azcli.Gateway satisfies it; tests inject a fake.
type executor interface {
	// Execute runs one Azure CLI command line and returns its textual result.
	Execute(ctx context.Context, command string) string
}

// HistoryReader is the interface the history endpoint reads from.
// *store.SQLiteStore satisfies it; tests inject a fake.
type HistoryReader interface {
	// Recent returns up to limit most recent executions, oldest first.
	Recent(ctx context.Context, limit int) ([]store.Execution, error)
}

// Server is the HTTP server that fronts the command gateway.
type Server struct {
	// executor runs Azure CLI commands; set to the gateway in production,
	// overridden by a fake in tests.
	executor executor
	// history backs GET /api/history; nil when history is disabled.
	history HistoryReader
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /readyz.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// executeRequest is the JSON body for POST /api/execute.
type executeRequest struct {
	// Command is the full Azure CLI command line to run, e.g. "az vm list".
	Command string `json:"command"`
}

// executeResponse is the JSON response for POST /api/execute.
type executeResponse struct {
	// Output is the gateway result: merged CLI output, a device-code
	// instruction line, or an "Error: ..." message.
	Output string `json:"output"`
}

// historyEntry is one row of the JSON response for GET /api/history.
type historyEntry struct {
	// StartedAt is when the execution began (UTC).
	StartedAt time.Time `json:"startedAt"`
	// Command is the redacted command line that was run.
	Command string `json:"command"`
	// Kind is "command" or "login".
	Kind string `json:"kind"`
	// OK is false when the result carried the error marker.
	OK bool `json:"ok"`
	// ExitCode is the process exit code, or -1 when not applicable.
	ExitCode int `json:"exitCode"`
	// DurationMS is the execution wall-clock time in milliseconds.
	DurationMS int64 `json:"durationMs"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// Entries lists recent executions, oldest first.
	Entries []historyEntry `json:"entries"`
}
