// Package server implements the HTTP server that fronts the Azure CLI
// command gateway with a small REST API.
// The server is started by the `azmcp serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/azmcp-go/internal/azcli"
	"github.com/54b3r/azmcp-go/internal/logging"
)

// defaultHistoryLimit is the number of rows returned by GET /api/history
// when no limit query parameter is supplied.
const defaultHistoryLimit = 50

// maxHistoryLimit caps the limit query parameter so a single request cannot
// drag the whole table into memory.
const maxHistoryLimit = 500

// New constructs a Server from the provided gateway and config.
func New(gw *azcli.Gateway, cfg *Config) (*Server, error) {
	if gw == nil {
		return nil, fmt.Errorf("server: gateway must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast the slowest az command the gateway
		// is allowed to run.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		executor: gw,
		history:  cfg.History,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.AuthToken == "" {
		s.log.Warn("server: API authentication disabled (no auth token configured)")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// api wraps a handler with the protected-route middleware chain:
	// metrics innermost, then rate limiting, then auth outermost so
	// unauthenticated requests are rejected before consuming tokens.
	api := func(name string, h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		handler = s.instrument(name, handler)
		handler = rl.middleware(handler)
		handler = authMiddleware(cfg.AuthToken, handler)
		return handler
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/execute", api("execute", s.handleExecute))
	mux.Handle("GET /api/history", api("history", s.handleHistory))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		fmt.Printf("azmcp server listening on %s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		defer s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleExecute handles POST /api/execute. The gateway's textual contract is
// preserved inside the JSON body: failures travel as "Error: ..." output with
// HTTP 200, and the status code reflects only transport-level problems.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		http.Error(w, "command is required", http.StatusBadRequest)
		return
	}

	s.metrics.executeInFlight.Inc()
	defer s.metrics.executeInFlight.Dec()

	out := s.executor.Execute(r.Context(), req.Command)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(executeResponse{Output: out}); err != nil {
		log.Error("execute encode error", slog.Any("error", err))
	}
}

// handleHistory handles GET /api/history. Rows come back oldest first so a
// client can append them to a scrollback without re-sorting.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	resp := historyResponse{Entries: []historyEntry{}}

	if s.history != nil {
		rows, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			log.Error("history query failed", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		for _, row := range rows {
			resp.Entries = append(resp.Entries, historyEntry{
				StartedAt:  row.StartedAt,
				Command:    row.Command,
				Kind:       row.Kind,
				OK:         row.OK,
				ExitCode:   row.ExitCode,
				DurationMS: row.Duration.Milliseconds(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("history encode error", slog.Any("error", err))
	}
}

// handleHealthz handles GET /healthz for liveness checks.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSONError writes a JSON error body with the given status code.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
