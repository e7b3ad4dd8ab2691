package azcli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for gateway executions. A nil
// *Metrics is valid and records nothing, so wiring metrics stays optional
// (the stdio MCP mode has no scrape endpoint).
type Metrics struct {
	// commandsTotal counts completed executions, partitioned by kind
	// ("command" or "login") and outcome ("ok" or "error").
	commandsTotal *prometheus.CounterVec

	// commandDurationSeconds records wall-clock execution duration by kind.
	// For logins this covers only the synchronous scan phase, not the
	// background wait.
	commandDurationSeconds *prometheus.HistogramVec

	// loginInterruptsTotal counts previous login processes terminated
	// because a newer login replaced them.
	loginInterruptsTotal prometheus.Counter
}

// NewMetrics registers the gateway metrics against reg and returns the
// populated Metrics. promauto.With(reg) is used so that each call registers
// into the provided registry rather than the global default — this keeps
// unit tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "azmcp",
			Name:      "commands_total",
			Help:      "Total number of Azure CLI executions completed, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),

		commandDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "azmcp",
			Name:      "command_duration_seconds",
			Help:      "Wall-clock duration of Azure CLI executions.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),

		loginInterruptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "azmcp",
			Name:      "login_interrupts_total",
			Help:      "Number of in-flight login processes terminated by a newer login.",
		}),
	}
}

// observe records one completed execution.
func (m *Metrics) observe(kind string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.commandsTotal.WithLabelValues(kind, outcome).Inc()
	m.commandDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// loginInterrupted records the termination of a replaced login process.
func (m *Metrics) loginInterrupted() {
	if m == nil {
		return
	}
	m.loginInterruptsTotal.Inc()
}
