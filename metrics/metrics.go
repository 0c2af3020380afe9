package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "distill"

// Metrics holds the run counters. Each instance owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Runs            *prometheus.CounterVec
	Steps           prometheus.Counter
	ControllerCalls *prometheus.CounterVec
	DelegateCalls   *prometheus.CounterVec
	Tokens          *prometheus.CounterVec
	Fragments       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total runs by terminal status",
			},
			[]string{"status"},
		),
		Steps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total controller steps",
			},
		),
		ControllerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "controller_calls_total",
				Help:      "Total controller calls by result",
			},
			[]string{"result"},
		),
		DelegateCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delegate_calls_total",
				Help:      "Total delegate calls by result",
			},
			[]string{"result"},
		),
		Tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Total tokens by role and direction",
			},
			[]string{"role", "direction"},
		),
		Fragments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_total",
				Help:      "Total executed fragments by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
	}
}

func (Module) Metrics() *Metrics {
	return New()
}

const (
	RoleController = "controller"
	RoleDelegate   = "delegate"

	ResultOK    = "ok"
	ResultError = "error"

	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeViolation = "violation"
	OutcomeFinal     = "final"
)

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) ObserveControllerCall(inputTokens, outputTokens int, err error) {
	m.ControllerCalls.WithLabelValues(resultOf(err)).Inc()
	m.addTokens(RoleController, inputTokens, outputTokens)
}

func (m *Metrics) ObserveDelegateCall(inputTokens, outputTokens int, err error) {
	m.DelegateCalls.WithLabelValues(resultOf(err)).Inc()
	m.addTokens(RoleDelegate, inputTokens, outputTokens)
}

func (m *Metrics) addTokens(role string, inputTokens, outputTokens int) {
	m.Tokens.WithLabelValues(role, "input").Add(float64(inputTokens))
	m.Tokens.WithLabelValues(role, "output").Add(float64(outputTokens))
}

func (m *Metrics) ObserveFragment(outcome string) {
	m.Fragments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(status string, steps int, elapsed time.Duration) {
	m.Runs.WithLabelValues(status).Inc()
	m.Steps.Add(float64(steps))
	m.RunDuration.Observe(elapsed.Seconds())
}

// WriteToTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
