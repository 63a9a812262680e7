package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for genpod. Every recording method is
// safe to call on a nil *Metrics, so components can run without metrics.
type Metrics struct {
	// Run metrics
	Runs             *prometheus.CounterVec
	RunSteps         *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	PhaseTransitions *prometheus.CounterVec

	// Specialist agent metrics
	AgentInvocations *prometheus.CounterVec
	AgentDuration    *prometheus.HistogramVec
	StalledItems     *prometheus.CounterVec

	// RAG cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses prometheus.Counter

	// Language model metrics
	LLMCalls           *prometheus.CounterVec
	LLMLatency         *prometheus.HistogramVec
	LLMRetries         *prometheus.CounterVec
	LLMTokens          *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_runs_total",
				Help: "Total number of supervisor runs by outcome",
			},
			[]string{"outcome"},
		),
		RunSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_steps_total",
				Help: "Total number of supervisor steps",
			},
			[]string{"phase", "route"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genpod_step_duration_seconds",
				Help:    "Supervisor step duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"route"},
		),
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_phase_transitions_total",
				Help: "Total number of project status changes",
			},
			[]string{"from", "to"},
		),

		AgentInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_agent_invocations_total",
				Help: "Total number of specialist agent invocations",
			},
			[]string{"agent", "outcome"},
		),
		AgentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genpod_agent_duration_seconds",
				Help:    "Specialist agent invocation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"agent"},
		),
		StalledItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_stalled_items_total",
				Help: "Work items abandoned after repeated non-progress",
			},
			[]string{"agent"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_rag_cache_hits_total",
				Help: "RAG cache hits by match kind",
			},
			[]string{"match"},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "genpod_rag_cache_misses_total",
				Help: "RAG cache misses",
			},
		),

		LLMCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_llm_calls_total",
				Help: "Total number of language model calls",
			},
			[]string{"provider", "model", "success"},
		),
		LLMLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genpod_llm_latency_seconds",
				Help:    "Language model call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "model"},
		),
		LLMRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_llm_retries_total",
				Help: "Language model call retries after transient failures",
			},
			[]string{"provider"},
		),
		LLMTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_llm_tokens_total",
				Help: "Tokens consumed by language model calls",
			},
			[]string{"provider", "model", "token_type"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_llm_validation_failures_total",
				Help: "Structured outputs rejected by validation",
			},
			[]string{"schema"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genpod_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// ObserveStep records one completed supervisor step.
func (m *Metrics) ObserveStep(phase, route string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunSteps.WithLabelValues(phase, route).Inc()
	m.StepDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveTransition records a project status change. Self transitions are ignored.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

// ObserveAgent records a specialist invocation.
func (m *Metrics) ObserveAgent(agent string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentInvocations.WithLabelValues(agent, outcome(err)).Inc()
	m.AgentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// ObserveStall records an item abandoned by the stall guard.
func (m *Metrics) ObserveStall(agent string) {
	if m == nil {
		return
	}
	m.StalledItems.WithLabelValues(agent).Inc()
}

// ObserveCache records a RAG cache lookup. "", "none" and "miss" count as misses.
func (m *Metrics) ObserveCache(match string) {
	if m == nil {
		return
	}
	if match == "" || match == "none" || match == "miss" {
		m.CacheMisses.Inc()
		return
	}
	m.CacheHits.WithLabelValues(match).Inc()
}

// ObserveLLM records one language model call.
func (m *Metrics) ObserveLLM(provider, model string, inputTokens, outputTokens int, err error, d time.Duration) {
	if m == nil {
		return
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	m.LLMCalls.WithLabelValues(provider, model, success).Inc()
	m.LLMLatency.WithLabelValues(provider, model).Observe(d.Seconds())
	if inputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// ObserveRetry records a retried language model call.
func (m *Metrics) ObserveRetry(provider string) {
	if m == nil {
		return
	}
	m.LLMRetries.WithLabelValues(provider).Inc()
}

// ObserveValidationFailure records a structured output that failed validation.
func (m *Metrics) ObserveValidationFailure(schema string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(schema).Inc()
}

// ObserveRun records the final outcome of a run.
func (m *Metrics) ObserveRun(result string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
}

// ObserveError counts an error by its code.
func (m *Metrics) ObserveError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
