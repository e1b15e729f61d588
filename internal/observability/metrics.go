package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// toolNames is the closed set of tools the registry can dispatch to. Each
// gets its own call counter so a stuck or runaway tool shows up by name
// rather than folded into a generic "tool calls" total.
var toolNames = []string{
	"fetch_page", "pdf_extract", "seo_audit", "web_search", "reviews_lookup",
	"image_probe", "maps_lookup", "form_detect", "social_find",
}

// Metrics is the centralized Prometheus interface for the enrichment
// engine. Every gauge/counter/histogram here corresponds to something a
// request's run is allowed to report: iteration counts, stop reasons,
// token spend, per-tool call volume, and the confidence the request
// finally cleared.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordRun(outcome)
type Metrics struct {
	// EnrichmentIterations records how many enrichment iterations a run
	// took before reaching a terminal decision.
	// Buckets: 0, 1, 2, 3, 4, 5
	EnrichmentIterations *prometheus.HistogramVec

	// EnrichmentSuccess counts runs by terminal outcome.
	// Labels: outcome (complete|escalated)
	EnrichmentSuccess *prometheus.CounterVec

	// EnrichmentStopReason counts escalations by stop reason.
	// Labels: stop_reason
	EnrichmentStopReason *prometheus.CounterVec

	// EnrichmentTotalTokens tracks tokens consumed per run.
	// Labels: category
	EnrichmentTotalTokens *prometheus.CounterVec

	// EnrichmentAnswerRate measures the fraction of originally-missing
	// questions a run resolved by the time it stopped.
	EnrichmentAnswerRate prometheus.Histogram

	// FinalEnrichmentConfidence records the Validator's confidence at the
	// iteration a run stopped on.
	FinalEnrichmentConfidence prometheus.Histogram

	// ToolCalls counts invocations per tool, keyed by tool name so each
	// tool gets its own series (tool_<name>_calls).
	ToolCalls map[string]prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// process startup.
func NewMetrics() *Metrics {
	m := &Metrics{
		EnrichmentIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rcve_enrichment_iterations",
				Help:    "Number of enrichment iterations a run took before stopping",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"category"},
		),

		EnrichmentSuccess: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rcve_enrichment_success_total",
				Help: "Total number of runs by terminal outcome",
			},
			[]string{"outcome"},
		),

		EnrichmentStopReason: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rcve_enrichment_stop_reason_total",
				Help: "Total number of escalations by stop reason",
			},
			[]string{"stop_reason"},
		),

		EnrichmentTotalTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rcve_enrichment_total_tokens",
				Help: "Total tokens consumed across runs, by request category",
			},
			[]string{"category"},
		),

		EnrichmentAnswerRate: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rcve_enrichment_answer_rate",
				Help:    "Fraction of originally-missing questions resolved by the time a run stopped",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		FinalEnrichmentConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rcve_final_enrichment_confidence",
				Help:    "Validator confidence at the iteration a run stopped on",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		ToolCalls: make(map[string]prometheus.Counter, len(toolNames)),
	}

	for _, name := range toolNames {
		m.ToolCalls[name] = promauto.NewCounter(prometheus.CounterOpts{
			Name: "rcve_tool_" + name + "_calls_total",
			Help: "Total number of calls made to the " + name + " tool",
		})
	}

	return m
}

// RecordToolCall increments the per-tool call counter. Unknown tool names
// are ignored rather than panicking — the registry rejects them before a
// metric would ever be recorded for one.
func (m *Metrics) RecordToolCall(toolName string) {
	if c, ok := m.ToolCalls[toolName]; ok {
		c.Inc()
	}
}

// RecordRunOutcome records the terminal-decision metrics for a completed
// run: the iteration count, stop reason (empty for a completed run), token
// spend, answer rate, and final confidence.
func (m *Metrics) RecordRunOutcome(category, stopReason string, iterations, tokensUsed int, answerRate, finalConfidence float64) {
	outcome := "complete"
	if stopReason != "" {
		outcome = "escalated"
		m.EnrichmentStopReason.WithLabelValues(stopReason).Inc()
	}
	m.EnrichmentSuccess.WithLabelValues(outcome).Inc()
	m.EnrichmentIterations.WithLabelValues(category).Observe(float64(iterations))
	m.EnrichmentTotalTokens.WithLabelValues(category).Add(float64(tokensUsed))
	m.EnrichmentAnswerRate.Observe(answerRate)
	m.FinalEnrichmentConfidence.Observe(finalConfidence)
}
