package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction orchestrator.
type Metrics struct {
	ProviderCallsTotal     *prometheus.CounterVec
	ProviderCallDurationMs *prometheus.HistogramVec
	ProviderRetriesTotal   *prometheus.CounterVec
	AttemptsTotal          *prometheus.CounterVec
	FallbackTotal          *prometheus.CounterVec
	ParseStrategyTotal     *prometheus.CounterVec
	TokensTotal            *prometheus.CounterVec
	CostUSDTotal           *prometheus.CounterVec
	AutoDisabledTotal      *prometheus.CounterVec
	ModelActive            *prometheus.GaugeVec
	BatchDurationMs        prometheus.Histogram
	ScreeningTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics with reg. Tests pass a private registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_provider_calls_total",
			Help: "Provider calls after retries, by outcome.",
		}, []string{"model", "backend", "status"}),

		ProviderCallDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictor_provider_call_duration_ms",
			Help:    "Provider call duration in milliseconds, including retries and backoff.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 90000, 180000},
		}, []string{"model", "backend"}),

		ProviderRetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_provider_retries_total",
			Help: "Retried provider requests.",
		}, []string{"model", "backend"}),

		AttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_attempts_total",
			Help: "Prediction attempts by requested model, outcome and whether a fallback served them.",
		}, []string{"model", "outcome", "fallback"}),

		FallbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_fallback_total",
			Help: "Fallback decisions by requested model.",
		}, []string{"model", "result"}),

		ParseStrategyTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_parse_strategy_total",
			Help: "Successful parses by extraction strategy.",
		}, []string{"strategy"}),

		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_tokens_total",
			Help: "Total tokens processed.",
		}, []string{"model", "direction"}),

		CostUSDTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_cost_usd_total",
			Help: "Estimated total cost in USD.",
		}, []string{"model", "fallback"}),

		AutoDisabledTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_model_auto_disabled_total",
			Help: "Transitions of a model into the auto-disabled state.",
		}, []string{"model"}),

		ModelActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predictor_model_active",
			Help: "1 when the model takes part in batches, 0 when auto-disabled.",
		}, []string{"model"}),

		BatchDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_batch_duration_ms",
			Help:    "Wall time of one prediction batch across all models.",
			Buckets: []float64{1000, 5000, 10000, 30000, 60000, 120000, 300000},
		}),

		ScreeningTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predictor_screening_total",
			Help: "Inbound matches flagged or blocked by field screening.",
		}, []string{"action", "rule"}),
	}
}

// ProviderLabels holds the label values for one provider call.
type ProviderLabels struct {
	Model      string
	Backend    string
	Status     string
	DurationMs float64
	Retries    int
}

// RecordProviderCall records metrics for a finished provider call.
func (m *Metrics) RecordProviderCall(labels ProviderLabels) {
	m.ProviderCallsTotal.WithLabelValues(labels.Model, labels.Backend, labels.Status).Inc()
	m.ProviderCallDurationMs.WithLabelValues(labels.Model, labels.Backend).Observe(labels.DurationMs)
	if labels.Retries > 0 {
		m.ProviderRetriesTotal.WithLabelValues(labels.Model, labels.Backend).Add(float64(labels.Retries))
	}
}

// AttemptLabels holds the label values for a finished prediction attempt.
type AttemptLabels struct {
	Model            string
	Outcome          string
	UsedFallback     bool
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// RecordAttempt records metrics for a finished prediction attempt.
func (m *Metrics) RecordAttempt(labels AttemptLabels) {
	fb := strconv.FormatBool(labels.UsedFallback)
	m.AttemptsTotal.WithLabelValues(labels.Model, labels.Outcome, fb).Inc()

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "completion").Add(float64(labels.CompletionTokens))
	}
	if labels.CostUSD > 0 {
		m.CostUSDTotal.WithLabelValues(labels.Model, fb).Add(labels.CostUSD)
	}
}

// RecordFallback records a fallback decision: "served", "exhausted" or "unavailable".
func (m *Metrics) RecordFallback(model, result string) {
	m.FallbackTotal.WithLabelValues(model, result).Inc()
}

func (m *Metrics) RecordParseStrategy(strategy string) {
	m.ParseStrategyTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) RecordAutoDisabled(model string) {
	m.AutoDisabledTotal.WithLabelValues(model).Inc()
	m.ModelActive.WithLabelValues(model).Set(0)
}

func (m *Metrics) SetModelActive(model string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.ModelActive.WithLabelValues(model).Set(v)
}

func (m *Metrics) RecordBatch(durationMs float64) {
	m.BatchDurationMs.Observe(durationMs)
}

func (m *Metrics) RecordScreening(action, rule string) {
	m.ScreeningTotal.WithLabelValues(action, rule).Inc()
}
