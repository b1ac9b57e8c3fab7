package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestNewMetricsWith(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	if m.ProviderCallsTotal == nil || m.AttemptsTotal == nil || m.FallbackTotal == nil {
		t.Fatal("expected counters to be created")
	}
	if m.ModelActive == nil || m.BatchDurationMs == nil {
		t.Fatal("expected gauge and histogram to be created")
	}
}

func TestNewMetricsWith_SeparateRegistries(t *testing.T) {
	// Two private registries must not collide
	NewMetricsWith(prometheus.NewRegistry())
	NewMetricsWith(prometheus.NewRegistry())
}

func TestRecordProviderCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordProviderCall(ProviderLabels{Model: "deepseek-r1", Backend: "synthetic", Status: "success", DurationMs: 1200, Retries: 2})
	m.RecordProviderCall(ProviderLabels{Model: "deepseek-r1", Backend: "synthetic", Status: "timeout", DurationMs: 90000})

	if v := counterValue(t, m.ProviderCallsTotal.WithLabelValues("deepseek-r1", "synthetic", "success")); v != 1 {
		t.Errorf("success calls = %v, want 1", v)
	}
	if v := counterValue(t, m.ProviderRetriesTotal.WithLabelValues("deepseek-r1", "synthetic")); v != 2 {
		t.Errorf("retries = %v, want 2", v)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "predictor_provider_call_duration_ms" {
			found = true
			if got := f.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
				t.Errorf("duration samples = %d, want 2", got)
			}
		}
	}
	if !found {
		t.Error("duration histogram not gathered")
	}
}

func TestRecordAttempt(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordAttempt(AttemptLabels{Model: "qwen", Outcome: "success", UsedFallback: true, PromptTokens: 100, CompletionTokens: 40, CostUSD: 0.01})
	m.RecordAttempt(AttemptLabels{Model: "qwen", Outcome: "parse_failure"})

	if v := counterValue(t, m.AttemptsTotal.WithLabelValues("qwen", "success", "true")); v != 1 {
		t.Errorf("fallback successes = %v, want 1", v)
	}
	if v := counterValue(t, m.TokensTotal.WithLabelValues("qwen", "prompt")); v != 100 {
		t.Errorf("prompt tokens = %v, want 100", v)
	}
	if v := counterValue(t, m.CostUSDTotal.WithLabelValues("qwen", "true")); v != 0.01 {
		t.Errorf("cost = %v, want 0.01", v)
	}
}

func TestRecordAutoDisabled(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.SetModelActive("llama", true)
	if v := counterValue(t, m.ModelActive.WithLabelValues("llama")); v != 1 {
		t.Errorf("active gauge = %v, want 1", v)
	}

	m.RecordAutoDisabled("llama")
	if v := counterValue(t, m.ModelActive.WithLabelValues("llama")); v != 0 {
		t.Errorf("active gauge = %v, want 0", v)
	}
	if v := counterValue(t, m.AutoDisabledTotal.WithLabelValues("llama")); v != 1 {
		t.Errorf("auto-disabled = %v, want 1", v)
	}
}

func TestRecordScreening(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())
	m.RecordScreening("block", "ignore_previous")
	m.RecordScreening("block", "ignore_previous")

	if v := counterValue(t, m.ScreeningTotal.WithLabelValues("block", "ignore_previous")); v != 2 {
		t.Errorf("screening = %v, want 2", v)
	}
}
