package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定メトリクスのカウンタ値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordAdvisory_Success(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAdvisory(false)
	c.RecordAdvisory(false)

	if got := counterValue(t, reg, "agropulse_advisory_success_total"); got != 2 {
		t.Errorf("advisory_success_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "agropulse_advisory_ai_fail_total"); got != 0 {
		t.Errorf("advisory_ai_fail_total = %v, want 0", got)
	}
}

func TestRecordAdvisory_AIFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAdvisory(true)

	if got := counterValue(t, reg, "agropulse_advisory_ai_fail_total"); got != 1 {
		t.Errorf("advisory_ai_fail_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "agropulse_advisory_success_total"); got != 0 {
		t.Errorf("advisory_success_total = %v, want 0", got)
	}
}

func TestRecordWeatherFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWeatherFailure()

	if got := counterValue(t, reg, "agropulse_weather_fail_total"); got != 1 {
		t.Errorf("weather_fail_total = %v, want 1", got)
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(502)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	counts := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() != "agropulse_http_status_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status_code" {
					counts[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}

	if counts["200"] != 2 {
		t.Errorf("status 200 count = %v, want 2", counts["200"])
	}
	if counts["502"] != 1 {
		t.Errorf("status 502 count = %v, want 1", counts["502"])
	}
}

func TestRecordLatencies_ObserveHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWeatherLatency(120 * time.Millisecond)
	c.RecordGeminiLatency(3 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := map[string]uint64{}
	for _, mf := range metrics {
		switch mf.GetName() {
		case "agropulse_weather_latency_seconds", "agropulse_gemini_latency_seconds":
			found[mf.GetName()] = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}

	if found["agropulse_weather_latency_seconds"] != 1 {
		t.Errorf("weather latency sample count = %d, want 1", found["agropulse_weather_latency_seconds"])
	}
	if found["agropulse_gemini_latency_seconds"] != 1 {
		t.Errorf("gemini latency sample count = %d, want 1", found["agropulse_gemini_latency_seconds"])
	}
}

func TestSessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "agropulse_active_sessions" {
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 1 {
				t.Errorf("active_sessions = %v, want 1", got)
			}
			return
		}
	}
	t.Error("agropulse_active_sessions metric not found")
}
