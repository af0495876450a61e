// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する。
// 助言ワークフローとHTTP層から利用する。
type Collector struct {
	advisorySuccess prometheus.Counter
	advisoryAIFail  prometheus.Counter
	weatherFail     prometheus.Counter
	httpStatus      *prometheus.CounterVec
	weatherLatency  prometheus.Histogram
	geminiLatency   prometheus.Histogram
	activeSessions  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		advisorySuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agropulse_advisory_success_total",
			Help: "栽培計画生成成功の合計数",
		}),
		advisoryAIFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agropulse_advisory_ai_fail_total",
			Help: "Gemini呼び出し失敗の合計数",
		}),
		weatherFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agropulse_weather_fail_total",
			Help: "気象データ取得失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agropulse_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		weatherLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agropulse_weather_latency_seconds",
			Help:    "気象API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		geminiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agropulse_gemini_latency_seconds",
			Help:    "Gemini API呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agropulse_active_sessions",
			Help: "有効なセッションの現在数",
		}),
	}

	reg.MustRegister(
		c.advisorySuccess,
		c.advisoryAIFail,
		c.weatherFail,
		c.httpStatus,
		c.weatherLatency,
		c.geminiLatency,
		c.activeSessions,
	)

	return c
}

// RecordAdvisory は栽培計画生成1回を記録する。
// AI呼び出しが失敗扱いだった場合は失敗カウンタを加算する。
func (c *Collector) RecordAdvisory(aiFailed bool) {
	if aiFailed {
		c.advisoryAIFail.Inc()
		return
	}
	c.advisorySuccess.Inc()
}

// RecordWeatherFailure は気象データ取得失敗を記録する。
func (c *Collector) RecordWeatherFailure() {
	c.weatherFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordWeatherLatency は気象API呼び出しのレイテンシを記録する。
func (c *Collector) RecordWeatherLatency(d time.Duration) {
	c.weatherLatency.Observe(d.Seconds())
}

// RecordGeminiLatency はGemini API呼び出しのレイテンシを記録する。
func (c *Collector) RecordGeminiLatency(d time.Duration) {
	c.geminiLatency.Observe(d.Seconds())
}

// SessionOpened はセッション開始を記録する。
func (c *Collector) SessionOpened() {
	c.activeSessions.Inc()
}

// SessionClosed はセッション終了を記録する。
func (c *Collector) SessionClosed() {
	c.activeSessions.Dec()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
