// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 検索結果のoutcomeラベル値
const (
	OutcomeSuccess = "success"
)

// 検索履歴書き込みのresultラベル値
const (
	ResultWritten = "written"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// MetricsCollector はメトリクス収集のインターフェース。
// シェル・検索履歴・天気APIサービスから利用する。
type MetricsCollector interface {
	RecordSearch(outcome string, duration time.Duration)
	RecordRequestLog(result string)
	RecordAuthEvent(event string)
	RecordUpstreamStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searches       *prometheus.CounterVec
	searchLatency  prometheus.Histogram
	requestLogs    *prometheus.CounterVec
	authEvents     *prometheus.CounterVec
	upstreamStatus *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherdesk_searches_total",
			Help: "天気検索の結果別の合計数",
		}, []string{"outcome"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherdesk_search_latency_seconds",
			Help:    "天気検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		requestLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherdesk_request_logs_total",
			Help: "検索履歴書き込みの結果別の合計数",
		}, []string{"result"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherdesk_auth_events_total",
			Help: "認証イベント別の合計数",
		}, []string{"event"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherdesk_upstream_status_total",
			Help: "天気プロバイダーのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.searches,
		c.searchLatency,
		c.requestLogs,
		c.authEvents,
		c.upstreamStatus,
	)

	return c
}

// RecordSearch は検索1回の結果とレイテンシを記録する。
// outcomeは成功時OutcomeSuccess、失敗時はエラーコード。
func (c *Collector) RecordSearch(outcome string, duration time.Duration) {
	c.searches.WithLabelValues(outcome).Inc()
	c.searchLatency.Observe(duration.Seconds())
}

// RecordRequestLog は検索履歴書き込みの結果を記録する。
func (c *Collector) RecordRequestLog(result string) {
	c.requestLogs.WithLabelValues(result).Inc()
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordUpstreamStatus は天気プロバイダーのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
