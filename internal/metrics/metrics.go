// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordSearchSuccess()
	RecordSearchFailure()
	RecordUpstreamLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordLikeToggled()
	RecordCollectionCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searchSuccess      prometheus.Counter
	searchFail         prometheus.Counter
	upstreamLatency    prometheus.Histogram
	httpStatus         *prometheus.CounterVec
	likesToggled       prometheus.Counter
	collectionsCreated prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_search_success_total",
			Help: "画像検索成功の合計数",
		}),
		searchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_search_fail_total",
			Help: "画像検索失敗の合計数",
		}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "picshelf_upstream_latency_seconds",
			Help:    "画像プロバイダーAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picshelf_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		likesToggled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_likes_toggled_total",
			Help: "いいね反転操作の合計数",
		}),
		collectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_collections_created_total",
			Help: "作成されたコレクションの合計数",
		}),
	}

	reg.MustRegister(
		c.searchSuccess,
		c.searchFail,
		c.upstreamLatency,
		c.httpStatus,
		c.likesToggled,
		c.collectionsCreated,
	)

	return c
}

// RecordSearchSuccess は画像検索成功を記録する。
func (c *Collector) RecordSearchSuccess() {
	c.searchSuccess.Inc()
}

// RecordSearchFailure は画像検索失敗を記録する。
func (c *Collector) RecordSearchFailure() {
	c.searchFail.Inc()
}

// RecordUpstreamLatency は画像プロバイダーAPIのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLikeToggled はいいね反転操作を記録する。
func (c *Collector) RecordLikeToggled() {
	c.likesToggled.Inc()
}

// RecordCollectionCreated はコレクション作成を記録する。
func (c *Collector) RecordCollectionCreated() {
	c.collectionsCreated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
