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
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string)
	RecordCoverUpload()
	RecordCoverUploadRejected(reason string)
	RecordCoverFilesReclaimed(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
	loginSuccess        *prometheus.CounterVec
	loginFail           *prometheus.CounterVec
	coverUploads        prometheus.Counter
	coverRejected       *prometheus.CounterVec
	coverFilesReclaimed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cinelog_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_login_success_total",
			Help: "プロバイダー別のログイン成功数",
		}, []string{"provider"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_login_fail_total",
			Help: "プロバイダー別のログイン失敗数",
		}, []string{"provider"}),
		coverUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_cover_upload_total",
			Help: "保存されたカバー画像の合計数",
		}),
		coverRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_cover_rejected_total",
			Help: "拒否されたカバー画像アップロードの理由別合計数",
		}, []string{"reason"}),
		coverFilesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_cover_files_reclaimed_total",
			Help: "削除に伴い回収されたカバー画像ファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.loginSuccess,
		c.loginFail,
		c.coverUploads,
		c.coverRejected,
		c.coverFilesReclaimed,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string) {
	c.loginSuccess.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider string) {
	c.loginFail.WithLabelValues(provider).Inc()
}

// RecordCoverUpload はカバー画像の保存を記録する。
func (c *Collector) RecordCoverUpload() {
	c.coverUploads.Inc()
}

// RecordCoverUploadRejected はカバー画像アップロードの拒否を記録する。
func (c *Collector) RecordCoverUploadRejected(reason string) {
	c.coverRejected.WithLabelValues(reason).Inc()
}

// RecordCoverFilesReclaimed は回収されたカバー画像ファイル数を記録する。
func (c *Collector) RecordCoverFilesReclaimed(count int) {
	c.coverFilesReclaimed.Add(float64(count))
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
