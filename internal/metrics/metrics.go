// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやバックエンドクライアントから利用する。
type MetricsCollector interface {
	RecordNavigation(route string)
	RecordNavigationMiss()
	RecordAuthAttempt(op, outcome string)
	RecordBackendCall(op string, statusCode int, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reg prometheus.Registerer

	navigations    *prometheus.CounterVec
	navigationMiss prometheus.Counter
	authAttempts   *prometheus.CounterVec
	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_navigation_total",
			Help: "ルート別の画面遷移数",
		}, []string{"route"}),
		navigationMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_navigation_not_found_total",
			Help: "どのルートにも一致しなかった遷移の合計数",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_auth_attempts_total",
			Help: "ログイン・会員登録の試行数",
		}, []string{"op", "outcome"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_backend_calls_total",
			Help: "バックエンド呼び出し数（ステータスコード別、0は通信エラー）",
		}, []string{"op", "status_code"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_backend_latency_seconds",
			Help:    "バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.navigations,
		c.navigationMiss,
		c.authAttempts,
		c.backendCalls,
		c.backendLatency,
		c.httpStatus,
	)

	return c
}

// RegisterActiveSessions は現在のセッション数を返す関数をゲージとして登録する。
func (c *Collector) RegisterActiveSessions(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "board_active_sessions",
		Help: "メモリ上で保持しているセッション数",
	}, func() float64 {
		return float64(count())
	}))
}

// RecordNavigation は画面遷移を記録する。
func (c *Collector) RecordNavigation(route string) {
	c.navigations.WithLabelValues(route).Inc()
}

// RecordNavigationMiss は一致するルートがなかった遷移を記録する。
func (c *Collector) RecordNavigationMiss() {
	c.navigationMiss.Inc()
}

// RecordAuthAttempt はログイン・会員登録の試行結果を記録する。
func (c *Collector) RecordAuthAttempt(op, outcome string) {
	c.authAttempts.WithLabelValues(op, outcome).Inc()
}

// RecordBackendCall はバックエンド呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordBackendCall(op string, statusCode int, duration time.Duration) {
	c.backendCalls.WithLabelValues(op, strconv.Itoa(statusCode)).Inc()
	c.backendLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
