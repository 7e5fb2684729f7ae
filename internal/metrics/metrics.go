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
// 認証サービス、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess(provider string, newUser bool)
	RecordLoginFailure(provider string, reason string)
	RecordTokenRefresh(success bool)
	RecordTokenRevoked(reason string)
	RecordBlacklistHit()
	RecordBlacklistPruned(count int64)
	RecordHTTPStatus(statusCode int)
	RecordProviderLatency(operation string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	tokenRefresh    *prometheus.CounterVec
	tokenRevoked    *prometheus.CounterVec
	blacklistHit    prometheus.Counter
	blacklistPruned prometheus.Counter
	httpStatus      *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_login_success_total",
			Help: "OAuthログイン成功の合計数",
		}, []string{"provider", "new_user"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_login_fail_total",
			Help: "OAuthログイン失敗の合計数",
		}, []string{"provider", "reason"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_token_refresh_total",
			Help: "リフレッシュトークンによる再発行の結果別件数",
		}, []string{"result"}),
		tokenRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_token_revoked_total",
			Help: "ブラックリストに登録したトークンの理由別件数",
		}, []string{"reason"}),
		blacklistHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelplanner_token_blacklist_hit_total",
			Help: "失効済みトークンの提示回数",
		}),
		blacklistPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelplanner_token_blacklist_pruned_total",
			Help: "期限切れで削除したブラックリストエントリの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "travelplanner_oauth_provider_latency_seconds",
			Help:    "OAuthプロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.tokenRefresh,
		c.tokenRevoked,
		c.blacklistHit,
		c.blacklistPruned,
		c.httpStatus,
		c.providerLatency,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string, newUser bool) {
	c.loginSuccess.WithLabelValues(provider, strconv.FormatBool(newUser)).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider string, reason string) {
	c.loginFail.WithLabelValues(provider, reason).Inc()
}

// RecordTokenRefresh はトークン再発行の結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "rejected"
	if success {
		result = "success"
	}
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordTokenRevoked はトークンの失効を記録する。
func (c *Collector) RecordTokenRevoked(reason string) {
	c.tokenRevoked.WithLabelValues(reason).Inc()
}

// RecordBlacklistHit は失効済みトークンの提示を記録する。
func (c *Collector) RecordBlacklistHit() {
	c.blacklistHit.Inc()
}

// RecordBlacklistPruned は削除したブラックリストエントリ数を記録する。
func (c *Collector) RecordBlacklistPruned(count int64) {
	c.blacklistPruned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProviderLatency はOAuthプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
