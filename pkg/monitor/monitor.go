package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 汇总业务与 HTTP 指标。nil *Metrics 的所有方法都是空操作，测试可不注入。
type Metrics struct {
	ProbeCallsTotal     *prometheus.CounterVec
	ProbeDuration       *prometheus.HistogramVec
	DiscoveredAccounts  *prometheus.CounterVec
	VaultOpsTotal       *prometheus.CounterVec
	RefreshItemsTotal   *prometheus.CounterVec
	SessionEventsTotal  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New 在 reg 上注册全部指标；reg 为 nil 时使用 prometheus.DefaultRegisterer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ProbeCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_probe_calls_total",
			Help: "Chain probe calls by kind and result.",
		}, []string{"kind", "result"}),
		ProbeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_probe_duration_seconds",
			Help:    "Chain probe latency distributions.",
			Buckets: []float64{0.1, 0.3, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"kind"}),
		DiscoveredAccounts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_discovery_accounts_total",
			Help: "Accounts probed during HD discovery.",
		}, []string{"active"}),
		VaultOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_vault_operations_total",
			Help: "Vault operations by vault, operation and result.",
		}, []string{"vault", "op", "result"}),
		RefreshItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_refresh_items_total",
			Help: "Per-item outcome of balance refresh batches.",
		}, []string{"vault", "result"}),
		SessionEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_session_events_total",
			Help: "Session cache events.",
		}, []string{"event"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: []float64{0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "path"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveProbe 记录一次链上探测
func (m *Metrics) ObserveProbe(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeCallsTotal.WithLabelValues(kind, result(err)).Inc()
	m.ProbeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveDiscovered 记录一个被探测的派生账户
func (m *Metrics) ObserveDiscovered(active bool) {
	if m == nil {
		return
	}
	m.DiscoveredAccounts.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// ObserveVaultOp 记录一次金库操作
func (m *Metrics) ObserveVaultOp(vault, op string, err error) {
	if m == nil {
		return
	}
	m.VaultOpsTotal.WithLabelValues(vault, op, result(err)).Inc()
}

// ObserveRefresh 记录一批余额刷新的成功 / 失败数
func (m *Metrics) ObserveRefresh(vault string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.RefreshItemsTotal.WithLabelValues(vault, "ok").Add(float64(succeeded))
	m.RefreshItemsTotal.WithLabelValues(vault, "error").Add(float64(failed))
}

// ObserveSession 记录会话事件 (remember / recall_hit / recall_miss / expired / extend / clear)
func (m *Metrics) ObserveSession(event string) {
	if m == nil {
		return
	}
	m.SessionEventsTotal.WithLabelValues(event).Inc()
}

// PrometheusMiddleware returns a gin middleware for monitoring
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // 使用路由模板 /api/v1/wallets/:id 而不是具体路径

		c.Next()

		if m == nil || path == "" { // 忽略 404 等未匹配路由
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
