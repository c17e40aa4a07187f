package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// 历史记录指标
	RecordsAdded   prometheus.Counter
	RecordsExpired prometheus.Counter
	RecordsActive  prometheus.Gauge
	SweepsTotal    prometheus.Counter

	// 邮箱指标
	AccountsCreated prometheus.Counter
	AccountsActive  prometheus.Gauge
	PollsTotal      prometheus.Counter
	PollFailures    prometheus.Counter
	MessagesDeleted prometheus.Counter

	// 服务商调用指标
	ProviderErrors *prometheus.CounterVec

	// 持久化指标
	PersistFailures *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsAdded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_records_added_total",
				Help: "Total number of history records added",
			},
		),
		RecordsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_records_expired_total",
				Help: "Total number of history records removed by sweep",
			},
		),
		RecordsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "simplegen_records_active",
				Help: "Number of live history records",
			},
		),
		SweepsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_sweeps_total",
				Help: "Total number of expiry sweeps",
			},
		),
		AccountsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_accounts_created_total",
				Help: "Total number of disposable mail accounts created",
			},
		),
		AccountsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "simplegen_accounts_active",
				Help: "Number of registered mail accounts",
			},
		),
		PollsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_polls_total",
				Help: "Total number of inbox polls",
			},
		),
		PollFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_poll_failures_total",
				Help: "Total number of per-account message fetch failures",
			},
		),
		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplegen_messages_deleted_total",
				Help: "Total number of messages deleted locally",
			},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplegen_provider_errors_total",
				Help: "Total number of terminal provider call failures",
			},
			[]string{"op"},
		),
		PersistFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplegen_persist_failures_total",
				Help: "Total number of persistence write failures",
			},
			[]string{"blob"},
		),
	}
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
