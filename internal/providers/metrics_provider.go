package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stw/internal/services"
	"stw/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncBackupsTotal(status string)
	IncNotificationsTotal(kind string)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	backupsTotal        *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncBackupsTotal(status string) {
	m.backupsTotal.WithLabelValues(status).Inc()
}

func (m *MetricsProvider) IncNotificationsTotal(kind string) {
	m.notificationsTotal.WithLabelValues(kind).Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, service services.WalletServiceInterface) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stw_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stw_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stw_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stw_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stw_persistence_duration_seconds",
			Help:    "Duration of aggregate persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		backupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stw_backups_total",
			Help: "Total number of cloud backup attempts",
		}, []string{"status"}),

		notificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stw_notifications_total",
			Help: "Total number of Telegram notifications sent",
		}, []string{"kind"}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stw_tickets_active",
		Help: "Current number of active tickets",
	}, func() float64 {
		active, _, _ := service.Counts()
		return float64(active)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stw_tickets_completed",
		Help: "Current number of completed tickets",
	}, func() float64 {
		_, completed, _ := service.Counts()
		return float64(completed)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stw_tickets_deleted",
		Help: "Current number of soft-deleted tickets",
	}, func() float64 {
		_, _, deleted := service.Counts()
		return float64(deleted)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stw_templates_total",
		Help: "Current number of templates",
	}, func() float64 {
		return float64(len(service.Templates()))
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncBackupsTotal(_ string)                         {}
func (n *noopMetrics) IncNotificationsTotal(_ string)                   {}
