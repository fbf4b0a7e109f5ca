package people

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const namespace = "people"

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, including the grid call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.code())).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Pinger is implemented by *grid.Session.
type Pinger interface {
	Ping(ctx context.Context) error
}

var gridUpDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "grid", "up"),
	"Whether the grid answered a ping during the last scrape.",
	nil, nil,
)

// GridCollector reports people_grid_up by pinging the grid on each scrape.
type GridCollector struct {
	pinger  Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewGridCollector returns a collector pinging through pinger with a 2s
// timeout per scrape.
func NewGridCollector(pinger Pinger, logger *zap.Logger) *GridCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridCollector{pinger: pinger, timeout: 2 * time.Second, logger: logger}
}

func (c *GridCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- gridUpDesc
}

func (c *GridCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	up := 1.0
	if err := c.pinger.Ping(ctx); err != nil {
		c.logger.Warn("grid ping failed", zap.Error(err))
		up = 0
	}
	ch <- prometheus.MustNewConstMetric(gridUpDesc, prometheus.GaugeValue, up)
}
