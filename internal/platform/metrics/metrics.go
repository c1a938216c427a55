package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so that tests and the CLI can build
// independent instances without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	employees       *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	lastBatch       *prometheus.GaugeVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yearend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yearend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		employees: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yearend",
			Name:      "employees_processed_total",
			Help:      "Employees reconciled by outcome",
		}, []string{"outcome"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yearend",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a whole reconciliation batch",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"fiscal_year"}),
		lastBatch: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "yearend",
			Name:      "last_batch_completed_timestamp_seconds",
			Help:      "Unix time the last batch for a fiscal year finished",
		}, []string{"fiscal_year"}),
	}
}

func (c *Collector) Record(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) ObserveEmployee(outcome string) {
	c.employees.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveBatch(fiscalYear int, duration time.Duration) {
	year := strconv.Itoa(fiscalYear)
	c.batchDuration.WithLabelValues(year).Observe(duration.Seconds())
	c.lastBatch.WithLabelValues(year).SetToCurrentTime()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
