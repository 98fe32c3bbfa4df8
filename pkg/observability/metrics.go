package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics of the service. A nil collector
// drops every observation.
type Collector struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Fan-out metrics
	Mutations      *prometheus.CounterVec
	FanoutWrites   *prometheus.CounterVec
	FanoutDuration *prometheus.HistogramVec

	// Read metrics
	Queries *prometheus.CounterVec
}

// NewCollector registers the metrics on reg under namespace
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		return nil
	}

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	mutations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Logical mutations by outcome",
		},
		[]string{"mutation", "result"},
	)

	fanoutWrites := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_writes_total",
			Help:      "Physical fan-out writes by table and status",
		},
		[]string{"mutation", "table", "status"},
	)

	fanoutDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_write_duration_seconds",
			Help:      "Physical fan-out write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Reads by query shape and status",
		},
		[]string{"shape", "status"},
	)

	reg.MustRegister(
		httpRequests,
		httpDuration,
		mutations,
		fanoutWrites,
		fanoutDuration,
		queries,
	)

	return &Collector{
		HTTPRequests:   httpRequests,
		HTTPDuration:   httpDuration,
		Mutations:      mutations,
		FanoutWrites:   fanoutWrites,
		FanoutDuration: fanoutDuration,
		Queries:        queries,
	}
}

// ObserveHTTP records one HTTP request
func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, normalizeLabel(route), status).Inc()
	c.HTTPDuration.WithLabelValues(method, normalizeLabel(route)).Observe(d.Seconds())
}

// ObserveMutation records the overall result of a logical mutation
func (c *Collector) ObserveMutation(mutation, result string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(normalizeLabel(mutation), normalizeLabel(result)).Inc()
}

// ObserveWrite records one physical fan-out write
func (c *Collector) ObserveWrite(mutation, table, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.FanoutWrites.WithLabelValues(normalizeLabel(mutation), normalizeLabel(table), normalizeLabel(status)).Inc()
	c.FanoutDuration.WithLabelValues(normalizeLabel(table)).Observe(d.Seconds())
}

// ObserveQuery records one routed read
func (c *Collector) ObserveQuery(shape, status string) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(normalizeLabel(shape), normalizeLabel(status)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
