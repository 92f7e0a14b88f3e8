package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names shared by the components that report them.
const (
	ActiveConnections  = "active_connections"
	IdleTimeouts       = "idle_timeouts_total"
	PublishedUpdates   = "published_updates_total"
	DroppedUpdates     = "dropped_updates_total"
	ExpiredCalls       = "expired_calls_total"
	ConnectionDuration = "connection_duration_seconds"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	Set(name string, value float64)
	Observe(name string, value float64)
}

// PrometheusStats implements StatsProvider over a dedicated prometheus
// registry so tests can create isolated instances.
type PrometheusStats struct {
	registry   *prometheus.Registry
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

func NewPrometheusStats(mux *http.ServeMux) *PrometheusStats {
	ps := &PrometheusStats{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}

	for _, name := range []string{IdleTimeouts, PublishedUpdates, DroppedUpdates, ExpiredCalls} {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      name,
		})
		ps.registry.MustRegister(c)
		ps.counters[name] = c
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "realtime",
		Name:      ActiveConnections,
	})
	ps.registry.MustRegister(g)
	ps.gauges[ActiveConnections] = g

	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "realtime",
		Name:      ConnectionDuration,
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
	ps.registry.MustRegister(h)
	ps.histograms[ConnectionDuration] = h

	if mux != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{}))
	}

	return ps
}

func (ps *PrometheusStats) Incr(name string) {
	if c, ok := ps.counters[name]; ok {
		c.Inc()
		return
	}
	if g, ok := ps.gauges[name]; ok {
		g.Inc()
	}
}

func (ps *PrometheusStats) Decr(name string) {
	if g, ok := ps.gauges[name]; ok {
		g.Dec()
	}
}

func (ps *PrometheusStats) Set(name string, value float64) {
	if g, ok := ps.gauges[name]; ok {
		g.Set(value)
	}
}

func (ps *PrometheusStats) Observe(name string, value float64) {
	if h, ok := ps.histograms[name]; ok {
		h.Observe(value)
	}
}
