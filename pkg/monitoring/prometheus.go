package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics using Prometheus collectors.
//
// All metrics are prefixed with "streamduck_" to avoid naming conflicts.
//
// Metrics exposed:
//   - streamduck_render_passes_total: Counter of render passes by serial
//   - streamduck_render_duration_seconds: Histogram of render pass duration
//   - streamduck_cache_hits_total / streamduck_cache_misses_total: Counters by cache name
//   - streamduck_requests_total: Counter of socket requests by message type
//   - streamduck_request_duration_seconds: Histogram of request handling time
//   - streamduck_connected_clients: Gauge of open socket connections
//   - streamduck_events_dropped_total: Counter of events dropped on full client queues
//   - streamduck_events_dispatched_total: Counter of core events delivered, by module
//   - streamduck_config_commits_total: Counter of commit_changes, by serial
//
// Thread-safe: all Prometheus collectors are thread-safe by design.
type PrometheusMetrics struct {
	renderPasses     *prometheus.CounterVec
	renderDuration   prometheus.Histogram
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	connectedClients prometheus.Gauge
	eventsDropped    prometheus.Counter
	eventsDispatched *prometheus.CounterVec
	configCommits    *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them on reg.
// Registration panics on duplicates; fail-fast at startup is intentional.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		renderPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_render_passes_total",
			Help: "Total number of render passes, partitioned by device serial.",
		}, []string{"serial"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamduck_render_duration_seconds",
			Help:    "Histogram of full render pass duration.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_cache_hits_total",
			Help: "Total number of cache hits, partitioned by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_cache_misses_total",
			Help: "Total number of cache misses, partitioned by cache name.",
		}, []string{"cache"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_requests_total",
			Help: "Total number of socket requests, partitioned by message type.",
		}, []string{"type"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamduck_request_duration_seconds",
			Help:    "Histogram of socket request handling time.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .05, .1},
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamduck_connected_clients",
			Help: "Number of currently open socket connections.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamduck_events_dropped_total",
			Help: "Total number of events dropped because a client queue was full.",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_events_dispatched_total",
			Help: "Total number of core events delivered to modules, partitioned by module.",
		}, []string{"module"}),
		configCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamduck_config_commits_total",
			Help: "Total number of commit_changes operations, partitioned by device serial.",
		}, []string{"serial"}),
	}

	reg.MustRegister(
		m.renderPasses,
		m.renderDuration,
		m.cacheHits,
		m.cacheMisses,
		m.requests,
		m.requestDuration,
		m.connectedClients,
		m.eventsDropped,
		m.eventsDispatched,
		m.configCommits,
	)
	return m
}

func (m *PrometheusMetrics) RenderPass(serial string, d time.Duration) {
	m.renderPasses.WithLabelValues(serial).Inc()
	m.renderDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) CacheHit(cache string)  { m.cacheHits.WithLabelValues(cache).Inc() }
func (m *PrometheusMetrics) CacheMiss(cache string) { m.cacheMisses.WithLabelValues(cache).Inc() }

func (m *PrometheusMetrics) RequestHandled(ty string, d time.Duration) {
	m.requests.WithLabelValues(ty).Inc()
	m.requestDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) ClientConnected()    { m.connectedClients.Inc() }
func (m *PrometheusMetrics) ClientDisconnected() { m.connectedClients.Dec() }
func (m *PrometheusMetrics) EventDropped()       { m.eventsDropped.Inc() }

func (m *PrometheusMetrics) EventDispatched(module string) {
	m.eventsDispatched.WithLabelValues(module).Inc()
}

func (m *PrometheusMetrics) ConfigCommitted(serial string) {
	m.configCommits.WithLabelValues(serial).Inc()
}
