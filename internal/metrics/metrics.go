// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comport-service/internal/handles"
)

const namespace = "comport"

// Metrics holds the service collectors and their registry
type Metrics struct {
	registry *prometheus.Registry

	cycleDuration  *prometheus.HistogramVec
	cycleErrors    *prometheus.CounterVec
	workerStatuses *prometheus.CounterVec
	channelFaults  prometheus.Counter
	cacheEntries   prometheus.Gauge
	cacheProcesses prometheus.Gauge
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poller_cycle_duration_seconds",
			Help:      "Duration of one poller cycle.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"poller"}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_cycle_errors_total",
			Help:      "Number of poller cycles that ended with an error.",
		}, []string{"poller"}),
		workerStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_responses_total",
			Help:      "Handle worker responses by status.",
		}, []string{"status"}),
		channelFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_channel_faults_total",
			Help:      "Number of times the worker channel was dropped after an I/O or protocol error.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handle_cache_entries",
			Help:      "Handles currently cached by the correlation poller.",
		}),
		cacheProcesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handle_cache_processes",
			Help:      "Processes currently cached by the correlation poller.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycleDuration,
		m.cycleErrors,
		m.workerStatuses,
		m.channelFaults,
		m.cacheEntries,
		m.cacheProcesses,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register adds extra collectors
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one poller cycle
func (m *Metrics) ObserveCycle(poller string, duration time.Duration, err error) {
	m.cycleDuration.WithLabelValues(poller).Observe(duration.Seconds())
	if err != nil {
		m.cycleErrors.WithLabelValues(poller).Inc()
	}
}

// ObserveStatus counts one worker response
func (m *Metrics) ObserveStatus(status handles.Status) {
	m.workerStatuses.WithLabelValues(status.String()).Inc()
}

// ObserveChannelFault counts a dropped worker channel
func (m *Metrics) ObserveChannelFault() {
	m.channelFaults.Inc()
}

// SetCacheSize records the handle cache size
func (m *Metrics) SetCacheSize(entries, processes int) {
	m.cacheEntries.Set(float64(entries))
	m.cacheProcesses.Set(float64(processes))
}

// CounterFunc builds a counter backed by fn, e.g. dropped bus events
func CounterFunc(name, help string, fn func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// GaugeFunc builds a gauge backed by fn
func GaugeFunc(name, help string, fn func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}
