package results

import (
	"net"
	"net/http"
	"time"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var metricLabels = []string{"runner", "provider", "network", "action"}

// Metrics exports the latencies of the actions to prometheus.
type Metrics struct {
	registry *prometheus.Registry
	server   *http.Server
	url      string

	waiting   *prometheus.HistogramVec
	completed *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
}

// NewMetrics creates the latency metrics on a fresh registry.
func NewMetrics() *Metrics {
	buckets := prometheus.ExponentialBuckets(0.05, 2, 12)
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		server: &http.Server{
			ReadTimeout: 30 * time.Second,
		},
		waiting: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowlat",
			Subsystem: "action",
			Name:      "waiting_seconds",
			Help:      "Time an action waited for its precondition",
			Buckets:   buckets,
		}, metricLabels),
		completed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowlat",
			Subsystem: "action",
			Name:      "completed_seconds",
			Help:      "Time from the start of an action to its settlement",
			Buckets:   buckets,
		}, metricLabels),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowlat",
			Subsystem: "action",
			Name:      "outcomes_total",
			Help:      "Number of settled actions by outcome",
		}, append(append([]string(nil), metricLabels...), "outcome")),
	}

	m.registry.MustRegister(m.waiting, m.completed, m.outcomes)

	return m
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one settled action.
func (m *Metrics) Observe(runner, provider, network, action string, r core.Record) {
	m.waiting.WithLabelValues(runner, provider, network, action).Observe(float64(r.Waiting) / 1000)
	m.completed.WithLabelValues(runner, provider, network, action).Observe(float64(r.Completed) / 1000)
	m.outcomes.WithLabelValues(runner, provider, network, action, string(r.Outcome)).Inc()
}

// Observer returns a batch observer recording into the metrics.
func (m *Metrics) Observer(runner, provider, network string) core.Observer {
	return func(action string, r core.Record) {
		m.Observe(runner, provider, network, action, r)
	}
}

// Start serves /metrics on address in a separate goroutine and returns an
// error channel that will receive an error if the server stops unexpectedly.
func (m *Metrics) Start(address string) (<-chan error, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	}))
	m.server.Handler = mux

	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start prometheus server")
	}

	m.url = "http://" + l.Addr().String() + "/metrics"
	zap.L().Info("serving metrics", zap.String("url", m.url))

	errorChan := make(chan error, 1)
	go func() {
		err := m.server.Serve(l)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			errorChan <- nil
		} else {
			errorChan <- errors.Wrap(err, "prometheus server stopped unexpectedly")
		}
	}()

	return errorChan, nil
}

// Stop stops the prometheus server.
func (m *Metrics) Stop() error {
	m.url = ""
	return m.server.Close()
}

// URL returns the prometheus server URL.
func (m *Metrics) URL() string {
	return m.url
}

// WriteToTextfile dumps the metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "writing metrics to %s", path)
}
