package server

import (
	"net/http"

	"pullhook/internal/deployment"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors served on /metrics. Each instance owns its
// registry so that several servers can coexist in one process (tests).
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	touches      *prometheus.CounterVec
}

// NewMetrics registers the pullhook collectors plus the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pullhook",
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pullhook",
			Name:      "sync_duration_seconds",
			Help:      "Duration of git fetch and reset.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		touches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pullhook",
			Name:      "touch_total",
			Help:      "Watched file touch attempts by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.syncDuration,
		m.touches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) observeRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSync(result *deployment.SyncResult) {
	if result == nil {
		return
	}
	label := "failure"
	if result.Success {
		label = "success"
	}
	m.syncDuration.WithLabelValues(label).Observe(result.Duration.Seconds())
}

func (m *Metrics) observeTouches(outcomes []deployment.TouchOutcome) {
	for _, o := range outcomes {
		m.touches.WithLabelValues(string(o.Status)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
