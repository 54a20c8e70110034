package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the run counters on a private registry so several servers
// can live in one process (tests).
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	simulations prometheus.Counter
	categories  prometheus.Gauge
	published   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "euq_runs_total",
			Help: "Total uncertainty runs by status",
		}, []string{"status", "variant"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "euq_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"variant"}),
		simulations: f.NewCounter(prometheus.CounterOpts{
			Name: "euq_simulations_total",
			Help: "Monte Carlo draws over all successful runs",
		}),
		categories: f.NewGauge(prometheus.GaugeOpts{
			Name: "euq_last_run_categories",
			Help: "Simulated categories of the last successful run",
		}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "euq_published_objects_total",
			Help: "Objects written to the blob store by driver",
		}, []string{"driver"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRun(status, variant string, d time.Duration, simulations, categories int) {
	m.runs.WithLabelValues(status, variant).Inc()
	m.duration.WithLabelValues(variant).Observe(d.Seconds())
	if status == "done" {
		m.simulations.Add(float64(simulations))
		m.categories.Set(float64(categories))
	}
}
