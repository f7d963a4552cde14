package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "deployd"

// Metrics holds the deployment collectors.
type Metrics struct {
	registry        *prometheus.Registry
	Alive           *prometheus.GaugeVec
	Spawned         *prometheus.CounterVec
	Dead            *prometheus.CounterVec
	DisposeFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a dedicated registry.
// An empty namespace means DefaultNamespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Alive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deployments_alive",
				Help:      "Number of deployments currently running",
			},
			[]string{"backing"},
		),
		Spawned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_spawned_total",
				Help:      "Total number of deployments spawned",
			},
			[]string{"backing"},
		),
		Dead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_dead_total",
				Help:      "Total number of deployment deaths by exit status",
			},
			[]string{"backing", "code"},
		),
		DisposeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_dispose_failures_total",
				Help:      "Total number of task instances that failed to dispose",
			},
		),
	}
	m.registry.MustRegister(m.Alive, m.Spawned, m.Dead, m.DisposeFailures)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records lifecycle events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSpawn: func(_ context.Context, e *domain.ProcessEvent) {
			m.Spawned.WithLabelValues(string(e.Backing)).Inc()
			m.Alive.WithLabelValues(string(e.Backing)).Inc()
		},
		OnTaskDisposed: func(_ context.Context, e *domain.TaskEvent) {
			if e.Error != nil {
				m.DisposeFailures.Inc()
			}
		},
		OnDead: func(_ context.Context, e *domain.ProcessEvent) {
			code := "unknown"
			if e.Status != nil {
				code = e.Status.Label()
			}
			m.Alive.WithLabelValues(string(e.Backing)).Dec()
			m.Dead.WithLabelValues(string(e.Backing), code).Inc()
		},
	}
}
