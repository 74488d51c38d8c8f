// Package metrics exports session outcomes and load latency to Prometheus. Metrics is a
// controller.Observer; attach it to sessions and serve Handler on the host's metrics route.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tansive/flowbridge/internal/common/uuid"
	"github.com/tansive/flowbridge/internal/flowbridge/controller"
	"github.com/tansive/flowbridge/pkg/types"
)

const namespace = "flowbridge"

type Metrics struct {
	registry *prometheus.Registry
	sessions *prometheus.CounterVec
	active   prometheus.Gauge
	load     prometheus.Histogram

	mu      sync.Mutex
	loading map[uuid.UUID]time.Time
}

// New registers the session metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Sessions resolved, by result and error code.",
		}, []string{"result", "code"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions started and not yet resolved.",
		}),
		load: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_seconds",
			Help:      "Time from opening the surface to the ready signal.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		loading: make(map[uuid.UUID]time.Time),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnTransition(id uuid.UUID, from, to controller.State, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch to {
	case controller.StateValidating:
		m.active.Inc()
	case controller.StateLoading:
		m.loading[id] = at
	case controller.StateActive:
		if started, ok := m.loading[id]; ok {
			m.load.Observe(at.Sub(started).Seconds())
		}
		delete(m.loading, id)
	case controller.StateTerminal:
		delete(m.loading, id)
		if from != controller.StateIdle {
			m.active.Dec()
		}
	}
}

func (m *Metrics) OnResult(_ uuid.UUID, r types.Result) {
	code := ""
	if e, ok := r.Err(); ok {
		code = string(e.Code)
	}
	m.sessions.WithLabelValues(r.Kind().String(), code).Inc()
}

var _ controller.Observer = (*Metrics)(nil)
