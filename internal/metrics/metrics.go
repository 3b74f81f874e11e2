// Package metrics exposes runtime counters for the topology and supervisor.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vector"

// Metrics holds the process-level collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	reloads          *prometheus.CounterVec
	crashes          *prometheus.CounterVec
	healthchecks     *prometheus.CounterVec
	signals          *prometheus.CounterVec
	eventsSent       *prometheus.CounterVec
	componentsActive prometheus.Gauge
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// New creates collectors that will be registered with registerer, or the
// default registerer when nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:   registerer,
		reloads:      newCounterVec("topology", "reloads_total", "Configuration reloads by outcome.", []string{"result"}),
		crashes:      newCounterVec("topology", "component_crashes_total", "Components that exited with an error.", []string{"component"}),
		healthchecks: newCounterVec("topology", "healthchecks_total", "Healthcheck runs by outcome.", []string{"component", "result"}),
		signals:      newCounterVec("supervisor", "control_events_total", "Control events handled by the supervisor.", []string{"kind", "origin"}),
		eventsSent:   newCounterVec("pipeline", "events_sent_total", "Events emitted by each source or transform.", []string{"component"}),
		componentsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "topology",
			Name:      "components_running",
			Help:      "Components in the running topology.",
		}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.reloads,
		m.crashes,
		m.healthchecks,
		m.signals,
		m.eventsSent,
		m.componentsActive,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordReload counts a reload outcome: accepted, rejected or failed.
func (m *Metrics) RecordReload(result string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result).Inc()
}

// RecordCrash counts a component that exited with an error.
func (m *Metrics) RecordCrash(component string) {
	if m == nil {
		return
	}
	m.crashes.WithLabelValues(component).Inc()
}

// RecordHealthcheck counts a healthcheck outcome.
func (m *Metrics) RecordHealthcheck(component, result string) {
	if m == nil {
		return
	}
	m.healthchecks.WithLabelValues(component, result).Inc()
}

// RecordControlEvent counts a supervisor control event.
func (m *Metrics) RecordControlEvent(kind, origin string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(kind, origin).Inc()
}

// EventsSent returns the counter for events emitted by component.
func (m *Metrics) EventsSent(component string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.eventsSent.WithLabelValues(component)
}

// SetComponentsRunning records the size of the running topology.
func (m *Metrics) SetComponentsRunning(n int) {
	if m == nil {
		return
	}
	m.componentsActive.Set(float64(n))
}
