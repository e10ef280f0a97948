// Package metrics exposes the coordinator's internal state as Prometheus
// collectors. It is entirely optional: a Coordinator configured with a nil
// *Collector simply skips every call here. The coordinator package imports
// it for the Collector type; resource and cancel do not depend on it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the gauges and counters a Coordinator updates as it
// schedules, dispatches, and completes tasks. RemainingByKind is registered
// but not updated by the coordinator.
type Collector struct {
	QueueDepth          prometheus.Gauge
	RemainingByKind      *prometheus.GaugeVec
	TasksDispatchedTotal prometheus.Counter
	TasksCompletedTotal  prometheus.Counter
}

// NewCollector builds a Collector and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "task_coordinator",
			Name:      "queue_depth",
			Help:      "Number of scheduled tasks currently waiting for a feasible placement.",
		}),
		RemainingByKind: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "task_coordinator",
			Name:      "resource_remaining",
			Help:      "Remaining capacity summed across all units of a resource kind.",
		}, []string{"kind"}),
		TasksDispatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "task_coordinator",
			Name:      "tasks_dispatched_total",
			Help:      "Total number of tasks dispatched onto the worker pool.",
		}),
		TasksCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "task_coordinator",
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks whose run call has returned.",
		}),
	}

	collectors := []prometheus.Collector{
		c.QueueDepth, c.RemainingByKind, c.TasksDispatchedTotal, c.TasksCompletedTotal,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}
