package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the booking service.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec
	NotificationsSent *prometheus.CounterVec
	NotificationsLost prometheus.Counter
	LockWait          prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_operations_total",
			Help:      "Lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "appointment_operation_duration_seconds",
			Help:      "Duration of lifecycle operations",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Notification deliveries by sink and status",
		}, []string{"sink", "status"}),
		NotificationsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the dispatch queue was full or closed",
		}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring per-key locks",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}

	reg.MustRegister(m.Operations, m.OperationLatency, m.NotificationsSent, m.NotificationsLost, m.LockWait)
	return m
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Metrics {
	return New("test", prometheus.NewRegistry())
}

func (m *Metrics) ObserveOperation(op, outcome string, started time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
