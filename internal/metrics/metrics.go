// Package metrics exposes Prometheus collectors for the registration core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the registration collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registrations      *prometheus.CounterVec
	groupRegistrations prometheus.Counter
	groupMembers       prometheus.Counter
	cancellations      prometheus.Counter
	promotions         prometheus.Counter
	notifyFailures     *prometheus.CounterVec
	lockWait           *prometheus.HistogramVec
	lockContention     *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Registration requests by outcome",
			},
			[]string{"outcome"},
		),
		groupRegistrations: f.NewCounter(prometheus.CounterOpts{
			Name: "group_registrations_total",
			Help: "Admitted group registrations",
		}),
		groupMembers: f.NewCounter(prometheus.CounterOpts{
			Name: "group_members_total",
			Help: "Seats confirmed through group registrations",
		}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Registrations or groups cancelled",
		}),
		promotions: f.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Waitlisted registrations promoted to confirmed",
		}),
		notifyFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_failures_total",
				Help: "Notifications the sink rejected",
			},
			[]string{"kind"},
		),
		lockWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "event_lock_wait_seconds",
				Help:    "Time spent waiting for the event lock",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		lockContention: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_lock_timeouts_total",
				Help: "Operations that gave up waiting for the event lock",
			},
			[]string{"operation"},
		),
	}
}

// Registration counts one registration outcome: confirmed, waitlisted or rejected.
func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// GroupRegistration counts an admitted group of size members.
func (m *Metrics) GroupRegistration(members int) {
	if m == nil {
		return
	}
	m.groupRegistrations.Inc()
	m.groupMembers.Add(float64(members))
}

func (m *Metrics) Cancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *Metrics) Promotion() {
	if m == nil {
		return
	}
	m.promotions.Inc()
}

func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

// ObserveLockWait records how long op waited for the event lock.
func (m *Metrics) ObserveLockWait(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) LockContention(op string) {
	if m == nil {
		return
	}
	m.lockContention.WithLabelValues(op).Inc()
}
