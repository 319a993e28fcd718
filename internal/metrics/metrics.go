package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the reminder and calendar loops.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	remindersCreated    prometheus.Counter
	escalations         *prometheus.CounterVec
	conflictsReported   prometheus.Counter
	fetchFailures       prometheus.Counter
	tickDuration        prometheus.Histogram
	notificationsQueued prometheus.Counter
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global Prometheus registry.
// Collectors are created once so repeated construction does not panic on
// duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew constructs Metrics on the given registerer and panics on registration errors
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		remindersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "reminders",
			Name:      "created_total",
			Help:      "Reminders materialized from commitments.",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "reminders",
			Name:      "transitions_total",
			Help:      "Reminder state transitions, by the state entered.",
		}, []string{"state"}),
		conflictsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "calendar",
			Name:      "conflicts_reported_total",
			Help:      "Scheduling conflicts surfaced to users.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "calendar",
			Name:      "fetch_failures_total",
			Help:      "Calendar fetches that failed or timed out.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nudge",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one scheduler tick across all users.",
			Buckets:   prometheus.DefBuckets,
		}),
		notificationsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "outbox",
			Name:      "notifications_total",
			Help:      "Notifications queued for users.",
		}),
	}

	reg.MustRegister(
		m.remindersCreated,
		m.escalations,
		m.conflictsReported,
		m.fetchFailures,
		m.tickDuration,
		m.notificationsQueued,
	)
	return m
}

func (m *Metrics) ReminderCreated() {
	if m == nil {
		return
	}
	m.remindersCreated.Inc()
}

func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(state).Inc()
	m.notificationsQueued.Inc()
}

func (m *Metrics) ConflictReported() {
	if m == nil {
		return
	}
	m.conflictsReported.Inc()
	m.notificationsQueued.Inc()
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
