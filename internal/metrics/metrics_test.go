package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.ReminderCreated()
	m.ReminderCreated()
	m.Transition("triggered_once")
	m.ConflictReported()
	m.FetchFailed()
	m.ObserveTick(25 * time.Millisecond)

	if got := testutil.ToFloat64(m.remindersCreated); got != 2 {
		t.Errorf("Expected 2 reminders created, got %v", got)
	}
	if got := testutil.ToFloat64(m.escalations.WithLabelValues("triggered_once")); got != 1 {
		t.Errorf("Expected 1 triggered_once transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationsQueued); got != 2 {
		t.Errorf("Expected 2 queued notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.fetchFailures); got != 1 {
		t.Errorf("Expected 1 fetch failure, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ReminderCreated()
	m.Transition("removed")
	m.ConflictReported()
	m.FetchFailed()
	m.ObserveTick(time.Second)
}
