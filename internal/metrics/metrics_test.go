package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Registration("confirmed")
	m.Registration("confirmed")
	m.Registration("waitlisted")
	m.GroupRegistration(3)
	m.Cancellation()
	m.Promotion()
	m.NotificationFailed("WAITLIST_PROMOTION")
	m.LockContention("register")
	m.ObserveLockWait("register", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("waitlisted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.groupRegistrations))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.groupMembers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyFailures.WithLabelValues("WAITLIST_PROMOTION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockContention.WithLabelValues("register")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registration("confirmed")
		m.GroupRegistration(2)
		m.Cancellation()
		m.Promotion()
		m.NotificationFailed("CANCELLATION")
		m.ObserveLockWait("cancel", time.Millisecond)
		m.LockContention("cancel")
	})
}
