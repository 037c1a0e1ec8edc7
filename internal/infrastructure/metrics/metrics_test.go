package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Merged("task")
		m.Pushed("task", false)
		m.OutboxPending(3)
		m.ReminderScheduled("course")
		m.ReminderCancelled()
		m.NotificationMirrored()
	})
}

func TestCollectors(t *testing.T) {
	m := New()

	m.Merged("message")
	m.Merged("message")
	m.Pushed("task", true)
	m.Pushed("task", false)
	m.OutboxPending(4)
	m.ReminderScheduled("summary")
	m.ReminderCancelled()
	m.NotificationMirrored()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.merges.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushes.WithLabelValues("task", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushes.WithLabelValues("task", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.outboxPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersScheduled.WithLabelValues("summary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersCancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mirrored))
}
