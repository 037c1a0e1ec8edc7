package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the sync agent collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	merges             *prometheus.CounterVec
	pushes             *prometheus.CounterVec
	outboxPending      prometheus.Gauge
	remindersScheduled *prometheus.CounterVec
	remindersCancelled prometheus.Counter
	mirrored           prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siakad_sync_merges_total",
				Help: "Remote lists merged into the local store",
			},
			[]string{"kind"},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siakad_sync_pushes_total",
				Help: "Pushes of local writes to the remote API",
			},
			[]string{"kind", "result"},
		),
		outboxPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "siakad_outbox_pending",
				Help: "Writes waiting for a server acknowledgment",
			},
		),
		remindersScheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siakad_reminders_scheduled_total",
				Help: "Local reminders scheduled",
			},
			[]string{"kind"},
		),
		remindersCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "siakad_reminders_cancelled_total",
				Help: "Local reminders cancelled",
			},
		),
		mirrored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "siakad_notifications_mirrored_total",
				Help: "Delivered notifications mirrored into the inbox",
			},
		),
	}

	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.merges,
		m.pushes,
		m.outboxPending,
		m.remindersScheduled,
		m.remindersCancelled,
		m.mirrored,
	)

	return m
}

func (m *Metrics) Merged(kind string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(kind).Inc()
}

func (m *Metrics) Pushed(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.pushes.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) OutboxPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

func (m *Metrics) ReminderScheduled(kind string) {
	if m == nil {
		return
	}
	m.remindersScheduled.WithLabelValues(kind).Inc()
}

func (m *Metrics) ReminderCancelled() {
	if m == nil {
		return
	}
	m.remindersCancelled.Inc()
}

func (m *Metrics) NotificationMirrored() {
	if m == nil {
		return
	}
	m.mirrored.Inc()
}
