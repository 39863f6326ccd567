package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics tracks the reminder scheduler.
type ReminderMetrics struct {
	armed  *prometheus.CounterVec
	sent   prometheus.Counter
	active prometheus.Gauge
}

// NewReminderMetrics registers the reminder metrics on the provided registerer.
func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	if reg == nil {
		return &ReminderMetrics{}
	}
	armed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_timers_armed_total",
		Help: "Reminder timers armed by tier (overflow for bridging timers).",
	}, []string{"tier"})
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminder_notifications_sent_total",
		Help: "Reminder notifications enqueued for speakers.",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_timers_active",
		Help: "Communities with a live reminder timer.",
	})
	reg.MustRegister(armed, sent, active)
	return &ReminderMetrics{armed: armed, sent: sent, active: active}
}

// IncArmed counts a timer armed for the tier label.
func (r *ReminderMetrics) IncArmed(tier string) {
	if r == nil || r.armed == nil {
		return
	}
	r.armed.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncSent counts a reminder notification handed to the work queue.
func (r *ReminderMetrics) IncSent() {
	if r == nil || r.sent == nil {
		return
	}
	r.sent.Inc()
}

// SetActive publishes the number of communities holding a timer.
func (r *ReminderMetrics) SetActive(n int) {
	if r == nil || r.active == nil {
		return
	}
	r.active.Set(float64(n))
}
