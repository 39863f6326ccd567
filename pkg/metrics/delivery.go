package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded per user pipeline run.
const (
	OutcomeSent           = "sent"
	OutcomeDenied         = "denied"
	OutcomeUnsupported    = "unsupported"
	OutcomeMissingContext = "missing_context"
	OutcomeNoDevices      = "no_devices"
	OutcomeSendFailed     = "send_failed"
	OutcomeFailed         = "failed"
)

// DeliveryMetrics tracks push delivery pipeline results.
type DeliveryMetrics struct {
	deliveries    *prometheus.CounterVec
	invalidTokens prometheus.Counter
	sendDuration  prometheus.Histogram
	topicOps      *prometheus.CounterVec
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Per-user notification pipeline results by kind and outcome.",
	}, []string{"kind", "outcome"})
	invalidTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_invalid_tokens_total",
		Help: "Device tokens nulled after permanent provider rejection.",
	})
	sendDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_send_duration_seconds",
		Help:    "Latency of multicast sends to the push provider.",
		Buckets: prometheus.DefBuckets,
	})
	topicOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_topic_operations_total",
		Help: "Topic subscribe/unsubscribe calls by action and result.",
	}, []string{"action", "result"})
	reg.MustRegister(deliveries, invalidTokens, sendDuration, topicOps)
	return &DeliveryMetrics{
		deliveries:    deliveries,
		invalidTokens: invalidTokens,
		sendDuration:  sendDuration,
		topicOps:      topicOps,
	}
}

// IncDelivery counts a pipeline run for the kind with the given outcome.
func (d *DeliveryMetrics) IncDelivery(kind, outcome string) {
	if d == nil || d.deliveries == nil {
		return
	}
	d.deliveries.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// AddInvalidTokens counts tokens nulled in the device registry.
func (d *DeliveryMetrics) AddInvalidTokens(n int) {
	if d == nil || d.invalidTokens == nil || n <= 0 {
		return
	}
	d.invalidTokens.Add(float64(n))
}

// ObserveSend records provider send latency.
func (d *DeliveryMetrics) ObserveSend(duration time.Duration) {
	if d == nil || d.sendDuration == nil {
		return
	}
	d.sendDuration.Observe(duration.Seconds())
}

// IncTopicOperation counts a topic management call.
func (d *DeliveryMetrics) IncTopicOperation(action string, err error) {
	if d == nil || d.topicOps == nil {
		return
	}
	d.topicOps.WithLabelValues(normalizeLabel(action), resultLabel(err)).Inc()
}
