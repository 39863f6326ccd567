package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "history-retention"
	metrics.ObserveRun(job, 250*time.Millisecond, nil)
	metrics.ObserveRun(job, time.Second, fmt.Errorf("db down"))
	metrics.ObserveRun(job, 100*time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	if runs == nil {
		t.Fatal("runs metric missing")
	}
	counts := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "result" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if counts["ok"] != 2 || counts["error"] != 1 {
		t.Fatalf("unexpected run counts %v", counts)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 1.35 {
		t.Fatalf("expected duration sum >= 1.35, got %f", got)
	}

	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatal("expected last success timestamp to be set")
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestDeliveryMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeliveryMetrics(reg)
	m.IncDelivery("post_created", OutcomeSent)
	m.IncDelivery("post_created", OutcomeSent)
	m.IncDelivery("post_created", OutcomeDenied)
	m.AddInvalidTokens(2)
	m.AddInvalidTokens(0)
	m.ObserveSend(100 * time.Millisecond)
	m.IncTopicOperation("subscribe", nil)
	m.IncTopicOperation("subscribe", fmt.Errorf("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	mf := findMetricFamily(mfs, "notification_deliveries_total")
	if mf == nil {
		t.Fatal("deliveries metric missing")
	}
	var sent float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "outcome", OutcomeSent) && matchesLabel(metric.GetLabel(), "kind", "post_created") {
			sent = metric.GetCounter().GetValue()
		}
	}
	if sent != 2 {
		t.Fatalf("expected sent=2, got %f", sent)
	}

	invalid := findMetricFamily(mfs, "notification_invalid_tokens_total")
	if invalid == nil || invalid.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected invalid tokens=2")
	}

	if got, err := fetchCounterValue(mfs, "notification_topic_operations_total", "result", "error"); err != nil || got != 1 {
		t.Fatalf("expected one failed topic op, got %f (%v)", got, err)
	}
}

func TestReminderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReminderMetrics(reg)
	m.IncArmed("12h")
	m.IncArmed("overflow")
	m.IncSent()
	m.SetActive(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "reminder_timers_armed_total", "tier", "overflow"); err != nil || got != 1 {
		t.Fatalf("expected overflow armed=1, got %f (%v)", got, err)
	}
	active := findMetricFamily(mfs, "reminder_timers_active")
	if active == nil || active.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatal("expected active gauge=3")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var d *DeliveryMetrics
	d.IncDelivery("x", OutcomeSent)
	d.AddInvalidTokens(1)
	d.ObserveSend(time.Second)
	d.IncTopicOperation("subscribe", nil)

	var r *ReminderMetrics
	r.IncArmed("1h")
	r.IncSent()
	r.SetActive(1)

	var c *CronJobMetrics
	c.ObserveRun("x", time.Second, nil)
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, nil)

	NewDeliveryMetrics(nil).IncDelivery("x", OutcomeSent)
	NewReminderMetrics(nil).IncSent()
}
