package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esg_tasks_generated_total",
			Help: "Total number of compliance tasks generated",
		},
		[]string{"source", "category", "priority"}, // source: question, framework
	)

	GenerationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esg_generation_runs_total",
			Help: "Total number of task generation runs",
		},
		[]string{"outcome"}, // outcome: ok, unknown_sector, failed
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "esg_generation_duration_seconds",
			Help:    "Task generation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~0.4s
		},
	)

	EvidenceAttached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esg_evidence_attached_total",
			Help: "Total number of evidence items attached to tasks",
		},
		[]string{"kind"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esg_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esg_webhook_deliveries_total",
			Help: "Total number of webhook batch deliveries",
		},
		[]string{"webhook", "status"}, // status: success, failed
	)
)

// RecordGeneratedTask counts one generated task.
func RecordGeneratedTask(source, category, priority string) {
	TasksGenerated.WithLabelValues(source, category, priority).Inc()
}

// RecordGenerationRun records the outcome and duration of a generation run.
func RecordGenerationRun(outcome string, duration time.Duration) {
	GenerationRuns.WithLabelValues(outcome).Inc()
	GenerationDuration.Observe(duration.Seconds())
}

func RecordEvidence(kind string) {
	EvidenceAttached.WithLabelValues(kind).Inc()
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordWebhookDelivery(webhook, status string) {
	WebhookDeliveries.WithLabelValues(webhook, status).Inc()
}
