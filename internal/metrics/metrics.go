// Package metrics exposes Prometheus collectors for the dispatch engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// dispatchOutcomes counts per-recipient outcomes.
	// Labels:
	// - status: SENT, FAILED or SKIPPED
	// - reason: machine reason code, empty for SENT
	// - email_type: the email type
	dispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Per-recipient dispatch outcomes by status and reason",
		},
		[]string{"status", "reason", "email_type"},
	)

	// providerLatency tracks transport call duration.
	// Labels:
	// - provider: ses, smtp or log
	// - result: accepted or failed
	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notify",
			Subsystem: "transport",
			Name:      "send_duration_seconds",
			Help:      "Duration of provider send calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "result"},
	)

	// campaignResults counts finished campaign dispatches.
	// Labels:
	// - status: SENT or FAILED
	campaignResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "campaign",
			Name:      "dispatch_total",
			Help:      "Campaign dispatches by terminal status",
		},
		[]string{"status"},
	)

	// rateLimitDenied counts sends denied by the per-recipient daily cap.
	rateLimitDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "ratelimit",
			Name:      "denied_total",
			Help:      "Sends denied by the per-recipient daily cap",
		},
	)

	// providerEvents counts webhook events by status and whether they moved a log.
	providerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Provider delivery events by status and outcome",
		},
		[]string{"status", "outcome"},
	)

	// jobsProcessed counts trigger jobs by kind and result.
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Trigger jobs processed by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// IncOutcome records one recipient outcome.
func IncOutcome(status, reason, emailType string) {
	dispatchOutcomes.WithLabelValues(orUnknown(status), reason, orUnknown(emailType)).Inc()
}

// ObserveSend records one provider call.
func ObserveSend(provider string, accepted bool, d time.Duration) {
	result := "failed"
	if accepted {
		result = "accepted"
	}
	providerLatency.WithLabelValues(orUnknown(provider), result).Observe(d.Seconds())
}

// IncCampaign records a campaign reaching a terminal status.
func IncCampaign(status string) {
	campaignResults.WithLabelValues(orUnknown(status)).Inc()
}

// IncRateLimitDenied records one daily-cap denial.
func IncRateLimitDenied() {
	rateLimitDenied.Inc()
}

// IncProviderEvent records one webhook event.
func IncProviderEvent(status string, applied bool) {
	outcome := "ignored"
	if applied {
		outcome = "applied"
	}
	providerEvents.WithLabelValues(orUnknown(status), outcome).Inc()
}

// IncJob records one processed trigger job.
func IncJob(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobsProcessed.WithLabelValues(orUnknown(kind), result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
