package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch pipeline
	DispatchAttempts *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	MessagesFailed   *prometheus.CounterVec
	MessagesSkipped  *prometheus.CounterVec
	DispatchLatency  *prometheus.HistogramVec
	RateLimiterWait  *prometheus.HistogramVec
	RetriesScheduled *prometheus.CounterVec

	// Campaign runs
	CampaignRuns       *prometheus.CounterVec
	CampaignRunLatency prometheus.Histogram
	ContentGenerations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DispatchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Total number of delivery attempts per channel and outcome",
		}, []string{"channel", "outcome"}),
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages delivered per channel",
		}, []string{"channel"}),
		MessagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_failed_total",
			Help:      "Total number of messages terminally failed per channel",
		}, []string{"channel"}),
		MessagesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_skipped_total",
			Help:      "Total number of recipients skipped for missing opt-in",
		}, []string{"channel"}),
		DispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent delivering one message including retries",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		RateLimiterWait: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limiter_wait_seconds",
			Help:      "Delay incurred waiting for a channel rate limit token",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 15, 60},
		}, []string{"channel"}),
		RetriesScheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Total number of transient failures scheduled for retry",
		}, []string{"channel"}),
		CampaignRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_total",
			Help:      "Total number of campaign send runs per final status",
		}, []string{"status"}),
		CampaignRunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_run_duration_seconds",
			Help:      "Wall time of one campaign send run",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		}),
		ContentGenerations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_generations_total",
			Help:      "Content generation calls per outcome, cache hits excluded",
		}, []string{"outcome"}),
	}
}
