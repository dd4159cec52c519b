// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "replai"

var (
	// EmailsReceived counts inbound messages recorded, by category
	EmailsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_received_total",
		Help:      "number of inbound emails recorded",
	}, []string{"category"})

	// RepliesSent counts replies delivered through a provider
	RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_sent_total",
		Help:      "number of auto replies sent",
	}, []string{"provider"})

	// MessagesSkipped counts messages the pipeline deliberately did not answer
	MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_skipped_total",
		Help:      "number of messages skipped by the reply pipeline",
	}, []string{"reason"})

	// PipelineErrors counts per-message failures, by pipeline stage
	PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_errors_total",
		Help:      "number of per-message pipeline failures",
	}, []string{"stage"})

	// ActiveMailboxes is the number of running mailbox loops
	ActiveMailboxes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_mailboxes",
		Help:      "number of mailboxes currently polled",
	})

	// ResponseTime observes fetch-to-send latency of replies
	ResponseTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reply_response_seconds",
		Help:      "time from fetching a message to sending its reply",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// TickDuration observes how long one mailbox tick takes
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "duration of one mailbox poll tick",
		Buckets:   prometheus.DefBuckets,
	})
)
