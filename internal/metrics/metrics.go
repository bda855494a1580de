// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VoteTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_vote_transitions_total",
		Help: "Committed vote transitions by target type and transition kind.",
	}, []string{"target", "transition"})

	VoteConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackit_vote_conflict_retries_total",
		Help: "Votes retried after a ledger uniqueness conflict.",
	})

	AnswerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_answer_transitions_total",
		Help: "Answer lifecycle transitions by action.",
	}, []string{"action"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_notifications_dispatched_total",
		Help: "Notification intents handled by the dispatcher by type and result.",
	}, []string{"type", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stackit_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
