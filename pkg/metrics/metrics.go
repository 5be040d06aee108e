// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invitations_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RSVPAnswersTotal counts accepted answers by kind (guest, companion) and outcome (yes, no).
	RSVPAnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_rsvp_answers_total",
		Help: "RSVP answers recorded.",
	}, []string{"kind", "outcome"})

	RSVPRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_rsvp_rejected_total",
		Help: "RSVP answers rejected, by reason.",
	}, []string{"reason"})

	CompanionCascadesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitations_companion_cascades_total",
		Help: "Companions forced to decline because their primary declined.",
	})

	// CascadeDeletesTotal counts atomic cascades by root entity (event, user, guest).
	CascadeDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_cascade_deletes_total",
		Help: "Cascading deletes committed, by root entity.",
	}, []string{"root"})

	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_ratelimit_rejected_total",
		Help: "Requests rejected by the rate limiter, by scope.",
	}, []string{"scope"})

	EmailJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_email_jobs_total",
		Help: "Email jobs processed by the worker, by result.",
	}, []string{"result"})

	LiveFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invitations_live_feed_clients",
		Help: "Connected organizer live feed websockets.",
	})
)
