// Package metrics exposes Prometheus collectors for the call relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carelane_calls_started_total",
		Help: "Total number of outbound calls initiated",
	})

	CallsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carelane_calls_ended_total",
		Help: "Total number of calls that reached the terminal state",
	}, []string{"outcome"})

	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carelane_active_calls",
		Help: "Number of calls currently in flight",
	})

	PendingTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carelane_pending_timeouts_total",
		Help: "Total number of pending patient responses resolved by timeout",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carelane_events_published_total",
		Help: "Total number of events broadcast to viewers",
	}, []string{"kind"})

	ChatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carelane_chat_requests_total",
		Help: "Total number of chat messages processed",
	})
)
