// Package metrics defines the Prometheus collectors shared across lanes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lanes"

var (
	// DragCommits counts finished drop commits.
	// Labels: result (ok, noop, failed, rejected)
	DragCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drag",
		Name:      "commits_total",
		Help:      "Drop commits by outcome",
	}, []string{"result"})

	// DragCancels counts drags abandoned without a commit.
	// Labels: reason (escape, outside, aborted, no_target, forbidden)
	DragCancels = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drag",
		Name:      "cancels_total",
		Help:      "Cancelled drags by reason",
	}, []string{"reason"})

	// DragWrites counts individual placement writes issued by commits.
	// Labels: status (ok, error)
	DragWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drag",
		Name:      "writes_total",
		Help:      "Placement writes issued by drop commits",
	}, []string{"status"})

	// RealtimeEvents counts change events applied by the reconciler.
	// Labels: table, kind
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Change events applied to the local board cache",
	}, []string{"table", "kind"})

	// RealtimeDropped counts change events that could not be applied.
	// Labels: reason (malformed, foreign_board, unknown_table)
	RealtimeDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "dropped_total",
		Help:      "Change events skipped by the reconciler",
	}, []string{"reason"})

	// ChangesPublished counts change events published to the feed.
	// Labels: table, kind
	ChangesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "changefeed",
		Name:      "published_total",
		Help:      "Change events published to subscribers",
	}, []string{"table", "kind"})

	// WSConnections tracks open board websocket connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open board websocket connections",
	})

	// RemindersSent counts due-date reminder notifications created.
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deadline",
		Name:      "reminders_sent_total",
		Help:      "Due-date reminder notifications created",
	})

	// ReminderRuns measures one reminder scan.
	// Labels: status (ok, error)
	ReminderRuns = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "deadline",
		Name:      "scan_duration_seconds",
		Help:      "Duration of due-date reminder scans",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)
