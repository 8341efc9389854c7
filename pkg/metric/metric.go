// Package metric holds the pipeline's prometheus instrumentation.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the counters the notification pipeline exposes.
type Metrics struct {
	SweepsTotal    prometheus.Counter
	SweepFailures  prometheus.Counter
	AlertsEnqueued prometheus.Counter
	DigestsSent    prometheus.Counter
	EmailsSent     prometheus.Counter
	EmailsFailed   prometheus.Counter
	CalendarSyncs  prometheus.Counter
}

// New registers the pipeline counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_sweeps_total",
			Help: "Deadline alert sweeps executed.",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_sweep_failures_total",
			Help: "Deadline alert sweeps that aborted with an error.",
		}),
		AlertsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_alerts_enqueued_total",
			Help: "Alert emails written to the outbound queue.",
		}),
		DigestsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_digests_total",
			Help: "Weekly digest messages enqueued.",
		}),
		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_emails_sent_total",
			Help: "Queue rows successfully handed to the mail transport.",
		}),
		EmailsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_emails_failed_total",
			Help: "Queue rows that failed at the mail transport.",
		}),
		CalendarSyncs: factory.NewCounter(prometheus.CounterOpts{
			Name: "bandonotifier_calendar_syncs_total",
			Help: "External calendar upserts performed.",
		}),
	}
}
