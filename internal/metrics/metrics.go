package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsCreatedTotal counts materialized alerts by rule type and severity.
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertcore_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"rule_type", "severity"},
	)

	// SamplesEvaluatedTotal counts samples fed through rule evaluation.
	SamplesEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertcore_samples_evaluated_total",
			Help: "Total number of samples evaluated against the enabled rule set",
		},
	)

	// StatusUpdatesTotal counts lifecycle status transitions by target status.
	StatusUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertcore_status_updates_total",
			Help: "Total number of alert status updates",
		},
		[]string{"status"},
	)

	// NotifySentTotal counts delivered notifications by channel.
	NotifySentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertcore_notify_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"channel"},
	)

	// NotifyFailuresTotal counts swallowed notification failures by channel.
	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertcore_notify_failures_total",
			Help: "Total number of notification failures recorded as diagnostics",
		},
		[]string{"channel"},
	)

	// SweepPurgedTotal counts resolved alerts removed by retention sweeps.
	SweepPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertcore_sweep_purged_total",
			Help: "Total number of resolved alerts purged by retention sweeps",
		},
	)
)
