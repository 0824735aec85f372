package reports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsReportsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narc_reports_created_total",
		Help: "Reports created, by outcome (created or duplicate)",
	}, []string{"outcome"})

	metricsTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narc_report_transitions_total",
		Help: "Report status changes, by new status",
	}, []string{"status"})

	metricsReactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narc_reactions_routed_total",
		Help: "Reactions that matched a routing rule",
	}, []string{"rule"})

	metricsViewSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narc_view_sync_failures_total",
		Help: "Failed view renders, by view",
	}, []string{"view"})
)
