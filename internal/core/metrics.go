package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciler and aggregator instrumentation. Registered on the default
// registry and exposed through the /metrics endpoint.
var (
	syncBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ranchcore",
		Subsystem: "sync",
		Name:      "batches_total",
		Help:      "Number of sync batches processed.",
	})
	syncOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ranchcore",
		Subsystem: "sync",
		Name:      "operations_total",
		Help:      "Number of sync operations processed, by outcome.",
	}, []string{"result"})
	dashboardSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ranchcore",
		Subsystem: "analytics",
		Name:      "dashboard_snapshots_total",
		Help:      "Number of dashboard snapshots computed.",
	})
)
