package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	EscrowsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_flows_total",
		Help: "The total number of escrow creation flows by terminal outcome",
	}, []string{"outcome"})

	EscrowStageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_stage_outcomes_total",
		Help: "Terminal outcomes by flow stage (lock, bundle, cosign)",
	}, []string{"stage", "outcome"})

	EscrowProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escrow_flow_seconds",
		Help:    "Time taken to run an escrow flow to its terminal outcome",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"flow"})

	ConfirmationRaces = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_confirmation_races_total",
		Help: "Confirmation races resolved, by winning branch",
	}, []string{"branch"})

	SearchesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_searches_total",
		Help: "History searches by result",
	}, []string{"result"})

	SearchRecordsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "escrow_search_records",
		Help:    "Escrow records returned per search",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	SearchBundlesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_search_bundles_skipped_total",
		Help: "Bundles skipped during reconstruction, by reason",
	}, []string{"reason"})

	NodesHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "escrow_nodes_healthy",
		Help: "Number of ledger nodes currently not skipped by their breaker",
	})
)
