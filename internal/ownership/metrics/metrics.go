// Package metrics holds the ownership engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersInitiated counts successful initiate calls by transfer type.
	TransfersInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "titleledger_transfers_initiated_total",
		Help: "Transfers initiated successfully, by transfer type",
	}, []string{"transfer_type"})

	// TransfersCompleted counts successful confirmations.
	TransfersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "titleledger_transfers_completed_total",
		Help: "Transfers confirmed and applied to the ledger",
	})

	// TransfersRejected counts confirmations rejected on document verification.
	TransfersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "titleledger_transfers_rejected_total",
		Help: "Transfer confirmations rejected by document verification",
	})

	// StagingWriteFailures counts swallowed cache writes after initiate.
	// A growing value means confirmations will start failing on cache misses.
	StagingWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "titleledger_staging_write_failures_total",
		Help: "Staged distributions that could not be written to the cache",
	})

	// StagingMisses counts confirm attempts that found no staged entry.
	StagingMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "titleledger_staging_misses_total",
		Help: "Confirm attempts aborted on a missing or expired staged entry",
	})

	// ConfirmDurationMs tracks the ledger-mutation transaction latency.
	ConfirmDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "titleledger_confirm_duration_ms",
		Help:    "Latency of transfer confirmation in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	// PortfolioDurationMs tracks the portfolio read-side latency.
	PortfolioDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "titleledger_portfolio_duration_ms",
		Help:    "Latency of portfolio queries in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
