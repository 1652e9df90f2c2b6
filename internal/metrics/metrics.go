package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per chain and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and error class
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "breadwatch_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// ChainLatestBlock tracks the latest block height seen by the subscription
	ChainLatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "breadwatch_chain_latest_block",
			Help: "Latest block height seen by the log subscription",
		},
	)

	// LogsDelivered tracks logs delivered by the subscription per kind
	LogsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_logs_delivered_total",
			Help: "Total number of token logs delivered by the subscription",
		},
		[]string{"kind"},
	)

	// LedgerSize tracks the number of reconciled mint events
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "breadwatch_ledger_entries",
			Help: "Number of mint events in the reconciled ledger",
		},
	)

	// LedgerDuplicates counts live mint events dropped as duplicates
	LedgerDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "breadwatch_ledger_duplicates_total",
			Help: "Live mint events dropped because the ledger already held them",
		},
	)

	// LedgerForeign counts live mint events for other beneficiaries
	LedgerForeign = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "breadwatch_ledger_foreign_total",
			Help: "Live mint events discarded because the beneficiary is not connected",
		},
	)

	// TimestampFailures counts block timestamp lookups that failed
	TimestampFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_timestamp_failures_total",
			Help: "Block timestamp lookups that fell back to unknown time",
		},
		[]string{"source"},
	)

	// PendingPolls tracks pending-amount polls by result
	PendingPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_pending_polls_total",
			Help: "Pending amount polls by result",
		},
		[]string{"result"},
	)

	// BalanceRefetches tracks balance reads by trigger
	BalanceRefetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_balance_reads_total",
			Help: "Balance reads by trigger",
		},
		[]string{"trigger"},
	)

	// TransfersSubmitted tracks transfer submissions by outcome
	TransfersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_transfers_total",
			Help: "Transfer submissions by outcome",
		},
		[]string{"outcome"},
	)

	// AliasLookups tracks reverse name lookups by cache layer
	AliasLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breadwatch_alias_lookups_total",
			Help: "Reverse name lookups by source",
		},
		[]string{"source"},
	)
)
