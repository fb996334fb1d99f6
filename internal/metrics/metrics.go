package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for OperationItems.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Ledger operation metrics
var (
	OperationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftledger_operation_items_total",
			Help: "Batch items processed by operation, outcome and error variant",
		},
		[]string{"operation", "outcome", "variant"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftledger_operation_duration_seconds",
			Help:    "Time taken to process one ledger call (all batch items)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nftledger_batch_size",
		Help:    "Number of items in each mutating batch call",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})
)

// State metrics
var (
	TotalSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftledger_total_supply",
		Help: "Number of tokens minted",
	})

	TransactionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftledger_transactions",
		Help: "Number of records in the transaction log",
	})
)

// Maintenance metrics
var (
	ApprovalsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftledger_approvals_pruned_total",
		Help: "Expired approvals removed by the sweeper",
	})

	DedupEntriesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftledger_dedup_entries_pruned_total",
		Help: "Deduplication fingerprints removed after leaving the transaction window",
	})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftledger_sweep_errors_total",
		Help: "Sweeper passes that failed",
	})

	WriterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftledger_db_writer_queue_depth",
		Help: "Jobs waiting for the SQLite single-writer worker",
	})
)

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftledger_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
