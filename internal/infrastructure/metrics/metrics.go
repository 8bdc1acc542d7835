package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction engine metrics
	TransactionsCreated  prometheus.Counter
	TransactionsFailed   prometheus.Counter
	TransactionsReplayed prometheus.Counter
	TransactionDuration  prometheus.Histogram
	EntriesWritten       prometheus.Counter

	// Booking metrics
	BookingsCharged     prometheus.Counter
	BookingsRefunded    prometheus.Counter
	InsufficientCredits prometheus.Counter
	RefundAmount        prometheus.Histogram

	// Reconciliation metrics
	ReconciliationRuns   prometheus.Counter
	ReconciliationDrift  prometheus.Counter
	ReconciliationHealed prometheus.Counter
	StalePendingSwept    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBConnections prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisDuration   *prometheus.HistogramVec
	RedisErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Transaction engine metrics
		TransactionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_transactions_created_total",
			Help: "Total number of ledger transactions completed",
		}),
		TransactionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_transactions_failed_total",
			Help: "Total number of ledger transactions that failed during entry writes",
		}),
		TransactionsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_transactions_replayed_total",
			Help: "Total number of idempotent replays of completed transactions",
		}),
		TransactionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credits_transaction_duration_seconds",
			Help:    "Duration of transaction creation",
			Buckets: prometheus.DefBuckets,
		}),
		EntriesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_entries_written_total",
			Help: "Total number of ledger entries written",
		}),

		// Booking metrics
		BookingsCharged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_bookings_charged_total",
			Help: "Total number of bookings charged",
		}),
		BookingsRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_bookings_refunded_total",
			Help: "Total number of booking cancellations processed",
		}),
		InsufficientCredits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_insufficient_credits_total",
			Help: "Total number of spends rejected for insufficient credits",
		}),
		RefundAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credits_refund_amount",
			Help:    "Refunded credit amounts",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 500},
		}),

		// Reconciliation metrics
		ReconciliationRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_reconciliation_runs_total",
			Help: "Total number of reconciliation runs",
		}),
		ReconciliationDrift: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_reconciliation_drift_total",
			Help: "Total number of accounts found with cached balance drift",
		}),
		ReconciliationHealed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_reconciliation_healed_total",
			Help: "Total number of cached balances rewritten from the ledger",
		}),
		StalePendingSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credits_stale_pending_swept_total",
			Help: "Total number of stale pending transactions marked failed",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credits_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "credits_db_connections",
			Help: "Current number of database connections",
		}),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credits_redis_duration_seconds",
				Help:    "Redis operation duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
