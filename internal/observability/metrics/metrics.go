package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "oee_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestEvents   *prometheus.CounterVec

	consumerLag *prometheus.GaugeVec

	computeTotal   *prometheus.CounterVec
	computeLatency *prometheus.HistogramVec

	partitionsTotal    *prometheus.CounterVec
	entityOutcomes     *prometheus.CounterVec
	subqueryRetries    *prometheus.CounterVec
	subqueryFailures   *prometheus.CounterVec
	rollupCapTotal     *prometheus.CounterVec
	cacheFallbackTotal *prometheus.CounterVec
	degradedTotal      prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_events_total",
				Help: "Total state events ingested by source",
			},
			[]string{"source"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		computeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "compute_total",
				Help: "Total OEE computations by plan state and result",
			},
			[]string{"state", "result"},
		)
		computeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "compute_latency_seconds",
				Help:    "OEE computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		)

		partitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "partitions_total",
				Help: "Total day partitions served by strategy",
			},
			[]string{"strategy"},
		)
		entityOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "entity_outcomes_total",
				Help: "Total per-entity results by outcome",
			},
			[]string{"outcome"},
		)
		subqueryRetries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "subquery_retries_total",
				Help: "Total store sub-query retries by operation",
			},
			[]string{"op"},
		)
		subqueryFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "subquery_failures_total",
				Help: "Total store sub-queries failed after retries by operation",
			},
			[]string{"op"},
		)
		rollupCapTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_cap_total",
				Help: "Total entity-days whose rollup time was capped",
			},
			[]string{"entity_type"},
		)
		cacheFallbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_fallback_total",
				Help: "Total cache days rerouted to live computation by reason",
			},
			[]string{"reason"},
		)
		degradedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "degraded_total",
				Help: "Total OEE results returned degraded after a deadline",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total OEE report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "OEE report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestEvents,
			consumerLag,
			computeTotal,
			computeLatency,
			partitionsTotal,
			entityOutcomes,
			subqueryRetries,
			subqueryFailures,
			rollupCapTotal,
			cacheFallbackTotal,
			degradedTotal,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// AddIngestEvents counts state events written by an ingest source.
func AddIngestEvents(source string, count int) {
	if count <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if ingestEvents != nil {
		ingestEvents.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// ObserveCompute records OEE computation latency by plan state.
func ObserveCompute(state, result string, duration time.Duration) {
	if state == "" {
		state = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if computeTotal != nil {
		computeTotal.WithLabelValues(state, result).Inc()
	}
	if computeLatency != nil {
		computeLatency.WithLabelValues(state).Observe(duration.Seconds())
	}
}

// IncPartition counts a partition served by strategy.
func IncPartition(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	if partitionsTotal != nil {
		partitionsTotal.WithLabelValues(strategy).Inc()
	}
}

// IncEntityOutcome counts a per-entity result.
func IncEntityOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if entityOutcomes != nil {
		entityOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncSubqueryRetry counts a retried store sub-query.
func IncSubqueryRetry(op string) {
	if op == "" {
		op = "unknown"
	}
	if subqueryRetries != nil {
		subqueryRetries.WithLabelValues(op).Inc()
	}
}

// IncSubqueryFailure counts a store sub-query that failed after retries.
func IncSubqueryFailure(op string) {
	if op == "" {
		op = "unknown"
	}
	if subqueryFailures != nil {
		subqueryFailures.WithLabelValues(op).Inc()
	}
}

// IncRollupCap counts an entity-day capped by the rollup sanity guard.
func IncRollupCap(entityType string) {
	if entityType == "" {
		entityType = "unknown"
	}
	if rollupCapTotal != nil {
		rollupCapTotal.WithLabelValues(entityType).Inc()
	}
}

// IncCacheFallback counts a cache day rerouted to live computation.
func IncCacheFallback(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if cacheFallbackTotal != nil {
		cacheFallbackTotal.WithLabelValues(reason).Inc()
	}
}

// IncDegraded counts a degraded result.
func IncDegraded() {
	if degradedTotal != nil {
		degradedTotal.Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	IngestResultSuccess = resultSuccess
	IngestResultError   = resultError

	ResultSuccess = resultSuccess
	ResultError   = resultError
)
