package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "rollup_freshness_age_seconds",
			Help: "Seconds since the newest rollup row was written",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COALESCE(EXTRACT(EPOCH FROM (now() - MAX(updated_at))), 0) FROM oee_rollups")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "open_sessions",
			Help: "Machine sessions without an end timestamp",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COUNT(*) FROM machine_sessions WHERE end_at IS NULL")
		},
	))
}

func queryFloat(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value float64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}
