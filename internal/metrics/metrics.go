// Package metrics holds the run counters written to a node-exporter textfile
// at the end of a batch command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the registry every crmetrics counter is registered in.
var Registry = prometheus.NewRegistry()

var APIRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crmetrics_api_requests_total",
		Help: "Upstream API calls by endpoint and HTTP status.",
	},
	[]string{"endpoint", "status"},
)

var APIRetries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crmetrics_api_retries_total",
		Help: "Backoff sleeps taken before re-issuing an upstream call.",
	},
	[]string{"endpoint"},
)

var UnitsSkipped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crmetrics_units_skipped_total",
		Help: "Seeds, clans or players skipped after a per-unit failure.",
	},
	[]string{"stage"},
)

var RowsLoaded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crmetrics_rows_loaded_total",
		Help: "Rows offered to storage by table and result (inserted, skipped, rejected).",
	},
	[]string{"table", "result"},
)

var RowsDeleted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "crmetrics_retention_rows_deleted_total",
		Help: "Battle rows removed by the retention sweep.",
	},
)

var LastRunTimestamp = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "crmetrics_last_run_timestamp_seconds",
		Help: "Unix time the command last completed successfully.",
	},
	[]string{"command"},
)

func init() {
	Registry.MustRegister(APIRequests, APIRetries, UnitsSkipped, RowsLoaded, RowsDeleted, LastRunTimestamp)
}

// WriteTextfile writes the current registry contents to path. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
