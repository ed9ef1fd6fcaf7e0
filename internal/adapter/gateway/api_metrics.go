package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
func metricsHandler(startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		// Ledger mutations.
		fmt.Fprintf(w, "# HELP ironbank_ledgers_saved_total Ledgers written through the gateway or CLI.\n")
		fmt.Fprintf(w, "# TYPE ironbank_ledgers_saved_total counter\n")
		fmt.Fprintf(w, "ironbank_ledgers_saved_total %d\n", metrics.LedgersSaved.Load())

		fmt.Fprintf(w, "# HELP ironbank_ledgers_deleted_total Ledgers removed.\n")
		fmt.Fprintf(w, "# TYPE ironbank_ledgers_deleted_total counter\n")
		fmt.Fprintf(w, "ironbank_ledgers_deleted_total %d\n", metrics.LedgersDeleted.Load())

		fmt.Fprintf(w, "# HELP ironbank_tutorial_resets_total Tutorial ledger resets.\n")
		fmt.Fprintf(w, "# TYPE ironbank_tutorial_resets_total counter\n")
		fmt.Fprintf(w, "ironbank_tutorial_resets_total %d\n", metrics.TutorialResets.Load())

		// Gateway.
		fmt.Fprintf(w, "# HELP ironbank_gateway_connections Open WebSocket connections.\n")
		fmt.Fprintf(w, "# TYPE ironbank_gateway_connections gauge\n")
		fmt.Fprintf(w, "ironbank_gateway_connections %d\n", metrics.Connections.Load())

		fmt.Fprintf(w, "# HELP ironbank_rpc_errors_total RPC calls answered with an error.\n")
		fmt.Fprintf(w, "# TYPE ironbank_rpc_errors_total counter\n")
		fmt.Fprintf(w, "ironbank_rpc_errors_total %d\n", metrics.RPCErrors.Load())

		calls := metrics.Calls()
		fmt.Fprintf(w, "# HELP ironbank_rpc_calls_total RPC calls dispatched, by method.\n")
		fmt.Fprintf(w, "# TYPE ironbank_rpc_calls_total counter\n")
		for _, method := range sortedMethods(calls) {
			fmt.Fprintf(w, "ironbank_rpc_calls_total{method=%q} %d\n", method, calls[method])
		}

		fmt.Fprintf(w, "# HELP ironbank_uptime_seconds Seconds since the service started.\n")
		fmt.Fprintf(w, "# TYPE ironbank_uptime_seconds gauge\n")
		fmt.Fprintf(w, "ironbank_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		// Go runtime.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
		fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
		fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

		fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)
	}
}
