package gateway

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Service  ServiceStatus    `json:"service"`
	Ledgers  LedgerStatus     `json:"ledgers"`
	Gateway  GatewayStatus    `json:"gateway"`
	RPCCalls map[string]int64 `json:"rpc_calls"`
}

// ServiceStatus holds process overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// LedgerStatus describes the ledgers directory and mutation counters.
type LedgerStatus struct {
	Directory      string `json:"directory"`
	DirectoryError string `json:"directory_error,omitempty"`
	Count          int    `json:"count"`
	Saved          int64  `json:"saved_total"`
	Deleted        int64  `json:"deleted_total"`
	TutorialResets int64  `json:"tutorial_resets_total"`
}

// GatewayStatus holds connection counters.
type GatewayStatus struct {
	Connections int64 `json:"connections"`
	RPCErrors   int64 `json:"rpc_errors_total"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	Connections    atomic.Int64
	RPCErrors      atomic.Int64
	LedgersSaved   atomic.Int64
	LedgersDeleted atomic.Int64
	TutorialResets atomic.Int64

	calls sync.Map // method -> *atomic.Int64
}

func (m *Metrics) recordCall(method string) {
	v, _ := m.calls.LoadOrStore(method, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// Calls returns a snapshot of RPC call counts per method.
func (m *Metrics) Calls() map[string]int64 {
	out := make(map[string]int64)
	m.calls.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

func sortedMethods(calls map[string]int64) []string {
	methods := make([]string, 0, len(calls))
	for m := range calls {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(deps HandlerDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ledgers := LedgerStatus{
			Saved:          metrics.LedgersSaved.Load(),
			Deleted:        metrics.LedgersDeleted.Load(),
			TutorialResets: metrics.TutorialResets.Load(),
		}
		if dir, err := deps.Ledgers.ResolveDirectory(r.Context()); err != nil {
			ledgers.DirectoryError = err.Error()
		} else {
			ledgers.Directory = dir
			if items, err := deps.Ledgers.List(r.Context()); err == nil {
				ledgers.Count = len(items)
			}
		}

		resp := StatusResponse{
			Service: ServiceStatus{
				Name:          deps.ServiceName,
				Version:       deps.Version,
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Ledgers: ledgers,
			Gateway: GatewayStatus{
				Connections: metrics.Connections.Load(),
				RPCErrors:   metrics.RPCErrors.Load(),
			},
			RPCCalls: metrics.Calls(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
