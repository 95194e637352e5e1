// Package metrics defines the Prometheus collectors exported on /metrics.
//
// All methods are safe on a nil *Metrics, so tests and tools can run the
// engine without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grouporder"

// Result labels for engine operations.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Record labels for optimistic save conflicts.
const (
	RecordOrder = "order"
	RecordStats = "stats"
)

// Metrics records RPC and engine activity.
type Metrics struct {
	rpcRequests      *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec
	operations       *prometheus.CounterVec
	saveConflicts    *prometheus.CounterVec
	statsFailures    prometheus.Counter
	participantCount prometheus.Histogram
}

// New registers the collectors on reg. A nil reg yields a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of RPC requests by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Duration of RPC requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"procedure"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_operations_total",
			Help:      "Total number of group order operations by result.",
		}, []string{"operation", "result"}),
		saveConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_conflicts_total",
			Help:      "Optimistic-concurrency conflicts seen while saving.",
		}, []string{"record"}),
		statsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_update_failures_total",
			Help:      "User statistics updates that failed after the order was committed.",
		}),
		participantCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_participants",
			Help:      "Participant count of orders after each join.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
	reg.MustRegister(m.rpcRequests, m.rpcDuration, m.operations, m.saveConflicts, m.statsFailures, m.participantCount)
	return m
}

// ObserveRPC records one finished RPC.
func (m *Metrics) ObserveRPC(procedure, code string, duration time.Duration) {
	if m == nil || m.rpcRequests == nil {
		return
	}
	m.rpcRequests.WithLabelValues(normalizeLabel(procedure), normalizeLabel(code)).Inc()
	m.rpcDuration.WithLabelValues(normalizeLabel(procedure)).Observe(duration.Seconds())
}

// RecordOperation counts one engine operation.
func (m *Metrics) RecordOperation(operation string, success bool) {
	if m == nil || m.operations == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultError
	}
	m.operations.WithLabelValues(normalizeLabel(operation), result).Inc()
}

// IncSaveConflict counts one version conflict on the given record kind.
func (m *Metrics) IncSaveConflict(record string) {
	if m == nil || m.saveConflicts == nil {
		return
	}
	m.saveConflicts.WithLabelValues(normalizeLabel(record)).Inc()
}

// IncStatsFailure counts one statistics update dropped after an order commit.
func (m *Metrics) IncStatsFailure() {
	if m == nil || m.statsFailures == nil {
		return
	}
	m.statsFailures.Inc()
}

// ObserveParticipants records the participant count of an order.
func (m *Metrics) ObserveParticipants(n int) {
	if m == nil || m.participantCount == nil {
		return
	}
	m.participantCount.Observe(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
