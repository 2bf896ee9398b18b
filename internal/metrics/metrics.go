package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process invocation statistics. It backs the JSON stats
// endpoint and is always on; Prometheus collectors are optional.
type Metrics struct {
	TotalInvocations   atomic.Int64
	SuccessInvocations atomic.Int64
	FailedInvocations  atomic.Int64
	Notifications      atomic.Int64
	ContinuationPanics atomic.Int64

	// Latency metrics (in milliseconds)
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	opMetrics sync.Map // operation -> *OperationMetrics

	startTime time.Time
}

// OperationMetrics tracks metrics for a single operation name.
type OperationMetrics struct {
	Invocations atomic.Int64
	Successes   atomic.Int64
	Failures    atomic.Int64
	TotalMs     atomic.Int64
	MinMs       atomic.Int64
	MaxMs       atomic.Int64
}

const noMin = int64(^uint64(0) >> 1)

var global = New()

// New returns an empty Metrics.
func New() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.MinLatencyMs.Store(noMin)
	return m
}

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns when the process-wide metrics started collecting.
func StartTime() time.Time {
	return global.startTime
}

// RecordInvocation records a completed invocation.
func (m *Metrics) RecordInvocation(operation string, durationMs int64, success bool) {
	m.TotalInvocations.Add(1)
	m.TotalLatencyMs.Add(durationMs)
	if success {
		m.SuccessInvocations.Add(1)
	} else {
		m.FailedInvocations.Add(1)
	}
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	om := m.getOperationMetrics(operation)
	om.Invocations.Add(1)
	om.TotalMs.Add(durationMs)
	if success {
		om.Successes.Add(1)
	} else {
		om.Failures.Add(1)
	}
	updateMin(&om.MinMs, durationMs)
	updateMax(&om.MaxMs, durationMs)
}

// RecordNotification records a completion notification being fired.
func (m *Metrics) RecordNotification() {
	m.Notifications.Add(1)
}

// RecordContinuationPanic records a recovered panic in a continuation.
func (m *Metrics) RecordContinuationPanic() {
	m.ContinuationPanics.Add(1)
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	if v, ok := m.opMetrics.Load(operation); ok {
		return v.(*OperationMetrics)
	}
	om := &OperationMetrics{}
	om.MinMs.Store(noMin)
	actual, _ := m.opMetrics.LoadOrStore(operation, om)
	return actual.(*OperationMetrics)
}

// Snapshot returns current metrics as a map
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.TotalInvocations.Load()
	avgLatency := float64(0)
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == noMin {
		minLatency = 0
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"invocations": map[string]interface{}{
			"total":   total,
			"success": m.SuccessInvocations.Load(),
			"failed":  m.FailedInvocations.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"notifications":       m.Notifications.Load(),
		"continuation_panics": m.ContinuationPanics.Load(),
	}
}

// OperationStats returns per-operation metrics
func (m *Metrics) OperationStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.opMetrics.Range(func(key, value interface{}) bool {
		om := value.(*OperationMetrics)

		total := om.Invocations.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(om.TotalMs.Load()) / float64(total)
		}

		minMs := om.MinMs.Load()
		if minMs == noMin {
			minMs = 0
		}

		result[key.(string)] = map[string]interface{}{
			"invocations": total,
			"successes":   om.Successes.Load(),
			"failures":    om.Failures.Load(),
			"avg_ms":      avgMs,
			"min_ms":      minMs,
			"max_ms":      om.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["operations"] = m.OperationStats()
		json.NewEncoder(w).Encode(result)
	})
}

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
