package domain

import "sync/atomic"

// Stats are the batch-scoped counters shared by workers and the monitor.
// All fields are atomics; workers increment, the monitor only reads.
type Stats struct {
	TotalRequests      atomic.Int64
	SuccessfulRequests atomic.Int64
	FailedRequests     atomic.Int64
	TotalAPICalls      atomic.Int64
	RetriedTasks       atomic.Int64

	// ActiveCalls is a gauge of in-flight remote calls.
	ActiveCalls atomic.Int64
}

// StatsSnapshot is a point-in-time read of Stats plus slot-state counts
// filled in by whoever owns the slots.
type StatsSnapshot struct {
	TotalSlots     int     `json:"total_slots"`
	AvailableSlots int     `json:"available_slots"`
	CooldownSlots  int     `json:"slots_on_cooldown"`
	ExhaustedSlots int     `json:"exhausted_slots"`
	ActiveCalls    int64   `json:"active_connections"`
	TotalRequests  int64   `json:"total_requests"`
	Successful     int64   `json:"successful_requests"`
	Failed         int64   `json:"failed_requests"`
	Retried        int64   `json:"retried_tasks"`
	TotalAPICalls  int64   `json:"total_api_calls"`
	SuccessRate    float64 `json:"success_rate"`
}

// Snapshot reads the counters. Slot fields are left zero for the caller.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		ActiveCalls:   s.ActiveCalls.Load(),
		TotalRequests: s.TotalRequests.Load(),
		Successful:    s.SuccessfulRequests.Load(),
		Failed:        s.FailedRequests.Load(),
		Retried:       s.RetriedTasks.Load(),
		TotalAPICalls: s.TotalAPICalls.Load(),
	}
	if snap.TotalRequests > 0 {
		snap.SuccessRate = float64(snap.Successful) / float64(snap.TotalRequests) * 100
	}
	return snap
}
