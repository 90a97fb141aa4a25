package main

import "sync/atomic"

// MatchMetrics tracks per-match runtime counters for monitoring.
// All fields are updated with atomics; safe from any goroutine.
type MatchMetrics struct {
	TickCount        int64
	TicksSkipped     int64
	InputsAccepted   int64
	InputsInvalid    int64
	RateLimited      int64
	StaleSeqDropped  int64
	SnapshotsBuilt   int64
	OutboxDropped    int64
	SlowDisconnects  int64
	TotalTickNs      int64
}

func (m *MatchMetrics) IncAccepted()       { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *MatchMetrics) IncInvalid()        { atomic.AddInt64(&m.InputsInvalid, 1) }
func (m *MatchMetrics) IncRateLimited()    { atomic.AddInt64(&m.RateLimited, 1) }
func (m *MatchMetrics) IncStaleSeq()       { atomic.AddInt64(&m.StaleSeqDropped, 1) }
func (m *MatchMetrics) IncSnapshots()      { atomic.AddInt64(&m.SnapshotsBuilt, 1) }
func (m *MatchMetrics) IncOutboxDropped()  { atomic.AddInt64(&m.OutboxDropped, 1) }
func (m *MatchMetrics) IncSlowDisconnect() { atomic.AddInt64(&m.SlowDisconnects, 1) }
func (m *MatchMetrics) AddSkipped(n int64) { atomic.AddInt64(&m.TicksSkipped, n) }

func (m *MatchMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for the debug endpoint
func (m *MatchMetrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"tick_count":        ticks,
		"ticks_skipped":     atomic.LoadInt64(&m.TicksSkipped),
		"inputs_accepted":   atomic.LoadInt64(&m.InputsAccepted),
		"inputs_invalid":    atomic.LoadInt64(&m.InputsInvalid),
		"rate_limited":      atomic.LoadInt64(&m.RateLimited),
		"stale_seq_dropped": atomic.LoadInt64(&m.StaleSeqDropped),
		"snapshots_built":   atomic.LoadInt64(&m.SnapshotsBuilt),
		"outbox_dropped":    atomic.LoadInt64(&m.OutboxDropped),
		"slow_disconnects":  atomic.LoadInt64(&m.SlowDisconnects),
		"avg_tick_ms":       avgMs,
	}
}
