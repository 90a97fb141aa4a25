package main

import (
	"math"
	"sync"
	"time"
)

// Input is one validated client intent for a tick
type Input struct {
	Seq      uint32
	Throttle float64
	Steer    float64
	Shoot    bool
	AimYaw   float64
}

const inputBufferCap = 8

// InputBuffer is the per-player ingress buffer. Producers (session
// read pumps) push without blocking; the match tick loop is the sole
// consumer. Newest wins on overflow.
type InputBuffer struct {
	mu      sync.Mutex
	buf     [inputBufferCap]Input
	start   int
	count   int
	maxSeq  uint32 // highest seq ever buffered; the monotonicity gate
	maxRate int    // accepted inputs per second

	accepted int
	windowAt time.Time

	metrics *MatchMetrics
}

// NewInputBuffer creates a buffer enforcing the given accept rate
func NewInputBuffer(maxRateHz int, metrics *MatchMetrics) *InputBuffer {
	return &InputBuffer{maxRate: maxRateHz, metrics: metrics}
}

// Push validates and buffers an input. Invalid, stale, or rate-excess
// inputs are dropped silently: a drop never mutates match state and
// never disconnects the session.
func (b *InputBuffer) Push(in Input) bool {
	if in.Throttle < -1 || in.Throttle > 1 || math.IsNaN(in.Throttle) {
		b.reject()
		return false
	}
	if in.Steer < -1 || in.Steer > 1 || math.IsNaN(in.Steer) {
		b.reject()
		return false
	}
	if math.IsNaN(in.AimYaw) || math.IsInf(in.AimYaw, 0) {
		b.reject()
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if in.Seq <= b.maxSeq {
		if b.metrics != nil {
			b.metrics.IncStaleSeq()
		}
		return false
	}

	// Windowed rate limit, same shape as the connection-level limiter
	now := time.Now()
	if now.After(b.windowAt) {
		b.accepted = 0
		b.windowAt = now.Add(time.Second)
	}
	if b.accepted >= b.maxRate {
		if b.metrics != nil {
			b.metrics.IncRateLimited()
		}
		return false
	}
	b.accepted++

	b.maxSeq = in.Seq
	if b.count == inputBufferCap {
		// Full: drop the oldest
		b.start = (b.start + 1) % inputBufferCap
		b.count--
	}
	b.buf[(b.start+b.count)%inputBufferCap] = in
	b.count++
	if b.metrics != nil {
		b.metrics.IncAccepted()
	}
	return true
}

// Drain returns the newest buffered input with seq > lastAccepted and
// empties the buffer. Latest-wins coalescing: intermediate inputs are
// discarded.
func (b *InputBuffer) Drain(lastAccepted uint32) (Input, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var latest Input
	found := false
	for i := 0; i < b.count; i++ {
		in := b.buf[(b.start+i)%inputBufferCap]
		if in.Seq > lastAccepted && (!found || in.Seq > latest.Seq) {
			latest = in
			found = true
		}
	}
	b.start = 0
	b.count = 0
	return latest, found
}

// Len returns the number of buffered inputs
func (b *InputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *InputBuffer) reject() {
	if b.metrics != nil {
		b.metrics.IncInvalid()
	}
}
