package main

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const outboxCap = 64

// OutMsg is one frame queued for a session. Binary frames are msgpack
// snapshots; the rest are JSON envelopes.
type OutMsg struct {
	Binary bool
	Data   []byte
}

// SessionBridge ties an authenticated session to a player slot. The
// match holds the bridge, never the session; the session holds only
// (match id, slot). All traffic crosses through the input buffer and
// the bounded outbox, so the match never blocks on a slow client.
type SessionBridge struct {
	MatchID uuid.UUID
	UserID  uuid.UUID
	Slot    int
	Inputs  *InputBuffer

	outbox chan OutMsg
	done   chan struct{}
	once   sync.Once

	disconnected atomic.Bool
	metrics      *MatchMetrics
}

// NewSessionBridge creates a bridge for one slot
func NewSessionBridge(matchID, userID uuid.UUID, slot int, maxInputRateHz int, metrics *MatchMetrics) *SessionBridge {
	return &SessionBridge{
		MatchID: matchID,
		UserID:  userID,
		Slot:    slot,
		Inputs:  NewInputBuffer(maxInputRateHz, metrics),
		outbox:  make(chan OutMsg, outboxCap),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// Outbox is consumed by the session's write pump
func (b *SessionBridge) Outbox() <-chan OutMsg {
	return b.outbox
}

// Done is closed when the match releases the slot (terminal message
// already queued). This is the cancellation handle handed to the session.
func (b *SessionBridge) Done() <-chan struct{} {
	return b.done
}

// Close releases the slot. Idempotent.
func (b *SessionBridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// MarkDisconnected records session loss. The match observes it at the
// next tick boundary; the player stays in the match.
func (b *SessionBridge) MarkDisconnected() {
	b.disconnected.Store(true)
}

// Disconnected reports whether the session side is gone
func (b *SessionBridge) Disconnected() bool {
	return b.disconnected.Load()
}

// Send queues a frame without ever blocking the match. When the outbox
// is full, one non-snapshot frame is evicted to make room; if the
// outbox is still full the session is disconnected as a slow consumer.
func (b *SessionBridge) Send(m OutMsg) {
	if b.disconnected.Load() {
		return
	}
	select {
	case b.outbox <- m:
		return
	default:
	}

	// Evict one queued frame, preferring to keep snapshots
	select {
	case old := <-b.outbox:
		requeued := false
		if old.Binary {
			select {
			case b.outbox <- old:
				requeued = true
			default:
			}
		}
		if !requeued && b.metrics != nil {
			b.metrics.IncOutboxDropped()
		}
	default:
	}

	select {
	case b.outbox <- m:
	default:
		if b.metrics != nil {
			b.metrics.IncSlowDisconnect()
		}
		b.MarkDisconnected()
	}
}

// SendEnvelope marshals and queues a JSON envelope
func (b *SessionBridge) SendEnvelope(t string, data interface{}) {
	raw, err := marshalEnvelope(t, data)
	if err != nil {
		return
	}
	b.Send(OutMsg{Data: raw})
}
