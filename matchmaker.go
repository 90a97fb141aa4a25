package main

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
)

const matcherInterval = 500 * time.Millisecond

// queuedPlayer is one waiting entry, FIFO by arrival, keyed by ship
// preference.
type queuedPlayer struct {
	userID   uuid.UUID
	name     string
	ship     *ShipClass
	client   *Client
	queuedAt time.Time
}

// Matchmaker owns the waiting queue and the registry of live matches.
// It is the only cross-task shared structure; everything reaches it
// through the command channels and it mutates the queue from a single
// goroutine.
type Matchmaker struct {
	cfg  Config
	sink StatsSink

	enqueueCh chan queuedPlayer
	dequeueCh chan uuid.UUID
	stopCh    chan struct{}
	stopOnce  sync.Once

	queue []queuedPlayer
	lobby *Match // most recent match that may still accept joins

	mu      sync.RWMutex
	matches map[uuid.UUID]*Match
}

// NewMatchmaker creates the service; call Run in its own goroutine
func NewMatchmaker(cfg Config, sink StatsSink) *Matchmaker {
	if sink == nil {
		sink = discardSink{}
	}
	return &Matchmaker{
		cfg:       cfg,
		sink:      sink,
		enqueueCh: make(chan queuedPlayer, 64),
		dequeueCh: make(chan uuid.UUID, 64),
		stopCh:    make(chan struct{}),
		matches:   make(map[uuid.UUID]*Match),
	}
}

// Enqueue appends a player to the waiting queue. Never blocks the
// session for long; a saturated matchmaker rejects.
func (mm *Matchmaker) Enqueue(qp queuedPlayer) bool {
	select {
	case mm.enqueueCh <- qp:
		return true
	case <-mm.stopCh:
		return false
	default:
		return false
	}
}

// Dequeue removes a player from the queue (leave or session loss
// while waiting). Idempotent: unknown ids are ignored.
func (mm *Matchmaker) Dequeue(userID uuid.UUID) {
	select {
	case mm.dequeueCh <- userID:
	case <-mm.stopCh:
	default:
	}
}

// GetMatch looks up a live match
func (mm *Matchmaker) GetMatch(id uuid.UUID) *Match {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.matches[id]
}

// MatchMetrics returns the debug view of every live match
func (mm *Matchmaker) MatchMetrics() map[string]map[string]any {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	out := make(map[string]map[string]any, len(mm.matches))
	for id, m := range mm.matches {
		out[id.String()] = m.Metrics().Snapshot()
	}
	return out
}

// Stop shuts the matchmaker and every live match down
func (mm *Matchmaker) Stop() {
	mm.stopOnce.Do(func() { close(mm.stopCh) })
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	for _, m := range mm.matches {
		m.Stop()
	}
}

// Run processes queue commands and periodically tries to form matches
func (mm *Matchmaker) Run() {
	ticker := time.NewTicker(matcherInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mm.stopCh:
			return
		case qp := <-mm.enqueueCh:
			mm.remove(qp.userID) // rejoin replaces the stale entry
			mm.queue = append(mm.queue, qp)
		case id := <-mm.dequeueCh:
			mm.remove(id)
		case <-ticker.C:
			mm.matchPass()
		}
	}
}

func (mm *Matchmaker) remove(userID uuid.UUID) {
	for i, qp := range mm.queue {
		if qp.userID == userID {
			mm.queue = append(mm.queue[:i], mm.queue[i+1:]...)
			return
		}
	}
}

// matchPass first feeds the open lobby, then forms a new match when
// the threshold is met. Pop order assigns slots, which makes the slot
// layout deterministic for a given queue order.
func (mm *Matchmaker) matchPass() {
	if mm.lobby != nil {
		mm.fillLobby()
	}
	if mm.lobby == nil && len(mm.queue) >= mm.cfg.MinPlayersToStart {
		mm.formMatch()
	}
}

// fillLobby moves queued players into the open lobby while it accepts
// them. The first rejection closes it for the matchmaker.
func (mm *Matchmaker) fillLobby() {
	for len(mm.queue) > 0 {
		qp := mm.queue[0]
		bridge, rep := mm.lobby.Join(qp.userID, qp.name, qp.ship)
		if bridge == nil {
			if rep.reason == "already_joined" {
				mm.queue = mm.queue[1:]
				continue
			}
			// Lobby started or full; future players wait for a new match
			mm.lobby = nil
			return
		}
		mm.queue = mm.queue[1:]
		qp.client.AttachMatch(mm.lobby, bridge, rep)
	}
}

// formMatch spawns a match runtime and hands over up to max_players
// queued sessions in FIFO order.
func (mm *Matchmaker) formMatch() {
	seed := freshSeed()
	m := NewMatch(mm.cfg, seed, mm.sink, mm.dropMatch)

	mm.mu.Lock()
	mm.matches[m.ID] = m
	mm.mu.Unlock()

	go m.Run()
	Log.Infow("match formed", "match_id", m.ID, "queued", len(mm.queue))

	count := len(mm.queue)
	if count > mm.cfg.MaxPlayersPerMatch {
		count = mm.cfg.MaxPlayersPerMatch
	}
	handed := 0
	for i := 0; i < count; i++ {
		qp := mm.queue[0]
		bridge, rep := m.Join(qp.userID, qp.name, qp.ship)
		if bridge == nil {
			// Spawn failure path: the affected player stays queued
			Log.Errorw("lobby handoff failed", "match_id", m.ID,
				"user_id", qp.userID, "reason", rep.reason)
			break
		}
		mm.queue = mm.queue[1:]
		qp.client.AttachMatch(m, bridge, rep)
		handed++
	}
	if handed == 0 {
		m.Stop()
		mm.lobby = nil
		return
	}
	mm.lobby = m
}

// dropMatch is the onEnd callback from match runtimes. A stale lobby
// pointer is harmless: the next Join on it reports match_over and the
// matcher pass clears it.
func (mm *Matchmaker) dropMatch(id uuid.UUID) {
	mm.mu.Lock()
	delete(mm.matches, id)
	mm.mu.Unlock()
}

// freshSeed draws 64 bits of entropy for a new match
func freshSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
