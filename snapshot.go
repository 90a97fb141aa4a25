package main

import "github.com/vmihailenco/msgpack/v5"

// Snapshot is the whole-state payload flushed to every session in the
// match. No delta compression; field tags are kept to one or two bytes
// so the msgpack encoding stays inside the per-player byte budget.
type Snapshot struct {
	Tick        uint64               `msgpack:"k"`
	Zone        ZoneSnapshot         `msgpack:"z"`
	Players     []PlayerSnapshot     `msgpack:"p"`
	Projectiles []ProjectileSnapshot `msgpack:"r,omitempty"`
	Events      []Event              `msgpack:"e,omitempty"`
}

// ZoneSnapshot is the wire form of the safe circle
type ZoneSnapshot struct {
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Radius float64 `msgpack:"r"`
	Phase  int     `msgpack:"p"`
}

// PlayerSnapshot is the per-player tuple
type PlayerSnapshot struct {
	UserID  string  `msgpack:"u"`
	Slot    int     `msgpack:"s"`
	X       float64 `msgpack:"x"`
	Y       float64 `msgpack:"y"`
	VX      float64 `msgpack:"vx"`
	VY      float64 `msgpack:"vy"`
	Heading float64 `msgpack:"h"`
	Hull    float64 `msgpack:"hp"`
	Alive   bool    `msgpack:"a"`
	LastSeq uint32  `msgpack:"q"`
}

// ProjectileSnapshot is the compact wire form of a live shot
type ProjectileSnapshot struct {
	ID    uint32  `msgpack:"i"`
	Owner int     `msgpack:"o"`
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	VX    float64 `msgpack:"vx"`
	VY    float64 `msgpack:"vy"`
}

// SnapshotBuilder decides when the simulation flushes state to the
// sessions: every N ticks, where N = simulation rate / snapshot rate.
type SnapshotBuilder struct {
	interval   int
	sinceFlush int
}

// NewSnapshotBuilder derives the flush interval from the two rates,
// rounding up so the realized cadence never exceeds the requested
// snapshot rate (30/20 flushes every 2 ticks).
func NewSnapshotBuilder(simulationTPS, snapshotTPS int) *SnapshotBuilder {
	interval := 1
	if snapshotTPS > 0 && simulationTPS > snapshotTPS {
		interval = (simulationTPS + snapshotTPS - 1) / snapshotTPS
	}
	return &SnapshotBuilder{interval: interval}
}

// ShouldFlush advances the tick counter and reports whether this tick
// ends a snapshot window.
func (sb *SnapshotBuilder) ShouldFlush() bool {
	sb.sinceFlush++
	if sb.sinceFlush >= sb.interval {
		sb.sinceFlush = 0
		return true
	}
	return false
}

// Build assembles the wire payload. events is the pending log since
// the previous flush; the caller clears it afterwards so every event
// is delivered exactly once.
func (sb *SnapshotBuilder) Build(tick uint64, zone *Zone, players []*Player, projectiles []*Projectile, events []Event) Snapshot {
	snap := Snapshot{
		Tick: tick,
		Zone: ZoneSnapshot{
			X:      zone.Center.X,
			Y:      zone.Center.Y,
			Radius: zone.Radius,
			Phase:  zone.PhaseIndex,
		},
		Players: make([]PlayerSnapshot, 0, len(players)),
		Events:  events,
	}
	for _, p := range players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			UserID:  p.UserID.String(),
			Slot:    p.Slot,
			X:       p.Pos.X,
			Y:       p.Pos.Y,
			VX:      p.Vel.X,
			VY:      p.Vel.Y,
			Heading: p.Heading,
			Hull:    p.Hull,
			Alive:   p.Alive,
			LastSeq: p.LastInputSeq,
		})
	}
	for _, pr := range projectiles {
		snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
			ID:    pr.ID,
			Owner: pr.OwnerSlot,
			X:     pr.Pos.X,
			Y:     pr.Pos.Y,
			VX:    pr.Vel.X,
			VY:    pr.Vel.Y,
		})
	}
	return snap
}

// Encode marshals the snapshot to its binary wire form
func (s Snapshot) Encode() ([]byte, error) {
	return msgpack.Marshal(s)
}

// DecodeSnapshot parses a binary snapshot frame (used by tests and
// diagnostic tooling; clients do the same on their side).
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	err := msgpack.Unmarshal(data, &s)
	return s, err
}
