package main

import "github.com/google/uuid"

// Player is the authoritative per-slot state of one ship in a match.
// Only the match tick loop mutates it.
type Player struct {
	UserID   uuid.UUID
	Name     string
	Slot     int
	ShipType string
	Ship     *ShipClass

	Pos     Vec2
	Vel     Vec2
	Heading float64 // radians, (-π, π]
	AimYaw  float64 // server-side aim, slew-limited toward the requested yaw

	Hull     float64
	Alive    bool
	Cooldown int // weapon cooldown remaining, ticks

	// Input tracking
	LastInput     Input
	LastInputSeq  uint32
	LastInputTick uint64 // tick an input was last accepted (idle detection)

	// Session liveness. The match observes disconnects at tick
	// boundaries so grace windows are measured in ticks.
	Connected      bool
	DisconnectTick uint64

	// Per-match stats
	Kills       int
	DamageDealt float64
	ShotsFired  int
	ShotsHit    int
	JoinedTick  uint64
	DeathTick   uint64
}

// NewPlayer creates a player in the given slot with full hull
func NewPlayer(userID uuid.UUID, name string, slot int, ship *ShipClass) *Player {
	return &Player{
		UserID:    userID,
		Name:      name,
		Slot:      slot,
		ShipType:  ship.Name,
		Ship:      ship,
		Hull:      ship.MaxHull,
		Alive:     true,
		Connected: true,
	}
}

// ApplyDamage reduces hull, clamped at zero, and returns true exactly
// when this damage killed the player. Dead players take no damage.
func (p *Player) ApplyDamage(dmg float64) bool {
	if !p.Alive {
		return false
	}
	p.Hull -= dmg
	if p.Hull <= 0 {
		p.Hull = 0
		p.Alive = false
		return true
	}
	return false
}
