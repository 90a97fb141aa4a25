package main

// Aim constraints. The requested yaw is slewed toward at a bounded
// rate and then clamped to a cone around the heading, so client aim
// can never snap 360° in one tick.
const aimMaxDeviation = 1.5707963267948966 // π/2

// Projectile is a live shot. IDs are a per-match counter so the
// projectile stream is reproducible from the seed and input stream.
type Projectile struct {
	ID        uint32
	OwnerSlot int
	Pos       Vec2
	Vel       Vec2
	Damage    float64
	Radius    float64
	SpawnTick uint64
	TTL       int // ticks remaining; expires silently at 0
}

// UpdateAim advances the player's server-side aim toward the requested
// yaw, limited by the slew rate and the deviation cone.
func UpdateAim(p *Player, requested, slewRadPerSec, dt float64) {
	delta := NormalizeAngle(requested - p.AimYaw)
	maxStep := slewRadPerSec * dt
	delta = Clamp(delta, -maxStep, maxStep)
	aim := NormalizeAngle(p.AimYaw + delta)

	// Clamp to the cone around the heading
	off := Clamp(NormalizeAngle(aim-p.Heading), -aimMaxDeviation, aimMaxDeviation)
	p.AimYaw = NormalizeAngle(p.Heading + off)
}

// SpawnProjectile fires the player's weapon along its current aim.
// The caller has already checked cooldown and liveness.
func SpawnProjectile(id uint32, p *Player, tick uint64, tps int) *Projectile {
	ship := p.Ship
	sin, cos := SinCos(p.AimYaw)
	offset := ship.Radius + 5
	return &Projectile{
		ID:        id,
		OwnerSlot: p.Slot,
		Pos:       Vec2{p.Pos.X + cos*offset, p.Pos.Y + sin*offset},
		Vel:       Vec2{cos * ship.ProjSpeed, sin * ship.ProjSpeed},
		Damage:    ship.Damage,
		Radius:    ship.ProjRadius,
		SpawnTick: tick,
		TTL:       ship.ProjTTLTicks(tps),
	}
}

// Step advances the projectile one tick and burns TTL. Returns false
// once expired.
func (pr *Projectile) Step(dt float64) bool {
	pr.Pos = pr.Pos.Add(pr.Vel.Scale(dt))
	pr.TTL--
	return pr.TTL > 0
}

// Hits reports whether the projectile overlaps the player's hull
func (pr *Projectile) Hits(p *Player) bool {
	combined := pr.Radius + p.Ship.Radius
	return pr.Pos.Sub(p.Pos).LenSq() <= combined*combined
}

// ResolveHit finds the victim for a projectile this tick, iterating
// players by ascending slot. Lowest slot wins when several ships
// overlap the projectile; that is the deterministic tie-break. The
// owner is skipped, as are dead players, except victims that died
// earlier in this same tick: they still absorb hits.
func ResolveHit(pr *Projectile, players []*Player, tick uint64) *Player {
	for _, p := range players {
		if p.Slot == pr.OwnerSlot {
			continue
		}
		if !p.Alive && p.DeathTick != tick {
			continue
		}
		if pr.Hits(p) {
			return p
		}
	}
	return nil
}
