package main

// StepShip integrates one ship for one tick from its latest accepted
// input. The caller iterates players by ascending slot so floating
// point work happens in one fixed order. Overlapping ships are allowed
// (pairwise ship collision is not resolved) and never produce NaNs.
func StepShip(p *Player, dt, worldRadius float64) {
	in := p.LastInput
	ship := p.Ship

	// Heading
	p.Heading = NormalizeAngle(p.Heading + in.Steer*ship.TurnRate*dt)

	// Thrust along heading; reverse at half power
	thrust := in.Throttle * ship.Accel
	if in.Throttle < 0 {
		thrust *= 0.5
	}
	sin, cos := SinCos(p.Heading)
	p.Vel.X += cos * thrust * dt
	p.Vel.Y += sin * thrust * dt

	// Linear drag
	drag := 1 - ship.Drag*dt
	if drag < 0 {
		drag = 0
	}
	p.Vel = p.Vel.Scale(drag)

	// Speed cap
	if speed := p.Vel.Len(); speed > ship.MaxSpeed {
		p.Vel = p.Vel.Scale(ship.MaxSpeed / speed)
	}

	p.Pos = p.Pos.Add(p.Vel.Scale(dt))

	clampToWorld(p, worldRadius)
}

// clampToWorld enforces the circular hard wall: position is pulled back
// to the boundary and the outward radial velocity component is zeroed.
// No bounce.
func clampToWorld(p *Player, worldRadius float64) {
	distSq := p.Pos.LenSq()
	if distSq <= worldRadius*worldRadius {
		return
	}
	dist := p.Pos.Len()
	if dist == 0 {
		return
	}
	normal := p.Pos.Scale(1 / dist)
	p.Pos = normal.Scale(worldRadius)
	if out := p.Vel.Dot(normal); out > 0 {
		p.Vel = p.Vel.Sub(normal.Scale(out))
	}
}
