package main

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestSpawnProjectileDirection(t *testing.T) {
	p := fighterPlayer(0)
	p.Pos = Vec2{100, 100}
	p.AimYaw = 0 // +X

	pr := SpawnProjectile(1, p, 5, 30)
	if pr.Vel.X <= 0 || math.Abs(pr.Vel.Y) > 1e-9 {
		t.Errorf("projectile velocity %v, want along +X", pr.Vel)
	}
	if pr.Pos.X <= p.Pos.X {
		t.Errorf("projectile should spawn ahead of the ship: %v", pr.Pos)
	}
	if pr.OwnerSlot != 0 {
		t.Errorf("owner slot = %d, want 0", pr.OwnerSlot)
	}
	if pr.Damage != p.Ship.Damage {
		t.Errorf("damage = %f, want %f", pr.Damage, p.Ship.Damage)
	}
}

func TestProjectileExpiry(t *testing.T) {
	p := fighterPlayer(0)
	pr := SpawnProjectile(1, p, 0, 30)

	ttl := p.Ship.ProjTTLTicks(30)
	dt := 1.0 / 30.0
	alive := 0
	for pr.Step(dt) {
		alive++
		if alive > ttl {
			t.Fatal("projectile outlived its TTL")
		}
	}
	if alive != ttl-1 {
		t.Errorf("projectile lived %d steps, want %d", alive, ttl-1)
	}
}

func TestProjectileHitRadius(t *testing.T) {
	target := fighterPlayer(1)
	target.Pos = Vec2{50, 0}

	pr := &Projectile{OwnerSlot: 0, Pos: Vec2{50, target.Ship.Radius + pr4() - 0.5}, Radius: pr4()}
	if !pr.Hits(target) {
		t.Error("projectile inside combined radius should hit")
	}
	pr.Pos = Vec2{50, target.Ship.Radius + pr4() + 0.5}
	if pr.Hits(target) {
		t.Error("projectile outside combined radius should miss")
	}
}

func pr4() float64 { return shipCatalog["fighter"].ProjRadius }

func TestResolveHitSlotTieBreak(t *testing.T) {
	// Three players overlapping the projectile; lowest eligible slot wins
	players := []*Player{fighterPlayer(0), fighterPlayer(1), fighterPlayer(2)}
	for _, p := range players {
		p.Pos = Vec2{0, 0}
	}
	pr := &Projectile{OwnerSlot: 0, Pos: Vec2{0, 0}, Radius: 4}

	hit := ResolveHit(pr, players, 10)
	if hit == nil || hit.Slot != 1 {
		t.Fatalf("expected slot 1 (owner skipped, lowest slot wins), got %+v", hit)
	}

	players[1].Alive = false
	players[1].DeathTick = 4
	hit = ResolveHit(pr, players, 10)
	if hit == nil || hit.Slot != 2 {
		t.Fatalf("expected slot 2 once slot 1 is dead, got %+v", hit)
	}

	// A victim that died this very tick still absorbs the hit
	players[1].DeathTick = 10
	hit = ResolveHit(pr, players, 10)
	if hit == nil || hit.Slot != 1 {
		t.Fatalf("same-tick corpse should absorb the hit, got %+v", hit)
	}
}

func TestUpdateAimSlewLimit(t *testing.T) {
	p := fighterPlayer(0)
	p.Heading = 0
	p.AimYaw = 0

	dt := 1.0 / 30.0
	slew := 2.0
	UpdateAim(p, 1.0, slew, dt)

	maxStep := slew * dt
	if math.Abs(p.AimYaw) > maxStep+1e-12 {
		t.Errorf("aim moved %f in one tick, slew allows %f", p.AimYaw, maxStep)
	}
}

func TestUpdateAimConeClamp(t *testing.T) {
	p := fighterPlayer(0)
	p.Heading = 0
	p.AimYaw = 0

	dt := 1.0 / 30.0
	// Huge slew so only the cone limits; request a full flip
	for i := 0; i < 300; i++ {
		UpdateAim(p, math.Pi, 100, dt)
	}
	if off := math.Abs(NormalizeAngle(p.AimYaw - p.Heading)); off > aimMaxDeviation+1e-9 {
		t.Errorf("aim deviates %f from heading, cone is %f", off, aimMaxDeviation)
	}
}

func TestApplyDamageBounds(t *testing.T) {
	p := NewPlayer(uuid.New(), "t", 0, shipCatalog["scout"])
	if died := p.ApplyDamage(10); died {
		t.Error("should survive 10 damage")
	}
	if p.Hull != p.Ship.MaxHull-10 {
		t.Errorf("hull = %f", p.Hull)
	}
	if died := p.ApplyDamage(1000); !died {
		t.Error("should die from 1000 damage")
	}
	if p.Hull != 0 {
		t.Errorf("hull clamped at 0, got %f", p.Hull)
	}
	if p.Alive {
		t.Error("dead player still alive")
	}
	if died := p.ApplyDamage(5); died {
		t.Error("dead player cannot die twice")
	}
}
