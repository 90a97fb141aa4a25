package main

// ZonePhaseDef is one entry of the zone schedule: wait DelaySecs at the
// previous radius, then shrink linearly to TargetRadius over
// ShrinkSecs. The first entry is the initial radius, applied at match
// start with no delay or shrink.
type ZonePhaseDef struct {
	TargetRadius float64
	DelaySecs    float64
	ShrinkSecs   float64
	DamagePerSec float64
}

// DefaultZonePhases is the reference schedule
var DefaultZonePhases = []ZonePhaseDef{
	{TargetRadius: 1500, DelaySecs: 0, ShrinkSecs: 0, DamagePerSec: 0},
	{TargetRadius: 1000, DelaySecs: 60, ShrinkSecs: 30, DamagePerSec: 5},
	{TargetRadius: 600, DelaySecs: 60, ShrinkSecs: 30, DamagePerSec: 10},
	{TargetRadius: 300, DelaySecs: 60, ShrinkSecs: 30, DamagePerSec: 15},
	{TargetRadius: 50, DelaySecs: 60, ShrinkSecs: 30, DamagePerSec: 25},
}

type zoneBounds struct {
	shrinkStart uint64 // ticks since running-start
	end         uint64
}

// Zone is the shrinking safe circle. The schedule is measured in
// simulation ticks, never wall-clock, so radius sequences are
// reproducible from (phases, tps) alone.
type Zone struct {
	Center       Vec2
	Radius       float64
	PhaseIndex   int
	DamagePerSec float64

	phases    []ZonePhaseDef
	bounds    []zoneBounds // indexed like phases; entry 0 unused
	startTick uint64
}

// NewZone builds the tick schedule. startTick is the tick the match
// entered Running.
func NewZone(phases []ZonePhaseDef, center Vec2, startTick uint64, tps int) *Zone {
	z := &Zone{
		Center:    center,
		Radius:    phases[0].TargetRadius,
		phases:    phases,
		bounds:    make([]zoneBounds, len(phases)),
		startTick: startTick,
	}
	var at uint64
	for i := 1; i < len(phases); i++ {
		delay := uint64(phases[i].DelaySecs * float64(tps))
		shrink := uint64(phases[i].ShrinkSecs * float64(tps))
		z.bounds[i] = zoneBounds{shrinkStart: at + delay, end: at + delay + shrink}
		at = z.bounds[i].end
	}
	if len(phases) > 1 {
		z.PhaseIndex = 1
		z.DamagePerSec = phases[1].DamagePerSec
	}
	return z
}

// Advance recomputes the radius for the given tick. Returns the index
// of a phase whose shrink began on this tick, or -1.
func (z *Zone) Advance(tick uint64) int {
	if len(z.phases) < 2 || tick < z.startTick {
		return -1
	}
	rel := tick - z.startTick

	// Active phase: the last one whose window has begun
	idx := 1
	for idx+1 < len(z.phases) && rel >= z.bounds[idx].end {
		idx++
	}
	z.PhaseIndex = idx
	z.DamagePerSec = z.phases[idx].DamagePerSec

	b := z.bounds[idx]
	prev := z.phases[idx-1].TargetRadius
	target := z.phases[idx].TargetRadius

	started := -1
	switch {
	case rel < b.shrinkStart:
		z.Radius = prev
	case rel >= b.end:
		z.Radius = target
	default:
		if rel == b.shrinkStart {
			started = idx
		}
		progress := float64(rel-b.shrinkStart) / float64(b.end-b.shrinkStart)
		z.Radius = prev + (target-prev)*progress
	}
	return started
}

// Contains reports whether a point is inside the safe circle
func (z *Zone) Contains(p Vec2) bool {
	return p.Sub(z.Center).LenSq() <= z.Radius*z.Radius
}
