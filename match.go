package main

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MatchPhase is the lifecycle state of a match
type MatchPhase int

const (
	PhaseLobby MatchPhase = iota
	PhaseRunning
	PhaseEnded
)

// Tick outcomes. The scheduler reads the tag and acts; the simulation
// never unwinds through it.
type TickOutcomeKind int

const (
	TickAdvanced TickOutcomeKind = iota
	TickEnded
	TickFatal
)

// TickOutcome is the tagged result of one simulation step
type TickOutcome struct {
	Kind   TickOutcomeKind
	Reason string
}

// maxCatchUpTicks bounds how far a late wake may fast-forward. Beyond
// it ticks are skipped outright; dt never warps.
const maxCatchUpTicks = 5

type joinRequest struct {
	userID uuid.UUID
	name   string
	ship   *ShipClass
	reply  chan joinReply
}

type joinReply struct {
	bridge *SessionBridge
	seed   uint64
	slot   int
	others []PlayerInfoMsg
	reason string // non-empty on rejection
}

// Match owns all state of one running battle: players, projectiles,
// zone, pending events. A single goroutine (Run) mutates it; sessions
// reach it only through the input buffers and the join channel.
type Match struct {
	ID   uuid.UUID
	Seed uint64

	cfg Config
	dt  float64

	phase       MatchPhase
	tick        uint64
	runningTick uint64 // tick at the Lobby→Running transition
	players     []*Player // slot-indexed; players are never removed
	bridges     []*SessionBridge
	byUser      map[uuid.UUID]int
	zone        *Zone
	projectiles []*Projectile
	nextProjID  uint32
	rng         *Rand
	pending     []Event
	snap        *SnapshotBuilder
	metrics     *MatchMetrics
	sink        StatsSink

	joinCh chan joinRequest
	stopCh chan struct{}

	startedAt time.Time
	winner    *uuid.UUID
	onEnd     func(id uuid.UUID)

	maxDurationTicks uint64
	graceTicks       uint64
	idleTicks        uint64

	nextTickAt time.Time
}

// NewMatch creates a match in Lobby with a fresh identity. onEnd is
// called exactly once after the terminal message went out.
func NewMatch(cfg Config, seed uint64, sink StatsSink, onEnd func(uuid.UUID)) *Match {
	tps := cfg.SimulationTPS
	m := &Match{
		ID:               uuid.New(),
		Seed:             seed,
		cfg:              cfg,
		dt:               1.0 / float64(tps),
		phase:            PhaseLobby,
		byUser:           make(map[uuid.UUID]int),
		rng:              NewRand(seed),
		snap:             NewSnapshotBuilder(tps, cfg.SnapshotTPS),
		metrics:          &MatchMetrics{},
		sink:             sink,
		joinCh:           make(chan joinRequest, 8),
		stopCh:           make(chan struct{}),
		onEnd:            onEnd,
		maxDurationTicks: uint64(cfg.MatchMaxDurationSecs * float64(tps)),
		graceTicks:       uint64(cfg.DisconnectGraceSecs * float64(tps)),
		idleTicks:        uint64(cfg.IdleTimeoutSecs * float64(tps)),
	}
	return m
}

// Metrics exposes the match counters
func (m *Match) Metrics() *MatchMetrics { return m.metrics }

// Join asks the match goroutine for a lobby slot. Returns the bridge
// or a rejection reason. Joins land in Lobby only; a Running match is
// closed.
func (m *Match) Join(userID uuid.UUID, name string, ship *ShipClass) (*SessionBridge, joinReply) {
	req := joinRequest{userID: userID, name: name, ship: ship, reply: make(chan joinReply, 1)}
	select {
	case m.joinCh <- req:
	case <-m.stopCh:
		return nil, joinReply{reason: "match_over"}
	}
	select {
	case rep := <-req.reply:
		return rep.bridge, rep
	case <-m.stopCh:
		return nil, joinReply{reason: "match_over"}
	}
}

// Stop cancels the match from outside (server shutdown). Safe to call
// once; the run loop drains bridges with a terminal message.
func (m *Match) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}

// Run drives the lobby window and then the fixed-rate tick loop.
// Intended as a goroutine; one per match.
func (m *Match) Run() {
	tickInterval := time.Second / time.Duration(m.cfg.SimulationTPS)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	joinWindow := time.NewTimer(time.Duration(m.cfg.JoinWindowSecs * float64(time.Second)))
	defer joinWindow.Stop()

	Log.Infow("match created", "match_id", m.ID, "seed", m.Seed)

	for {
		select {
		case <-m.stopCh:
			m.finish("aborted", nil)
			return

		case req := <-m.joinCh:
			m.handleJoin(req)
			if m.phase == PhaseLobby && len(m.players) >= m.cfg.MaxPlayersPerMatch {
				m.startRunning()
			}

		case <-joinWindow.C:
			if m.phase == PhaseLobby {
				m.startRunning()
			}

		case now := <-ticker.C:
			if m.phase != PhaseRunning {
				continue
			}
			outcome := m.advance(now, tickInterval)
			switch outcome.Kind {
			case TickEnded:
				m.finish(outcome.Reason, m.winner)
				return
			case TickFatal:
				Log.Errorw("match aborted on invariant violation",
					"match_id", m.ID, "reason", outcome.Reason, "fingerprint", m.fingerprint())
				m.finish("fatal", nil)
				return
			}
		}
	}
}

// handleJoin inserts a player while the lobby is open
func (m *Match) handleJoin(req joinRequest) {
	reject := func(reason string) {
		req.reply <- joinReply{reason: reason}
	}
	if m.phase != PhaseLobby {
		reject("match_started")
		return
	}
	if len(m.players) >= m.cfg.MaxPlayersPerMatch {
		reject("full")
		return
	}
	if _, dup := m.byUser[req.userID]; dup {
		reject("already_joined")
		return
	}

	slot := len(m.players)
	p := NewPlayer(req.userID, req.name, slot, req.ship)
	p.Pos = m.spawnPosition()
	p.Heading = NormalizeAngle(m.rng.Range(0, 2*math.Pi))
	p.AimYaw = p.Heading
	p.JoinedTick = m.tick

	bridge := NewSessionBridge(m.ID, req.userID, slot, m.cfg.MaxInputRateHz, m.metrics)

	m.players = append(m.players, p)
	m.bridges = append(m.bridges, bridge)
	m.byUser[req.userID] = slot

	others := make([]PlayerInfoMsg, 0, len(m.players))
	for _, q := range m.players {
		others = append(others, PlayerInfoMsg{
			Slot: q.Slot, UserID: q.UserID.String(), Name: q.Name, ShipType: q.ShipType,
		})
	}
	req.reply <- joinReply{bridge: bridge, seed: m.Seed, slot: slot, others: others}

	Log.Infow("player joined", "match_id", m.ID, "user_id", req.userID, "slot", slot)
}

// spawnPosition draws a seed-determined point on a ring inside the
// initial zone. Called in slot order, so join order fully determines
// the layout.
func (m *Match) spawnPosition() Vec2 {
	initial := m.cfg.ZonePhases[0].TargetRadius
	angle := m.rng.Range(0, 2*math.Pi)
	dist := m.rng.Range(initial*0.3, initial*0.8)
	sin, cos := SinCos(angle)
	return Vec2{cos * dist, sin * dist}
}

// startRunning performs the Lobby→Running transition
func (m *Match) startRunning() {
	if len(m.players) == 0 {
		// Everyone left before the window closed; nothing to simulate
		m.finish("empty_lobby", nil)
		m.Stop()
		return
	}
	m.phase = PhaseRunning
	m.runningTick = m.tick
	m.startedAt = time.Now()
	m.nextTickAt = m.startedAt

	// Zone center offset deterministically from the seed
	initial := m.cfg.ZonePhases[0].TargetRadius
	angle := m.rng.Range(0, 2*math.Pi)
	offset := m.rng.Range(0, initial*0.2)
	sin, cos := SinCos(angle)
	center := Vec2{cos * offset, sin * offset}
	m.zone = NewZone(m.cfg.ZonePhases, center, m.tick, m.cfg.SimulationTPS)

	for _, p := range m.players {
		p.LastInputTick = m.tick
	}

	m.pending = append(m.pending, Event{Type: EvMatchStart, Tick: m.tick})
	Log.Infow("match running", "match_id", m.ID, "players", len(m.players))
}

// advance catches the simulation up to now, at most maxCatchUpTicks
// steps per wake. dt stays fixed; drift beyond the bound is skipped
// and logged, never warped into the integration.
func (m *Match) advance(now time.Time, tickInterval time.Duration) TickOutcome {
	steps := 0
	for !m.nextTickAt.After(now) {
		if steps == maxCatchUpTicks {
			skipped := int64(now.Sub(m.nextTickAt)/tickInterval) + 1
			m.metrics.AddSkipped(skipped)
			m.nextTickAt = now.Add(tickInterval)
			Log.Warnw("scheduler lag, skipping ticks",
				"match_id", m.ID, "skipped", skipped, "tick", m.tick)
			return TickOutcome{Kind: TickAdvanced}
		}
		started := time.Now()
		outcome := m.runTick()
		m.metrics.AddTick(time.Since(started).Nanoseconds())
		m.nextTickAt = m.nextTickAt.Add(tickInterval)
		steps++
		if outcome.Kind != TickAdvanced {
			return outcome
		}
	}
	return TickOutcome{Kind: TickAdvanced}
}

// runTick executes exactly one deterministic simulation step. The
// order is fixed: inputs → zone → environmental damage → physics →
// shooting → projectiles → end check → snapshot.
func (m *Match) runTick() TickOutcome {
	m.tick++

	m.drainInputs()
	m.stepZone()
	m.applyEnvironmentalDamage()
	m.stepPhysics()
	m.processShooting()
	m.stepProjectiles()

	if outcome, done := m.checkEnd(); done {
		return outcome
	}
	if reason, bad := m.checkInvariants(); bad {
		return TickOutcome{Kind: TickFatal, Reason: reason}
	}

	m.flushSnapshot()
	return TickOutcome{Kind: TickAdvanced}
}

// drainInputs retains the newest accepted input per player and
// observes session liveness. Iteration is by ascending slot.
func (m *Match) drainInputs() {
	for _, p := range m.players {
		br := m.bridges[p.Slot]
		if p.Connected && br.Disconnected() {
			p.Connected = false
			p.DisconnectTick = m.tick
			Log.Infow("player disconnected", "match_id", m.ID, "slot", p.Slot)
		}

		if in, ok := br.Inputs.Drain(p.LastInputSeq); ok && p.Connected {
			p.LastInput = in
			p.LastInputSeq = in.Seq
			p.LastInputTick = m.tick
		}

		// Idle sessions are treated as disconnected
		if p.Connected && m.idleTicks > 0 && m.tick-p.LastInputTick > m.idleTicks {
			p.Connected = false
			p.DisconnectTick = m.tick
			br.MarkDisconnected()
			Log.Infow("player idle timeout", "match_id", m.ID, "slot", p.Slot)
		}
	}
}

func (m *Match) stepZone() {
	if started := m.zone.Advance(m.tick); started >= 0 {
		m.pending = append(m.pending, Event{Type: EvZonePhase, Tick: m.tick, Phase: started})
	}
}

// applyEnvironmentalDamage handles the zone and the disconnect grace
// window. Both kill with environmental attribution (no killer).
func (m *Match) applyEnvironmentalDamage() {
	for _, p := range m.players {
		if !p.Alive {
			continue
		}
		if !m.zone.Contains(p.Pos) {
			dmg := m.zone.DamagePerSec * m.dt
			if dmg > 0 {
				died := p.ApplyDamage(dmg)
				m.pending = append(m.pending, Event{Type: EvZoneDamage, Tick: m.tick, Victim: p.Slot, Damage: dmg})
				if died {
					m.recordDeath(p, nil)
				}
			}
		}
	}
	for _, p := range m.players {
		if p.Alive && !p.Connected && m.graceTicks > 0 && m.tick-p.DisconnectTick >= m.graceTicks {
			p.Hull = 0
			p.Alive = false
			m.recordDeath(p, nil)
			Log.Infow("player removed after grace window", "match_id", m.ID, "slot", p.Slot)
		}
	}
}

func (m *Match) stepPhysics() {
	for _, p := range m.players {
		if !p.Alive {
			continue
		}
		StepShip(p, m.dt, m.cfg.WorldRadius)
		UpdateAim(p, p.LastInput.AimYaw, m.cfg.AimMaxSlewRadPerSec, m.dt)
	}
}

// processShooting spawns projectiles for players holding fire with a
// cold weapon. Server cooldown is the only cadence authority; shoot
// intents that violate it are ignored, not counted.
func (m *Match) processShooting() {
	for _, p := range m.players {
		if p.Cooldown > 0 {
			p.Cooldown--
		}
		if !p.Alive || !p.LastInput.Shoot || p.Cooldown > 0 {
			continue
		}
		m.nextProjID++
		pr := SpawnProjectile(m.nextProjID, p, m.tick, m.cfg.SimulationTPS)
		m.projectiles = append(m.projectiles, pr)
		p.Cooldown = p.Ship.FireIntervalTicks(m.cfg.SimulationTPS)
		p.ShotsFired++
		m.pending = append(m.pending, Event{
			Type: EvShot, Tick: m.tick, Slot: p.Slot, X: pr.Pos.X, Y: pr.Pos.Y,
		})
	}
}

// stepProjectiles advances shots in spawn order and resolves hits.
// Victims killed earlier in this tick still absorb later hits (the
// damage counts, no second kill event).
func (m *Match) stepProjectiles() {
	alive := m.projectiles[:0]
	for _, pr := range m.projectiles {
		if !pr.Step(m.dt) {
			continue // expired silently
		}
		victim := ResolveHit(pr, m.players, m.tick)
		if victim == nil {
			alive = append(alive, pr)
			continue
		}
		owner := m.players[pr.OwnerSlot]
		owner.ShotsHit++
		owner.DamageDealt += pr.Damage
		m.pending = append(m.pending, Event{
			Type: EvHit, Tick: m.tick, Slot: pr.OwnerSlot, Victim: victim.Slot,
			Damage: pr.Damage, X: pr.Pos.X, Y: pr.Pos.Y,
		})
		if victim.Alive {
			if victim.ApplyDamage(pr.Damage) {
				owner.Kills++
				killer := pr.OwnerSlot
				m.recordDeath(victim, &killer)
			}
		}
	}
	m.projectiles = alive
}

// recordDeath sets the death bookkeeping and emits the kill event.
// killer == nil is environmental attribution.
func (m *Match) recordDeath(p *Player, killer *int) {
	p.DeathTick = m.tick
	ev := Event{Type: EvKill, Tick: m.tick, Victim: p.Slot, Killer: killer}
	m.pending = append(m.pending, ev)
}

func (m *Match) aliveCount() int {
	n := 0
	for _, p := range m.players {
		if p.Alive {
			n++
		}
	}
	return n
}

// checkEnd evaluates the two termination conditions
func (m *Match) checkEnd() (TickOutcome, bool) {
	alive := m.aliveCount()
	if alive <= 1 {
		m.winner = nil
		for _, p := range m.players {
			if p.Alive {
				id := p.UserID
				m.winner = &id
				break
			}
		}
		return TickOutcome{Kind: TickEnded, Reason: "last_alive"}, true
	}
	if m.tick-m.runningTick >= m.maxDurationTicks {
		m.winner = m.timeoutWinner()
		return TickOutcome{Kind: TickEnded, Reason: "time_limit"}, true
	}
	return TickOutcome{}, false
}

// timeoutWinner picks the highest-hull alive player; an exact tie at
// the top means no winner.
func (m *Match) timeoutWinner() *uuid.UUID {
	var best *Player
	tied := false
	for _, p := range m.players {
		if !p.Alive {
			continue
		}
		switch {
		case best == nil || p.Hull > best.Hull:
			best = p
			tied = false
		case p.Hull == best.Hull:
			tied = true
		}
	}
	if best == nil || tied {
		return nil
	}
	id := best.UserID
	return &id
}

// checkInvariants guards against simulation corruption. A violation
// aborts this match only; siblings are unaffected.
func (m *Match) checkInvariants() (string, bool) {
	for _, p := range m.players {
		if !p.Pos.IsFinite() || !p.Vel.IsFinite() || math.IsNaN(p.Heading) {
			return fmt.Sprintf("non-finite state for slot %d", p.Slot), true
		}
		if p.Hull < 0 || p.Hull > p.Ship.MaxHull {
			return fmt.Sprintf("hull out of range for slot %d", p.Slot), true
		}
		if p.Alive != (p.Hull > 0) {
			return fmt.Sprintf("liveness mismatch for slot %d", p.Slot), true
		}
	}
	return "", false
}

// flushSnapshot appends tick state to the builder cadence and, on
// flush ticks, fans the encoded payload out to every session outbox.
func (m *Match) flushSnapshot() {
	if !m.snap.ShouldFlush() {
		return
	}
	snap := m.snap.Build(m.tick, m.zone, m.players, m.projectiles, m.pending)
	m.pending = nil

	data, err := snap.Encode()
	if err != nil {
		Log.Errorw("snapshot encode failed", "match_id", m.ID, "error", err)
		return
	}
	m.metrics.IncSnapshots()
	for _, br := range m.bridges {
		br.Send(OutMsg{Binary: true, Data: data})
	}
}

// finish emits the summary, notifies every bridge with the terminal
// message, and releases resources. Stats sink failures never block
// shutdown.
func (m *Match) finish(reason string, winner *uuid.UUID) {
	if m.phase == PhaseEnded {
		return
	}
	m.phase = PhaseEnded
	endedAt := time.Now()
	if m.startedAt.IsZero() {
		m.startedAt = endedAt
	}

	summary := m.buildSummary(winner, endedAt)
	emitSummary(m.sink, summary)

	end := MatchEndMsg{Stats: make([]PlayerEndStats, 0, len(summary.Players))}
	if winner != nil {
		end.WinnerUserID = winner.String()
	}
	for _, ps := range summary.Players {
		end.Stats = append(end.Stats, PlayerEndStats{
			UserID: ps.UserID.String(), Slot: ps.Slot, Kills: ps.Kills,
			DamageDealt: ps.DamageDealt, ShotsFired: ps.ShotsFired,
			ShotsHit: ps.ShotsHit, Placement: ps.Placement,
		})
	}
	for _, br := range m.bridges {
		br.SendEnvelope(MsgMatchEnd, end)
		br.Close()
	}

	if m.onEnd != nil {
		m.onEnd(m.ID)
	}
	// Unblock any join already in flight; it observes match_over
	m.Stop()
	Log.Infow("match ended", "match_id", m.ID, "reason", reason,
		"winner", end.WinnerUserID, "ticks", m.tick)
}

// buildSummary computes placements 1..N: the winner first, then later
// deaths ahead of earlier ones, hull as the alive tie-break and queue
// order last.
func (m *Match) buildSummary(winner *uuid.UUID, endedAt time.Time) MatchSummary {
	ranked := make([]*Player, len(m.players))
	copy(ranked, m.players)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if winner != nil {
			if a.UserID == *winner {
				return true
			}
			if b.UserID == *winner {
				return false
			}
		}
		if a.Alive != b.Alive {
			return a.Alive
		}
		if a.Alive {
			if a.Hull != b.Hull {
				return a.Hull > b.Hull
			}
			return a.Slot < b.Slot
		}
		if a.DeathTick != b.DeathTick {
			return a.DeathTick > b.DeathTick
		}
		return a.Slot < b.Slot
	})

	summary := MatchSummary{
		MatchID:      m.ID,
		Seed:         m.Seed,
		StartedAt:    m.startedAt,
		EndedAt:      endedAt,
		DurationSecs: endedAt.Sub(m.startedAt).Seconds(),
		WinnerUserID: winner,
		Players:      make([]PlayerSummary, 0, len(ranked)),
	}
	for place, p := range ranked {
		summary.Players = append(summary.Players, PlayerSummary{
			UserID:      p.UserID,
			Slot:        p.Slot,
			ShipType:    p.ShipType,
			Kills:       p.Kills,
			DamageDealt: p.DamageDealt,
			ShotsFired:  p.ShotsFired,
			ShotsHit:    p.ShotsHit,
			Placement:   place + 1,
			DeathTick:   p.DeathTick,
		})
	}
	return summary
}

// fingerprint is logged on fatal aborts for postmortem debugging
func (m *Match) fingerprint() string {
	return fmt.Sprintf("tick=%d players=%d alive=%d projectiles=%d phase=%d",
		m.tick, len(m.players), m.aliveCount(), len(m.projectiles), m.phase)
}
