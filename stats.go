package main

import (
	"time"

	"github.com/google/uuid"
)

// PlayerSummary is one player's final line in the match summary
type PlayerSummary struct {
	UserID      uuid.UUID
	Slot        int
	ShipType    string
	Kills       int
	DamageDealt float64
	ShotsFired  int
	ShotsHit    int
	Placement   int // 1..N, winner first
	DeathTick   uint64
}

// MatchSummary is the end-of-match record handed to the stats sink,
// the core's only durable output.
type MatchSummary struct {
	MatchID      uuid.UUID
	Seed         uint64
	StartedAt    time.Time
	EndedAt      time.Time
	DurationSecs float64
	WinnerUserID *uuid.UUID
	Players      []PlayerSummary
}

// StatsSink receives match summaries. The sink owns persistence; the
// core retries once and then drops, logging the loss. A sink failure
// never blocks match shutdown.
type StatsSink interface {
	RecordMatch(summary MatchSummary) error
}

// emitSummary applies the retry-once policy
func emitSummary(sink StatsSink, summary MatchSummary) {
	if sink == nil {
		return
	}
	err := sink.RecordMatch(summary)
	if err == nil {
		return
	}
	if err = sink.RecordMatch(summary); err != nil {
		Log.Errorw("match summary dropped", "match_id", summary.MatchID, "error", err)
	}
}

// discardSink is used when no persistence is configured
type discardSink struct{}

func (discardSink) RecordMatch(MatchSummary) error { return nil }
