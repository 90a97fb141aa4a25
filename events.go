package main

// Event types carried in snapshots. Each event is attached to the tick
// it occurred on and delivered exactly once with the next flush.
const (
	EvMatchStart = "match_start"
	EvMatchEnd   = "match_end"
	EvShot       = "shot"
	EvHit        = "hit"
	EvKill       = "kill"
	EvZoneDamage = "zone_damage"
	EvZonePhase  = "zone_phase"
)

// Event is a tagged tick event. Killer is a slot index; nil means
// environmental attribution (zone or disconnect-grace timeout).
type Event struct {
	Type   string  `json:"t" msgpack:"t"`
	Tick   uint64  `json:"k" msgpack:"k"`
	Slot   int     `json:"s,omitempty" msgpack:"s,omitempty"`
	Victim int     `json:"v,omitempty" msgpack:"v,omitempty"`
	Killer *int    `json:"kr,omitempty" msgpack:"kr,omitempty"`
	Damage float64 `json:"d,omitempty" msgpack:"d,omitempty"`
	Phase  int     `json:"p,omitempty" msgpack:"p,omitempty"`
	X      float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y      float64 `json:"y,omitempty" msgpack:"y,omitempty"`
}
