package main

// ShipClass holds the frozen tuning record for one ship archetype.
// New archetypes are table rows, not code.
type ShipClass struct {
	Name     string
	MaxHull  float64
	Accel    float64 // units/s²
	MaxSpeed float64 // units/s
	Drag     float64 // per-second linear drag coefficient
	TurnRate float64 // radians/s
	Radius   float64 // collision radius

	// Weapon profile
	Damage       float64
	ProjSpeed    float64 // muzzle speed, units/s
	FireInterval float64 // seconds between shots
	ProjTTL      float64 // projectile lifetime, seconds
	ProjRadius   float64
}

// DefaultShipType is used when a client sends an empty preference
const DefaultShipType = "fighter"

var shipCatalog = map[string]*ShipClass{
	"scout": {
		Name: "scout", MaxHull: 60, Accel: 300, MaxSpeed: 400,
		Drag: 1.5, TurnRate: 4.0, Radius: 15,
		Damage: 8, ProjSpeed: 600, FireInterval: 0.15, ProjTTL: 1.5, ProjRadius: 3,
	},
	"fighter": {
		Name: "fighter", MaxHull: 100, Accel: 250, MaxSpeed: 300,
		Drag: 2.1, TurnRate: 3.0, Radius: 20,
		Damage: 12, ProjSpeed: 500, FireInterval: 0.25, ProjTTL: 2.0, ProjRadius: 4,
	},
	"cruiser": {
		Name: "cruiser", MaxHull: 150, Accel: 150, MaxSpeed: 200,
		Drag: 3.0, TurnRate: 2.0, Radius: 30,
		Damage: 15, ProjSpeed: 400, FireInterval: 0.4, ProjTTL: 2.5, ProjRadius: 5,
	},
	"destroyer": {
		Name: "destroyer", MaxHull: 120, Accel: 120, MaxSpeed: 180,
		Drag: 3.6, TurnRate: 1.5, Radius: 35,
		Damage: 25, ProjSpeed: 350, FireInterval: 0.6, ProjTTL: 3.0, ProjRadius: 8,
	},
}

// LookupShipClass resolves an archetype name. Unknown names are
// rejected at join time, never defaulted.
func LookupShipClass(name string) (*ShipClass, bool) {
	sc, ok := shipCatalog[name]
	return sc, ok
}

// FireIntervalTicks converts the weapon cooldown to whole ticks at the
// given simulation rate. Always at least one tick.
func (sc *ShipClass) FireIntervalTicks(tps int) int {
	t := int(sc.FireInterval*float64(tps) + 0.5)
	if t < 1 {
		t = 1
	}
	return t
}

// ProjTTLTicks converts the projectile lifetime to whole ticks
func (sc *ShipClass) ProjTTLTicks(tps int) int {
	t := int(sc.ProjTTL*float64(tps) + 0.5)
	if t < 1 {
		t = 1
	}
	return t
}
