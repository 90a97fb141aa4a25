package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the server. Values come from the
// environment (a local .env is honored when present) with the listed
// defaults.
type Config struct {
	Addr    string
	DBPath  string
	LogPath string

	SimulationTPS        int
	SnapshotTPS          int
	MinPlayersToStart    int
	MaxPlayersPerMatch   int
	JoinWindowSecs       float64
	MatchMaxDurationSecs float64
	DisconnectGraceSecs  float64
	IdleTimeoutSecs      float64
	MaxInputRateHz       int
	WorldRadius          float64
	AimMaxSlewRadPerSec  float64
	ZonePhases           []ZonePhaseDef
}

// DefaultConfig returns the reference tuning
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		DBPath:               "shiproyale.db",
		LogPath:              "shiproyale.log",
		SimulationTPS:        30,
		SnapshotTPS:          20,
		MinPlayersToStart:    2,
		MaxPlayersPerMatch:   32,
		JoinWindowSecs:       15,
		MatchMaxDurationSecs: 1200,
		DisconnectGraceSecs:  10,
		IdleTimeoutSecs:      30,
		MaxInputRateHz:       60,
		WorldRadius:          1500,
		AimMaxSlewRadPerSec:  6.0,
		ZonePhases:           DefaultZonePhases,
	}
}

// LoadConfig reads the environment over the defaults
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Addr = envStr("ADDR", cfg.Addr)
	cfg.DBPath = envStr("DB_PATH", cfg.DBPath)
	cfg.LogPath = envStr("LOG_PATH", cfg.LogPath)
	cfg.SimulationTPS = envInt("SIMULATION_TPS", cfg.SimulationTPS)
	cfg.SnapshotTPS = envInt("SNAPSHOT_TPS", cfg.SnapshotTPS)
	cfg.MinPlayersToStart = envInt("MIN_PLAYERS_TO_START", cfg.MinPlayersToStart)
	cfg.MaxPlayersPerMatch = envInt("MAX_PLAYERS_PER_MATCH", cfg.MaxPlayersPerMatch)
	cfg.JoinWindowSecs = envFloat("JOIN_WINDOW_SECS", cfg.JoinWindowSecs)
	cfg.MatchMaxDurationSecs = envFloat("MATCH_MAX_DURATION_SECS", cfg.MatchMaxDurationSecs)
	cfg.DisconnectGraceSecs = envFloat("DISCONNECT_GRACE_SECS", cfg.DisconnectGraceSecs)
	cfg.IdleTimeoutSecs = envFloat("IDLE_TIMEOUT_SECS", cfg.IdleTimeoutSecs)
	cfg.MaxInputRateHz = envInt("MAX_INPUT_RATE_HZ", cfg.MaxInputRateHz)
	cfg.WorldRadius = envFloat("WORLD_RADIUS", cfg.WorldRadius)
	cfg.AimMaxSlewRadPerSec = envFloat("AIM_MAX_SLEW_RAD_PER_SEC", cfg.AimMaxSlewRadPerSec)
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
